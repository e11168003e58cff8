// Package mock builds synthetic topologies and LSDB publications for tests
// and the CLI's demo mode, adapted from the teacher's state.MockCfg/
// mock.MockCfg edge-list generator (bob/jeb/kat/eve/ada, weighted edges).
package mock

import (
	"fmt"
	"net/netip"

	"github.com/goccy/go-yaml"

	"github.com/lsdecision/decision/state"
)

// Edge is one undirected, weighted link in a synthetic topology.
type Edge struct {
	A, B   state.Node
	Metric uint32
}

// DefaultNodes is the teacher's own mock node set.
var DefaultNodes = []state.Node{"bob", "jeb", "kat", "eve", "ada"}

// DefaultEdges is the teacher's own mock edge/weight list.
var DefaultEdges = []Edge{
	{"bob", "jeb", 7},
	{"bob", "kat", 9},
	{"bob", "eve", 100},
	{"jeb", "kat", 1},
	{"kat", "ada", 10},
	{"kat", "eve", 3},
	{"eve", "ada", 8},
}

// Ring builds a unit-metric cycle over `nodes` in order, A->B->C->...->A.
func Ring(nodes []state.Node) []Edge {
	edges := make([]Edge, 0, len(nodes))
	for i, n := range nodes {
		next := nodes[(i+1)%len(nodes)]
		edges = append(edges, Edge{A: n, B: next, Metric: 1})
	}
	return edges
}

// adjacenciesByNode expands an undirected edge list into each endpoint's own
// directed adjacency list, assigning a distinct adjacency label per
// direction starting at labelBase+1.
func adjacenciesByNode(edges []Edge, area state.Area, labelBase uint32) map[state.Node][]state.Adjacency {
	out := make(map[state.Node][]state.Adjacency)
	label := labelBase
	for _, e := range edges {
		label++
		out[e.A] = append(out[e.A], state.Adjacency{
			ToNode: e.B, IfName: fmt.Sprintf("%s-%s", e.A, e.B), Metric: e.Metric,
			AdjLabel: label, Area: area,
		})
		label++
		out[e.B] = append(out[e.B], state.Adjacency{
			ToNode: e.A, IfName: fmt.Sprintf("%s-%s", e.B, e.A), Metric: e.Metric,
			AdjLabel: label, Area: area,
		})
	}
	return out
}

// AdjacencyDatabases builds one AdjacencyDatabase per node in `nodes`, wired
// according to `edges`. Node labels are assigned sequentially starting at
// 5001.
func AdjacencyDatabases(nodes []state.Node, edges []Edge, area state.Area) map[state.Node]state.AdjacencyDatabase {
	adjOf := adjacenciesByNode(edges, area, 1000)
	out := make(map[state.Node]state.AdjacencyDatabase, len(nodes))
	nodeLabel := uint32(5000)
	for _, n := range nodes {
		nodeLabel++
		out[n] = state.AdjacencyDatabase{
			ThisNode: n, Area: area, NodeLabel: nodeLabel, Adjacencies: adjOf[n],
		}
	}
	return out
}

// LoopbackPrefix returns a deterministic /32 loopback for the i'th node
// (1-indexed), e.g. index 1 -> 10.99.0.1/32.
func LoopbackPrefix(index int) netip.Prefix {
	return netip.MustParsePrefix(fmt.Sprintf("10.99.0.%d/32", index))
}

// PrefixDatabases advertises one loopback per node and, when servicePrefix
// is non-nil, one unique service prefix per node, each
// AlgoSpEcmp/ForwardingIP.
func PrefixDatabases(nodes []state.Node, servicePrefix func(i int) netip.Prefix) map[state.Node]state.PrefixDatabase {
	out := make(map[state.Node]state.PrefixDatabase, len(nodes))
	for i, n := range nodes {
		prefixes := map[netip.Prefix]state.PrefixEntry{
			LoopbackPrefix(i + 1): {
				Type: state.PrefixLoopback, ForwardingType: state.ForwardingIP, ForwardingAlgorithm: state.AlgoSpEcmp,
			},
		}
		if servicePrefix != nil {
			prefixes[servicePrefix(i+1)] = state.PrefixEntry{
				Type: state.PrefixOther, ForwardingType: state.ForwardingIP, ForwardingAlgorithm: state.AlgoSpEcmp,
			}
		}
		out[n] = state.PrefixDatabase{ThisNode: n, Prefixes: prefixes}
	}
	return out
}

// Publication serializes a full set of adjacency/prefix databases the way
// the (external) KV-store layer would, as one LsdbPublication.
func Publication(area state.Area, adjs map[state.Node]state.AdjacencyDatabase, prefixes map[state.Node]state.PrefixDatabase) (state.LsdbPublication, error) {
	kv := make(map[string]state.KeyVal, len(adjs)+len(prefixes))
	for n, db := range adjs {
		b, err := yaml.Marshal(db)
		if err != nil {
			return state.LsdbPublication{}, err
		}
		kv["adj:"+string(n)] = state.KeyVal{Value: b, TtlVersion: 1}
	}
	for n, db := range prefixes {
		b, err := yaml.Marshal(db)
		if err != nil {
			return state.LsdbPublication{}, err
		}
		kv["prefix:"+string(n)] = state.KeyVal{Value: b, TtlVersion: 1}
	}
	return state.LsdbPublication{Area: area, KeyVals: kv}, nil
}
