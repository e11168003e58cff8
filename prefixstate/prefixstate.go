// Package prefixstate indexes every node's advertised prefixes, keyed by
// prefix and then by originating node, so the solver can find every
// advertiser of a destination without a linear scan (§4.2).
package prefixstate

import (
	"net/netip"

	"github.com/gaissmai/bart"

	"github.com/lsdecision/decision/state"
)

// nodeEntries separates a node's full-database prefixes from its
// per-prefix-keyed overrides, since the merge rule requires telling the two
// apart: perPrefix wins over fullDb on an identical key, and the effective
// set is their union.
type nodeEntries struct {
	full      map[netip.Prefix]state.PrefixEntry
	perPrefix map[netip.Prefix]state.PrefixEntry
}

func newNodeEntries() *nodeEntries {
	return &nodeEntries{
		full:      make(map[netip.Prefix]state.PrefixEntry),
		perPrefix: make(map[netip.Prefix]state.PrefixEntry),
	}
}

func (n *nodeEntries) effective() map[netip.Prefix]state.PrefixEntry {
	out := make(map[netip.Prefix]state.PrefixEntry, len(n.full)+len(n.perPrefix))
	for k, v := range n.full {
		out[k] = v
	}
	for k, v := range n.perPrefix {
		out[k] = v
	}
	return out
}

func entryEqual(a, b state.PrefixEntry) bool {
	if a.Type != b.Type || a.ForwardingType != b.ForwardingType || a.ForwardingAlgorithm != b.ForwardingAlgorithm {
		return false
	}
	if (a.PrependLabel == nil) != (b.PrependLabel == nil) {
		return false
	}
	if a.PrependLabel != nil && *a.PrependLabel != *b.PrependLabel {
		return false
	}
	if (a.MinNexthop == nil) != (b.MinNexthop == nil) {
		return false
	}
	if a.MinNexthop != nil && *a.MinNexthop != *b.MinNexthop {
		return false
	}
	return metricVectorEqual(a.MetricVector, b.MetricVector)
}

func metricVectorEqual(a, b *state.MetricVector) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Entities) != len(b.Entities) {
		return false
	}
	for i := range a.Entities {
		ea, eb := a.Entities[i], b.Entities[i]
		if ea.Type != eb.Type || ea.Priority != eb.Priority || ea.Op != eb.Op || ea.TieBreaker != eb.TieBreaker {
			return false
		}
		if len(ea.Metric) != len(eb.Metric) {
			return false
		}
		for j := range ea.Metric {
			if ea.Metric[j] != eb.Metric[j] {
				return false
			}
		}
	}
	return true
}

// State is the per-area-independent (prefixes are node-scoped, not area-
// scoped) prefix index. A gaissmai/bart.Table backs the prefix-keyed lookup
// so future longest-prefix-match consumers (e.g. ribpolicy) share the same
// structure; Prefixes()/GetLoopbackVias only ever need exact matches.
type State struct {
	table *bart.Table[map[state.Node]state.PrefixEntry]
	nodes map[state.Node]*nodeEntries
}

func New() *State {
	return &State{
		table: &bart.Table[map[state.Node]state.PrefixEntry]{},
		nodes: make(map[state.Node]*nodeEntries),
	}
}

func (s *State) nodeEntriesFor(node state.Node) *nodeEntries {
	ne, ok := s.nodes[node]
	if !ok {
		ne = newNodeEntries()
		s.nodes[node] = ne
	}
	return ne
}

func (s *State) setNodeForPrefix(node state.Node, pfx netip.Prefix, entry state.PrefixEntry) {
	s.table.Update(pfx, func(m map[state.Node]state.PrefixEntry, found bool) map[state.Node]state.PrefixEntry {
		if !found || m == nil {
			m = make(map[state.Node]state.PrefixEntry, 1)
		}
		m[node] = entry
		return m
	})
}

func (s *State) removeNodeFromPrefix(node state.Node, pfx netip.Prefix) {
	m, ok := s.table.Get(pfx)
	if !ok {
		return
	}
	delete(m, node)
	if len(m) == 0 {
		s.table.Delete(pfx)
		return
	}
	s.table.Insert(pfx, m)
}

func (s *State) reindex(node state.Node, oldEff, newEff map[netip.Prefix]state.PrefixEntry) bool {
	changed := false
	for pfx := range oldEff {
		if _, stillThere := newEff[pfx]; stillThere {
			continue
		}
		changed = true
		s.removeNodeFromPrefix(node, pfx)
	}
	for pfx, entry := range newEff {
		if old, hadOld := oldEff[pfx]; !hadOld || !entryEqual(old, entry) {
			changed = true
		}
		s.setNodeForPrefix(node, pfx, entry)
	}
	return changed
}

// UpdateFullPrefixDatabase replaces `db.ThisNode`'s full-database prefix set
// (the `prefix:<node>` LSDB key). Any per-prefix-keyed overrides already on
// file for this node are left untouched and continue to take precedence.
func (s *State) UpdateFullPrefixDatabase(db state.PrefixDatabase) bool {
	ne := s.nodeEntriesFor(db.ThisNode)
	oldEff := ne.effective()
	ne.full = make(map[netip.Prefix]state.PrefixEntry, len(db.Prefixes))
	for pfx, entry := range db.Prefixes {
		ne.full[pfx] = entry
	}
	newEff := ne.effective()
	return s.reindex(db.ThisNode, oldEff, newEff)
}

// UpdatePrefixEntry applies a single-prefix-keyed update (the
// `prefix:<node>:<prefix-key>` LSDB key), which overrides whatever the
// node's full database says about this one prefix.
func (s *State) UpdatePrefixEntry(node state.Node, prefix netip.Prefix, entry state.PrefixEntry) bool {
	ne := s.nodeEntriesFor(node)
	oldEff := ne.effective()
	ne.perPrefix[prefix] = entry
	newEff := ne.effective()
	return s.reindex(node, oldEff, newEff)
}

// DeletePrefixEntry withdraws a single per-prefix-keyed override, falling
// back to whatever (if anything) the node's full database says about it.
func (s *State) DeletePrefixEntry(node state.Node, prefix netip.Prefix) bool {
	ne, ok := s.nodes[node]
	if !ok {
		return false
	}
	if _, had := ne.perPrefix[prefix]; !had {
		return false
	}
	oldEff := ne.effective()
	delete(ne.perPrefix, prefix)
	newEff := ne.effective()
	return s.reindex(node, oldEff, newEff)
}

// DeleteNode withdraws every prefix `node` has ever advertised, full-db and
// per-prefix alike, because the node itself has left the LSDB.
func (s *State) DeleteNode(node state.Node) bool {
	ne, ok := s.nodes[node]
	if !ok {
		return false
	}
	oldEff := ne.effective()
	delete(s.nodes, node)
	changed := false
	for pfx := range oldEff {
		changed = true
		s.removeNodeFromPrefix(node, pfx)
	}
	return changed
}

func cloneNodeMap(m map[state.Node]state.PrefixEntry) map[state.Node]state.PrefixEntry {
	out := make(map[state.Node]state.PrefixEntry, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Prefixes returns every known prefix and, for each, every advertiser's
// entry.
func (s *State) Prefixes() map[netip.Prefix]map[state.Node]state.PrefixEntry {
	out := make(map[netip.Prefix]map[state.Node]state.PrefixEntry)
	for pfx, m := range s.table.All4() {
		out[pfx] = cloneNodeMap(m)
	}
	for pfx, m := range s.table.All6() {
		out[pfx] = cloneNodeMap(m)
	}
	return out
}

// PrefixDatabases returns every node's effective PrefixDatabase (full-db
// entries merged with any per-prefix-keyed overrides), for introspection.
func (s *State) PrefixDatabases() map[state.Node]state.PrefixDatabase {
	out := make(map[state.Node]state.PrefixDatabase, len(s.nodes))
	for node, ne := range s.nodes {
		out[node] = state.PrefixDatabase{ThisNode: node, Prefixes: ne.effective()}
	}
	return out
}

// GetLoopbackVias resolves the configured loopback address(es) of `nodes`
// matching the requested address family, returned as next-hops annotated
// with each originator's supplied IGP metric.
func (s *State) GetLoopbackVias(nodes []state.Node, isV4 bool, igpMetric map[state.Node]uint32) []state.NextHop {
	var out []state.NextHop
	for _, node := range nodes {
		ne, ok := s.nodes[node]
		if !ok {
			continue
		}
		for pfx, entry := range ne.effective() {
			if entry.Type != state.PrefixLoopback {
				continue
			}
			if pfx.Addr().Is4() != isV4 {
				continue
			}
			out = append(out, state.NextHop{
				Addr:   pfx.Addr(),
				Metric: igpMetric[node],
			})
		}
	}
	return out
}
