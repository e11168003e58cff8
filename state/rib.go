package state

import (
	"net/netip"
	"reflect"
)

// UnicastRoute is one IP RIB entry.
type UnicastRoute struct {
	Prefix          netip.Prefix
	Nexthops        *NextHopSet
	BestPrefixEntry *PrefixEntry
	DoNotInstall    bool
	BestNexthop     *NextHop
}

// Equal implements the structural-equality rule §6 requires for diffing:
// all fields must match, next-hop sets compared as sets.
func (u *UnicastRoute) Equal(o *UnicastRoute) bool {
	if u == nil || o == nil {
		return u == o
	}
	if u.Prefix != o.Prefix || u.DoNotInstall != o.DoNotInstall {
		return false
	}
	if !u.Nexthops.Equal(o.Nexthops) {
		return false
	}
	if (u.BestNexthop == nil) != (o.BestNexthop == nil) {
		return false
	}
	if u.BestNexthop != nil && u.BestNexthop.Key() != o.BestNexthop.Key() {
		return false
	}
	if (u.BestPrefixEntry == nil) != (o.BestPrefixEntry == nil) {
		return false
	}
	return u.BestPrefixEntry == nil || reflect.DeepEqual(*u.BestPrefixEntry, *o.BestPrefixEntry)
}

// MplsRoute is one MPLS RIB entry, keyed by its top label.
type MplsRoute struct {
	TopLabel uint32
	Nexthops *NextHopSet
}

func (m *MplsRoute) Equal(o *MplsRoute) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.TopLabel == o.TopLabel && m.Nexthops.Equal(o.Nexthops)
}

// RouteDb is a node's complete computed RIB: the unicast and MPLS entries
// produced by merging every area's SpfSolver output and applying RibPolicy.
type RouteDb struct {
	ThisNode      Node
	UnicastRoutes map[netip.Prefix]*UnicastRoute
	MplsRoutes    map[uint32]*MplsRoute
}

func NewRouteDb(node Node) *RouteDb {
	return &RouteDb{
		ThisNode:      node,
		UnicastRoutes: make(map[netip.Prefix]*UnicastRoute),
		MplsRoutes:    make(map[uint32]*MplsRoute),
	}
}

// PerfEvent is one timestamped marker threaded from an LSDB publication
// through to the RouteDatabaseDelta that it ultimately produced.
type PerfEvent struct {
	EventName  string
	NodeName   Node
	UnixTimeMs int64
}

// RouteDatabaseDelta is the output of the decision pipeline, published to
// the (external) FIB programmer.
type RouteDatabaseDelta struct {
	ThisNodeName          Node
	UnicastRoutesToUpdate []*UnicastRoute
	UnicastRoutesToDelete []netip.Prefix
	MplsRoutesToUpdate    []*MplsRoute
	MplsRoutesToDelete    []uint32
	PerfEvents            []PerfEvent
}
