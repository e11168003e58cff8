package state

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"
)

// MplsActionType is the label operation applied at a hop.
type MplsActionType int

const (
	MplsNone MplsActionType = iota
	MplsPush
	MplsSwap
	MplsPhp
	MplsPopAndLookup
)

func (t MplsActionType) String() string {
	switch t {
	case MplsPush:
		return "PUSH"
	case MplsSwap:
		return "SWAP"
	case MplsPhp:
		return "PHP"
	case MplsPopAndLookup:
		return "POP_AND_LOOKUP"
	default:
		return "NONE"
	}
}

// MplsAction is the label operation (if any) a NextHop applies.
// PushLabels is bottom-to-top: PushLabels[0] is the label closest to the IP
// payload, pushed first.
type MplsAction struct {
	Type       MplsActionType
	SwapLabel  uint32
	PushLabels []uint32
}

func (a MplsAction) key() string {
	var b strings.Builder
	b.WriteString(a.Type.String())
	fmt.Fprintf(&b, ":%d:", a.SwapLabel)
	for _, l := range a.PushLabels {
		fmt.Fprintf(&b, "%d,", l)
	}
	return b.String()
}

// NextHop is one forwarding choice for a RIB entry.
type NextHop struct {
	Addr        netip.Addr
	Iface       string
	Metric      uint32
	Mpls        *MplsAction
	NonShortest bool
	Area        Area
	// Weight is the FIB-programming weight used for unequal-cost-multipath
	// forwarding; RibPolicy is the only component that rewrites it, and a
	// post-rewrite weight of 0 removes the next-hop entirely (§4.5). A zero
	// value here (the common case, no active policy) means "unweighted".
	Weight uint32
}

// Key returns a value equal for two NextHops iff every field the spec
// requires for set/structural-equality semantics is equal.
func (n NextHop) Key() string {
	var b strings.Builder
	b.WriteString(n.Addr.String())
	b.WriteByte('|')
	b.WriteString(n.Iface)
	fmt.Fprintf(&b, "|%d|%t|%s|%d|", n.Metric, n.NonShortest, n.Area, n.Weight)
	if n.Mpls != nil {
		b.WriteString(n.Mpls.key())
	}
	return b.String()
}

// NextHopSet is an ordered (by key) deduplicated set of NextHops.
type NextHopSet struct {
	items map[string]NextHop
}

func NewNextHopSet(nhs ...NextHop) *NextHopSet {
	s := &NextHopSet{items: make(map[string]NextHop, len(nhs))}
	for _, nh := range nhs {
		s.Add(nh)
	}
	return s
}

func (s *NextHopSet) Add(nh NextHop) {
	if s.items == nil {
		s.items = make(map[string]NextHop)
	}
	s.items[nh.Key()] = nh
}

func (s *NextHopSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Slice returns the set's members in a deterministic (key-sorted) order.
func (s *NextHopSet) Slice() []NextHop {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]NextHop, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.items[k])
	}
	return out
}

// Equal reports whether two sets contain exactly the same NextHops.
func (s *NextHopSet) Equal(other *NextHopSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for k := range s.items {
		if _, ok := other.items[k]; !ok {
			return false
		}
	}
	return true
}
