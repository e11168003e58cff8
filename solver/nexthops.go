package solver

import (
	"net/netip"

	"github.com/lsdecision/decision/linkstate"
	"github.com/lsdecision/decision/state"
)

// nhKey identifies one (neighbor, destination-tag) pair in the intermediate
// next-hop-credit map built below and materialized by getNextHopsThrift.
type nhKey struct {
	Neighbor state.Node
	DstTag   state.Node
}

// getNextHopsWithMetric returns the minimum SPF metric among `dsts` and, for
// every destination tied at that minimum, credits each of its SPF next-hop
// neighbors with the residual distance from that neighbor to the
// destination. When LFA is enabled, every local link is additionally checked
// against RFC 5286's loop-free criterion and may contribute an extra
// (neighbor, dstTag) credit even when that neighbor isn't on the SPF tree at
// all. dstTag is the destination node name when perDestination, else empty.
func (s *Solver) getNextHopsWithMetric(area state.Area, me state.Node, dsts []state.Node, perDestination bool) (uint32, map[nhKey]uint32) {
	spf := s.ls.SpfResult(area, me)
	nextHopNodes := make(map[nhKey]uint32)

	minMetric := state.INF
	for _, d := range dsts {
		if entry, ok := spf[d]; ok && entry.Metric < minMetric {
			minMetric = entry.Metric
		}
	}
	if minMetric == state.INF {
		return minMetric, nextHopNodes
	}

	tagFor := func(d state.Node) state.Node {
		if perDestination {
			return d
		}
		return ""
	}
	credit := func(n, tag state.Node, metric uint32) {
		k := nhKey{Neighbor: n, DstTag: tag}
		if cur, had := nextHopNodes[k]; !had || metric < cur {
			nextHopNodes[k] = metric
		}
	}

	for _, d := range dsts {
		entry, ok := spf[d]
		if !ok || entry.Metric != minMetric {
			continue
		}
		for n := range entry.NextHops {
			m, ok := s.ls.MetricFromAToB(area, me, n)
			if !ok || m > minMetric {
				continue
			}
			credit(n, tagFor(d), minMetric-m)
		}
	}

	if s.cfg.LfaEnabled {
		links := s.ls.LinksFromNode(area, me)
		for _, d := range dsts {
			distMeD, ok := spf[d]
			if !ok {
				continue
			}
			for _, link := range links {
				distND, ok := s.ls.SpfResult(area, link.To)[d]
				if !ok {
					continue
				}
				// RFC 5286 loop-free criterion.
				if distND.Metric < addSat(distMeD.Metric, link.Metric) {
					credit(link.To, tagFor(d), distND.Metric)
				}
			}
		}
	}

	return minMetric, nextHopNodes
}

// addrFor picks a link's v4 or v6 next-hop address. preferV4 == nil means
// "no prefix-family context" (MPLS label routes), which uses the v6 address.
func addrFor(link linkstate.Link, preferV4 *bool) netip.Addr {
	if preferV4 != nil && *preferV4 {
		return link.NhV4
	}
	return link.NhV6
}

// getNextHopsThrift materializes the next-hop-credit map into concrete
// NextHops: one per outgoing link and destination tag that survives the
// co-destination-diversion and (absent LFA) shortest-path filters.
func (s *Solver) getNextHopsThrift(area state.Area, links []linkstate.Link, dsts []state.Node, perDestination bool, minMetric uint32, nextHopNodes map[nhKey]uint32, swapLabel *uint32, preferV4 *bool) *state.NextHopSet {
	nhs := state.NewNextHopSet()
	destSet := make(map[state.Node]struct{}, len(dsts))
	for _, d := range dsts {
		destSet[d] = struct{}{}
	}
	tags := []state.Node{""}
	if perDestination {
		tags = dsts
	}

	for _, link := range links {
		for _, d := range tags {
			metricFromN, ok := nextHopNodes[nhKey{Neighbor: link.To, DstTag: d}]
			if !ok {
				continue
			}

			// Don't divert through a neighbor that is itself another
			// destination.
			_, neighborIsDst := destSet[link.To]
			if d != "" && neighborIsDst && link.To != d {
				continue
			}

			total := addSat(link.Metric, metricFromN)
			if !s.cfg.LfaEnabled && total != minMetric {
				continue
			}

			nh := state.NextHop{
				Addr:   addrFor(link, preferV4),
				Iface:  link.IfName,
				Metric: total,
				Area:   link.Area,
			}

			switch {
			case swapLabel != nil:
				if neighborIsDst {
					nh.Mpls = &state.MplsAction{Type: state.MplsPhp}
				} else {
					nh.Mpls = &state.MplsAction{Type: state.MplsSwap, SwapLabel: *swapLabel}
				}
			case d != "" && d != link.To:
				label, ok := s.ls.NodeLabel(area, d)
				if !ok || label == 0 || label >= state.MaxLabel {
					continue
				}
				nh.Mpls = &state.MplsAction{Type: state.MplsPush, PushLabels: []uint32{label}}
			}

			nhs.Add(nh)
		}
	}
	return nhs
}
