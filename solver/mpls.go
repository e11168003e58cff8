package solver

import (
	"net/netip"

	"github.com/lsdecision/decision/state"
)

// buildMplsRoutes assembles the area's node-label and adjacency-label MPLS
// routes (§4.3.5).
func (s *Solver) buildMplsRoutes(area state.Area, rdb *state.RouteDb) {
	owners := make(map[uint32]state.Node)
	for _, node := range s.ls.AllNodes(area) {
		label, ok := s.ls.NodeLabel(area, node)
		if !ok || label == 0 {
			continue
		}
		if label >= state.MaxLabel {
			s.counters.SkippedMplsRoute.Add(1)
			continue
		}
		existing, dup := owners[label]
		switch {
		case !dup:
			owners[label] = node
		case node > existing:
			s.counters.DuplicateNodeLabel.Add(1)
			owners[label] = node
		default:
			s.counters.DuplicateNodeLabel.Add(1)
		}
	}

	links := s.ls.LinksFromNode(area, s.cfg.ThisNode)

	for label, owner := range owners {
		if owner == s.cfg.ThisNode {
			rdb.MplsRoutes[label] = &state.MplsRoute{
				TopLabel: label,
				Nexthops: state.NewNextHopSet(state.NextHop{
					Addr: netip.IPv6Unspecified(),
					Mpls: &state.MplsAction{Type: state.MplsPopAndLookup},
				}),
			}
			continue
		}

		minMetric, nhNodes := s.getNextHopsWithMetric(area, s.cfg.ThisNode, []state.Node{owner}, false)
		if len(nhNodes) == 0 {
			s.counters.NoRouteToLabel.Add(1)
			continue
		}
		swap := label
		nhs := s.getNextHopsThrift(area, links, []state.Node{owner}, false, minMetric, nhNodes, &swap, nil)
		if nhs.Len() > 0 {
			rdb.MplsRoutes[label] = &state.MplsRoute{TopLabel: label, Nexthops: nhs}
		}
	}

	for _, link := range links {
		if link.AdjLabel == 0 || link.AdjLabel >= state.MaxLabel {
			continue
		}
		nh := state.NextHop{
			Addr:   addrFor(link, nil),
			Iface:  link.IfName,
			Metric: link.Metric,
			Area:   link.Area,
			Mpls:   &state.MplsAction{Type: state.MplsPhp},
		}
		rdb.MplsRoutes[link.AdjLabel] = &state.MplsRoute{
			TopLabel: link.AdjLabel,
			Nexthops: state.NewNextHopSet(nh),
		}
	}
}
