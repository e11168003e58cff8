// Package delta implements DeltaBuilder: the diff between two RouteDbs that
// becomes the published RouteDatabaseDelta.
package delta

import "github.com/lsdecision/decision/state"

// Build computes the delta turning `old` into `new`.
func Build(newDb, oldDb *state.RouteDb) state.RouteDatabaseDelta {
	d := state.RouteDatabaseDelta{ThisNodeName: newDb.ThisNode}

	for prefix, route := range newDb.UnicastRoutes {
		old, existed := oldDb.UnicastRoutes[prefix]
		if !existed || !route.Equal(old) {
			d.UnicastRoutesToUpdate = append(d.UnicastRoutesToUpdate, route)
		}
	}
	for prefix := range oldDb.UnicastRoutes {
		if _, stillThere := newDb.UnicastRoutes[prefix]; !stillThere {
			d.UnicastRoutesToDelete = append(d.UnicastRoutesToDelete, prefix)
		}
	}

	for label, route := range newDb.MplsRoutes {
		old, existed := oldDb.MplsRoutes[label]
		if !existed || !route.Equal(old) {
			d.MplsRoutesToUpdate = append(d.MplsRoutesToUpdate, route)
		}
	}
	for label := range oldDb.MplsRoutes {
		if _, stillThere := newDb.MplsRoutes[label]; !stillThere {
			d.MplsRoutesToDelete = append(d.MplsRoutesToDelete, label)
		}
	}

	return d
}

// Apply mutates `base` in place according to `d`, the inverse of Build —
// applying the delta produced against `old` reproduces `new` (§8's
// delta-round-trip property).
func Apply(base *state.RouteDb, d state.RouteDatabaseDelta) {
	for _, r := range d.UnicastRoutesToUpdate {
		base.UnicastRoutes[r.Prefix] = r
	}
	for _, p := range d.UnicastRoutesToDelete {
		delete(base.UnicastRoutes, p)
	}
	for _, r := range d.MplsRoutesToUpdate {
		base.MplsRoutes[r.TopLabel] = r
	}
	for _, l := range d.MplsRoutesToDelete {
		delete(base.MplsRoutes, l)
	}
}
