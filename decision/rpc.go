package decision

import (
	"time"

	"github.com/lsdecision/decision/ribpolicy"
	"github.com/lsdecision/decision/state"
)

// Each RPC below is a thin DispatchWait wrapper — §9's "Futures for RPC
// responses" design note, generalized from the teacher's per-call channel
// hand-off to the shared Env.DispatchWait helper.

// GetRouteDb computes the RouteDb as seen from `node`'s perspective (not
// necessarily the local node — any node present in the topology can be
// queried, exactly as Decision::getDecisionRouteDb accepts an arbitrary
// nodeName). An empty node name means "the local node".
func (d *Decision) GetRouteDb(node state.Node) (*state.RouteDb, error) {
	res, err := d.Env.DispatchWait(func(dd *Decision) (any, error) {
		if node == "" {
			node = dd.cfg.ThisNode
		}
		return dd.buildMergedRouteDb(node), nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*state.RouteDb), nil
}

// GetStaticRoutes returns the currently-installed static MPLS routes,
// keyed by top label.
func (d *Decision) GetStaticRoutes() (map[uint32]*state.NextHopSet, error) {
	res, err := d.Env.DispatchWait(func(dd *Decision) (any, error) {
		out := make(map[uint32]*state.NextHopSet, len(dd.staticMpls))
		for label, nhs := range dd.staticMpls {
			out[label] = nhs
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(map[uint32]*state.NextHopSet), nil
}

// GetAdjacencyDatabases returns every node's AdjacencyDatabase in the
// default area (cfg.Areas[0]).
func (d *Decision) GetAdjacencyDatabases() (map[state.Node]state.AdjacencyDatabase, error) {
	res, err := d.Env.DispatchWait(func(dd *Decision) (any, error) {
		return dd.ls.AdjacencyDatabases(dd.defaultArea()), nil
	})
	if err != nil {
		return nil, err
	}
	return res.(map[state.Node]state.AdjacencyDatabase), nil
}

// GetAllAdjacencyDatabases returns every area's adjacency databases, keyed
// by area.
func (d *Decision) GetAllAdjacencyDatabases() (map[state.Area]map[state.Node]state.AdjacencyDatabase, error) {
	res, err := d.Env.DispatchWait(func(dd *Decision) (any, error) {
		out := make(map[state.Area]map[state.Node]state.AdjacencyDatabase)
		for _, area := range dd.ls.Areas() {
			out[area] = dd.ls.AdjacencyDatabases(area)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(map[state.Area]map[state.Node]state.AdjacencyDatabase), nil
}

// GetPrefixDatabases returns every node's effective PrefixDatabase.
func (d *Decision) GetPrefixDatabases() (map[state.Node]state.PrefixDatabase, error) {
	res, err := d.Env.DispatchWait(func(dd *Decision) (any, error) {
		return dd.ps.PrefixDatabases(), nil
	})
	if err != nil {
		return nil, err
	}
	return res.(map[state.Node]state.PrefixDatabase), nil
}

// SetRibPolicy validates and installs a new RIB policy, arming the TTL
// eviction timer and triggering an immediate recomputation so the new
// weights take effect right away. A rejected policy leaves the previously
// active one (if any) untouched.
func (d *Decision) SetRibPolicy(statements []ribpolicy.Statement, ttl time.Duration) error {
	_, err := d.Env.DispatchWait(func(dd *Decision) (any, error) {
		if !dd.cfg.RibPolicyEnabled {
			return nil, &ribpolicy.PolicyError{Kind: ribpolicy.KindDisabled, Msg: "rib policy is not enabled"}
		}
		pol, err := ribpolicy.Accept(statements, ttl, time.Now())
		if err != nil {
			return nil, err
		}
		dd.policy = pol
		dd.policyTtl.Set(policyTtlKey{}, struct{}{}, ttl)
		return nil, dd.recomputeAndPublish()
	})
	return err
}

// GetRibPolicy returns the currently active policy, or nil if none is set
// or it has expired.
func (d *Decision) GetRibPolicy() (*ribpolicy.Policy, error) {
	res, err := d.Env.DispatchWait(func(dd *Decision) (any, error) {
		if dd.policy.Expired(time.Now()) {
			return (*ribpolicy.Policy)(nil), nil
		}
		return dd.policy, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*ribpolicy.Policy), nil
}
