// Package decision is the orchestrator: it wires LinkState, PrefixState,
// Solver, RibPolicy and the debounced event pipeline together behind one
// event loop, exactly as the teacher's core.NylonRouter/state.State wire
// its own modules behind state.Env (§5).
package decision

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/jellydator/ttlcache/v3"

	"github.com/lsdecision/decision/counters"
	"github.com/lsdecision/decision/delta"
	"github.com/lsdecision/decision/linkstate"
	"github.com/lsdecision/decision/pending"
	"github.com/lsdecision/decision/prefixstate"
	"github.com/lsdecision/decision/ribpolicy"
	"github.com/lsdecision/decision/solver"
	"github.com/lsdecision/decision/state"
)

// FibSink is the (external) FIB programmer's receiving end.
type FibSink interface {
	Publish(state.RouteDatabaseDelta)
}

// policyTtlKey is the single sentinel key the RIB-policy TTL cache ever
// holds — there is only ever one active policy.
type policyTtlKey struct{}

// Decision is one node's route-decision core: a single-threaded event loop
// (embedded *Env) owning every mutable field below. Nothing outside
// Dispatch/DispatchWait may touch these fields.
type Decision struct {
	*Env

	cfg      state.DecisionConfig
	counters *counters.Registry
	fib      FibSink

	ls *linkstate.LinkState
	ps *prefixstate.State

	staticMpls map[uint32]*state.NextHopSet
	fibTimes   map[state.Node]int64

	policy    *ribpolicy.Policy
	policyTtl *ttlcache.Cache[policyTtlKey, struct{}]

	pendingUpdates    *pending.Updates
	pendingPerfEvents []state.PerfEvent
	debouncer         *pending.Debouncer
	debounceTimer     *time.Timer
	debounceGen       int
	coldStart         *pending.ColdStart

	lastPublished *state.RouteDb
}

// New builds a Decision wired to `fib`, ready for Start. cfg.ThisNode
// identifies the local node; cfg.Areas is only advisory (LinkState learns
// its areas from adjacency publications) — it's consulted for the
// "default area" introspection RPCs.
func New(cfg state.DecisionConfig, fib FibSink, reg *counters.Registry, env *Env) *Decision {
	d := &Decision{
		Env:            env,
		cfg:            cfg,
		counters:       reg,
		fib:            fib,
		ls:             linkstate.New(),
		ps:             prefixstate.New(),
		staticMpls:     make(map[uint32]*state.NextHopSet),
		fibTimes:       make(map[state.Node]int64),
		pendingUpdates: pending.NewUpdates(),
		debouncer:      pending.NewDebouncer(cfg.DebounceMinDur, cfg.DebounceMaxDur),
		coldStart:      &pending.ColdStart{},
		lastPublished:  state.NewRouteDb(cfg.ThisNode),
	}

	d.ls.SpfObserver = func(elapsed time.Duration) {
		reg.SpfRuns.Add(1)
		reg.SpfMs.Add(elapsed.Seconds() * 1000)
	}

	d.policyTtl = ttlcache.New[policyTtlKey, struct{}](
		ttlcache.WithTTL[policyTtlKey, struct{}](cfg.DebounceMaxDur),
	)
	d.policyTtl.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, _ *ttlcache.Item[policyTtlKey, struct{}]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		env.Dispatch(func(dd *Decision) error {
			dd.Log.Warn("RibPolicy expired")
			dd.policy = nil
			return dd.recomputeAndPublish()
		})
	})
	go d.policyTtl.Start()

	return d
}

// Start arms the cold-start one-shot timer and the ordered-FIB hold tick,
// then begins the main loop. It returns once the loop's context is done.
func (d *Decision) Start() error {
	d.Env.ScheduleTask(func(dd *Decision) error {
		dd.coldStart.Expire()
		return dd.recomputeAndPublish()
	}, d.cfg.ColdStartDuration)

	d.Env.RepeatTask(func(dd *Decision) error {
		res := dd.ls.DecrementHolds()
		if res.TopologyChanged {
			dd.noteChange()
		}
		return nil
	}, d.cfg.HoldTickInterval)

	return d.MainLoop()
}

// Stop cancels the loop's context; MainLoop notices on its next select and
// tears down the policy-TTL cache before returning.
func (d *Decision) Stop(cause error) {
	d.Cancel(cause)
}

// ApplyPublication ingests one area's LSDB publication: every key/value put
// and expiry is applied to LinkState/PrefixState in order, then a single
// noteChange is raised if anything actually changed the computed RIB's
// inputs.
func (d *Decision) ApplyPublication(pub state.LsdbPublication) {
	d.Env.Dispatch(func(dd *Decision) error {
		return dd.applyPublication(pub)
	})
}

// ApplyStaticRouteDelta ingests one batch of statically-configured MPLS
// route changes.
func (d *Decision) ApplyStaticRouteDelta(sd state.StaticRouteDelta) {
	d.Env.Dispatch(func(dd *Decision) error {
		dd.pendingUpdates.Merge(sd)
		dd.noteChange()
		return nil
	})
}

func (d *Decision) applyPublication(pub state.LsdbPublication) error {
	changed := false
	for key, kv := range pub.KeyVals {
		c, err := d.applyKeyVal(pub.Area, key, kv)
		if err != nil {
			d.Log.Warn("malformed lsdb publication value", "key", key, "error", err)
			d.counters.Errors.Add(1)
			continue
		}
		changed = changed || c
	}
	for _, key := range pub.ExpiredKeys {
		c, err := d.applyExpiry(pub.Area, key)
		if err != nil {
			d.Log.Warn("malformed lsdb expiry key", "key", key, "error", err)
			d.counters.Errors.Add(1)
			continue
		}
		changed = changed || c
	}
	d.pendingPerfEvents = append(d.pendingPerfEvents, pub.PerfEvents...)
	if changed {
		d.noteChange()
	}
	return nil
}

// applyKeyVal parses and applies one `adj:`/`prefix:`/`fibTime:` key (§6).
func (d *Decision) applyKeyVal(area state.Area, key string, kv state.KeyVal) (bool, error) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 {
		return false, fmt.Errorf("malformed lsdb key %q", key)
	}

	switch parts[0] {
	case "adj":
		var db state.AdjacencyDatabase
		if err := yaml.Unmarshal(kv.Value, &db); err != nil {
			return false, err
		}
		db.ThisNode = state.Node(parts[1])
		db.Area = area
		db.TtlVersion = kv.TtlVersion
		res := d.ls.UpdateAdjacencyDatabase(db, d.cfg.DefaultHoldUpTtl, d.cfg.DefaultHoldDownTtl)
		d.counters.AdjDbUpdate.Add(1)
		return res.TopologyChanged, nil

	case "prefix":
		node := state.Node(parts[1])
		d.counters.PrefixDbUpdate.Add(1)
		if len(parts) == 2 {
			var db state.PrefixDatabase
			if err := yaml.Unmarshal(kv.Value, &db); err != nil {
				return false, err
			}
			db.ThisNode = node
			db.TtlVersion = kv.TtlVersion
			return d.ps.UpdateFullPrefixDatabase(db), nil
		}
		pfx, err := netip.ParsePrefix(parts[2])
		if err != nil {
			return false, err
		}
		var entry state.PrefixEntry
		if err := yaml.Unmarshal(kv.Value, &entry); err != nil {
			return false, err
		}
		return d.ps.UpdatePrefixEntry(node, pfx, entry), nil

	case "fibTime":
		ms, err := strconv.ParseInt(string(kv.Value), 10, 64)
		if err != nil {
			return false, err
		}
		d.fibTimes[state.Node(parts[1])] = ms
		return false, nil

	default:
		return false, fmt.Errorf("unknown lsdb key prefix %q", parts[0])
	}
}

func (d *Decision) applyExpiry(area state.Area, key string) (bool, error) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 {
		return false, fmt.Errorf("malformed lsdb key %q", key)
	}

	switch parts[0] {
	case "adj":
		return d.ls.DeleteAdjacencyDatabase(area, state.Node(parts[1])).TopologyChanged, nil
	case "prefix":
		node := state.Node(parts[1])
		if len(parts) == 2 {
			return d.ps.DeleteNode(node), nil
		}
		pfx, err := netip.ParsePrefix(parts[2])
		if err != nil {
			return false, err
		}
		return d.ps.DeletePrefixEntry(node, pfx), nil
	case "fibTime":
		delete(d.fibTimes, state.Node(parts[1]))
		return false, nil
	default:
		return false, fmt.Errorf("unknown lsdb key prefix %q", parts[0])
	}
}

// noteChange registers a pending-recomputation notification with the
// debounce timer: each notification grows the backoff and pushes the
// single pending timer out to the new delay, so a burst of notifications
// coalesces into one recompute. Once the backoff saturates the timer is
// left alone (it is already armed). The generation counter discards fires
// that were superseded by a reschedule or an intervening publish.
func (d *Decision) noteChange() {
	delay, shouldArm := d.debouncer.ReportError()
	if !shouldArm {
		return
	}
	if d.debounceTimer != nil {
		d.debounceTimer.Stop()
	}
	d.debounceGen++
	gen := d.debounceGen
	d.debounceTimer = time.AfterFunc(delay, func() {
		d.Env.Dispatch(func(dd *Decision) error {
			if gen != dd.debounceGen {
				return nil
			}
			dd.debounceTimer = nil
			return dd.recomputeAndPublish()
		})
	})
}

func sortedAreas(areas []state.Area) []state.Area {
	out := make([]state.Area, len(areas))
	copy(out, areas)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// buildMergedRouteDb runs SpfSolver once per area (scoped to `node`) and
// merges the results. Areas are visited in sorted order and the first area
// to claim a given prefix/label wins any cross-area collision — merging is
// documented as a disjoint union in SPEC_FULL.md §4.4, so a real collision
// is an operator misconfiguration rather than an expected case; first-area-
// wins just makes the (otherwise arbitrary) tie-break deterministic.
func (d *Decision) buildMergedRouteDb(node state.Node) *state.RouteDb {
	cfg := d.cfg
	cfg.ThisNode = node
	merged := state.NewRouteDb(node)

	for _, area := range sortedAreas(d.ls.Areas()) {
		sv := solver.New(cfg, d.ls, d.ps, d.counters)
		sv.SetStaticMplsRoutes(d.staticMpls)

		start := time.Now()
		rdb, ok := sv.BuildRouteDb(area)
		d.counters.RouteBuildMs.Add(time.Since(start).Seconds() * 1000)
		d.counters.RouteBuildRuns.Add(1)
		if !ok {
			continue
		}

		for prefix, route := range rdb.UnicastRoutes {
			if _, exists := merged.UnicastRoutes[prefix]; !exists {
				merged.UnicastRoutes[prefix] = route
			}
		}
		for label, route := range rdb.MplsRoutes {
			if _, exists := merged.MplsRoutes[label]; !exists {
				merged.MplsRoutes[label] = route
			}
		}
	}

	merged.UnicastRoutes = ribpolicy.Apply(d.policy, merged.UnicastRoutes)
	return merged
}

// recomputeAndPublish is the debounced pipeline's fire: drain pending
// static-route changes, rebuild the merged RouteDb, diff it against the
// last published one, and hand the delta to the FIB sink. Suppressed
// entirely while cold start is active — LSDB publications still mutate
// LinkState/PrefixState in the meantime, so the eventual post-expiry
// recompute sees the fully converged topology and its delta (against the
// still-empty lastPublished) carries every route as a single update batch.
func (d *Decision) recomputeAndPublish() error {
	updates, deletes := d.pendingUpdates.Drain()
	for _, u := range updates {
		d.staticMpls[u.TopLabel] = u.Nexthops
	}
	for _, label := range deletes {
		delete(d.staticMpls, label)
	}

	if d.coldStart.Active() {
		return nil
	}

	merged := d.buildMergedRouteDb(d.cfg.ThisNode)
	routeDelta := delta.Build(merged, d.lastPublished)
	routeDelta.PerfEvents = d.pendingPerfEvents
	d.pendingPerfEvents = nil

	d.debouncer.ReportSuccess()
	d.debounceGen++
	if d.debounceTimer != nil {
		d.debounceTimer.Stop()
		d.debounceTimer = nil
	}
	d.lastPublished = merged

	if d.fib != nil {
		d.fib.Publish(routeDelta)
	}
	return nil
}
