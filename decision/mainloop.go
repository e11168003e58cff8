package decision

import (
	"context"
	"errors"
	"expvar"
	"reflect"
	"runtime"
	"time"

	"github.com/lsdecision/decision/state"
)

// slowDispatchThreshold mirrors the teacher's MainLoop warning threshold
// (core.MainLoop logs above 4ms); route-decision closures are heavier than
// nylon's forwarding-plane dispatch so this budget is larger.
const slowDispatchThreshold = 20 * time.Millisecond

// MainLoop drains the dispatch channel until the loop's context is done,
// timing and logging each closure exactly as the teacher's core.MainLoop
// does for *state.State.
func (d *Decision) MainLoop() error {
	d.Log.Debug("started decision main loop")
	for {
		select {
		case fun, ok := <-d.Env.DispatchChannel:
			if !ok {
				goto endLoop
			}
			start := time.Now()
			err := fun(d)
			if err != nil {
				d.Log.Error("error occurred during dispatch", "error", err)
				d.counters.Errors.Add(1)
				d.Cancel(err)
			}
			elapsed := time.Since(start)
			d.counters.DispatchLatencyUs.Add(float64(elapsed.Microseconds()))
			if elapsed > slowDispatchThreshold {
				d.Log.Warn("dispatch took a long time",
					"fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(),
					"elapsed", elapsed, "queued", len(d.Env.DispatchChannel))
			}
		case <-d.Env.Context.Done():
			goto endLoop
		}
	}
endLoop:
	cause := context.Cause(d.Env.Context)
	d.Log.Info("stopped decision main loop", "cause", cause)
	d.policyTtl.Stop()
	if cause != nil && !errors.Is(cause, context.Canceled) {
		// an internal fault, not a requested shutdown; the caller restarts
		// the process and reloads durable state
		return cause
	}
	return nil
}

// gauge wraps a DispatchWait read as an expvar.Func, so the HTTP handler
// goroutine never touches Decision's state directly.
func (d *Decision) gauge(read func(*Decision) int) expvar.Func {
	return func() any {
		v, err := d.Env.DispatchWait(func(dd *Decision) (any, error) {
			return read(dd), nil
		})
		if err != nil {
			return 0
		}
		return v
	}
}

// RegisterGauges publishes the §6 gauges (num_nodes, num_prefixes, ...)
// under expvar, prefixed so multiple Decision instances in one process
// (e.g. in tests or a multi-node demo) don't collide on the same name.
func (d *Decision) RegisterGauges(prefix string) {
	area := d.defaultArea()

	expvar.Publish(prefix+":num_nodes", d.gauge(func(dd *Decision) int {
		return len(dd.ls.AllNodes(area))
	}))
	expvar.Publish(prefix+":num_prefixes", d.gauge(func(dd *Decision) int {
		return len(dd.ps.Prefixes())
	}))
	expvar.Publish(prefix+":num_partial_adjacencies", d.gauge(func(dd *Decision) int {
		return dd.countAdjacencies(area, false)
	}))
	expvar.Publish(prefix+":num_complete_adjacencies", d.gauge(func(dd *Decision) int {
		return dd.countAdjacencies(area, true)
	}))
	expvar.Publish(prefix+":num_nodes_v4_loopbacks", d.gauge(func(dd *Decision) int {
		return dd.countLoopbacks(true)
	}))
	expvar.Publish(prefix+":num_nodes_v6_loopbacks", d.gauge(func(dd *Decision) int {
		return dd.countLoopbacks(false)
	}))
}

// countAdjacencies counts nodes whose advertised adjacency set is fully
// bidirectionally established (complete) or only partially so.
func (d *Decision) countAdjacencies(area state.Area, complete bool) int {
	n := 0
	for node, db := range d.ls.AdjacencyDatabases(area) {
		established := 0
		for _, adj := range db.Adjacencies {
			if _, ok := d.ls.MetricFromAToB(area, node, adj.ToNode); ok {
				established++
			}
		}
		isComplete := established == len(db.Adjacencies) && len(db.Adjacencies) > 0
		if isComplete == complete {
			n++
		}
	}
	return n
}

func (d *Decision) countLoopbacks(isV4 bool) int {
	n := 0
	for _, db := range d.ps.PrefixDatabases() {
		for pfx, entry := range db.Prefixes {
			if entry.Type == state.PrefixLoopback && pfx.Addr().Is4() == isV4 {
				n++
				break
			}
		}
	}
	return n
}

func (d *Decision) defaultArea() state.Area {
	if len(d.cfg.Areas) > 0 {
		return d.cfg.Areas[0]
	}
	return state.Area("0")
}
