// Package counters wraps the teacher's own windowed-rate metrics library
// (github.com/encodeous/metric) behind an injectable Registry, so tests can
// supply a no-op stand-in instead of touching the process-wide expvar/
// /debug/metrics surface (Design Note, "global counter registry").
package counters

import (
	"expvar"
	"net/http"
	"sync"

	"github.com/encodeous/metric"
)

// metricVar is the subset of github.com/encodeous/metric's Counter and
// Histogram types this package depends on.
type metricVar interface {
	expvar.Var
	Add(float64)
}

var debugHandlerOnce sync.Once

// Registry holds every monotonic counter and histogram named in
// SPEC_FULL.md §6, published under a caller-supplied prefix so multiple
// Decision instances in one process (e.g. in tests) don't collide on
// expvar names. Gauges (num_nodes, num_prefixes, ...) aren't counters at
// all — decision.Decision publishes those directly via expvar.Func reading
// live state, since neither the teacher nor the rest of the pack carries a
// gauge abstraction for encodeous/metric to wrap.
type Registry struct {
	SpfRuns                   metricVar
	RouteBuildRuns            metricVar
	AdjDbUpdate               metricVar
	PrefixDbUpdate            metricVar
	SkippedUnicastRoute       metricVar
	SkippedMplsRoute          metricVar
	NoRouteToPrefix           metricVar
	NoRouteToLabel            metricVar
	DuplicateNodeLabel        metricVar
	IncompatibleForwardingTyp metricVar
	MissingLoopbackAddr       metricVar
	Errors                    metricVar

	SpfMs             metricVar
	PathBuildMs       metricVar
	RouteBuildMs      metricVar
	DispatchLatencyUs metricVar
}

// New builds a Registry backed by real encodeous/metric windowed counters,
// published to expvar under `prefix` and exposed via /debug/metrics the
// first time any Registry is constructed in this process.
func New(prefix string) *Registry {
	debugHandlerOnce.Do(func() {
		http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	})

	r := &Registry{
		SpfRuns:                   metric.NewCounter("10s1s"),
		RouteBuildRuns:            metric.NewCounter("10s1s"),
		AdjDbUpdate:               metric.NewCounter("10s1s"),
		PrefixDbUpdate:            metric.NewCounter("10s1s"),
		SkippedUnicastRoute:       metric.NewCounter("10s1s"),
		SkippedMplsRoute:          metric.NewCounter("10s1s"),
		NoRouteToPrefix:           metric.NewCounter("10s1s"),
		NoRouteToLabel:            metric.NewCounter("10s1s"),
		DuplicateNodeLabel:        metric.NewCounter("10s1s"),
		IncompatibleForwardingTyp: metric.NewCounter("10s1s"),
		MissingLoopbackAddr:       metric.NewCounter("10s1s"),
		Errors:                    metric.NewCounter("10s1s"),
		SpfMs:                     metric.NewHistogram("1m1s"),
		PathBuildMs:               metric.NewHistogram("1m1s"),
		RouteBuildMs:              metric.NewHistogram("1m1s"),
		DispatchLatencyUs:         metric.NewHistogram("1m1s"),
	}

	for name, v := range map[string]metricVar{
		"spf_runs":                     r.SpfRuns,
		"route_build_runs":             r.RouteBuildRuns,
		"adj_db_update":                r.AdjDbUpdate,
		"prefix_db_update":             r.PrefixDbUpdate,
		"skipped_unicast_route":        r.SkippedUnicastRoute,
		"skipped_mpls_route":           r.SkippedMplsRoute,
		"no_route_to_prefix":           r.NoRouteToPrefix,
		"no_route_to_label":            r.NoRouteToLabel,
		"duplicate_node_label":         r.DuplicateNodeLabel,
		"incompatible_forwarding_type": r.IncompatibleForwardingTyp,
		"missing_loopback_addr":        r.MissingLoopbackAddr,
		"errors":                       r.Errors,
		"spf_ms":                       r.SpfMs,
		"path_build_ms":                r.PathBuildMs,
		"route_build_ms":               r.RouteBuildMs,
		"dispatch_latency_us":          r.DispatchLatencyUs,
	} {
		expvar.Publish(prefix+":"+name, v)
	}

	return r
}

type noopVar struct{}

func (noopVar) Add(float64)    {}
func (noopVar) String() string { return "0" }

// NewNoop returns a Registry whose counters silently discard every
// observation, for tests that don't want to touch the process-wide expvar
// namespace.
func NewNoop() *Registry {
	n := noopVar{}
	return &Registry{
		SpfRuns:                   n,
		RouteBuildRuns:            n,
		AdjDbUpdate:               n,
		PrefixDbUpdate:            n,
		SkippedUnicastRoute:       n,
		SkippedMplsRoute:          n,
		NoRouteToPrefix:           n,
		NoRouteToLabel:            n,
		DuplicateNodeLabel:        n,
		IncompatibleForwardingTyp: n,
		MissingLoopbackAddr:       n,
		Errors:                    n,
		SpfMs:                     n,
		PathBuildMs:               n,
		RouteBuildMs:              n,
		DispatchLatencyUs:         n,
	}
}
