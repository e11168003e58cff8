package decision

import (
	"context"
	"io"
	"log/slog"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lsdecision/decision/counters"
	"github.com/lsdecision/decision/mock"
	"github.com/lsdecision/decision/ribpolicy"
	"github.com/lsdecision/decision/state"
)

const area = state.Area("0")

// recordingFib captures every published delta for assertions.
type recordingFib struct {
	published chan state.RouteDatabaseDelta
}

func newRecordingFib() *recordingFib {
	return &recordingFib{published: make(chan state.RouteDatabaseDelta, 64)}
}

func (f *recordingFib) Publish(d state.RouteDatabaseDelta) {
	f.published <- d
}

func newTestDecision(t *testing.T, node state.Node, coldStart time.Duration) (*Decision, *recordingFib) {
	t.Helper()
	cfg := state.DefaultConfig(node)
	cfg.Areas = []state.Area{area}
	cfg.ColdStartDuration = coldStart
	cfg.DebounceMinDur = time.Millisecond
	cfg.DebounceMaxDur = 5 * time.Millisecond
	cfg.HoldTickInterval = time.Millisecond

	ctx, cancel := context.WithCancelCause(context.Background())
	env := &Env{
		Context:         ctx,
		Cancel:          cancel,
		DispatchChannel: make(chan func(*Decision) error, 128),
		Log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	fib := newRecordingFib()
	d := New(cfg, fib, counters.NewNoop(), env)
	go func() { _ = d.Start() }()
	t.Cleanup(func() {
		d.Stop(context.Canceled)
		time.Sleep(20 * time.Millisecond)
	})
	return d, fib
}

func twoNodePublication(t *testing.T) state.LsdbPublication {
	t.Helper()
	adjs := mock.AdjacencyDatabases([]state.Node{"A", "B"}, []mock.Edge{{A: "A", B: "B", Metric: 10}}, area)
	prefixes := mock.PrefixDatabases([]state.Node{"A", "B"}, nil)
	pub, err := mock.Publication(area, adjs, prefixes)
	require.NoError(t, err)
	return pub
}

func TestMain(m *testing.M) {
	m.Run()
}

func TestColdStart_SuppressesPublishUntilExpiry(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	d, fib := newTestDecision(t, "A", 60*time.Millisecond)

	d.ApplyPublication(twoNodePublication(t))

	select {
	case delta := <-fib.published:
		t.Fatalf("got an unexpected publish during cold start: %+v", delta)
	case <-time.After(20 * time.Millisecond):
	}

	select {
	case <-fib.published:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected a publish once cold start expires and the converged topology recomputes")
	}
}

func TestApplyPublication_ConvergesToExpectedRouteDb(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	d, _ := newTestDecision(t, "A", 0)

	d.ApplyPublication(twoNodePublication(t))
	time.Sleep(50 * time.Millisecond)

	rdb, err := d.GetRouteDb("A")
	require.NoError(t, err)
	loopbackB := mock.LoopbackPrefix(2)
	route, ok := rdb.UnicastRoutes[loopbackB]
	require.True(t, ok, "expected A to have a route to B's loopback %v", loopbackB)
	assert.Equal(t, 1, route.Nexthops.Len())
}

func TestGetRouteDb_ArbitraryNodeQuery(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	d, _ := newTestDecision(t, "A", 0)
	d.ApplyPublication(twoNodePublication(t))
	time.Sleep(50 * time.Millisecond)

	rdb, err := d.GetRouteDb("B")
	require.NoError(t, err)
	assert.Equal(t, state.Node("B"), rdb.ThisNode, "querying a node other than the local one")
	loopbackA := mock.LoopbackPrefix(1)
	assert.Contains(t, rdb.UnicastRoutes, loopbackA, "expected B's hypothetical RouteDb to contain a route to A's loopback")
}

func TestSetRibPolicy_DropsMatchedRouteImmediately(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	d, _ := newTestDecision(t, "A", 0)
	d.ApplyPublication(twoNodePublication(t))
	time.Sleep(50 * time.Millisecond)

	loopbackB := mock.LoopbackPrefix(2)
	err := d.SetRibPolicy([]ribpolicy.Statement{{
		Matcher: []netip.Prefix{loopbackB},
		Action:  ribpolicy.WeightAction{DefaultWeight: 0},
	}}, time.Hour)
	require.NoError(t, err)

	rdb, err := d.GetRouteDb("A")
	require.NoError(t, err)
	assert.NotContains(t, rdb.UnicastRoutes, loopbackB, "expected the RibPolicy to have dropped the route to B's loopback")
}

func TestSetRibPolicy_RejectsNonPositiveTtl(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	d, _ := newTestDecision(t, "A", 0)
	assert.Error(t, d.SetRibPolicy(nil, 0), "expected a zero ttl to be rejected")
}

func TestRibPolicyTtlExpiry_ReenablesDroppedRoute(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	d, _ := newTestDecision(t, "A", 0)
	d.ApplyPublication(twoNodePublication(t))
	time.Sleep(50 * time.Millisecond)

	loopbackB := mock.LoopbackPrefix(2)
	err := d.SetRibPolicy([]ribpolicy.Statement{{
		Matcher: []netip.Prefix{loopbackB},
		Action:  ribpolicy.WeightAction{DefaultWeight: 0},
	}}, 30*time.Millisecond)
	require.NoError(t, err)

	rdb, _ := d.GetRouteDb("A")
	assert.NotContains(t, rdb.UnicastRoutes, loopbackB, "expected the route to be dropped while the policy is active")

	time.Sleep(80 * time.Millisecond)

	rdb, _ = d.GetRouteDb("A")
	assert.Contains(t, rdb.UnicastRoutes, loopbackB, "expected the route back once the policy's TTL expired")
	pol, err := d.GetRibPolicy()
	require.NoError(t, err)
	assert.Nil(t, pol, "expected GetRibPolicy to report no active policy after expiry")
}

func TestSetRibPolicy_DisabledByConfig(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	cfg := state.DefaultConfig("A")
	cfg.RibPolicyEnabled = false
	cfg.ColdStartDuration = 0
	cfg.DebounceMinDur = time.Millisecond
	cfg.DebounceMaxDur = 5 * time.Millisecond
	cfg.HoldTickInterval = time.Millisecond

	ctx, cancel := context.WithCancelCause(context.Background())
	env := &Env{
		Context:         ctx,
		Cancel:          cancel,
		DispatchChannel: make(chan func(*Decision) error, 128),
		Log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	d := New(cfg, newRecordingFib(), counters.NewNoop(), env)
	go func() { _ = d.Start() }()
	t.Cleanup(func() {
		d.Stop(context.Canceled)
		time.Sleep(20 * time.Millisecond)
	})

	err := d.SetRibPolicy(nil, time.Hour)
	var polErr *ribpolicy.PolicyError
	require.ErrorAs(t, err, &polErr)
	assert.Equal(t, ribpolicy.KindDisabled, polErr.Kind)
}

func TestRingFlooding_EachNodeRoutesToTheOtherTwo(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	d, _ := newTestDecision(t, "A", 0)

	nodes := []state.Node{"A", "B", "C"}
	adjs := mock.AdjacencyDatabases(nodes, mock.Ring(nodes), area)
	prefixes := mock.PrefixDatabases(nodes, nil)
	pub, err := mock.Publication(area, adjs, prefixes)
	require.NoError(t, err)
	d.ApplyPublication(pub)
	time.Sleep(50 * time.Millisecond)

	rdb, err := d.GetRouteDb("A")
	require.NoError(t, err)
	for i := 2; i <= 3; i++ {
		route, ok := rdb.UnicastRoutes[mock.LoopbackPrefix(i)]
		require.True(t, ok, "expected a route to node %d's loopback", i)
		assert.Equal(t, 1, route.Nexthops.Len(), "in a 3-ring every other node is a direct neighbor")
	}
	assert.NotContains(t, rdb.UnicastRoutes, mock.LoopbackPrefix(1), "A must not route to its own loopback")
}

// TestDebounceIdempotence_BurstProducesOnePublish covers §8's debounce
// property: a burst of notifications inside the debounce window coalesces
// into exactly one publish.
func TestDebounceIdempotence_BurstProducesOnePublish(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	d, fib := newTestDecision(t, "A", 0)

	// the cold-start expiry publishes once on its own; consume it first so
	// only the burst's publish is counted below
	select {
	case <-fib.published:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected the cold-start expiry publish")
	}

	pub := twoNodePublication(t)
	d.ApplyPublication(pub)
	d.ApplyPublication(pub)
	d.ApplyPublication(pub)

	select {
	case <-fib.published:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected one publish for the burst")
	}
	select {
	case delta := <-fib.published:
		t.Fatalf("expected no second publish for the same burst, got %+v", delta)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestApplyStaticRouteDelta_ServedByGetStaticRoutes(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	d, _ := newTestDecision(t, "A", 0)
	d.ApplyPublication(twoNodePublication(t))

	d.ApplyStaticRouteDelta(state.StaticRouteDelta{MplsRoutesToUpdate: []state.StaticMplsRoute{{
		TopLabel: 9000,
		Nexthops: state.NewNextHopSet(state.NextHop{Addr: netip.MustParseAddr("10.0.0.9")}),
	}}})
	time.Sleep(50 * time.Millisecond)

	static, err := d.GetStaticRoutes()
	require.NoError(t, err)
	require.Contains(t, static, uint32(9000))
	assert.Equal(t, 1, static[9000].Len())

	d.ApplyStaticRouteDelta(state.StaticRouteDelta{MplsRoutesToDelete: []uint32{9000}})
	time.Sleep(50 * time.Millisecond)
	static, err = d.GetStaticRoutes()
	require.NoError(t, err)
	assert.NotContains(t, static, uint32(9000))
}

func TestGetAdjacencyDatabases_ReflectsPublishedTopology(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	d, _ := newTestDecision(t, "A", 0)
	d.ApplyPublication(twoNodePublication(t))
	time.Sleep(50 * time.Millisecond)

	dbs, err := d.GetAdjacencyDatabases()
	require.NoError(t, err)
	assert.Contains(t, dbs, state.Node("A"))
	assert.Contains(t, dbs, state.Node("B"))
}

func TestApplyPublication_ExpiryWithdrawsNode(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	d, _ := newTestDecision(t, "A", 0)
	d.ApplyPublication(twoNodePublication(t))
	time.Sleep(50 * time.Millisecond)

	d.ApplyPublication(state.LsdbPublication{Area: area, ExpiredKeys: []string{"adj:B"}})
	time.Sleep(50 * time.Millisecond)

	rdb, _ := d.GetRouteDb("A")
	loopbackB := mock.LoopbackPrefix(2)
	assert.NotContains(t, rdb.UnicastRoutes, loopbackB, "expected B's loopback route to be withdrawn once its adjacency database expires")
}
