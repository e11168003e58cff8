package linkstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsdecision/decision/state"
)

const area = state.Area("0")

func adj(to state.Node, metric uint32, label uint32) state.Adjacency {
	return state.Adjacency{ToNode: to, IfName: "eth-" + string(to), Metric: metric, AdjLabel: label}
}

// mesh3 builds a 3-node full mesh A-B-C with the given pairwise metrics,
// both directions advertised so every link is bidirectionally established.
func mesh3(t *testing.T, ls *LinkState, metricAB, metricBC, metricCA uint32) {
	t.Helper()
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{
		ThisNode: "A", Area: area, Adjacencies: []state.Adjacency{adj("B", metricAB, 101), adj("C", metricCA, 102)},
	}, 0, 0)
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{
		ThisNode: "B", Area: area, Adjacencies: []state.Adjacency{adj("A", metricAB, 201), adj("C", metricBC, 202)},
	}, 0, 0)
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{
		ThisNode: "C", Area: area, Adjacencies: []state.Adjacency{adj("A", metricCA, 301), adj("B", metricBC, 302)},
	}, 0, 0)
}

func TestSpf_TwoNodeDirect(t *testing.T) {
	ls := New()
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{ThisNode: "A", Area: area, Adjacencies: []state.Adjacency{adj("B", 10, 1)}}, 0, 0)
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{ThisNode: "B", Area: area, Adjacencies: []state.Adjacency{adj("A", 10, 2)}}, 0, 0)

	res := ls.SpfResult(area, "A")
	entry, ok := res["B"]
	require.True(t, ok, "expected B to be reachable from A")
	assert.EqualValues(t, 10, entry.Metric)
	assert.Contains(t, entry.NextHops, state.Node("B"))
}

func TestSpf_EcmpUnion(t *testing.T) {
	ls := New()
	mesh3(t, ls, 1, 1, 2) // A-B=1, B-C=1, C-A=2: two equal-cost A->C paths of cost 2
	res := ls.SpfResult(area, "A")
	entry := res["C"]
	assert.EqualValues(t, 2, entry.Metric)
	assert.Len(t, entry.NextHops, 2, "ECMP union of both equal-cost paths")
}

func TestSpf_OverloadedNodeIsTransitForbidden(t *testing.T) {
	ls := New()
	mesh3(t, ls, 1, 1, 1)
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{
		ThisNode: "B", Area: area, Overloaded: true,
		Adjacencies: []state.Adjacency{adj("A", 1, 201), adj("C", 1, 202)},
	}, 0, 0)

	res := ls.SpfResult(area, "A")
	// B itself must remain reachable as a destination...
	require.Contains(t, res, state.Node("B"), "overloaded node B must remain reachable as a destination")
	assert.EqualValues(t, 1, res["B"].Metric)
	// ...but SPF must not transit through B to reach C; the only path left is A->C direct.
	assert.EqualValues(t, 1, res["C"].Metric, "direct A-C, not via overloaded B")
	assert.NotContains(t, res["C"].NextHops, state.Node("B"), "must not transit via overloaded node")
}

func TestKthPaths_SecondShortestExcludesFirstEdge(t *testing.T) {
	ls := New()
	mesh3(t, ls, 1, 1, 1)
	first := ls.KthPaths(area, "A", "C", 1)
	require.Len(t, first, 1)
	assert.EqualValues(t, 1, first[0].Cost(), "first path: direct A-C")

	second := ls.KthPaths(area, "A", "C", 2)
	require.Len(t, second, 1)
	assert.EqualValues(t, 2, second[0].Cost(), "second path: A-B-C")
	assert.False(t, second[0].ContainsSubpath(first[0]), "the detour shares no edge with the direct path")
}

func TestDecrementHolds_HoldUpBlocksThenAdmits(t *testing.T) {
	ls := New()
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{ThisNode: "A", Area: area, Adjacencies: []state.Adjacency{adj("B", 10, 1)}}, 2, 0)
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{ThisNode: "B", Area: area, Adjacencies: []state.Adjacency{adj("A", 10, 2)}}, 2, 0)

	_, ok := ls.MetricFromAToB(area, "A", "B")
	assert.False(t, ok, "a newly-established link with holdUpTtl>0 must not be usable immediately")

	ls.DecrementHolds()
	_, ok = ls.MetricFromAToB(area, "A", "B")
	assert.False(t, ok, "link should still be holding after one tick of a 2-tick hold")

	ls.DecrementHolds()
	_, ok = ls.MetricFromAToB(area, "A", "B")
	assert.True(t, ok, "link should be usable once its hold-up timer drains")
}

func TestDecrementHolds_HoldDownKeepsLinkUsableUntilDrain(t *testing.T) {
	ls := New()
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{ThisNode: "A", Area: area, Adjacencies: []state.Adjacency{adj("B", 10, 1)}}, 0, 2)
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{ThisNode: "B", Area: area, Adjacencies: []state.Adjacency{adj("A", 10, 2)}}, 0, 2)

	// A withdraws the adjacency; the link must stay usable while the
	// hold-down drains.
	res := ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{ThisNode: "A", Area: area}, 0, 2)
	assert.True(t, res.TopologyChanged)
	_, ok := ls.MetricFromAToB(area, "A", "B")
	assert.True(t, ok, "a held-down link is usable-but-not-removable")

	ls.DecrementHolds()
	_, ok = ls.MetricFromAToB(area, "A", "B")
	assert.True(t, ok, "still draining after one of two ticks")

	res = ls.DecrementHolds()
	assert.True(t, res.TopologyChanged, "the drain completing changes the topology")
	_, ok = ls.MetricFromAToB(area, "A", "B")
	assert.False(t, ok, "the withdrawal commits once the hold-down drains")
}

func TestUpdateAdjacencyDatabase_ReadvertiseCancelsHoldDown(t *testing.T) {
	ls := New()
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{ThisNode: "A", Area: area, Adjacencies: []state.Adjacency{adj("B", 10, 1)}}, 0, 5)
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{ThisNode: "B", Area: area, Adjacencies: []state.Adjacency{adj("A", 10, 2)}}, 0, 5)

	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{ThisNode: "A", Area: area}, 0, 5)
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{ThisNode: "A", Area: area, Adjacencies: []state.Adjacency{adj("B", 10, 1)}}, 0, 5)

	for i := 0; i < 10; i++ {
		ls.DecrementHolds()
	}
	_, ok := ls.MetricFromAToB(area, "A", "B")
	assert.True(t, ok, "re-advertising before the drain must cancel the pending withdrawal")
}

func TestAdjacencyDatabases_RoundTrips(t *testing.T) {
	ls := New()
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{
		ThisNode: "A", Area: area, NodeLabel: 5001, Adjacencies: []state.Adjacency{adj("B", 10, 1)},
	}, 0, 0)
	dbs := ls.AdjacencyDatabases(area)
	db, ok := dbs["A"]
	require.True(t, ok, "expected A's adjacency database")
	assert.EqualValues(t, 5001, db.NodeLabel)
	require.Len(t, db.Adjacencies, 1)
	assert.Equal(t, state.Node("B"), db.Adjacencies[0].ToNode)
}
