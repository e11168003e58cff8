package linkstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsdecision/decision/state"
)

func TestKthPaths_NoAlternateReturnsNoSecondLevel(t *testing.T) {
	ls := New()
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{ThisNode: "A", Area: area, Adjacencies: []state.Adjacency{adj("B", 10, 1)}}, 0, 0)
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{ThisNode: "B", Area: area, Adjacencies: []state.Adjacency{adj("A", 10, 2)}}, 0, 0)

	require.Len(t, ls.KthPaths(area, "A", "B", 1), 1)
	assert.Empty(t, ls.KthPaths(area, "A", "B", 2), "no disjoint alternate exists")
}

func TestKthPaths_UnreachableDestinationReturnsNil(t *testing.T) {
	ls := New()
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{ThisNode: "A", Area: area, Adjacencies: []state.Adjacency{adj("B", 10, 1)}}, 0, 0)
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{ThisNode: "B", Area: area, Adjacencies: []state.Adjacency{adj("A", 10, 2)}}, 0, 0)

	assert.Nil(t, ls.KthPaths(area, "A", "Z", 2), "unknown destination")
}

// TestKthPaths_SquarePrefersDisjointAlternate builds a square A-B-D-C-A
// where the shortest path is A-C-D; removing either of its edges must yield
// the A-B-D detour as the single second-level path.
func TestKthPaths_SquarePrefersDisjointAlternate(t *testing.T) {
	ls := New()
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{ThisNode: "A", Area: area, Adjacencies: []state.Adjacency{adj("C", 1, 1), adj("B", 10, 2)}}, 0, 0)
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{ThisNode: "C", Area: area, Adjacencies: []state.Adjacency{adj("A", 1, 11), adj("D", 1, 12)}}, 0, 0)
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{ThisNode: "B", Area: area, Adjacencies: []state.Adjacency{adj("A", 10, 21), adj("D", 10, 22)}}, 0, 0)
	ls.UpdateAdjacencyDatabase(state.AdjacencyDatabase{ThisNode: "D", Area: area, Adjacencies: []state.Adjacency{adj("C", 1, 31), adj("B", 10, 32)}}, 0, 0)

	first := ls.KthPaths(area, "A", "D", 1)
	require.Len(t, first, 1)
	assert.EqualValues(t, 2, first[0].Cost(), "first path: A-C-D")

	second := ls.KthPaths(area, "A", "D", 2)
	require.Len(t, second, 1)
	assert.EqualValues(t, 20, second[0].Cost(), "second path: A-B-D")
	for _, l := range second[0] {
		assert.NotEqual(t, state.Node("C"), l.From, "the alternate must not reuse the A-C-D edges")
		assert.NotEqual(t, state.Node("C"), l.To)
	}
}
