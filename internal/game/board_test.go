package game

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBoardTopology(t *testing.T) {
	b := NewBoard(7)
	assert.Len(t, b.Hexes, 19)
	assert.Len(t, b.Vertices, 54)
	assert.Len(t, b.Edges, 72)
	assert.Len(t, b.coastalEdges(), 30)

	for _, v := range b.Vertices {
		assert.True(t, len(v.Neighbors) >= 2 && len(v.Neighbors) <= 3, "vertex %d has %d neighbors", v.ID, len(v.Neighbors))
		assert.Len(t, v.Edges, len(v.Neighbors))
	}
	for _, h := range b.Hexes {
		assert.Len(t, h.Vertices, 6)
	}
}

func TestNewBoardContents(t *testing.T) {
	b := NewBoard(7)

	deserts := 0
	var numbers []int
	for _, h := range b.Hexes {
		if h.Terrain == TerrainDesert {
			deserts++
			assert.Equal(t, h.ID, b.RobberHex)
			assert.Zero(t, h.Number)
			continue
		}
		numbers = append(numbers, h.Number)
	}
	assert.Equal(t, 1, deserts)

	want := append([]int(nil), numberTokens...)
	sort.Ints(want)
	sort.Ints(numbers)
	assert.Equal(t, want, numbers)

	ports := map[PortKind]int{}
	for _, v := range b.Vertices {
		if v.Port != PortNone {
			ports[v.Port]++
		}
	}
	assert.Equal(t, 8, ports[PortGeneric])
	for _, r := range AllResources {
		assert.Equal(t, 2, ports[PortKind(r)], "port %s", r)
	}
}

func TestNewBoardDeterministic(t *testing.T) {
	a, b := NewBoard(99), NewBoard(99)
	require.Equal(t, a, b)

	c := NewBoard(100)
	same := true
	for i := range a.Hexes {
		if a.Hexes[i].Terrain != c.Hexes[i].Terrain || a.Hexes[i].Number != c.Hexes[i].Number {
			same = false
		}
	}
	assert.False(t, same, "different seeds should give different boards")
}

func TestLongestRoad(t *testing.T) {
	s := newTestGame(t, 2)
	b := s.Board

	// lay a simple path of five roads from vertex 0
	path := []int{0}
	v := 0
	for len(path) < 6 {
		moved := false
		for _, e := range b.Vertices[v].Edges {
			next := b.OtherEnd(e, v)
			if b.Edges[e].Owner != "" || contains(path, next) {
				continue
			}
			b.Edges[e].Owner = "A"
			path = append(path, next)
			v = next
			moved = true
			break
		}
		require.True(t, moved)
	}
	assert.Equal(t, 5, LongestRoad(s, "A"))
	assert.Equal(t, 0, LongestRoad(s, "B"))

	// an opponent settlement in the middle splits the road
	mid := path[2]
	b.Vertices[mid].Owner = "B"
	b.Vertices[mid].Building = BuildingSettlement
	assert.Equal(t, 3, LongestRoad(s, "A"))

	// the owner's own building does not
	b.Vertices[mid].Owner = "A"
	assert.Equal(t, 5, LongestRoad(s, "A"))
}

func contains(xs []int, x int) bool {
	for _, y := range xs {
		if y == x {
			return true
		}
	}
	return false
}
