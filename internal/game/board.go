package game

import (
	"math"
	"math/rand"
	"sort"
)

// Terrain of a hex.
type Terrain string

const (
	TerrainForest    Terrain = "forest"
	TerrainPasture   Terrain = "pasture"
	TerrainFields    Terrain = "fields"
	TerrainHills     Terrain = "hills"
	TerrainMountains Terrain = "mountains"
	TerrainDesert    Terrain = "desert"
)

// Produces returns the resource a terrain yields.
func (t Terrain) Produces() (Resource, bool) {
	switch t {
	case TerrainForest:
		return Lumber, true
	case TerrainPasture:
		return Wool, true
	case TerrainFields:
		return Grain, true
	case TerrainHills:
		return Brick, true
	case TerrainMountains:
		return Ore, true
	}
	return "", false
}

// BuildingKind is what stands on a vertex.
type BuildingKind string

const (
	BuildingNone       BuildingKind = ""
	BuildingSettlement BuildingKind = "settlement"
	BuildingCity       BuildingKind = "city"
)

// PortKind is the harbor attached to a vertex. Specific ports reuse the
// resource name.
type PortKind string

const (
	PortNone    PortKind = ""
	PortGeneric PortKind = "generic"
)

// Hex is a terrain tile. Q and R are axial coordinates.
type Hex struct {
	ID       int     `json:"id"`
	Q        int     `json:"q"`
	R        int     `json:"r"`
	Terrain  Terrain `json:"terrain"`
	Number   int     `json:"number"`
	Vertices []int   `json:"vertices"`
}

// Vertex is a hex corner where settlements and cities are built.
type Vertex struct {
	ID        int          `json:"id"`
	Hexes     []int        `json:"hexes"`
	Edges     []int        `json:"edges"`
	Neighbors []int        `json:"neighbors"`
	Port      PortKind     `json:"port,omitempty"`
	Owner     string       `json:"owner,omitempty"`
	Building  BuildingKind `json:"building,omitempty"`
}

// Edge is a hex side where roads are built.
type Edge struct {
	ID       int    `json:"id"`
	Vertices [2]int `json:"vertices"`
	Owner    string `json:"owner,omitempty"`
}

// Board holds the map. Adjacency slices are fixed at construction and
// shared between clones.
type Board struct {
	Hexes     []Hex    `json:"hexes"`
	Vertices  []Vertex `json:"vertices"`
	Edges     []Edge   `json:"edges"`
	RobberHex int      `json:"robberHex"`
}

// Clone copies the mutable parts of the board.
func (b *Board) Clone() *Board {
	return &Board{
		Hexes:     append([]Hex(nil), b.Hexes...),
		Vertices:  append([]Vertex(nil), b.Vertices...),
		Edges:     append([]Edge(nil), b.Edges...),
		RobberHex: b.RobberHex,
	}
}

// OtherEnd returns the vertex at the far end of edge e from v.
func (b *Board) OtherEnd(e, v int) int {
	ends := b.Edges[e].Vertices
	if ends[0] == v {
		return ends[1]
	}
	return ends[0]
}

type point struct{ x, y int }

// Hex centers sit at (2q+r, 3r); corners are offset from that, clockwise from the top.
var cornerOffsets = [6]point{{0, -2}, {1, -1}, {1, 1}, {0, 2}, {-1, 1}, {-1, -1}}

var axialDirections = [6][2]int{{1, 0}, {1, -1}, {0, -1}, {-1, 0}, {-1, 1}, {0, 1}}

const boardRadius = 2

var (
	terrainPool = []Terrain{
		TerrainForest, TerrainForest, TerrainForest, TerrainForest,
		TerrainPasture, TerrainPasture, TerrainPasture, TerrainPasture,
		TerrainFields, TerrainFields, TerrainFields, TerrainFields,
		TerrainHills, TerrainHills, TerrainHills,
		TerrainMountains, TerrainMountains, TerrainMountains,
		TerrainDesert,
	}
	numberTokens = []int{5, 2, 6, 3, 8, 10, 9, 12, 11, 4, 8, 10, 9, 4, 5, 6, 3, 11}
	portPool     = []PortKind{
		PortGeneric, PortGeneric, PortGeneric, PortGeneric,
		PortKind(Brick), PortKind(Lumber), PortKind(Wool), PortKind(Grain), PortKind(Ore),
	}
)

// newTopology builds the 19-hex map with vertices and edges wired up but no
// terrain, numbers or ports assigned.
func newTopology() *Board {
	b := &Board{}
	for r := -boardRadius; r <= boardRadius; r++ {
		for q := -boardRadius; q <= boardRadius; q++ {
			if abs(q+r) > boardRadius {
				continue
			}
			b.Hexes = append(b.Hexes, Hex{ID: len(b.Hexes), Q: q, R: r})
		}
	}

	vertexAt := map[point]int{}
	edgeAt := map[[2]int]int{}
	for hi := range b.Hexes {
		h := &b.Hexes[hi]
		center := point{2*h.Q + h.R, 3 * h.R}
		corners := make([]int, 6)
		for i, off := range cornerOffsets {
			p := point{center.x + off.x, center.y + off.y}
			id, ok := vertexAt[p]
			if !ok {
				id = len(b.Vertices)
				vertexAt[p] = id
				b.Vertices = append(b.Vertices, Vertex{ID: id})
			}
			b.Vertices[id].Hexes = append(b.Vertices[id].Hexes, h.ID)
			corners[i] = id
		}
		h.Vertices = corners
		for i := 0; i < 6; i++ {
			a, c := corners[i], corners[(i+1)%6]
			key := [2]int{min(a, c), max(a, c)}
			if _, ok := edgeAt[key]; ok {
				continue
			}
			id := len(b.Edges)
			edgeAt[key] = id
			b.Edges = append(b.Edges, Edge{ID: id, Vertices: key})
			b.Vertices[a].Edges = append(b.Vertices[a].Edges, id)
			b.Vertices[c].Edges = append(b.Vertices[c].Edges, id)
			b.Vertices[a].Neighbors = append(b.Vertices[a].Neighbors, c)
			b.Vertices[c].Neighbors = append(b.Vertices[c].Neighbors, a)
		}
	}
	return b
}

// coastalEdges returns edges bordering exactly one hex, ordered clockwise
// around the board center.
func (b *Board) coastalEdges() []int {
	var coast []int
	for _, e := range b.Edges {
		if len(sharedHexes(b.Vertices[e.Vertices[0]], b.Vertices[e.Vertices[1]])) == 1 {
			coast = append(coast, e.ID)
		}
	}
	angle := func(e int) float64 {
		var x, y float64
		for _, v := range b.Edges[e].Vertices {
			c := b.vertexPoint(v)
			x += float64(c.x)
			y += float64(c.y)
		}
		// y is scaled by 3 in the integer layout; rescale before taking the angle
		return math.Atan2(y/math.Sqrt(3), x)
	}
	sort.SliceStable(coast, func(i, j int) bool { return angle(coast[i]) < angle(coast[j]) })
	return coast
}

func (b *Board) vertexPoint(v int) point {
	h := b.Hexes[b.Vertices[v].Hexes[0]]
	center := point{2*h.Q + h.R, 3 * h.R}
	for i, id := range h.Vertices {
		if id == v {
			return point{center.x + cornerOffsets[i].x, center.y + cornerOffsets[i].y}
		}
	}
	return center
}

func sharedHexes(a, b Vertex) []int {
	var out []int
	for _, x := range a.Hexes {
		for _, y := range b.Hexes {
			if x == y {
				out = append(out, x)
			}
		}
	}
	return out
}

// NewBoard generates a randomized board from seed. The same seed always
// yields the same board.
func NewBoard(seed int64) *Board {
	rng := rand.New(rand.NewSource(seed))
	b := newTopology()

	terrain := append([]Terrain(nil), terrainPool...)
	rng.Shuffle(len(terrain), func(i, j int) { terrain[i], terrain[j] = terrain[j], terrain[i] })
	for i := range b.Hexes {
		b.Hexes[i].Terrain = terrain[i]
		if terrain[i] == TerrainDesert {
			b.RobberHex = i
		}
	}

	tokens := append([]int(nil), numberTokens...)
	for attempt := 0; ; attempt++ {
		rng.Shuffle(len(tokens), func(i, j int) { tokens[i], tokens[j] = tokens[j], tokens[i] })
		next := 0
		for i := range b.Hexes {
			if b.Hexes[i].Terrain == TerrainDesert {
				b.Hexes[i].Number = 0
				continue
			}
			b.Hexes[i].Number = tokens[next]
			next++
		}
		if attempt >= 100 || !b.adjacentHotNumbers() {
			break
		}
	}

	ports := append([]PortKind(nil), portPool...)
	rng.Shuffle(len(ports), func(i, j int) { ports[i], ports[j] = ports[j], ports[i] })
	coast := b.coastalEdges()
	for i, kind := range ports {
		e := b.Edges[coast[i*len(coast)/len(ports)]]
		for _, v := range e.Vertices {
			b.Vertices[v].Port = kind
		}
	}
	return b
}

// adjacentHotNumbers reports whether two neighboring hexes both carry a 6 or 8.
func (b *Board) adjacentHotNumbers() bool {
	index := make(map[[2]int]int, len(b.Hexes))
	for _, h := range b.Hexes {
		index[[2]int{h.Q, h.R}] = h.ID
	}
	hot := func(n int) bool { return n == 6 || n == 8 }
	for _, h := range b.Hexes {
		if !hot(h.Number) {
			continue
		}
		for _, d := range axialDirections {
			if n, ok := index[[2]int{h.Q + d[0], h.R + d[1]}]; ok && hot(b.Hexes[n].Number) {
				return true
			}
		}
	}
	return false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
