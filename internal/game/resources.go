package game

// Resource is one of the five tradeable goods produced by the board.
type Resource string

const (
	Brick  Resource = "brick"
	Lumber Resource = "lumber"
	Wool   Resource = "wool"
	Grain  Resource = "grain"
	Ore    Resource = "ore"
)

// AllResources lists resources in their canonical order. Anything that
// iterates resources (steal selection, discard heuristics) uses this order.
var AllResources = []Resource{Brick, Lumber, Wool, Grain, Ore}

// Valid reports whether r names a known resource.
func (r Resource) Valid() bool {
	switch r {
	case Brick, Lumber, Wool, Grain, Ore:
		return true
	}
	return false
}

// Resources is a bundle of resource counts. It is a value type so copies
// never alias.
type Resources struct {
	Brick  int `json:"brick"`
	Lumber int `json:"lumber"`
	Wool   int `json:"wool"`
	Grain  int `json:"grain"`
	Ore    int `json:"ore"`
}

// Build costs.
var (
	CostRoad       = Resources{Brick: 1, Lumber: 1}
	CostSettlement = Resources{Brick: 1, Lumber: 1, Wool: 1, Grain: 1}
	CostCity       = Resources{Grain: 2, Ore: 3}
	CostDevCard    = Resources{Wool: 1, Grain: 1, Ore: 1}
)

// Single returns a bundle holding n of r.
func Single(r Resource, n int) Resources {
	var b Resources
	b.add(r, n)
	return b
}

// Get returns the count of r.
func (b Resources) Get(r Resource) int {
	switch r {
	case Brick:
		return b.Brick
	case Lumber:
		return b.Lumber
	case Wool:
		return b.Wool
	case Grain:
		return b.Grain
	case Ore:
		return b.Ore
	}
	return 0
}

func (b *Resources) add(r Resource, n int) {
	switch r {
	case Brick:
		b.Brick += n
	case Lumber:
		b.Lumber += n
	case Wool:
		b.Wool += n
	case Grain:
		b.Grain += n
	case Ore:
		b.Ore += n
	}
}

// Plus returns b + o.
func (b Resources) Plus(o Resources) Resources {
	return Resources{
		Brick:  b.Brick + o.Brick,
		Lumber: b.Lumber + o.Lumber,
		Wool:   b.Wool + o.Wool,
		Grain:  b.Grain + o.Grain,
		Ore:    b.Ore + o.Ore,
	}
}

// Minus returns b - o. The result may be negative; callers check Covers first.
func (b Resources) Minus(o Resources) Resources {
	return Resources{
		Brick:  b.Brick - o.Brick,
		Lumber: b.Lumber - o.Lumber,
		Wool:   b.Wool - o.Wool,
		Grain:  b.Grain - o.Grain,
		Ore:    b.Ore - o.Ore,
	}
}

// Total is the number of cards in the bundle.
func (b Resources) Total() int {
	return b.Brick + b.Lumber + b.Wool + b.Grain + b.Ore
}

// Covers reports whether b holds at least o of every resource.
func (b Resources) Covers(o Resources) bool {
	return b.Brick >= o.Brick && b.Lumber >= o.Lumber && b.Wool >= o.Wool &&
		b.Grain >= o.Grain && b.Ore >= o.Ore
}

// NonNegative reports whether no count is below zero.
func (b Resources) NonNegative() bool {
	return b.Covers(Resources{})
}

// IsZero reports whether the bundle is empty.
func (b Resources) IsZero() bool {
	return b == Resources{}
}

// Missing returns what b lacks to cover o.
func (b Resources) Missing(o Resources) Resources {
	var m Resources
	for _, r := range AllResources {
		if d := o.Get(r) - b.Get(r); d > 0 {
			m.add(r, d)
		}
	}
	return m
}
