package stages

import (
	"fmt"
)

// NoTimeline marks a stage without an allotted duration.
const NoTimeline = -1

// Definition describes one execution stage.
type Definition struct {
	ID    string
	Name  string
	Color string // Display only
	Min   int    // First sequence position (inclusive)
	Max   int    // Last sequence position (inclusive)
	Days  int    // Allotted days, or NoTimeline
}

// HasTimeline reports whether the stage runs against a day budget.
func (d Definition) HasTimeline() bool {
	return d.Days != NoTimeline
}

// Contains reports whether a sequence position belongs to the stage.
func (d Definition) Contains(sequence int) bool {
	return sequence >= d.Min && sequence <= d.Max
}

// Catalog is an ordered, immutable list of stage definitions.
// Catalog order is dependency order: each stage unlocks when the one before it completes.
type Catalog struct {
	defs  []Definition
	index []int // index[seq-first] -> position in defs
	first int
}

// defaultDefinitions is the execution pipeline used by every project unless configured otherwise.
var defaultDefinitions = []Definition{
	{ID: "client_meeting", Name: "Client Meeting", Color: "#6366f1", Min: 1, Max: 3, Days: NoTimeline},
	{ID: "pop", Name: "POP Stage", Color: "#f59e0b", Min: 4, Max: 9, Days: 8},
	{ID: "furniture", Name: "Furniture Stage", Color: "#10b981", Min: 10, Max: 17, Days: 25},
	{ID: "laminate", Name: "Laminate Stage", Color: "#3b82f6", Min: 18, Max: 22, Days: 30},
	{ID: "colour", Name: "Colour Stage", Color: "#ec4899", Min: 23, Max: 28, Days: 15},
	{ID: "other", Name: "Other Work", Color: "#8b5cf6", Min: 29, Max: 35, Days: 12},
}

var defaultCatalog = mustCatalog(defaultDefinitions)

// DefaultCatalog returns the built-in six-stage catalog.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// DefaultDefinitions returns a copy of the built-in stage definitions.
func DefaultDefinitions() []Definition {
	return append([]Definition(nil), defaultDefinitions...)
}

func mustCatalog(defs []Definition) *Catalog {
	c, err := NewCatalog(defs)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in stage catalog: %v", err))
	}
	return c
}

// NewCatalog validates defs and builds a catalog in the given order.
// Ranges must be contiguous and non-overlapping, stage IDs unique,
// and allotted days either non-negative or NoTimeline.
func NewCatalog(defs []Definition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("catalog has no stages")
	}

	seen := make(map[string]bool, len(defs))
	for i, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("stage %d has empty ID", i)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("duplicate stage ID %q", d.ID)
		}
		seen[d.ID] = true

		if d.Min < 1 {
			return nil, fmt.Errorf("stage %q: lower bound %d must be at least 1", d.ID, d.Min)
		}
		if d.Min > d.Max {
			return nil, fmt.Errorf("stage %q: lower bound %d exceeds upper bound %d", d.ID, d.Min, d.Max)
		}
		if d.Days < 0 && d.Days != NoTimeline {
			return nil, fmt.Errorf("stage %q: allotted days %d is negative", d.ID, d.Days)
		}

		if i > 0 {
			prev := defs[i-1]
			if d.Min <= prev.Max {
				return nil, fmt.Errorf("stage %q range [%d,%d] overlaps %q range [%d,%d]", d.ID, d.Min, d.Max, prev.ID, prev.Min, prev.Max)
			}
			if d.Min != prev.Max+1 {
				return nil, fmt.Errorf("gap between stage %q (ends %d) and %q (starts %d)", prev.ID, prev.Max, d.ID, d.Min)
			}
		}
	}

	c := &Catalog{
		defs:  append([]Definition(nil), defs...),
		first: defs[0].Min,
	}
	last := defs[len(defs)-1].Max
	c.index = make([]int, last-c.first+1)
	for i, d := range c.defs {
		for seq := d.Min; seq <= d.Max; seq++ {
			c.index[seq-c.first] = i
		}
	}

	return c, nil
}

// Definitions returns the stage definitions in catalog order.
func (c *Catalog) Definitions() []Definition {
	return append([]Definition(nil), c.defs...)
}

// Len returns the number of stages.
func (c *Catalog) Len() int {
	return len(c.defs)
}

// Lookup returns the definition with the given ID.
func (c *Catalog) Lookup(id string) (Definition, bool) {
	for _, d := range c.defs {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// Resolve returns the stage containing the sequence position.
// Returns false when the position lies outside every range.
func (c *Catalog) Resolve(sequence int) (Definition, bool) {
	i := sequence - c.first
	if i < 0 || i >= len(c.index) {
		return Definition{}, false
	}
	return c.defs[c.index[i]], true
}

// Span returns the first and last sequence positions covered by the catalog.
func (c *Catalog) Span() (int, int) {
	return c.first, c.first + len(c.index) - 1
}

// Unmapped returns the tasks whose sequence position matches no stage.
func (c *Catalog) Unmapped(tasks []Task) []Task {
	var out []Task
	for _, t := range tasks {
		if _, ok := c.Resolve(t.Sequence); !ok {
			out = append(out, t)
		}
	}
	return out
}
