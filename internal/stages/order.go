package stages

import (
	"fmt"
	"strings"

	"github.com/gammazero/toposort"
)

// OrderByDependency arranges defs into catalog order using "after" links
// (stage ID -> ID of the stage it follows). Stages form a single chain:
// exactly one stage has no predecessor and no stage has two successors.
// The returned slice is suitable for NewCatalog.
func OrderByDependency(defs []Definition, after map[string]string) ([]Definition, error) {
	byID := make(map[string]Definition, len(defs))
	for _, d := range defs {
		if _, exists := byID[d.ID]; exists {
			return nil, fmt.Errorf("duplicate stage ID %q", d.ID)
		}
		byID[d.ID] = d
	}

	var roots []string
	successor := make(map[string]string)
	var edges []toposort.Edge
	for _, d := range defs {
		prev := after[d.ID]
		if prev == "" {
			roots = append(roots, d.ID)
			edges = append(edges, toposort.Edge{nil, d.ID})
			continue
		}
		if _, ok := byID[prev]; !ok {
			return nil, fmt.Errorf("stage %q follows unknown stage %q", d.ID, prev)
		}
		if other, taken := successor[prev]; taken {
			return nil, fmt.Errorf("stages %q and %q both follow %q", other, d.ID, prev)
		}
		successor[prev] = d.ID
		edges = append(edges, toposort.Edge{prev, d.ID})
	}

	if len(roots) != 1 {
		return nil, fmt.Errorf("expected exactly one first stage, found %d: %s", len(roots), strings.Join(roots, ", "))
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("stage order contains cycle: %w", err)
	}

	ordered := make([]Definition, 0, len(defs))
	for _, id := range sorted {
		if id != nil {
			ordered = append(ordered, byID[id.(string)])
		}
	}

	if len(ordered) != len(defs) {
		return nil, fmt.Errorf("stage ordering lost %d stages", len(defs)-len(ordered))
	}

	return ordered, nil
}
