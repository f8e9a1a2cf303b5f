package zones

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-plaza/internal/geom"
)

// Index resolves world positions to zone ids. It is immutable once built and
// safe for concurrent use.
type Index struct {
	bounds geom.Bounds
	defs   []Definition
	byId   map[string]int
}

// NewIndex validates the definitions and builds an index over them. The
// order of defs is the resolution priority.
func NewIndex(bounds geom.Bounds, defs []Definition) (*Index, error) {
	el := errors.NewErrorList()

	byId := make(map[string]int, len(defs))
	for i := range defs {
		if err := defs[i].Validate(); err != nil {
			el.Add(fmt.Errorf("zone %d (%q): %w", i, defs[i].Id, err))
			continue
		}
		if _, dup := byId[defs[i].Id]; dup {
			el.Add(fmt.Errorf("duplicate zone id %q", defs[i].Id))
			continue
		}
		byId[defs[i].Id] = i
	}
	if err := el.Err(); err != nil {
		return nil, err
	}

	owned := make([]Definition, len(defs))
	copy(owned, defs)

	return &Index{
		bounds: bounds,
		defs:   owned,
		byId:   byId,
	}, nil
}

// Resolve returns the id of the first zone, in declaration order, that
// contains p.
func (ix *Index) Resolve(p geom.Vec) (string, bool) {
	for i := range ix.defs {
		if ix.defs[i].contains(p, ix.bounds) {
			return ix.defs[i].Id, true
		}
	}
	return "", false
}

// Get returns the definition with the given id.
func (ix *Index) Get(id string) (Definition, bool) {
	i, ok := ix.byId[id]
	if !ok {
		return Definition{}, false
	}
	return ix.defs[i], true
}

// Definitions returns the zones in declaration order.
func (ix *Index) Definitions() []Definition {
	out := make([]Definition, len(ix.defs))
	copy(out, ix.defs)
	return out
}

// Bounds returns the world rectangle the index was built for.
func (ix *Index) Bounds() geom.Bounds {
	return ix.bounds
}
