package zones

import (
	"fmt"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-plaza/internal/geom"
)

type Shape string

const (
	ShapeRect      Shape = "rect"      // Axis-aligned rectangle, bounds inclusive
	ShapePerimeter Shape = "perimeter" // Band of fixed inset along every world edge
)

// Rect is an axis-aligned rectangle in world units.
type Rect struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p geom.Vec) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// Definition describes one named region of the world. Definitions are
// evaluated in the order they are declared; when regions overlap the
// earliest declaration wins.
type Definition struct {
	Id       string  `json:"id"`
	Name     string  `json:"name"`
	Shape    Shape   `json:"shape"`
	Rect     Rect    `json:"rect,omitempty"`
	Inset    float64 `json:"inset,omitempty"`
	MiniGame string  `json:"minigame,omitempty"`
}

// Validate checks the definition in isolation.
func (d *Definition) Validate() error {
	el := errors.NewErrorList()

	if d.Id == "" {
		el.Add(fmt.Errorf("id is required"))
	}
	if d.Name == "" {
		el.Add(fmt.Errorf("name is required"))
	}

	switch d.Shape {
	case ShapeRect:
		if d.Rect.MaxX <= d.Rect.MinX || d.Rect.MaxY <= d.Rect.MinY {
			el.Add(fmt.Errorf("rect must have max greater than min on both axes"))
		}
	case ShapePerimeter:
		if d.Inset <= 0 {
			el.Add(fmt.Errorf("inset must be positive for shape %s", ShapePerimeter))
		}
	case "":
		el.Add(fmt.Errorf("shape is required (must be %s or %s)", ShapeRect, ShapePerimeter))
	default:
		el.Add(fmt.Errorf("invalid shape: %s (must be %s or %s)", d.Shape, ShapeRect, ShapePerimeter))
	}

	return el.Err()
}

func (d *Definition) contains(p geom.Vec, b geom.Bounds) bool {
	switch d.Shape {
	case ShapeRect:
		return d.Rect.Contains(p)
	case ShapePerimeter:
		return p.X <= d.Inset || p.Y <= d.Inset || b.Width-p.X <= d.Inset || b.Height-p.Y <= d.Inset
	default:
		return false
	}
}
