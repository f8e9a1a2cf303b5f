package zones

// DefaultDefinitions is the studio layout used when the configuration does
// not declare zones. It assumes a 2800x1800 world.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			Id:       "stage",
			Name:     "Main Stage",
			Shape:    ShapeRect,
			Rect:     Rect{MinX: 1900, MinY: 150, MaxX: 2600, MaxY: 650},
			MiniGame: "stage-echo",
		},
		{
			Id:       "workshop",
			Name:     "Workshop",
			Shape:    ShapeRect,
			Rect:     Rect{MinX: 250, MinY: 1100, MaxX: 850, MaxY: 1550},
			MiniGame: "workshop-relay",
		},
		{
			Id:    "lounge",
			Name:  "Lounge",
			Shape: ShapeRect,
			Rect:  Rect{MinX: 1100, MinY: 700, MaxX: 1700, MaxY: 1100},
		},
		{
			Id:       "boardwalk",
			Name:     "Boardwalk",
			Shape:    ShapePerimeter,
			Inset:    110,
			MiniGame: "boardwalk-walk",
		},
	}
}
