package minigame

import (
	"time"

	"github.com/pixil98/go-plaza/internal/geom"
)

// DefaultDefinitions are the mini-games of the built-in studio layout. Zone
// ids match zones.DefaultDefinitions.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			Id:      "stage-echo",
			Name:    "Echo",
			Kind:    KindEcho,
			ZoneId:  "stage",
			Actions: []string{"wave", "clap", "jump", "spin"},
			Window:  4 * time.Second,
			Milestones: []Milestone{
				{Threshold: 3, Stars: 1, XP: 15},
				{Threshold: 6, Stars: 2, XP: 30},
				{Threshold: 10, Stars: 3, XP: 50},
			},
			StepScore: 1,
		},
		{
			Id:        "workshop-relay",
			Name:      "Relay",
			Kind:      KindRelay,
			ZoneId:    "workshop",
			Actions:   []string{"pickup", "openlid", "jump"},
			Window:    3 * time.Second,
			IdleDecay: 12 * time.Second,
			Milestones: []Milestone{
				{Threshold: 2, Stars: 2, XP: 25},
				{Threshold: 5, Stars: 4, XP: 60},
			},
			StepScore:       1,
			CompletionScore: 5,
		},
		{
			Id:     "boardwalk-walk",
			Name:   "Boardwalk Walk",
			Kind:   KindWaypoint,
			ZoneId: "boardwalk",
			Waypoints: []geom.Vec{
				{X: 700, Y: 55}, {X: 1400, Y: 55}, {X: 2100, Y: 55},
				{X: 2745, Y: 450}, {X: 2745, Y: 1350},
				{X: 2100, Y: 1745}, {X: 1400, Y: 1745}, {X: 700, Y: 1745},
				{X: 55, Y: 1350}, {X: 55, Y: 450},
			},
			Radius:         70,
			GateEvery:      3,
			SpecialAction:  "cheer",
			CoopThreshold:  3,
			CoopMultiplier: 1.5,
			StepScore:      1,
			Stars:          1,
			XP:             20,
		},
	}
}
