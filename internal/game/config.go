package game

import (
	"time"

	"github.com/pixil98/go-plaza/internal/geom"
)

const (
	DefaultTickInterval = 50 * time.Millisecond
	DefaultResumeTTL    = 10 * time.Minute
	DefaultRoomId       = "lobby"

	// Animation thresholds as fractions of max speed.
	runThreshold  = 0.72
	walkThreshold = 0.04
)

// Config holds the tunables of the simulation.
type Config struct {
	World        geom.Bounds
	Padding      float64
	MaxSpeed     float64
	MaxPlayers   int
	SpawnRadius  float64
	DistanceUnit float64
	IdleTimeout  time.Duration
	ResumeTTL    time.Duration
	TickInterval time.Duration

	Cosmetics       []string
	DefaultCosmetic string
	Actions         []string
	Palette         []string

	VoiceEnabled bool
}

// DefaultConfig matches the built-in studio layout.
func DefaultConfig() Config {
	return Config{
		World:           geom.Bounds{Width: 2800, Height: 1800},
		Padding:         24,
		MaxSpeed:        320,
		MaxPlayers:      24,
		SpawnRadius:     160,
		DistanceUnit:    100,
		IdleTimeout:     15 * time.Minute,
		ResumeTTL:       DefaultResumeTTL,
		TickInterval:    DefaultTickInterval,
		Cosmetics:       []string{"classic", "astro", "robot", "fox", "knight"},
		DefaultCosmetic: "classic",
		Actions:         []string{"wave", "clap", "jump", "spin", "pickup", "openlid", "cheer", "dance", "sit"},
		Palette:         []string{"#e4572e", "#29335c", "#f3a712", "#a8c686", "#669bbc", "#b56576", "#6d597a", "#2a9d8f"},
	}
}
