package command

import (
	"fmt"
	"slices"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-plaza/internal/game"
	"github.com/pixil98/go-plaza/internal/geom"
	"github.com/pixil98/go-plaza/internal/minigame"
	"github.com/pixil98/go-plaza/internal/zones"
)

const defaultTickInterval = game.DefaultTickInterval

// WorldConfig overrides the simulation defaults. Zero values keep the
// default.
type WorldConfig struct {
	Width           float64  `json:"width,omitempty"`
	Height          float64  `json:"height,omitempty"`
	Padding         float64  `json:"padding,omitempty"`
	MaxSpeed        float64  `json:"max_speed,omitempty"`
	MaxPlayers      int      `json:"max_players,omitempty"`
	SpawnRadius     float64  `json:"spawn_radius,omitempty"`
	DistanceUnit    float64  `json:"distance_unit,omitempty"`
	IdleTimeout     string   `json:"idle_timeout,omitempty"`
	Cosmetics       []string `json:"cosmetics,omitempty"`
	DefaultCosmetic string   `json:"default_cosmetic,omitempty"`
	Actions         []string `json:"actions,omitempty"`
}

func (c *WorldConfig) validate() error {
	el := errors.NewErrorList()

	if c.Width < 0 || c.Height < 0 {
		el.Add(fmt.Errorf("world: width and height must not be negative"))
	}
	if c.Padding < 0 {
		el.Add(fmt.Errorf("world: padding must not be negative"))
	}
	if c.MaxSpeed < 0 {
		el.Add(fmt.Errorf("world: max_speed must not be negative"))
	}
	if c.MaxPlayers < 0 {
		el.Add(fmt.Errorf("world: max_players must not be negative"))
	}
	if c.DistanceUnit < 0 {
		el.Add(fmt.Errorf("world: distance_unit must not be negative"))
	}
	if c.IdleTimeout != "" {
		if _, err := time.ParseDuration(c.IdleTimeout); err != nil {
			el.Add(fmt.Errorf("world: parsing idle_timeout: %w", err))
		}
	}
	if c.DefaultCosmetic != "" && len(c.Cosmetics) > 0 && !slices.Contains(c.Cosmetics, c.DefaultCosmetic) {
		el.Add(fmt.Errorf("world: default_cosmetic %q is not in cosmetics", c.DefaultCosmetic))
	}

	return el.Err()
}

func (c *WorldConfig) buildGameConfig(tick time.Duration) (game.Config, error) {
	cfg := game.DefaultConfig()
	cfg.TickInterval = tick

	if c.Width > 0 {
		cfg.World.Width = c.Width
	}
	if c.Height > 0 {
		cfg.World.Height = c.Height
	}
	if c.Padding > 0 {
		cfg.Padding = c.Padding
	}
	if c.MaxSpeed > 0 {
		cfg.MaxSpeed = c.MaxSpeed
	}
	if c.MaxPlayers > 0 {
		cfg.MaxPlayers = c.MaxPlayers
	}
	if c.SpawnRadius > 0 {
		cfg.SpawnRadius = c.SpawnRadius
	}
	if c.DistanceUnit > 0 {
		cfg.DistanceUnit = c.DistanceUnit
	}
	if c.IdleTimeout != "" {
		d, err := time.ParseDuration(c.IdleTimeout)
		if err != nil {
			return game.Config{}, fmt.Errorf("parsing idle_timeout: %w", err)
		}
		cfg.IdleTimeout = d
	}
	if len(c.Cosmetics) > 0 {
		cfg.Cosmetics = c.Cosmetics
		cfg.DefaultCosmetic = c.Cosmetics[0]
	}
	if c.DefaultCosmetic != "" {
		cfg.DefaultCosmetic = c.DefaultCosmetic
	}
	if len(c.Actions) > 0 {
		cfg.Actions = c.Actions
	}

	return cfg, nil
}

type MilestoneConfig struct {
	Threshold int `json:"threshold"`
	Stars     int `json:"stars"`
	XP        int `json:"xp"`
}

// MiniGameConfig is the file form of minigame.Definition.
type MiniGameConfig struct {
	Id              string            `json:"id"`
	Name            string            `json:"name"`
	Kind            minigame.Kind     `json:"kind" jsonschema:"enum=echo,enum=relay,enum=waypoint"`
	ZoneId          string            `json:"zone_id"`
	Actions         []string          `json:"actions,omitempty"`
	Window          string            `json:"window,omitempty"`
	IdleDecay       string            `json:"idle_decay,omitempty"`
	Milestones      []MilestoneConfig `json:"milestones,omitempty"`
	StepScore       int               `json:"step_score,omitempty"`
	CompletionScore int               `json:"completion_score,omitempty"`
	Waypoints       []geom.Vec        `json:"waypoints,omitempty"`
	Radius          float64           `json:"radius,omitempty"`
	GateEvery       int               `json:"gate_every,omitempty"`
	SpecialAction   string            `json:"special_action,omitempty"`
	CoopThreshold   int               `json:"coop_threshold,omitempty"`
	CoopMultiplier  float64           `json:"coop_multiplier,omitempty"`
	Stars           int               `json:"stars,omitempty"`
	XP              int               `json:"xp,omitempty"`
}

func (c *MiniGameConfig) validate() error {
	def, err := c.definition()
	if err != nil {
		return err
	}
	return def.Validate()
}

func (c *MiniGameConfig) definition() (minigame.Definition, error) {
	def := minigame.Definition{
		Id:              c.Id,
		Name:            c.Name,
		Kind:            c.Kind,
		ZoneId:          c.ZoneId,
		Actions:         c.Actions,
		StepScore:       c.StepScore,
		CompletionScore: c.CompletionScore,
		Waypoints:       c.Waypoints,
		Radius:          c.Radius,
		GateEvery:       c.GateEvery,
		SpecialAction:   c.SpecialAction,
		CoopThreshold:   c.CoopThreshold,
		CoopMultiplier:  c.CoopMultiplier,
		Stars:           c.Stars,
		XP:              c.XP,
	}
	for _, m := range c.Milestones {
		def.Milestones = append(def.Milestones, minigame.Milestone{Threshold: m.Threshold, Stars: m.Stars, XP: m.XP})
	}

	if def.StepScore == 0 {
		def.StepScore = minigame.DefaultStepScore
	}
	if def.Kind == minigame.KindRelay && def.CompletionScore == 0 {
		def.CompletionScore = minigame.DefaultCompletionScore
	}

	if c.Window != "" {
		d, err := time.ParseDuration(c.Window)
		if err != nil {
			return minigame.Definition{}, fmt.Errorf("parsing window: %w", err)
		}
		def.Window = d
	}
	if c.IdleDecay != "" {
		d, err := time.ParseDuration(c.IdleDecay)
		if err != nil {
			return minigame.Definition{}, fmt.Errorf("parsing idle_decay: %w", err)
		}
		def.IdleDecay = d
	}

	return def, nil
}

func (c *Config) buildZoneIndex(bounds geom.Bounds) (*zones.Index, error) {
	defs := c.Zones
	if len(defs) == 0 {
		defs = zones.DefaultDefinitions()
	}
	return zones.NewIndex(bounds, defs)
}

func (c *Config) buildMiniGames() ([]minigame.Definition, error) {
	if len(c.MiniGames) == 0 {
		return minigame.DefaultDefinitions(), nil
	}

	defs := make([]minigame.Definition, 0, len(c.MiniGames))
	for i := range c.MiniGames {
		def, err := c.MiniGames[i].definition()
		if err != nil {
			return nil, fmt.Errorf("minigame %d: %w", i, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}
