package command

import (
	"fmt"
	"slices"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-plaza/internal/logging"
	"github.com/pixil98/go-plaza/internal/zones"
)

const (
	minTickInterval = 10 * time.Millisecond
	maxTickInterval = time.Second
)

type Config struct {
	TickInterval string             `json:"tick_interval,omitempty" jsonschema:"description=Simulation step as a duration string; 10ms to 1s; default 50ms"`
	Log          logging.Config     `json:"log"`
	World        WorldConfig        `json:"world"`
	Zones        []zones.Definition `json:"zones,omitempty" jsonschema:"description=Zone layout; the built-in studio layout when empty"`
	MiniGames    []MiniGameConfig   `json:"minigames,omitempty" jsonschema:"description=Mini-game definitions; the built-in set when empty"`
	Listeners    []ListenerConfig   `json:"listeners"`
	Storage      StorageConfig      `json:"storage"`
	Nats         NatsConfig         `json:"nats"`
	Auth         AuthConfig         `json:"auth"`
	Voice        VoiceConfig        `json:"voice"`
	Ledger       LedgerConfig       `json:"ledger"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	if _, err := c.tickInterval(); err != nil {
		el.Add(err)
	}

	el.Add(c.World.validate())

	for i := range c.Zones {
		if err := c.Zones[i].Validate(); err != nil {
			el.Add(fmt.Errorf("zone %d: %w", i, err))
		}
	}
	for i := range c.MiniGames {
		if err := c.MiniGames[i].validate(); err != nil {
			el.Add(fmt.Errorf("minigame %d: %w", i, err))
		}
	}
	el.Add(c.validateActions())

	if len(c.Listeners) == 0 {
		el.Add(fmt.Errorf("at least one listener is required"))
	}
	for i, l := range c.Listeners {
		err := l.validate()
		if err != nil {
			el.Add(fmt.Errorf("listener %d: %w", i, err))
		}
	}

	el.Add(c.Storage.validate())
	el.Add(c.Nats.validate())
	el.Add(c.Auth.validate())
	el.Add(c.Ledger.validate())

	return el.Err()
}

// validateActions checks that every action a mini-game waits for is on the
// world allow-list.
func (c *Config) validateActions() error {
	if len(c.World.Actions) == 0 {
		return nil
	}
	games, err := c.buildMiniGames()
	if err != nil {
		// Reported per game.
		return nil
	}

	el := errors.NewErrorList()
	for _, g := range games {
		for _, a := range g.RequiredActions() {
			if !slices.Contains(c.World.Actions, a) {
				el.Add(fmt.Errorf("minigame %s: action %q is not in world.actions", g.Id, a))
			}
		}
	}
	return el.Err()
}

func (c *Config) tickInterval() (time.Duration, error) {
	if c.TickInterval == "" {
		return defaultTickInterval, nil
	}
	d, err := time.ParseDuration(c.TickInterval)
	if err != nil {
		return 0, fmt.Errorf("parsing tick_interval: %w", err)
	}
	if d < minTickInterval || d > maxTickInterval {
		return 0, fmt.Errorf("tick_interval must be between %s and %s", minTickInterval, maxTickInterval)
	}
	return d, nil
}
