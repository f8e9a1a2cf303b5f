package minigame

import (
	"fmt"
	"slices"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-plaza/internal/geom"
)

type Kind string

const (
	KindEcho     Kind = "echo"
	KindRelay    Kind = "relay"
	KindWaypoint Kind = "waypoint"
)

// Scores used when a definition leaves them unset.
const (
	DefaultStepScore       = 1
	DefaultCompletionScore = 5
)

// Milestone is a combo or streak threshold that pays out once per cycle.
type Milestone struct {
	Threshold int
	Stars     int
	XP        int
}

// Definition configures one mini-game. Which fields apply depends on Kind.
type Definition struct {
	Id     string
	Name   string
	Kind   Kind
	ZoneId string

	// Actions is the prompt rotation for echo and the ordered chain for relay.
	Actions []string
	// Window is the echo response deadline and the relay per-step deadline.
	Window time.Duration
	// IdleDecay is how long a relay can sit without a success before the
	// streak decays by one.
	IdleDecay  time.Duration
	Milestones []Milestone

	// StepScore is paid for an echo response, a relay step and a waypoint
	// gate clear. CompletionScore is paid for a full relay sequence.
	StepScore       int
	CompletionScore int

	Waypoints      []geom.Vec
	Radius         float64
	GateEvery      int
	SpecialAction  string
	CoopThreshold  int
	CoopMultiplier float64
	Stars          int
	XP             int
}

func (d *Definition) Validate() error {
	el := errors.NewErrorList()

	if d.Id == "" {
		el.Add(fmt.Errorf("id is required"))
	}
	if d.ZoneId == "" {
		el.Add(fmt.Errorf("zone_id is required"))
	}
	if d.StepScore <= 0 {
		el.Add(fmt.Errorf("step_score must be positive"))
	}

	switch d.Kind {
	case KindEcho, KindRelay:
		if len(d.Actions) == 0 {
			el.Add(fmt.Errorf("actions must not be empty for kind %s", d.Kind))
		}
		if d.Window <= 0 {
			el.Add(fmt.Errorf("window must be positive"))
		}
		if d.Kind == KindRelay && d.IdleDecay <= 0 {
			el.Add(fmt.Errorf("idle_decay must be positive"))
		}
		if d.Kind == KindRelay && d.CompletionScore <= d.StepScore {
			el.Add(fmt.Errorf("completion_score must be greater than step_score"))
		}
		el.Add(validateMilestones(d.Milestones))
	case KindWaypoint:
		if len(d.Waypoints) == 0 {
			el.Add(fmt.Errorf("waypoints must not be empty"))
		}
		if d.Radius <= 0 {
			el.Add(fmt.Errorf("radius must be positive"))
		}
		if d.GateEvery < 0 {
			el.Add(fmt.Errorf("gate_every must not be negative"))
		}
		if d.GateEvery > 0 && d.SpecialAction == "" {
			el.Add(fmt.Errorf("special_action is required when gate_every is set"))
		}
		if d.CoopMultiplier < 1 {
			el.Add(fmt.Errorf("coop_multiplier must be at least 1"))
		}
	case "":
		el.Add(fmt.Errorf("kind is required"))
	default:
		el.Add(fmt.Errorf("invalid kind: %s", d.Kind))
	}

	return el.Err()
}

func validateMilestones(ms []Milestone) error {
	el := errors.NewErrorList()
	for i, m := range ms {
		if m.Threshold <= 0 {
			el.Add(fmt.Errorf("milestone %d: threshold must be positive", i))
		}
		if i > 0 && m.Threshold <= ms[i-1].Threshold {
			el.Add(fmt.Errorf("milestone %d: thresholds must be ascending", i))
		}
	}
	return el.Err()
}

// Claims reports whether an engine built from d could ever claim action.
func (d *Definition) Claims(action string) bool {
	switch d.Kind {
	case KindEcho, KindRelay:
		return slices.Contains(d.Actions, action)
	case KindWaypoint:
		return d.SpecialAction != "" && action == d.SpecialAction
	}
	return false
}

// RequiredActions lists the action types players must be able to send for
// the game to make progress.
func (d *Definition) RequiredActions() []string {
	switch d.Kind {
	case KindEcho, KindRelay:
		return d.Actions
	case KindWaypoint:
		if d.GateEvery > 0 {
			return []string{d.SpecialAction}
		}
	}
	return nil
}
