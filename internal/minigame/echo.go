package minigame

import (
	"slices"
	"time"
)

const (
	PhaseIdle    = "idle"
	PhaseCalling = "calling"
)

// echo is the call and response game: occupants repeat the current prompt
// before its deadline.
type echo struct {
	base
	prompt    int
	deadline  time.Time
	responded map[string]struct{}
}

func newEcho(b base, now time.Time) *echo {
	return &echo{
		base:      b,
		deadline:  now.Add(b.def.Window),
		responded: map[string]struct{}{},
	}
}

func (e *echo) Step(now time.Time, occupants []Occupant) []Reward {
	e.setParticipants(occupants)

	if now.Before(e.deadline) {
		return nil
	}

	if len(e.responded) == 0 {
		e.decrementCombo()
	}
	e.prompt = (e.prompt + 1) % len(e.def.Actions)
	clear(e.responded)
	e.deadline = now.Add(e.def.Window)
	e.nextCycle()
	return nil
}

func (e *echo) HandleAction(now time.Time, actor Occupant, action string, occupants []Occupant) (ActionResult, bool) {
	if !slices.Contains(e.def.Actions, action) {
		return ActionResult{}, false
	}

	_, already := e.responded[actor.PlayerId]
	if action != e.def.Actions[e.prompt] || now.After(e.deadline) || already {
		return e.result(actor, action, false, 0), true
	}

	e.responded[actor.PlayerId] = struct{}{}
	e.combo++

	res := e.result(actor, action, true, e.def.StepScore)
	res.Rewards = e.milestoneRewards(occupants)
	return res, true
}

func (e *echo) State() State {
	phase := PhaseIdle
	if len(e.participants) > 0 {
		phase = PhaseCalling
	}

	var progress float64
	if len(e.participants) > 0 {
		progress = min(1, float64(len(e.responded))/float64(len(e.participants)))
	}

	return e.state(phase, e.def.Actions[e.prompt], progress, map[string]any{
		"deadline":  e.deadline.UnixMilli(),
		"responded": len(e.responded),
	})
}
