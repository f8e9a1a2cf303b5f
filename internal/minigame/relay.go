package minigame

import (
	"slices"
	"time"
)

const PhaseChain = "chain"

// relay is the ordered chain game: occupants perform the sequence in order,
// each step before the step deadline.
type relay struct {
	base
	index     int
	deadline  time.Time
	idleSince time.Time
}

func newRelay(b base, now time.Time) *relay {
	return &relay{
		base:      b,
		idleSince: now,
	}
}

func (r *relay) Step(now time.Time, occupants []Occupant) []Reward {
	r.setParticipants(occupants)

	if r.index > 0 && now.After(r.deadline) {
		r.fail(now)
		return nil
	}

	if (r.combo > 0 || r.index > 0) && now.Sub(r.idleSince) > r.def.IdleDecay {
		r.fail(now)
	}
	return nil
}

func (r *relay) HandleAction(now time.Time, actor Occupant, action string, occupants []Occupant) (ActionResult, bool) {
	if !slices.Contains(r.def.Actions, action) {
		return ActionResult{}, false
	}

	if action != r.def.Actions[r.index] || (r.index > 0 && now.After(r.deadline)) {
		r.fail(now)
		return r.result(actor, action, false, 0), true
	}

	r.idleSince = now
	r.index++
	if r.index < len(r.def.Actions) {
		r.deadline = now.Add(r.def.Window)
		return r.result(actor, action, true, r.def.StepScore), true
	}

	r.index = 0
	r.combo++
	r.nextCycle()

	res := r.result(actor, action, true, r.def.CompletionScore)
	res.Rewards = r.milestoneRewards(occupants)
	return res, true
}

// fail resets the chain and decays the streak by one. The idle clock
// restarts so decay happens at most once per window.
func (r *relay) fail(now time.Time) {
	r.index = 0
	r.decrementCombo()
	r.idleSince = now
}

func (r *relay) State() State {
	phase := PhaseIdle
	if r.index > 0 {
		phase = PhaseChain
	}

	extra := map[string]any{
		"sequence": slices.Clone(r.def.Actions),
		"index":    r.index,
		"streak":   r.combo,
	}
	if r.index > 0 {
		extra["deadline"] = r.deadline.UnixMilli()
	}

	return r.state(phase, r.def.Actions[r.index], float64(r.index)/float64(len(r.def.Actions)), extra)
}
