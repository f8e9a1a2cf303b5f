package minigame

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/pixil98/go-plaza/internal/geom"
)

const (
	PhaseWalking = "walking"
	PhaseGated   = "gated"
)

// waypoint is the cooperative walk: occupants touch each waypoint in turn and
// every GateEvery waypoints the group has to perform the special action
// before the next one counts.
type waypoint struct {
	base
	index       int
	gated       bool
	touchers    map[string]Occupant
	completions int
}

func newWaypoint(b base) *waypoint {
	return &waypoint{
		base:     b,
		touchers: map[string]Occupant{},
	}
}

func (w *waypoint) Step(now time.Time, occupants []Occupant) []Reward {
	w.setParticipants(occupants)

	if len(occupants) == 0 {
		w.combo = 0
	}
	if w.gated {
		return nil
	}

	target := w.def.Waypoints[w.index]
	touched := false
	for _, o := range occupants {
		pos := geom.Vec{X: o.X, Y: o.Y}
		if pos.Dist(target) <= w.def.Radius {
			w.touchers[o.PlayerId] = o
			touched = true
		}
	}
	if !touched {
		return nil
	}

	w.index++
	if w.index >= len(w.def.Waypoints) {
		return w.complete()
	}
	if w.def.GateEvery > 0 && w.index%w.def.GateEvery == 0 {
		w.gated = true
	}
	return nil
}

func (w *waypoint) complete() []Reward {
	w.completions++
	w.combo++

	stars, xp := w.def.Stars, w.def.XP
	if w.def.CoopThreshold > 0 && len(w.touchers) >= w.def.CoopThreshold {
		stars = int(math.Round(float64(stars) * w.def.CoopMultiplier))
		xp = int(math.Round(float64(xp) * w.def.CoopMultiplier))
	}

	ids := make([]string, 0, len(w.touchers))
	for id := range w.touchers {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	ref := fmt.Sprintf("%s:lap:%d", w.def.Id, w.completions)
	rewards := make([]Reward, 0, len(ids))
	for _, id := range ids {
		o := w.touchers[id]
		rewards = append(rewards, Reward{
			GameId:    w.def.Id,
			PlayerId:  o.PlayerId,
			AccountId: o.AccountId,
			Stars:     stars,
			XP:        xp,
			SourceRef: ref,
			Cause:     fmt.Sprintf("minigame:%s:%s:%d:lap:%s", w.def.Id, w.epoch, w.cycle, o.PlayerId),
		})
	}

	w.index = 0
	w.gated = false
	clear(w.touchers)
	w.nextCycle()
	return rewards
}

func (w *waypoint) HandleAction(now time.Time, actor Occupant, action string, occupants []Occupant) (ActionResult, bool) {
	if !w.gated || action != w.def.SpecialAction {
		return ActionResult{}, false
	}

	w.gated = false
	return w.result(actor, action, true, w.def.StepScore), true
}

func (w *waypoint) State() State {
	phase := PhaseWalking
	prompt := ""
	if w.gated {
		phase = PhaseGated
		prompt = w.def.SpecialAction
	}

	return w.state(phase, prompt, float64(w.index)/float64(len(w.def.Waypoints)), map[string]any{
		"waypoint":    w.def.Waypoints[w.index],
		"index":       w.index,
		"gated":       w.gated,
		"completions": w.completions,
		"touchers":    len(w.touchers),
	})
}
