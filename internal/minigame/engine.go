package minigame

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Occupant is a player standing in the zone that owns a mini-game.
// AccountId is empty for guests.
type Occupant struct {
	PlayerId  string
	AccountId string
	X         float64
	Y         float64
}

// Reward is a payout produced by a mini-game. Cause is the idempotency key
// handed to the ledger; it is unique per game runtime, cycle, milestone and
// player.
type Reward struct {
	GameId    string
	PlayerId  string
	AccountId string
	Stars     int
	XP        int
	SourceRef string
	Cause     string
}

// ActionResult is the outcome of an action an engine claimed.
type ActionResult struct {
	GameId     string
	PlayerId   string
	Action     string
	Success    bool
	ScoreDelta int
	Combo      int
	Rewards    []Reward
}

// State is the public view of a runtime. Extra carries game specific fields
// and is flattened into the top level object when marshalled.
type State struct {
	Id           string
	ZoneId       string
	Phase        string
	Prompt       string
	Combo        int
	Progress     float64
	Participants []string
	Cycle        int
	Extra        map[string]any
}

func (s State) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 8+len(s.Extra))
	for k, v := range s.Extra {
		out[k] = v
	}
	participants := s.Participants
	if participants == nil {
		participants = []string{}
	}
	out["id"] = s.Id
	out["zoneId"] = s.ZoneId
	out["phase"] = s.Phase
	out["prompt"] = s.Prompt
	out["combo"] = s.Combo
	out["progress"] = s.Progress
	out["participants"] = participants
	out["cycle"] = s.Cycle
	return json.Marshal(out)
}

// Engine is one mini-game runtime bound to a room.
type Engine interface {
	Definition() Definition
	// Step advances timers and occupancy driven progress.
	Step(now time.Time, occupants []Occupant) []Reward
	// HandleAction offers an action from a zone occupant. The bool reports
	// whether the engine claimed it; unclaimed actions leave state untouched.
	HandleAction(now time.Time, actor Occupant, action string, occupants []Occupant) (ActionResult, bool)
	State() State
}

// New builds the engine for def. Each engine gets a fresh epoch so reward
// causes from a recreated room never repeat earlier ones.
func New(def Definition, now time.Time) (Engine, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("minigame %q: %w", def.Id, err)
	}

	b := base{
		def:     def,
		epoch:   uuid.NewString(),
		markers: map[int]struct{}{},
	}

	switch def.Kind {
	case KindEcho:
		return newEcho(b, now), nil
	case KindRelay:
		return newRelay(b, now), nil
	case KindWaypoint:
		return newWaypoint(b), nil
	default:
		return nil, fmt.Errorf("minigame %q: unsupported kind %s", def.Id, def.Kind)
	}
}

// base holds the fields every runtime shares.
type base struct {
	def          Definition
	epoch        string
	cycle        int
	combo        int
	participants []string
	markers      map[int]struct{}
}

func (b *base) Definition() Definition {
	return b.def
}

func (b *base) setParticipants(occupants []Occupant) {
	ids := make([]string, 0, len(occupants))
	for _, o := range occupants {
		ids = append(ids, o.PlayerId)
	}
	slices.Sort(ids)
	b.participants = ids
}

func (b *base) nextCycle() {
	b.cycle++
	clear(b.markers)
}

func (b *base) decrementCombo() {
	if b.combo > 0 {
		b.combo--
	}
}

// milestoneRewards pays every occupant for each threshold the current combo
// has reached and that has not already paid out this cycle.
func (b *base) milestoneRewards(occupants []Occupant) []Reward {
	var rewards []Reward
	for _, m := range b.def.Milestones {
		if b.combo < m.Threshold {
			break
		}
		if _, done := b.markers[m.Threshold]; done {
			continue
		}
		b.markers[m.Threshold] = struct{}{}

		ref := fmt.Sprintf("%s:milestone:%d", b.def.Id, m.Threshold)
		for _, o := range occupants {
			rewards = append(rewards, Reward{
				GameId:    b.def.Id,
				PlayerId:  o.PlayerId,
				AccountId: o.AccountId,
				Stars:     m.Stars,
				XP:        m.XP,
				SourceRef: ref,
				Cause:     fmt.Sprintf("minigame:%s:%s:%d:%d:%s", b.def.Id, b.epoch, b.cycle, m.Threshold, o.PlayerId),
			})
		}
	}
	return rewards
}

func (b *base) state(phase, prompt string, progress float64, extra map[string]any) State {
	return State{
		Id:           b.def.Id,
		ZoneId:       b.def.ZoneId,
		Phase:        phase,
		Prompt:       prompt,
		Combo:        b.combo,
		Progress:     progress,
		Participants: slices.Clone(b.participants),
		Cycle:        b.cycle,
		Extra:        extra,
	}
}

func (b *base) result(actor Occupant, action string, success bool, score int) ActionResult {
	return ActionResult{
		GameId:     b.def.Id,
		PlayerId:   actor.PlayerId,
		Action:     action,
		Success:    success,
		ScoreDelta: score,
		Combo:      b.combo,
	}
}
