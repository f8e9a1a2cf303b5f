package quests

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-plaza/internal/geom"
)

// Quest types fed by the simulation.
const (
	TypeDistance       = "distance"
	TypeVoiceMinutes   = "voice_minutes"
	TypeEmote          = "emote"
	TypeMiniGameAction = "minigame_action"
)

// PermanentStamp is the cycle stamp of quests that never roll over.
const PermanentStamp = "permanent"

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusClaimed   Status = "claimed"
)

// Reward is what a grant pays out. Zero fields are skipped.
type Reward struct {
	Currency       int    `json:"currency,omitempty"`
	XP             int    `json:"xp,omitempty"`
	UnlockId       string `json:"unlock_id,omitempty"`
	UnlockCategory string `json:"unlock_category,omitempty"`
}

// GrantResult is the outcome of one ApplyGrant call. Balance and TotalXP are
// the account totals after the call.
type GrantResult struct {
	Applied  bool
	Unlocked bool
	Balance  int
	TotalXP  int
}

// Predicate narrows which progress events count toward a quest. Zero
// fields match everything.
type Predicate struct {
	SubType  string    `json:"sub_type,omitempty"`
	MinCombo int       `json:"min_combo,omitempty"`
	Center   *geom.Vec `json:"center,omitempty"`
	Radius   float64   `json:"radius,omitempty"`
}

func (p Predicate) Matches(qc Context) bool {
	if p.SubType != "" && p.SubType != qc.SubType {
		return false
	}
	if p.MinCombo > 0 && qc.Combo < p.MinCombo {
		return false
	}
	if p.Radius > 0 && p.Center != nil {
		if qc.Pos == nil || qc.Pos.Dist(*p.Center) > p.Radius {
			return false
		}
	}
	return true
}

// Def is a quest template. Templates live in the store and are listed per
// day so daily rotations can be scheduled ahead of time.
type Def struct {
	Title     string     `json:"title"`
	Type      string     `json:"type"`
	Target    int        `json:"target"`
	Daily     bool       `json:"daily"`
	From      *time.Time `json:"from,omitempty"`
	Until     *time.Time `json:"until,omitempty"`
	Predicate Predicate  `json:"predicate"`
	Reward    Reward     `json:"reward"`

	// Id is filled from the store key.
	Id string `json:"-"`
}

func (d *Def) Validate() error {
	el := errors.NewErrorList()

	if d.Title == "" {
		el.Add(fmt.Errorf("title is required"))
	}
	switch d.Type {
	case TypeDistance, TypeVoiceMinutes, TypeEmote, TypeMiniGameAction:
	default:
		el.Add(fmt.Errorf("invalid type: %q", d.Type))
	}
	if d.Target <= 0 {
		el.Add(fmt.Errorf("target must be positive"))
	}
	if d.From != nil && d.Until != nil && !d.Until.After(*d.From) {
		el.Add(fmt.Errorf("until must be after from"))
	}
	if (d.Reward.UnlockId == "") != (d.Reward.UnlockCategory == "") {
		el.Add(fmt.Errorf("reward unlock_id and unlock_category must be set together"))
	}

	return el.Err()
}

// ActiveOn reports whether the template is scheduled for the given day.
func (d *Def) ActiveOn(day time.Time) bool {
	if d.From != nil && day.Before(*d.From) {
		return false
	}
	if d.Until != nil && !day.Before(*d.Until) {
		return false
	}
	return true
}

// CycleStamp names the cycle a quest is in on the given day.
func (d *Def) CycleStamp(now time.Time) string {
	if d.Daily {
		return now.UTC().Format(time.DateOnly)
	}
	return PermanentStamp
}

// State is one account's progress on one quest.
type State struct {
	QuestId    string `json:"quest_id"`
	Value      int    `json:"value"`
	Target     int    `json:"target"`
	Status     Status `json:"status"`
	CycleStamp string `json:"cycle_stamp"`
}

// Context describes the event behind a progress delta.
type Context struct {
	SubType string
	Combo   int
	Pos     *geom.Vec
}

// Profile is the ledger view of an account.
type Profile struct {
	AccountId   string
	DisplayName string
	Balance     int
	TotalXP     int
	Unlocks     map[string]string
	Quests      map[string]State

	LastRoomId   string
	LastPosition *geom.Vec
}
