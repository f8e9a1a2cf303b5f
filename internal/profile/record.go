package profile

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-plaza/internal/quests"
	"github.com/pixil98/go-plaza/internal/storage"
)

// MaxLedgerEntries is how many currency ledger entries a profile keeps.
const MaxLedgerEntries = 200

const extLastPosition = "last_position"

type LedgerEntry struct {
	Delta   int       `json:"delta"`
	Cause   string    `json:"cause"`
	Balance int       `json:"balance"`
	At      time.Time `json:"at"`
}

// Record is the persisted form of an account.
type Record struct {
	DisplayName string                  `json:"display_name"`
	Balance     int                     `json:"balance"`
	TotalXP     int                     `json:"total_xp"`
	Unlocks     map[string]string       `json:"unlocks"`
	Quests      map[string]quests.State `json:"quests"`
	Grants      map[string]time.Time    `json:"grants"`
	Ledger      []LedgerEntry           `json:"ledger"`
	Extensions  storage.ExtensionState  `json:"extensions,omitempty"`
}

func (r *Record) Validate() error {
	el := errors.NewErrorList()

	if r.TotalXP < 0 {
		el.Add(fmt.Errorf("total_xp must not be negative"))
	}
	for id, category := range r.Unlocks {
		if category == "" {
			el.Add(fmt.Errorf("unlock %s: category is required", id))
		}
	}
	if len(r.Ledger) > MaxLedgerEntries {
		el.Add(fmt.Errorf("ledger holds %d entries, limit is %d", len(r.Ledger), MaxLedgerEntries))
	}

	return el.Err()
}

func newRecord() *Record {
	return &Record{
		Unlocks: map[string]string{},
		Quests:  map[string]quests.State{},
		Grants:  map[string]time.Time{},
	}
}

// clone returns a deep copy so edits never leak into the store cache
// before they are written.
func (r *Record) clone() *Record {
	c := *r
	c.Unlocks = maps.Clone(r.Unlocks)
	c.Quests = maps.Clone(r.Quests)
	c.Grants = maps.Clone(r.Grants)
	c.Ledger = slices.Clone(r.Ledger)
	c.Extensions = maps.Clone(r.Extensions)
	if c.Unlocks == nil {
		c.Unlocks = map[string]string{}
	}
	if c.Quests == nil {
		c.Quests = map[string]quests.State{}
	}
	if c.Grants == nil {
		c.Grants = map[string]time.Time{}
	}
	return &c
}

func (r *Record) appendLedger(e LedgerEntry) {
	r.Ledger = append(r.Ledger, e)
	if over := len(r.Ledger) - MaxLedgerEntries; over > 0 {
		r.Ledger = slices.Clone(r.Ledger[over:])
	}
}

func (r *Record) credit(delta int, cause string, at time.Time) {
	r.Balance += delta
	r.appendLedger(LedgerEntry{Delta: delta, Cause: cause, Balance: r.Balance, At: at})
}

func (r *Record) unlock(unlockId, category string) bool {
	if _, ok := r.Unlocks[unlockId]; ok {
		return false
	}
	r.Unlocks[unlockId] = category
	return true
}

func (r *Record) rememberGrant(cause string, at time.Time) bool {
	if _, ok := r.Grants[cause]; ok {
		return false
	}
	r.Grants[cause] = at
	return true
}
