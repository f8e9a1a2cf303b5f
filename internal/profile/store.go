// Package profile is the file-backed ledger: account profiles, quest
// templates and moderation reports.
package profile

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pixil98/go-plaza/internal/game"
	"github.com/pixil98/go-plaza/internal/geom"
	"github.com/pixil98/go-plaza/internal/quests"
	"github.com/pixil98/go-plaza/internal/storage"
)

type lastPosition struct {
	RoomId string   `json:"room_id"`
	Pos    geom.Vec `json:"pos"`
}

type StoreOpt func(*Store)

// WithClock overrides the time stamped on ledger entries and grants.
func WithClock(now func() time.Time) StoreOpt {
	return func(s *Store) {
		s.now = now
	}
}

// Store implements quests.Store and game.RecordStore on top of
// storage.FileStore. Every read-modify-write runs under one mutex so
// concurrent grants for the same account cannot interleave.
type Store struct {
	mu sync.Mutex

	profiles storage.Storer[*Record]
	quests   storage.Storer[*quests.Def]
	reports  storage.Storer[*game.Report]
	now      func() time.Time
}

func NewStore(profiles storage.Storer[*Record], defs storage.Storer[*quests.Def], reports storage.Storer[*game.Report], opts ...StoreOpt) *Store {
	s := &Store{
		profiles: profiles,
		quests:   defs,
		reports:  reports,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open builds a Store over three directories, creating them as needed.
func Open(profilesDir, questsDir, reportsDir string, opts ...StoreOpt) (*Store, error) {
	profiles, err := storage.NewFileStore[*Record](profilesDir, storage.WithCreateDir())
	if err != nil {
		return nil, fmt.Errorf("opening profiles: %w", err)
	}
	defs, err := storage.NewFileStore[*quests.Def](questsDir, storage.WithCreateDir())
	if err != nil {
		return nil, fmt.Errorf("opening quests: %w", err)
	}
	reports, err := storage.NewFileStore[*game.Report](reportsDir, storage.WithCreateDir())
	if err != nil {
		return nil, fmt.Errorf("opening reports: %w", err)
	}
	return NewStore(profiles, defs, reports, opts...), nil
}

// load returns a private copy of the account's record, or a fresh one.
func (s *Store) load(accountId string) (*Record, error) {
	if !storage.ValidId(accountId) {
		return nil, fmt.Errorf("invalid account id %q", accountId)
	}
	rec, ok := s.profiles.Get(accountId)
	if !ok {
		return newRecord(), nil
	}
	return rec.clone(), nil
}

// update applies fn to the account's record and saves it when fn succeeds.
func (s *Store) update(accountId string, fn func(*Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(accountId)
	if err != nil {
		return err
	}
	if err := fn(rec); err != nil {
		return err
	}
	if err := s.profiles.Save(accountId, rec); err != nil {
		return fmt.Errorf("saving profile %s: %w", accountId, err)
	}
	return nil
}

func (s *Store) GetOrCreateProfile(accountId string) (quests.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load(accountId)
	if err != nil {
		return quests.Profile{}, err
	}
	if _, exists := s.profiles.Get(accountId); !exists {
		if err := s.profiles.Save(accountId, rec); err != nil {
			return quests.Profile{}, fmt.Errorf("creating profile %s: %w", accountId, err)
		}
	}

	p := quests.Profile{
		AccountId:   accountId,
		DisplayName: rec.DisplayName,
		Balance:     rec.Balance,
		TotalXP:     rec.TotalXP,
		Unlocks:     rec.Unlocks,
		Quests:      rec.Quests,
	}

	var last lastPosition
	found, err := rec.Extensions.Get(extLastPosition, &last)
	if err != nil {
		return quests.Profile{}, err
	}
	if found {
		p.LastRoomId = last.RoomId
		p.LastPosition = &last.Pos
	}
	return p, nil
}

func (s *Store) ListActiveQuestDefs(day time.Time) ([]quests.Def, error) {
	var out []quests.Def
	for id, def := range s.quests.GetAll() {
		if !def.ActiveOn(day) {
			continue
		}
		d := *def
		d.Id = id
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b quests.Def) int {
		return strings.Compare(a.Id, b.Id)
	})
	return out, nil
}

func (s *Store) SaveQuestStates(accountId string, states []quests.State) error {
	return s.update(accountId, func(r *Record) error {
		for _, st := range states {
			r.Quests[st.QuestId] = st
		}
		return nil
	})
}

func (s *Store) AppendCurrencyLedger(accountId string, delta int, cause string) (int, error) {
	var balance int
	err := s.update(accountId, func(r *Record) error {
		r.credit(delta, cause, s.now().UTC())
		balance = r.Balance
		return nil
	})
	return balance, err
}

func (s *Store) GrantUnlockOnce(accountId, unlockId, category, cause string) (bool, error) {
	var granted bool
	err := s.update(accountId, func(r *Record) error {
		granted = r.unlock(unlockId, category)
		return nil
	})
	return granted, err
}

func (s *Store) RememberGrantKey(accountId, cause string) (bool, error) {
	var first bool
	err := s.update(accountId, func(r *Record) error {
		first = r.rememberGrant(cause, s.now().UTC())
		return nil
	})
	return first, err
}

// ApplyGrant remembers cause and pays reward in a single write. Nothing is
// recorded when the write fails, so the grant can be retried with the same
// cause.
func (s *Store) ApplyGrant(accountId, cause string, reward quests.Reward) (quests.GrantResult, error) {
	var res quests.GrantResult
	err := s.update(accountId, func(r *Record) error {
		now := s.now().UTC()
		if r.rememberGrant(cause, now) {
			res.Applied = true
			if reward.Currency != 0 {
				r.credit(reward.Currency, cause, now)
			}
			if reward.XP > 0 {
				r.TotalXP += reward.XP
			}
			if reward.UnlockId != "" {
				res.Unlocked = r.unlock(reward.UnlockId, reward.UnlockCategory)
			}
		}
		res.Balance = r.Balance
		res.TotalXP = r.TotalXP
		return nil
	})
	if err != nil {
		return quests.GrantResult{}, err
	}
	return res, nil
}

func (s *Store) AddExperience(accountId string, xp int) (int, error) {
	var total int
	err := s.update(accountId, func(r *Record) error {
		r.TotalXP += xp
		total = r.TotalXP
		return nil
	})
	return total, err
}

func (s *Store) SaveLastPosition(accountId, roomId string, pos geom.Vec) error {
	return s.update(accountId, func(r *Record) error {
		return r.Extensions.Set(extLastPosition, lastPosition{RoomId: roomId, Pos: pos})
	})
}

func (s *Store) SaveReport(r *game.Report) error {
	if err := s.reports.Save(r.Id, r); err != nil {
		return fmt.Errorf("saving report %s: %w", r.Id, err)
	}
	return nil
}
