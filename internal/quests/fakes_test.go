package quests

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pixil98/go-plaza/internal/protocol"
)

type memStore struct {
	mu       sync.Mutex
	profiles map[string]*Profile
	grants   map[string]map[string]bool
	defs     []Def
	ledger   []string
	failXP   bool
}

func newMemStore(defs ...Def) *memStore {
	return &memStore{
		profiles: map[string]*Profile{},
		grants:   map[string]map[string]bool{},
		defs:     defs,
	}
}

func (s *memStore) profile(id string) *Profile {
	p, ok := s.profiles[id]
	if !ok {
		p = &Profile{AccountId: id, Unlocks: map[string]string{}, Quests: map[string]State{}}
		s.profiles[id] = p
	}
	return p
}

func (s *memStore) GetOrCreateProfile(id string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *s.profile(id)
	p.Quests = map[string]State{}
	for k, v := range s.profile(id).Quests {
		p.Quests[k] = v
	}
	return p, nil
}

func (s *memStore) ListActiveQuestDefs(day time.Time) ([]Def, error) {
	var out []Def
	for _, d := range s.defs {
		if d.ActiveOn(day) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *memStore) SaveQuestStates(id string, states []State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range states {
		s.profile(id).Quests[st.QuestId] = st
	}
	return nil
}

func (s *memStore) ApplyGrant(id, cause string, reward Reward) (GrantResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failXP && reward.XP > 0 {
		return GrantResult{}, fmt.Errorf("xp backend down")
	}

	p := s.profile(id)
	if s.grants[id] == nil {
		s.grants[id] = map[string]bool{}
	}
	if s.grants[id][cause] {
		return GrantResult{Balance: p.Balance, TotalXP: p.TotalXP}, nil
	}
	s.grants[id][cause] = true

	res := GrantResult{Applied: true}
	if reward.Currency != 0 {
		p.Balance += reward.Currency
		s.ledger = append(s.ledger, fmt.Sprintf("%s:%d:%s", id, reward.Currency, cause))
	}
	p.TotalXP += reward.XP
	if reward.UnlockId != "" {
		if _, ok := p.Unlocks[reward.UnlockId]; !ok {
			p.Unlocks[reward.UnlockId] = reward.UnlockCategory
			res.Unlocked = true
		}
	}
	res.Balance = p.Balance
	res.TotalXP = p.TotalXP
	return res, nil
}

type sent struct {
	channel string
	env     protocol.Envelope
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sent
}

func (n *recordingNotifier) record(channel string, data []byte) error {
	env, err := protocol.Decode(data)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{channel: channel, env: env})
	return nil
}

func (n *recordingNotifier) PublishToAccount(id string, data []byte) error {
	return n.record("account-"+id, data)
}

func (n *recordingNotifier) PublishToPlayer(id string, data []byte) error {
	return n.record("player-"+id, data)
}

func (n *recordingNotifier) ofType(msgType string) []sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sent
	for _, s := range n.sent {
		if s.env.Type == msgType {
			out = append(out, s)
		}
	}
	return out
}

func decodePayload[T any](t *testing.T, s sent) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(s.env.Payload, &v); err != nil {
		t.Fatalf("decoding %s payload: %v", s.env.Type, err)
	}
	return v
}
