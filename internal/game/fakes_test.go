package game

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pixil98/go-plaza/internal/geom"
	"github.com/pixil98/go-plaza/internal/minigame"
	"github.com/pixil98/go-plaza/internal/protocol"
	"github.com/pixil98/go-plaza/internal/quests"
	"github.com/pixil98/go-plaza/internal/zones"
)

type published struct {
	channel string
	env     protocol.Envelope
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *recordingPublisher) record(channel string, data []byte) error {
	env, err := protocol.Decode(data)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{channel: channel, env: env})
	return nil
}

func (p *recordingPublisher) PublishToRoom(id string, data []byte) error {
	return p.record("room-"+id, data)
}

func (p *recordingPublisher) PublishToPlayer(id string, data []byte) error {
	return p.record("player-"+id, data)
}

func (p *recordingPublisher) PublishToAccount(id string, data []byte) error {
	return p.record("account-"+id, data)
}

func (p *recordingPublisher) ofType(msgType string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, m := range p.msgs {
		if m.env.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func (p *recordingPublisher) last(msgType string) (published, bool) {
	msgs := p.ofType(msgType)
	if len(msgs) == 0 {
		return published{}, false
	}
	return msgs[len(msgs)-1], true
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = nil
}

func payload[T any](t *testing.T, m published) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(m.env.Payload, &v); err != nil {
		t.Fatalf("decoding %s: %v", m.env.Type, err)
	}
	return v
}

type progressCall struct {
	accountId string
	questType string
	delta     int
	qc        quests.Context
}

type fakeLedger struct {
	mu       sync.Mutex
	progress []progressCall
	rewards  []minigame.Reward
}

func (l *fakeLedger) ApplyProgress(_ context.Context, accountId, questType string, delta int, qc quests.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.progress = append(l.progress, progressCall{accountId, questType, delta, qc})
	return nil
}

func (l *fakeLedger) GrantMiniGameReward(_ context.Context, r minigame.Reward) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rewards = append(l.rewards, r)
	return nil
}

func (l *fakeLedger) total(questType string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.progress {
		if c.questType == questType {
			n += c.delta
		}
	}
	return n
}

type fakeRecords struct {
	mu        sync.Mutex
	positions map[string]geom.Vec
	reports   []*Report
}

func (r *fakeRecords) SaveLastPosition(accountId, roomId string, pos geom.Vec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.positions == nil {
		r.positions = map[string]geom.Vec{}
	}
	r.positions[accountId+"@"+roomId] = pos
	return nil
}

func (r *fakeRecords) SaveReport(rep *Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
	return nil
}

type fullDeferrer struct{}

func (fullDeferrer) Defer(string, func(context.Context) error) bool { return false }

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type harness struct {
	world   *World
	pub     *recordingPublisher
	ledger  *fakeLedger
	records *fakeRecords
	clock   *clock
}

func newHarness(t *testing.T, mutate func(*Config), opts ...WorldOpt) *harness {
	t.Helper()

	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	ix, err := zones.NewIndex(cfg.World, zones.DefaultDefinitions())
	if err != nil {
		t.Fatalf("building zones: %v", err)
	}

	h := &harness{
		pub:     &recordingPublisher{},
		ledger:  &fakeLedger{},
		records: &fakeRecords{},
		clock:   &clock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)},
	}

	all := append([]WorldOpt{
		WithLedger(h.ledger),
		WithRecordStore(h.records),
		WithClock(h.clock.Now),
		WithSeed(7),
	}, opts...)

	h.world, err = NewWorld(cfg, ix, minigame.DefaultDefinitions(), h.pub, all...)
	if err != nil {
		t.Fatalf("building world: %v", err)
	}
	return h
}

func (h *harness) join(t *testing.T, id, accountId, roomId string) Joined {
	t.Helper()
	j, err := h.world.Join(context.Background(), JoinRequest{
		PlayerId:    id,
		AccountId:   accountId,
		RoomId:      roomId,
		DisplayName: id,
	})
	if err != nil {
		t.Fatalf("joining %s: %v", id, err)
	}
	return j
}

// tick advances the clock by one interval and steps the world.
func (h *harness) tick(t *testing.T) {
	t.Helper()
	h.clock.Advance(h.world.cfg.TickInterval)
	if err := h.world.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
}

func (h *harness) player(id string) *Player {
	h.world.mu.Lock()
	defer h.world.mu.Unlock()
	return h.world.players[id]
}

func (h *harness) position(id string) geom.Vec {
	h.world.mu.Lock()
	defer h.world.mu.Unlock()
	return h.world.players[id].Pos
}

// walkTo steers a player toward target one tick at a time.
func (h *harness) walkTo(t *testing.T, id string, target geom.Vec) {
	t.Helper()
	ctx := context.Background()
	step := h.world.cfg.MaxSpeed * h.world.cfg.TickInterval.Seconds()

	for i := 0; i < 1000; i++ {
		pos := h.position(id)
		d := target.Add(pos.Scale(-1))
		if d.Len() <= step {
			if err := h.world.SetIntent(ctx, id, d.X/step, d.Y/step); err != nil {
				t.Fatalf("setting intent: %v", err)
			}
			h.tick(t)
			if err := h.world.SetIntent(ctx, id, 0, 0); err != nil {
				t.Fatalf("setting intent: %v", err)
			}
			return
		}
		if err := h.world.SetIntent(ctx, id, d.X, d.Y); err != nil {
			t.Fatalf("setting intent: %v", err)
		}
		h.tick(t)
	}
	t.Fatalf("%s never reached %+v", id, target)
}

func (h *harness) engine(roomId, gameId string) minigame.Engine {
	h.world.mu.Lock()
	defer h.world.mu.Unlock()
	room := h.world.rooms[roomId]
	if room == nil {
		return nil
	}
	for _, e := range room.engines {
		if e.Definition().Id == gameId {
			return e
		}
	}
	return nil
}
