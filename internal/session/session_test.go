package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pixil98/go-plaza/internal/auth"
	"github.com/pixil98/go-plaza/internal/game"
	"github.com/pixil98/go-plaza/internal/messaging"
	"github.com/pixil98/go-plaza/internal/minigame"
	"github.com/pixil98/go-plaza/internal/protocol"
	"github.com/pixil98/go-plaza/internal/quests"
	"github.com/pixil98/go-plaza/internal/zones"
	"github.com/pixil98/go-testutil"
)

type memBus struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]func([]byte)

	// onSubscribe runs after a subscription is added, outside the lock.
	onSubscribe func(subject string, handler func([]byte))
}

func newMemBus() *memBus {
	return &memBus{subs: map[string]map[int]func([]byte){}}
}

func (b *memBus) Subscribe(subject string, handler func([]byte)) (func(), error) {
	b.mu.Lock()
	b.next++
	id := b.next
	if b.subs[subject] == nil {
		b.subs[subject] = map[int]func([]byte){}
	}
	b.subs[subject][id] = handler
	hook := b.onSubscribe
	b.mu.Unlock()

	if hook != nil {
		hook(subject, handler)
	}
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[subject], id)
	}, nil
}

func (b *memBus) Publish(subject string, data []byte) error {
	b.mu.Lock()
	var handlers []func([]byte)
	for _, h := range b.subs[subject] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()
	for _, h := range handlers {
		h(data)
	}
	return nil
}

func (b *memBus) subscribers(subject string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[subject])
}

type fakeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.out <- data
	return nil
}

func (c *fakeConn) hangUp() {
	c.once.Do(func() { close(c.closed) })
}

func (c *fakeConn) sendRaw(data string) {
	c.in <- []byte(data)
}

func (c *fakeConn) send(t *testing.T, msgType string, payload any) {
	t.Helper()
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		t.Fatalf("encoding %s: %v", msgType, err)
	}
	c.in <- data
}

// expect returns the next frame of msgType, skipping anything else.
func (c *fakeConn) expect(t *testing.T, msgType string) protocol.Envelope {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case data := <-c.out:
			env, err := protocol.Decode(data)
			if err != nil {
				t.Fatalf("decoding frame: %v", err)
			}
			if env.Type == msgType {
				return env
			}
		case <-timeout:
			t.Fatalf("no %s frame", msgType)
		}
	}
}

func payload[T any](t *testing.T, env protocol.Envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		t.Fatalf("decoding %s payload: %v", env.Type, err)
	}
	return v
}

type fakeProfiles struct {
	err error
}

func (f *fakeProfiles) Snapshot(accountId string) (quests.Snapshot, error) {
	if f.err != nil {
		return quests.Snapshot{}, f.err
	}
	return quests.Snapshot{
		Profile:     protocol.ProfileView{AccountId: accountId, DisplayName: "Stored", Balance: 42, Unlocks: map[string]string{}},
		Progression: protocol.Progression{Level: 1},
		Quests:      []protocol.QuestView{{QuestId: "walk", Target: 10, Status: "active"}},
	}, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	world *game.World
	bus   *memBus
	clock *clock
	m     *Manager
}

func newFixture(t *testing.T, mutate func(*game.Config), opts ...ManagerOpt) *fixture {
	t.Helper()

	cfg := game.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	ix, err := zones.NewIndex(cfg.World, zones.DefaultDefinitions())
	if err != nil {
		t.Fatalf("building zones: %v", err)
	}

	f := &fixture{
		bus:   newMemBus(),
		clock: &clock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)},
	}
	f.world, err = game.NewWorld(cfg, ix, minigame.DefaultDefinitions(), messaging.NewNatsPublisher(f.bus), game.WithClock(f.clock.Now))
	if err != nil {
		t.Fatalf("building world: %v", err)
	}
	f.m = NewManager(f.world, f.bus, opts...)
	return f
}

// start runs a session in the background and returns its result channel.
func (f *fixture) start(conn *fakeConn) <-chan error {
	res := make(chan error, 1)
	go func() { res <- f.m.RunSession(context.Background(), conn) }()
	return res
}

func wait(t *testing.T, res <-chan error) error {
	t.Helper()
	select {
	case err := <-res:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not end")
		return nil
	}
}

func TestSession_GuestJoinAndLeave(t *testing.T) {
	f := newFixture(t, nil)
	conn := newFakeConn()
	res := f.start(conn)

	conn.send(t, protocol.TypeJoin, protocol.Join{RoomId: "Studio-1", DisplayName: "Ada"})
	welcome := payload[protocol.Welcome](t, conn.expect(t, protocol.TypeWelcome))

	testutil.AssertEqual(t, "room", welcome.RoomId, "studio-1")
	testutil.AssertEqual(t, "players", len(welcome.Players), 1)
	testutil.AssertEqual(t, "name", welcome.Players[0].Name, "Ada")
	testutil.AssertEqual(t, "guest profile", welcome.Profile == nil, true)

	players, rooms := f.world.Stats()
	testutil.AssertEqual(t, "players", players, 1)
	testutil.AssertEqual(t, "rooms", rooms, 1)

	conn.hangUp()
	if err := wait(t, res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	players, rooms = f.world.Stats()
	testutil.AssertEqual(t, "players after", players, 0)
	testutil.AssertEqual(t, "rooms after", rooms, 0)
	testutil.AssertEqual(t, "room subscribers", f.bus.subscribers("room-studio-1"), 0)
}

func TestSession_Auth(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	signer, err := auth.NewHMAC("0123456789abcdef0123", auth.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("building signer: %v", err)
	}
	good, err := signer.Issue("acct-1", time.Hour)
	if err != nil {
		t.Fatalf("issuing: %v", err)
	}

	tests := map[string]struct {
		opts       []ManagerOpt
		token      string
		expError   string
		expAccount string
	}{
		"valid token": {
			opts:       []ManagerOpt{WithVerifier(signer), WithProfiles(&fakeProfiles{})},
			token:      good,
			expAccount: "acct-1",
		},
		"bad token falls back to guest": {
			opts:  []ManagerOpt{WithVerifier(signer), WithGuestFallback(true)},
			token: "acct-1.99.beef",
		},
		"bad token without fallback": {
			opts:     []ManagerOpt{WithVerifier(signer), WithGuestFallback(false)},
			token:    "acct-1.99.beef",
			expError: protocol.ErrCodeAuthRequired,
		},
		"missing token when required": {
			opts:     []ManagerOpt{WithVerifier(signer), WithRequireAuth(true), WithGuestFallback(false)},
			expError: protocol.ErrCodeAuthRequired,
		},
		"missing token allowed": {
			opts: []ManagerOpt{WithVerifier(signer), WithGuestFallback(false)},
		},
		"profile failure still joins": {
			opts:  []ManagerOpt{WithVerifier(signer), WithProfiles(&fakeProfiles{err: fmt.Errorf("disk gone")})},
			token: good,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, nil, tt.opts...)
			conn := newFakeConn()
			res := f.start(conn)
			defer func() {
				conn.hangUp()
				wait(t, res)
			}()

			conn.send(t, protocol.TypeJoin, protocol.Join{AuthToken: tt.token, RoomId: "lobby"})

			if tt.expError != "" {
				jerr := payload[protocol.JoinError](t, conn.expect(t, protocol.TypeJoinError))
				testutil.AssertEqual(t, "code", jerr.Code, tt.expError)
				players, _ := f.world.Stats()
				testutil.AssertEqual(t, "players", players, 0)
				return
			}

			welcome := payload[protocol.Welcome](t, conn.expect(t, protocol.TypeWelcome))
			if tt.expAccount == "" {
				testutil.AssertEqual(t, "profile", welcome.Profile == nil, true)
				return
			}
			testutil.AssertEqual(t, "account", welcome.Profile.AccountId, tt.expAccount)
			testutil.AssertEqual(t, "balance", welcome.Profile.Balance, 42)
			testutil.AssertEqual(t, "quests", len(welcome.Quests), 1)
			testutil.AssertEqual(t, "stored name", welcome.Players[0].Name, "Stored")
		})
	}
}

func TestSession_RoomFull(t *testing.T) {
	f := newFixture(t, func(c *game.Config) { c.MaxPlayers = 1 })

	if _, err := f.world.Join(context.Background(), game.JoinRequest{PlayerId: "first", RoomId: "lobby"}); err != nil {
		t.Fatalf("seeding room: %v", err)
	}

	conn := newFakeConn()
	res := f.start(conn)
	defer func() {
		conn.hangUp()
		wait(t, res)
	}()

	conn.send(t, protocol.TypeJoin, protocol.Join{RoomId: "lobby"})
	jerr := payload[protocol.JoinError](t, conn.expect(t, protocol.TypeJoinError))
	testutil.AssertEqual(t, "code", jerr.Code, protocol.ErrCodeRoomFull)
	testutil.AssertEqual(t, "max", jerr.MaxPlayers, 1)
	testutil.AssertEqual(t, "room subscribers", f.bus.subscribers("room-lobby"), 0)

	conn.send(t, protocol.TypeJoin, protocol.Join{RoomId: "elsewhere"})
	welcome := payload[protocol.Welcome](t, conn.expect(t, protocol.TypeWelcome))
	testutil.AssertEqual(t, "retry room", welcome.RoomId, "elsewhere")
}

func TestSession_RoomFullDropsQueuedRoomFrames(t *testing.T) {
	f := newFixture(t, func(c *game.Config) { c.MaxPlayers = 1 })

	if _, err := f.world.Join(context.Background(), game.JoinRequest{PlayerId: "first", RoomId: "lobby"}); err != nil {
		t.Fatalf("seeding room: %v", err)
	}

	stale, err := protocol.Encode(protocol.TypePlayerLeft, protocol.PlayerLeft{Id: "lobby-player"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.bus.onSubscribe = func(subject string, handler func([]byte)) {
		if subject == "room-lobby" {
			handler(stale)
		}
	}

	conn := newFakeConn()
	res := f.start(conn)
	defer func() {
		conn.hangUp()
		wait(t, res)
	}()

	conn.send(t, protocol.TypeJoin, protocol.Join{RoomId: "lobby"})
	conn.expect(t, protocol.TypeJoinError)

	conn.send(t, protocol.TypeJoin, protocol.Join{RoomId: "elsewhere"})
	conn.expect(t, protocol.TypeWelcome)

	marker, err := protocol.Encode(protocol.TypePlayerLeft, protocol.PlayerLeft{Id: "elsewhere-player"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.bus.Publish("room-elsewhere", marker); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	left := payload[protocol.PlayerLeft](t, conn.expect(t, protocol.TypePlayerLeft))
	testutil.AssertEqual(t, "first room frame", left.Id, "elsewhere-player")
}

func TestSession_PlayLoop(t *testing.T) {
	f := newFixture(t, nil)
	conn := newFakeConn()
	res := f.start(conn)
	defer func() {
		conn.hangUp()
		wait(t, res)
	}()

	conn.sendRaw(`{"type":"intent","payload":{"ix":1,"iy":0}}`)
	conn.send(t, protocol.TypeJoin, protocol.Join{RoomId: "lobby"})
	welcome := payload[protocol.Welcome](t, conn.expect(t, protocol.TypeWelcome))
	startX := welcome.Players[0].X

	conn.sendRaw(`not json`)
	conn.send(t, protocol.TypeJoin, protocol.Join{RoomId: "lobby"})
	jerr := payload[protocol.JoinError](t, conn.expect(t, protocol.TypeJoinError))
	testutil.AssertEqual(t, "second join", jerr.Code, protocol.ErrCodeAlreadyJoined)

	conn.send(t, protocol.TypeIntent, protocol.Intent{Ix: 1})
	conn.send(t, protocol.TypeAction, protocol.Action{Type: "wave"})
	emote := payload[protocol.Emote](t, conn.expect(t, protocol.TypeEmote))
	testutil.AssertEqual(t, "emote from self", emote.Id, welcome.SelfId)

	if err := f.world.Tick(context.Background()); err != nil {
		t.Fatalf("ticking: %v", err)
	}
	state := payload[protocol.State](t, conn.expect(t, protocol.TypeState))
	testutil.AssertEqual(t, "players in state", len(state.Players), 1)
	if state.Players[0].X <= startX {
		t.Errorf("expected player to move right of %v, got %v", startX, state.Players[0].X)
	}
}

func TestSession_IdleKick(t *testing.T) {
	f := newFixture(t, func(c *game.Config) { c.IdleTimeout = time.Minute })
	conn := newFakeConn()
	res := f.start(conn)

	conn.send(t, protocol.TypeJoin, protocol.Join{RoomId: "lobby"})
	conn.expect(t, protocol.TypeWelcome)

	f.clock.Advance(2 * time.Minute)
	if err := f.world.Tick(context.Background()); err != nil {
		t.Fatalf("ticking: %v", err)
	}

	kicked := payload[protocol.Kicked](t, conn.expect(t, protocol.TypeKicked))
	testutil.AssertEqual(t, "reason", kicked.Reason, game.KickReasonIdle)

	if err := wait(t, res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	players, _ := f.world.Stats()
	testutil.AssertEqual(t, "players", players, 0)
}

func TestManager_Identify(t *testing.T) {
	tests := map[string]struct {
		opts       []ManagerOpt
		token      string
		expAllowed bool
	}{
		"guest by default":        {expAllowed: true},
		"required without token":  {opts: []ManagerOpt{WithRequireAuth(true), WithGuestFallback(false)}, expAllowed: false},
		"required with fallback":  {opts: []ManagerOpt{WithRequireAuth(true)}, expAllowed: true},
		"token without verifier":  {token: "abc", opts: []ManagerOpt{WithGuestFallback(false)}, expAllowed: true},
		"token required no check": {token: "abc", opts: []ManagerOpt{WithRequireAuth(true), WithGuestFallback(false)}, expAllowed: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			m := NewManager(nil, nil, tt.opts...)
			accountId, ok := m.identify(tt.token)
			testutil.AssertEqual(t, "allowed", ok, tt.expAllowed)
			testutil.AssertEqual(t, "account", accountId, "")
		})
	}
}
