package game

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/pixil98/go-plaza/internal/minigame"
	"github.com/pixil98/go-plaza/internal/protocol"
	"github.com/pixil98/go-testutil"
)

func TestTick_PositionsStayInBounds(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(1, 2))

	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		h.join(t, id, "", "lobby")
	}

	cfg := h.world.cfg
	for i := 0; i < 600; i++ {
		for _, id := range ids {
			if i%20 == 0 {
				if err := h.world.SetIntent(ctx, id, rng.Float64()*4-2, rng.Float64()*4-2); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}
		}
		h.tick(t)
		for _, id := range ids {
			p := h.position(id)
			if p.X < cfg.Padding || p.X > cfg.World.Width-cfg.Padding || p.Y < cfg.Padding || p.Y > cfg.World.Height-cfg.Padding {
				t.Fatalf("tick %d: %s out of bounds at %+v", i, id, p)
			}
		}
	}
}

func TestTick_Animation(t *testing.T) {
	tests := map[string]struct {
		ix      float64
		expAnim string
	}{
		"still": {ix: 0, expAnim: AnimIdle},
		"creep": {ix: 0.03, expAnim: AnimIdle},
		"walk":  {ix: 0.5, expAnim: AnimWalk},
		"run":   {ix: 0.8, expAnim: AnimRun},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.join(t, "p1", "", "lobby")
			if err := h.world.SetIntent(context.Background(), "p1", tt.ix, 0); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			h.tick(t)
			testutil.AssertEqual(t, "anim", h.player("p1").Anim, tt.expAnim)
		})
	}
}

func TestTick_DistanceProgress(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.join(t, "acct", "acct-1", "lobby")
	h.join(t, "guest", "", "lobby")

	for _, id := range []string{"acct", "guest"} {
		if err := h.world.SetIntent(ctx, id, 1, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// 16 units per tick, so 13 ticks cover 208 units.
	for i := 0; i < 13; i++ {
		h.tick(t)
	}

	testutil.AssertEqual(t, "distance", h.ledger.total("distance"), 2)
	for _, c := range h.ledger.progress {
		testutil.AssertEqual(t, "account", c.accountId, "acct-1")
	}
}

func TestTick_ZonePresenceOnlyOnChange(t *testing.T) {
	h := newHarness(t, nil)
	h.join(t, "p1", "", "lobby")

	h.tick(t)
	first := len(h.pub.ofType(protocol.TypeZonePresence))
	testutil.AssertEqual(t, "initial lounge presence", first, 1)

	h.tick(t)
	h.tick(t)
	testutil.AssertEqual(t, "no repeats", len(h.pub.ofType(protocol.TypeZonePresence)), first)

	h.walkTo(t, "p1", stageSpot)
	var lounge []protocol.ZonePresence
	for _, m := range h.pub.ofType(protocol.TypeZonePresence) {
		if zp := payload[protocol.ZonePresence](t, m); zp.ZoneId == "lounge" {
			lounge = append(lounge, zp)
		}
	}
	testutil.AssertEqual(t, "lounge emptied", lounge[len(lounge)-1].Players, []string{})
}

func TestTick_MiniGameStateOnlyOnChange(t *testing.T) {
	h := newHarness(t, nil)
	h.join(t, "p1", "", "lobby")

	h.tick(t)
	initial := len(h.pub.ofType(protocol.TypeMiniGameState))
	testutil.AssertEqual(t, "one per game", initial, 3)

	h.tick(t)
	testutil.AssertEqual(t, "unchanged", len(h.pub.ofType(protocol.TypeMiniGameState)), initial)

	h.clock.Advance(4 * time.Second)
	h.tick(t)
	testutil.AssertEqual(t, "echo rotated", len(h.pub.ofType(protocol.TypeMiniGameState)), initial+1)

	testutil.AssertEqual(t, "state every tick", len(h.pub.ofType(protocol.TypeState)), 3)
}

func TestTick_IdleKick(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.IdleTimeout = time.Minute })
	j := h.join(t, "p1", "", "lobby")

	h.clock.Advance(30 * time.Second)
	h.tick(t)
	select {
	case <-j.Done:
		t.Fatal("kicked too early")
	default:
	}

	h.clock.Advance(time.Minute)
	h.tick(t)
	select {
	case <-j.Done:
	default:
		t.Fatal("expected idle kick")
	}

	kicked := h.pub.ofType(protocol.TypeKicked)
	testutil.AssertEqual(t, "kicked once", len(kicked), 1)
	testutil.AssertEqual(t, "channel", kicked[0].channel, "player-p1")
	testutil.AssertEqual(t, "reason", payload[protocol.Kicked](t, kicked[0]).Reason, KickReasonIdle)

	h.tick(t)
	testutil.AssertEqual(t, "not repeated", len(h.pub.ofType(protocol.TypeKicked)), 1)
}

func TestTick_VoiceActivityPreventsIdleKick(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.IdleTimeout = time.Minute })
	j := h.join(t, "p1", "", "lobby")

	speaking := true
	for i := 0; i < 3; i++ {
		h.clock.Advance(40 * time.Second)
		if err := h.world.SetVoiceState(context.Background(), "p1", protocol.VoiceState{Speaking: &speaking}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		h.tick(t)
	}

	select {
	case <-j.Done:
		t.Fatal("kicked while talking")
	default:
	}
	testutil.AssertEqual(t, "kicks", len(h.pub.ofType(protocol.TypeKicked)), 0)
}

type panickingEngine struct {
	minigame.Engine
}

func (panickingEngine) Step(time.Time, []minigame.Occupant) []minigame.Reward {
	panic("engine fault")
}

func TestTick_RoomFaultIsolated(t *testing.T) {
	h := newHarness(t, nil)
	h.join(t, "p1", "", "aaa")
	h.join(t, "p2", "", "bbb")

	h.world.mu.Lock()
	room := h.world.rooms["aaa"]
	room.engines[0] = panickingEngine{Engine: room.engines[0]}
	h.world.mu.Unlock()

	h.tick(t)

	var rooms []string
	for _, m := range h.pub.ofType(protocol.TypeState) {
		rooms = append(rooms, m.channel)
	}
	testutil.AssertEqual(t, "healthy room stepped", rooms, []string{"room-bbb"})
}
