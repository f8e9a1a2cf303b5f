package game

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/pixil98/go-log"
	"github.com/pixil98/go-plaza/internal/geom"
	"github.com/pixil98/go-plaza/internal/protocol"
	"github.com/pixil98/go-plaza/internal/quests"
)

const (
	KickReasonIdle = "idle"

	secondsPerMinute = 60
)

// Tick advances the whole world by one fixed step. A fault inside one room
// is logged and does not stop the others.
func (w *World) Tick(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	dt := w.cfg.TickInterval.Seconds()

	w.pruneResume(now)
	w.kickIdle(ctx, now)

	ids := make([]string, 0, len(w.rooms))
	for id := range w.rooms {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		if err := w.stepRoomGuarded(ctx, w.rooms[id], now, dt); err != nil {
			log.GetLogger(ctx).WithError(err).WithField("room", id).Error("stepping room")
		}
	}
	return nil
}

func (w *World) stepRoomGuarded(ctx context.Context, room *Room, now time.Time, dt float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	w.stepRoom(ctx, room, now, dt)
	return nil
}

func (w *World) stepRoom(ctx context.Context, room *Room, now time.Time, dt float64) {
	players := room.sortedPlayers()

	for _, p := range players {
		w.integrate(ctx, p, dt)
	}

	for _, z := range w.zones.Definitions() {
		var ids []string
		for _, p := range players {
			if p.ZoneId == z.Id {
				ids = append(ids, p.Id)
			}
		}
		if room.presenceChanged(z.Id, ids) {
			if ids == nil {
				ids = []string{}
			}
			w.publishRoom(ctx, room.Id, protocol.TypeZonePresence, protocol.ZonePresence{ZoneId: z.Id, Players: ids})
		}
	}

	for _, e := range room.engines {
		def := e.Definition()
		w.grantRewards(ctx, e.Step(now, room.occupants(def.ZoneId)))

		frame, err := protocol.Encode(protocol.TypeMiniGameState, e.State())
		if err != nil {
			log.GetLogger(ctx).WithError(err).WithField("game", def.Id).Error("encoding minigame state")
			continue
		}
		if room.stateChanged(def.Id, frame) {
			if err := w.pub.PublishToRoom(room.Id, frame); err != nil {
				log.GetLogger(ctx).WithError(err).WithField("room", room.Id).Warn("publishing minigame state")
			}
		}
	}

	w.publishRoom(ctx, room.Id, protocol.TypeState, protocol.State{Players: room.views()})
}

// integrate moves p one step along its intent and updates the derived
// animation, zone and quest accumulators.
func (w *World) integrate(ctx context.Context, p *Player, dt float64) {
	p.Vel = p.Intent.Scale(w.cfg.MaxSpeed)
	prev := p.Pos
	p.Pos = geom.ClampToBounds(p.Pos.Add(p.Vel.Scale(dt)), w.cfg.World, w.cfg.Padding)
	p.Anim = animFor(p.Vel.Len(), w.cfg.MaxSpeed)
	p.ZoneId, _ = w.zones.Resolve(p.Pos)

	if p.AccountId == "" {
		return
	}

	if w.cfg.DistanceUnit > 0 {
		p.distAcc += p.Pos.Dist(prev) / w.cfg.DistanceUnit
		if whole := math.Floor(p.distAcc); whole >= 1 {
			p.distAcc -= whole
			w.progress(ctx, p.AccountId, quests.TypeDistance, int(whole), quests.Context{})
		}
	}

	if p.Voice.Connected {
		p.voiceAcc += dt
		if whole := math.Floor(p.voiceAcc / secondsPerMinute); whole >= 1 {
			p.voiceAcc -= whole * secondsPerMinute
			w.progress(ctx, p.AccountId, quests.TypeVoiceMinutes, int(whole), quests.Context{})
		}
	}
}

// kickIdle tells players who sent no intent or action within the idle
// timeout that they are being removed and signals their sessions to close.
func (w *World) kickIdle(ctx context.Context, now time.Time) {
	if w.cfg.IdleTimeout <= 0 {
		return
	}
	cutoff := now.Add(-w.cfg.IdleTimeout)

	for _, p := range w.players {
		if p.kicked || !p.lastActive.Before(cutoff) {
			continue
		}
		p.kicked = true
		w.publishPlayer(ctx, p.Id, protocol.TypeKicked, protocol.Kicked{Reason: KickReasonIdle})
		p.Kick()
		log.GetLogger(ctx).WithField("player", p.Id).Info("idle player kicked")
	}
}

func (w *World) pruneResume(now time.Time) {
	cutoff := now.Add(-w.cfg.ResumeTTL)
	for id, e := range w.resume {
		if e.at.Before(cutoff) {
			delete(w.resume, id)
		}
	}
}
