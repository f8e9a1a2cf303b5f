package game

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pixil98/go-log"
	"github.com/pixil98/go-plaza/internal/geom"
	"github.com/pixil98/go-plaza/internal/minigame"
	"github.com/pixil98/go-plaza/internal/protocol"
	"github.com/pixil98/go-plaza/internal/quests"
	"github.com/pixil98/go-plaza/internal/zones"
	"github.com/sirupsen/logrus"
)

type WorldOpt func(*World)

func WithDeferrer(d Deferrer) WorldOpt {
	return func(w *World) {
		w.deferrer = d
	}
}

func WithLedger(l Ledger) WorldOpt {
	return func(w *World) {
		w.ledger = l
	}
}

func WithRecordStore(s RecordStore) WorldOpt {
	return func(w *World) {
		w.records = s
	}
}

// WithClock overrides the wall clock used for deadlines and timestamps.
func WithClock(now func() time.Time) WorldOpt {
	return func(w *World) {
		w.now = now
	}
}

// WithSeed makes spawn positions reproducible.
func WithSeed(seed uint64) WorldOpt {
	return func(w *World) {
		w.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

type resumeEntry struct {
	roomId string
	pos    geom.Vec
	at     time.Time
}

// World is the registry of connected players and the table of live rooms.
// Every exported method takes the world lock for its whole run, so handlers
// and ticks never interleave mid-mutation.
type World struct {
	mu sync.Mutex

	cfg   Config
	zones *zones.Index
	games []minigame.Definition

	players map[string]*Player
	rooms   map[string]*Room
	resume  map[string]resumeEntry

	pub      Publisher
	deferrer Deferrer
	ledger   Ledger
	records  RecordStore
	now      func() time.Time
	rng      *rand.Rand
}

func NewWorld(cfg Config, ix *zones.Index, games []minigame.Definition, pub Publisher, opts ...WorldOpt) (*World, error) {
	for _, g := range games {
		if _, ok := ix.Get(g.ZoneId); !ok {
			return nil, fmt.Errorf("minigame %q references unknown zone %q", g.Id, g.ZoneId)
		}
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("minigame %q: %w", g.Id, err)
		}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.ResumeTTL <= 0 {
		cfg.ResumeTTL = DefaultResumeTTL
	}

	w := &World{
		cfg:      cfg,
		zones:    ix,
		games:    slices.Clone(games),
		players:  map[string]*Player{},
		rooms:    map[string]*Room{},
		resume:   map[string]resumeEntry{},
		pub:      pub,
		deferrer: inlineDeferrer{},
		now:      time.Now,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *World) Config() Config {
	return w.cfg
}

// Stats returns the number of connected players and live rooms.
func (w *World) Stats() (players, rooms int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.players), len(w.rooms)
}

// JoinRequest carries everything Join needs. Identity and profile data are
// resolved by the caller beforehand.
type JoinRequest struct {
	PlayerId    string
	AccountId   string
	RoomId      string
	DisplayName string
	Cosmetic    string
	ResumeId    string

	LastRoomId   string
	LastPosition *geom.Vec
}

type Joined struct {
	Welcome protocol.Welcome
	Done    <-chan struct{}
}

// Join adds a player to the requested room, creating the room on first use.
func (w *World) Join(ctx context.Context, req JoinRequest) (Joined, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.players[req.PlayerId]; exists {
		return Joined{}, ErrPlayerExists
	}

	roomId := SanitizeRoomId(req.RoomId)
	room, ok := w.rooms[roomId]
	if ok && w.cfg.MaxPlayers > 0 && len(room.players) >= w.cfg.MaxPlayers {
		return Joined{}, fmt.Errorf("joining %s: %w", roomId, ErrRoomFull)
	}

	now := w.now()
	if !ok {
		engines := make([]minigame.Engine, 0, len(w.games))
		for _, def := range w.games {
			e, err := minigame.New(def, now)
			if err != nil {
				return Joined{}, fmt.Errorf("creating room %s: %w", roomId, err)
			}
			engines = append(engines, e)
		}
		room = newRoom(roomId, engines)
		w.rooms[roomId] = room
	}

	p := &Player{
		Id:         req.PlayerId,
		AccountId:  req.AccountId,
		RoomId:     roomId,
		Name:       SanitizeName(req.DisplayName, req.PlayerId),
		Color:      pickColor(req.PlayerId, w.cfg.Palette),
		Cosmetic:   pickCosmetic(req.Cosmetic, w.cfg.Cosmetics, w.cfg.DefaultCosmetic),
		Pos:        w.spawnPosition(req, roomId),
		Anim:       AnimIdle,
		lastActive: now,
		done:       make(chan struct{}),
	}
	p.ZoneId, _ = w.zones.Resolve(p.Pos)

	room.players[p.Id] = p
	w.players[p.Id] = p

	log.GetLogger(ctx).WithFields(logrus.Fields{
		"player":  p.Id,
		"account": p.AccountId,
		"room":    roomId,
	}).Info("player joined")

	return Joined{
		Welcome: w.welcome(p, room),
		Done:    p.done,
	}, nil
}

func (w *World) spawnPosition(req JoinRequest, roomId string) geom.Vec {
	if req.ResumeId != "" {
		if e, ok := w.resume[req.ResumeId]; ok && e.roomId == roomId {
			delete(w.resume, req.ResumeId)
			return geom.ClampToBounds(e.pos, w.cfg.World, w.cfg.Padding)
		}
	}
	if req.LastPosition != nil && req.LastRoomId == roomId {
		return geom.ClampToBounds(*req.LastPosition, w.cfg.World, w.cfg.Padding)
	}

	angle := w.rng.Float64() * 2 * math.Pi
	dist := w.cfg.SpawnRadius * math.Sqrt(w.rng.Float64())
	offset := geom.Vec{X: math.Cos(angle) * dist, Y: math.Sin(angle) * dist}
	return geom.ClampToBounds(w.cfg.World.Center().Add(offset), w.cfg.World, w.cfg.Padding)
}

func (w *World) welcome(p *Player, room *Room) protocol.Welcome {
	defs := w.zones.Definitions()
	zoneViews := make([]protocol.ZoneView, 0, len(defs))
	for _, z := range defs {
		zoneViews = append(zoneViews, protocol.ZoneView{Id: z.Id, Name: z.Name, MiniGame: z.MiniGame})
	}

	gameViews := make([]protocol.MiniGameView, 0, len(w.games))
	for _, g := range w.games {
		gameViews = append(gameViews, protocol.MiniGameView{Id: g.Id, Name: g.Name, Kind: string(g.Kind), ZoneId: g.ZoneId})
	}

	return protocol.Welcome{
		SelfId:       p.Id,
		RoomId:       room.Id,
		World:        w.cfg.World,
		Players:      room.views(),
		Zones:        zoneViews,
		MiniGames:    gameViews,
		Quests:       []protocol.QuestView{},
		VoiceEnabled: w.cfg.VoiceEnabled,
	}
}

// Leave removes a player. The room is told and, when it empties, discarded
// along with its mini-game runtimes.
func (w *World) Leave(ctx context.Context, playerId string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players[playerId]
	if !ok {
		return ErrPlayerNotFound
	}
	w.removePlayer(ctx, p)
	return nil
}

func (w *World) removePlayer(ctx context.Context, p *Player) {
	now := w.now()
	delete(w.players, p.Id)
	w.resume[p.Id] = resumeEntry{roomId: p.RoomId, pos: p.Pos, at: now}

	room := w.rooms[p.RoomId]
	if room != nil {
		delete(room.players, p.Id)
		if len(room.players) == 0 {
			delete(w.rooms, room.Id)
		} else {
			w.publishRoom(ctx, room.Id, protocol.TypePlayerLeft, protocol.PlayerLeft{Id: p.Id})
		}
	}

	if p.AccountId != "" && w.records != nil {
		accountId, roomId, pos := p.AccountId, p.RoomId, p.Pos
		w.deferJob(ctx, "save_last_position", func(context.Context) error {
			return w.records.SaveLastPosition(accountId, roomId, pos)
		})
	}

	log.GetLogger(ctx).WithFields(logrus.Fields{
		"player": p.Id,
		"room":   p.RoomId,
	}).Info("player left")
}

// SetIntent stores the player's normalized movement intent for the next
// tick. Later calls overwrite earlier ones.
func (w *World) SetIntent(ctx context.Context, playerId string, ix, iy float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players[playerId]
	if !ok {
		return ErrPlayerNotFound
	}
	p.Intent = geom.NormalizeIntent(ix, iy)
	p.lastActive = w.now()
	return nil
}

// SetVoiceState merges client reported voice flags and relays them.
func (w *World) SetVoiceState(ctx context.Context, playerId string, u protocol.VoiceState) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players[playerId]
	if !ok {
		return ErrPlayerNotFound
	}
	p.Voice.Merge(u)
	p.lastActive = w.now()

	w.publishRoom(ctx, p.RoomId, protocol.TypeVoicePresence, protocol.VoicePresence{
		Id:       p.Id,
		Speaking: p.Voice.Speaking,
		Muted:    p.Voice.Muted,
	})
	return nil
}

// HandleAction offers an action to the mini-games of the player's zone and
// broadcasts it as an emote. Actions outside the allow-list are ignored.
func (w *World) HandleAction(ctx context.Context, playerId, actionType string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players[playerId]
	if !ok {
		return ErrPlayerNotFound
	}
	if !slices.Contains(w.cfg.Actions, actionType) {
		return nil
	}

	now := w.now()
	p.lastActive = now
	room := w.rooms[p.RoomId]

	if p.ZoneId != "" {
		actor := minigame.Occupant{PlayerId: p.Id, AccountId: p.AccountId, X: p.Pos.X, Y: p.Pos.Y}
		for _, e := range room.engines {
			if e.Definition().ZoneId != p.ZoneId {
				continue
			}
			res, claimed := e.HandleAction(now, actor, actionType, room.occupants(p.ZoneId))
			if !claimed {
				continue
			}

			w.publishRoom(ctx, room.Id, protocol.TypeActionResult, protocol.ActionResult{
				GameId:     res.GameId,
				PlayerId:   res.PlayerId,
				Action:     res.Action,
				Success:    res.Success,
				ScoreDelta: res.ScoreDelta,
				Combo:      res.Combo,
			})
			w.grantRewards(ctx, res.Rewards)
			if res.Success {
				w.progress(ctx, p.AccountId, quests.TypeMiniGameAction, 1, quests.Context{SubType: res.GameId, Combo: res.Combo})
			}
			break
		}
	}

	w.publishRoom(ctx, room.Id, protocol.TypeEmote, protocol.Emote{Id: p.Id, Type: actionType, Ts: now.UnixMilli()})
	pos := p.Pos
	w.progress(ctx, p.AccountId, quests.TypeEmote, 1, quests.Context{SubType: actionType, Pos: &pos})
	return nil
}

// Report files a complaint against another connected player.
func (w *World) Report(ctx context.Context, playerId, targetId, reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players[playerId]
	if !ok {
		return ErrPlayerNotFound
	}
	target, ok := w.players[targetId]
	if !ok || target.Id == p.Id {
		log.GetLogger(ctx).WithField("player", playerId).Debug("ignoring report for unknown target")
		return nil
	}
	if w.records == nil {
		return nil
	}

	r := &Report{
		Id:              uuid.NewString(),
		ReporterId:      p.Id,
		ReporterAccount: p.AccountId,
		TargetId:        target.Id,
		TargetAccount:   target.AccountId,
		RoomId:          p.RoomId,
		Reason:          SanitizeReason(reason),
		CreatedAt:       w.now().UTC(),
	}
	w.deferJob(ctx, "save_report", func(context.Context) error {
		return w.records.SaveReport(r)
	})
	return nil
}

func (w *World) grantRewards(ctx context.Context, rewards []minigame.Reward) {
	if w.ledger == nil {
		return
	}
	for _, r := range rewards {
		w.deferJob(ctx, "minigame_reward", func(ctx context.Context) error {
			return w.ledger.GrantMiniGameReward(ctx, r)
		})
	}
}

func (w *World) progress(ctx context.Context, accountId, questType string, delta int, qc quests.Context) {
	if accountId == "" || w.ledger == nil || delta <= 0 {
		return
	}
	w.deferJob(ctx, "quest_progress", func(ctx context.Context) error {
		return w.ledger.ApplyProgress(ctx, accountId, questType, delta, qc)
	})
}

func (w *World) deferJob(ctx context.Context, name string, fn func(context.Context) error) {
	if !w.deferrer.Defer(name, fn) {
		log.GetLogger(ctx).WithField("job", name).Warn("ledger queue full, dropping job")
	}
}

func (w *World) publishRoom(ctx context.Context, roomId, msgType string, payload any) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.GetLogger(ctx).WithError(err).Error("encoding room message")
		return
	}
	if err := w.pub.PublishToRoom(roomId, data); err != nil {
		log.GetLogger(ctx).WithError(err).WithField("room", roomId).Warn("publishing to room")
	}
}

func (w *World) publishPlayer(ctx context.Context, playerId, msgType string, payload any) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.GetLogger(ctx).WithError(err).Error("encoding player message")
		return
	}
	if err := w.pub.PublishToPlayer(playerId, data); err != nil {
		log.GetLogger(ctx).WithError(err).WithField("player", playerId).Warn("publishing to player")
	}
}
