package quests

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pixil98/go-log"
	"github.com/pixil98/go-plaza/internal/geom"
	"github.com/pixil98/go-plaza/internal/minigame"
	"github.com/pixil98/go-plaza/internal/protocol"
)

// Store is the persistent ledger behind the bridge.
type Store interface {
	GetOrCreateProfile(accountId string) (Profile, error)
	ListActiveQuestDefs(day time.Time) ([]Def, error)
	SaveQuestStates(accountId string, states []State) error
	// ApplyGrant records cause and pays reward in one write. A cause that was
	// already granted pays nothing and reports Applied false. A failed call
	// records nothing.
	ApplyGrant(accountId, cause string, reward Reward) (GrantResult, error)
}

// Notifier delivers bridge events to connected clients.
type Notifier interface {
	PublishToAccount(accountId string, data []byte) error
	PublishToPlayer(playerId string, data []byte) error
}

type BridgeOpt func(*Bridge)

// WithClock overrides the time source used for daily cycle stamps.
func WithClock(now func() time.Time) BridgeOpt {
	return func(b *Bridge) {
		b.now = now
	}
}

// Bridge turns gameplay events into quest progress and exactly-once grants.
// It performs store I/O and must not be called with the world lock held.
type Bridge struct {
	store Store
	pub   Notifier
	now   func() time.Time
}

func NewBridge(store Store, pub Notifier, opts ...BridgeOpt) *Bridge {
	b := &Bridge{
		store: store,
		pub:   pub,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// QuestCause is the grant cause for completing a quest in a cycle.
func QuestCause(questId, cycleStamp string) string {
	return fmt.Sprintf("quest:%s:%s", questId, cycleStamp)
}

// ApplyProgress adds delta to every active quest of questType whose
// predicate matches qc. Quests that reach their target are completed and
// their reward granted once per cycle.
func (b *Bridge) ApplyProgress(ctx context.Context, accountId, questType string, delta int, qc Context) error {
	if delta <= 0 {
		return nil
	}

	profile, err := b.store.GetOrCreateProfile(accountId)
	if err != nil {
		return fmt.Errorf("loading profile %s: %w", accountId, err)
	}

	now := b.now()
	defs, err := b.store.ListActiveQuestDefs(now)
	if err != nil {
		return fmt.Errorf("listing quests: %w", err)
	}

	var changed []State
	for _, def := range defs {
		stamp := def.CycleStamp(now)
		st, ok := profile.Quests[def.Id]
		rolled := !ok || st.CycleStamp != stamp
		if rolled {
			st = State{
				QuestId:    def.Id,
				Target:     def.Target,
				Status:     StatusActive,
				CycleStamp: stamp,
			}
		}

		dirty := rolled
		if def.Type == questType && def.Predicate.Matches(qc) && st.Status == StatusActive {
			st.Value = min(st.Target, st.Value+delta)
			if st.Value >= st.Target {
				st.Status = StatusCompleted
			}
			dirty = true

			b.publish(ctx, accountId, "", protocol.TypeQuestProgress, protocol.QuestProgress{
				QuestId:   st.QuestId,
				Value:     st.Value,
				Completed: st.Status != StatusActive,
			})
		}

		// Completed but unclaimed also covers a grant that failed on an
		// earlier call.
		if st.Status == StatusCompleted {
			if _, err := b.Grant(ctx, accountId, QuestCause(def.Id, stamp), def.Reward); err != nil {
				log.GetLogger(ctx).WithError(err).WithField("quest", def.Id).Error("granting quest reward")
			} else {
				st.Status = StatusClaimed
				dirty = true
			}
		}

		if dirty {
			changed = append(changed, st)
		}
	}

	if len(changed) == 0 {
		return nil
	}
	if err := b.store.SaveQuestStates(accountId, changed); err != nil {
		return fmt.Errorf("saving quest states: %w", err)
	}
	return nil
}

// Grant pays reward to the account unless cause was already granted. It
// reports whether this call performed the grant.
func (b *Bridge) Grant(ctx context.Context, accountId, cause string, reward Reward) (bool, error) {
	res, err := b.grant(ctx, accountId, cause, reward)
	return res.Applied, err
}

func (b *Bridge) grant(ctx context.Context, accountId, cause string, reward Reward) (GrantResult, error) {
	res, err := b.store.ApplyGrant(accountId, cause, reward)
	if err != nil {
		return GrantResult{}, fmt.Errorf("granting %s: %w", cause, err)
	}
	if !res.Applied {
		return res, nil
	}

	if reward.Currency != 0 {
		b.publish(ctx, accountId, "", protocol.TypeCurrencyGrant, protocol.CurrencyGrant{
			Amount:  reward.Currency,
			Source:  cause,
			Balance: res.Balance,
		})
	}
	if res.Unlocked {
		b.publish(ctx, accountId, "", protocol.TypeUnlockGrant, protocol.UnlockGrant{
			UnlockId: reward.UnlockId,
			Category: reward.UnlockCategory,
		})
	}

	return res, nil
}

// GrantMiniGameReward pays a mini-game reward and tells the player about it.
// Guests only get the notification.
func (b *Bridge) GrantMiniGameReward(ctx context.Context, r minigame.Reward) error {
	msg := protocol.MiniGameReward{
		Id:        r.GameId,
		PlayerId:  r.PlayerId,
		Stars:     r.Stars,
		XP:        r.XP,
		SourceRef: r.SourceRef,
		Level:     1,
	}

	if r.AccountId == "" {
		b.publish(ctx, "", r.PlayerId, protocol.TypeMiniGameReward, msg)
		return nil
	}

	res, err := b.grant(ctx, r.AccountId, r.Cause, Reward{Currency: r.Stars, XP: r.XP})
	if err != nil {
		return err
	}
	if !res.Applied {
		return nil
	}

	msg.Balance = res.Balance
	msg.TotalXP = res.TotalXP
	msg.Level = Level(res.TotalXP)

	b.publish(ctx, r.AccountId, "", protocol.TypeMiniGameReward, msg)
	return nil
}

// Snapshot is what a joining client learns about its account.
type Snapshot struct {
	Profile     protocol.ProfileView
	Progression protocol.Progression
	Quests      []protocol.QuestView

	LastRoomId   string
	LastPosition *geom.Vec
}

// Snapshot loads the account's profile and today's quests.
func (b *Bridge) Snapshot(accountId string) (Snapshot, error) {
	profile, err := b.store.GetOrCreateProfile(accountId)
	if err != nil {
		return Snapshot{}, fmt.Errorf("loading profile %s: %w", accountId, err)
	}

	now := b.now()
	defs, err := b.store.ListActiveQuestDefs(now)
	if err != nil {
		return Snapshot{}, fmt.Errorf("listing quests: %w", err)
	}

	views := make([]protocol.QuestView, 0, len(defs))
	for _, def := range defs {
		v := protocol.QuestView{
			QuestId: def.Id,
			Title:   def.Title,
			Type:    def.Type,
			Target:  def.Target,
			Status:  string(StatusActive),
		}
		if st, ok := profile.Quests[def.Id]; ok && st.CycleStamp == def.CycleStamp(now) {
			v.Value = st.Value
			v.Status = string(st.Status)
			v.Completed = st.Status != StatusActive
		}
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].QuestId < views[j].QuestId })

	unlocks := profile.Unlocks
	if unlocks == nil {
		unlocks = map[string]string{}
	}

	return Snapshot{
		Profile: protocol.ProfileView{
			AccountId:   profile.AccountId,
			DisplayName: profile.DisplayName,
			Balance:     profile.Balance,
			Unlocks:     unlocks,
		},
		Progression: protocol.Progression{
			Level:   Level(profile.TotalXP),
			TotalXP: profile.TotalXP,
			NextXP:  XPToNextLevel(profile.TotalXP),
		},
		Quests:       views,
		LastRoomId:   profile.LastRoomId,
		LastPosition: profile.LastPosition,
	}, nil
}

// publish sends to the account channel, or to the player channel when no
// account is given. Delivery is best effort.
func (b *Bridge) publish(ctx context.Context, accountId, playerId, msgType string, payload any) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.GetLogger(ctx).WithError(err).Error("encoding ledger message")
		return
	}

	if accountId != "" {
		err = b.pub.PublishToAccount(accountId, data)
	} else {
		err = b.pub.PublishToPlayer(playerId, data)
	}
	if err != nil {
		log.GetLogger(ctx).WithError(err).WithField("type", msgType).Warn("publishing ledger message")
	}
}
