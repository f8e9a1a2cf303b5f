package game

import (
	"context"

	"github.com/pixil98/go-plaza/internal/geom"
	"github.com/pixil98/go-plaza/internal/minigame"
	"github.com/pixil98/go-plaza/internal/quests"
)

// Publisher delivers encoded frames to everyone in a room, to a single
// connection, or to every connection of an account.
type Publisher interface {
	PublishToRoom(roomId string, data []byte) error
	PublishToPlayer(playerId string, data []byte) error
	PublishToAccount(accountId string, data []byte) error
}

// Deferrer runs work off the simulation lock. Defer must not block; it
// reports false when the job was dropped.
type Deferrer interface {
	Defer(name string, fn func(context.Context) error) bool
}

// Ledger receives progress and rewards produced by the simulation.
type Ledger interface {
	ApplyProgress(ctx context.Context, accountId, questType string, delta int, qc quests.Context) error
	GrantMiniGameReward(ctx context.Context, r minigame.Reward) error
}

// RecordStore persists what the world produces outside the ledger.
type RecordStore interface {
	SaveLastPosition(accountId, roomId string, pos geom.Vec) error
	SaveReport(r *Report) error
}

// inlineDeferrer runs jobs immediately. It is the default when no queue is
// wired and is only suitable for tests and tools.
type inlineDeferrer struct{}

func (inlineDeferrer) Defer(_ string, fn func(context.Context) error) bool {
	_ = fn(context.Background())
	return true
}
