// Package session runs one websocket client from join to disconnect.
package session

import (
	"context"
	"time"

	"github.com/pixil98/go-plaza/internal/auth"
	"github.com/pixil98/go-plaza/internal/game"
	"github.com/pixil98/go-plaza/internal/messaging"
	"github.com/pixil98/go-plaza/internal/quests"
)

const (
	DefaultOutboxSize = 256
	DefaultKickGrace  = 500 * time.Millisecond
)

// Conn is a message oriented client connection. ReadMessage returns io.EOF
// once the peer has gone away cleanly.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
}

// Profiles loads what a welcome needs to know about an account.
type Profiles interface {
	Snapshot(accountId string) (quests.Snapshot, error)
}

type ManagerOpt func(*Manager)

func WithVerifier(v auth.Verifier) ManagerOpt {
	return func(m *Manager) {
		m.verifier = v
	}
}

func WithProfiles(p Profiles) ManagerOpt {
	return func(m *Manager) {
		m.profiles = p
	}
}

// WithRequireAuth rejects joins that carry no token.
func WithRequireAuth(require bool) ManagerOpt {
	return func(m *Manager) {
		m.requireAuth = require
	}
}

// WithGuestFallback admits clients whose token is missing or invalid as
// guests instead of rejecting them.
func WithGuestFallback(fallback bool) ManagerOpt {
	return func(m *Manager) {
		m.guestFallback = fallback
	}
}

func WithOutboxSize(n int) ManagerOpt {
	return func(m *Manager) {
		if n > 0 {
			m.outboxSize = n
		}
	}
}

func WithKickGrace(d time.Duration) ManagerOpt {
	return func(m *Manager) {
		m.kickGrace = d
	}
}

// Manager owns what every session shares: the world, its router, the bus
// and the identity collaborators.
type Manager struct {
	world  *game.World
	router *game.Router
	bus    messaging.Subscriber

	verifier      auth.Verifier
	profiles      Profiles
	requireAuth   bool
	guestFallback bool
	outboxSize    int
	kickGrace     time.Duration
}

func NewManager(w *game.World, bus messaging.Subscriber, opts ...ManagerOpt) *Manager {
	m := &Manager{
		world:         w,
		router:        game.NewRouter(w),
		bus:           bus,
		guestFallback: true,
		outboxSize:    DefaultOutboxSize,
		kickGrace:     DefaultKickGrace,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RunSession serves conn until the client disconnects, the player is
// evicted or ctx is canceled.
func (m *Manager) RunSession(ctx context.Context, conn Conn) error {
	s := newSession(m, conn)
	return s.run(ctx)
}

// identify resolves a join token to an account id. An empty id is a guest.
func (m *Manager) identify(token string) (string, bool) {
	if token == "" {
		if m.requireAuth && !m.guestFallback {
			return "", false
		}
		return "", true
	}
	if m.verifier == nil {
		return "", m.guestFallback || !m.requireAuth
	}
	accountId, err := m.verifier.Verify(token)
	if err != nil {
		return "", m.guestFallback
	}
	return accountId, true
}
