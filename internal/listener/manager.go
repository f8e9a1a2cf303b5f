package listener

import (
	"context"

	"github.com/pixil98/go-log"
	"github.com/pixil98/go-plaza/internal/session"
)

// SessionRunner serves one client connection until it ends.
type SessionRunner interface {
	RunSession(ctx context.Context, conn session.Conn) error
}

type ConnectionManager struct {
	sm SessionRunner
}

func NewConnectionManager(sm SessionRunner) *ConnectionManager {
	return &ConnectionManager{
		sm: sm,
	}
}

func (m *ConnectionManager) AcceptConnection(ctx context.Context, conn session.Conn) {
	if err := m.sm.RunSession(ctx, conn); err != nil {
		log.GetLogger(ctx).WithError(err).Warn("player session")
	}
}
