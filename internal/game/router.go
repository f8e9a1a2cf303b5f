package game

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pixil98/go-plaza/internal/protocol"
)

// HandlerFunc handles one inbound message from a joined player.
type HandlerFunc func(ctx context.Context, playerId string, payload json.RawMessage) error

// Router maps message types to handlers.
type Router struct {
	handlers map[string]HandlerFunc
}

// NewRouter returns a router with the in-room message handlers of w.
func NewRouter(w *World) *Router {
	r := &Router{handlers: map[string]HandlerFunc{}}

	r.Handle(protocol.TypeIntent, func(ctx context.Context, playerId string, payload json.RawMessage) error {
		var msg protocol.Intent
		if err := decode(payload, &msg); err != nil {
			return err
		}
		return w.SetIntent(ctx, playerId, msg.Ix, msg.Iy)
	})

	r.Handle(protocol.TypeAction, func(ctx context.Context, playerId string, payload json.RawMessage) error {
		var msg protocol.Action
		if err := decode(payload, &msg); err != nil {
			return err
		}
		return w.HandleAction(ctx, playerId, msg.Type)
	})

	r.Handle(protocol.TypeVoiceState, func(ctx context.Context, playerId string, payload json.RawMessage) error {
		var msg protocol.VoiceState
		if err := decode(payload, &msg); err != nil {
			return err
		}
		return w.SetVoiceState(ctx, playerId, msg)
	})

	r.Handle(protocol.TypeReportPlayer, func(ctx context.Context, playerId string, payload json.RawMessage) error {
		var msg protocol.ReportPlayer
		if err := decode(payload, &msg); err != nil {
			return err
		}
		return w.Report(ctx, playerId, msg.TargetPlayerId, msg.Reason)
	})

	return r
}

// Handle registers h for msgType, replacing any earlier handler.
func (r *Router) Handle(msgType string, h HandlerFunc) {
	r.handlers[msgType] = h
}

func (r *Router) Dispatch(ctx context.Context, playerId string, env protocol.Envelope) error {
	h, ok := r.handlers[env.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
	return h(ctx, playerId, env.Payload)
}

func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return nil
}
