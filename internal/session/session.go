package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pixil98/go-log"
	"github.com/pixil98/go-plaza/internal/game"
	"github.com/pixil98/go-plaza/internal/messaging"
	"github.com/pixil98/go-plaza/internal/protocol"
	"github.com/sirupsen/logrus"
)

type session struct {
	m    *Manager
	conn Conn
	log  logrus.FieldLogger

	playerId string
	out      chan []byte
	unsubs   []func()

	frames  chan []byte
	readErr chan error
	done    chan struct{}
}

func newSession(m *Manager, conn Conn) *session {
	return &session{
		m:       m,
		conn:    conn,
		out:     make(chan []byte, m.outboxSize),
		frames:  make(chan []byte),
		readErr: make(chan error, 1),
		done:    make(chan struct{}),
	}
}

func (s *session) run(ctx context.Context) error {
	s.log = log.GetLogger(ctx)
	defer close(s.done)
	go s.readLoop()

	joined, err := s.awaitJoin(ctx)
	if err != nil || joined == nil {
		return err
	}
	defer s.leave(ctx)

	return s.play(ctx, joined.Done)
}

func (s *session) readLoop() {
	for {
		data, err := s.conn.ReadMessage()
		if err != nil {
			s.readErr <- err
			close(s.frames)
			return
		}
		select {
		case s.frames <- data:
		case <-s.done:
			return
		}
	}
}

// closed turns the read loop's terminal error into the session result.
func (s *session) closed() error {
	err := <-s.readErr
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("reading frame: %w", err)
}

// awaitJoin consumes frames until a join succeeds. A nil result with a nil
// error means the client went away first.
func (s *session) awaitJoin(ctx context.Context) (*game.Joined, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, nil
		case data, ok := <-s.frames:
			if !ok {
				return nil, s.closed()
			}
			env, err := protocol.Decode(data)
			if err != nil {
				s.log.WithError(err).Debug("skipping malformed frame")
				continue
			}
			if env.Type != protocol.TypeJoin {
				s.log.WithField("type", env.Type).Debug("ignoring message before join")
				continue
			}

			var msg protocol.Join
			if len(env.Payload) > 0 {
				if err := json.Unmarshal(env.Payload, &msg); err != nil {
					s.log.WithError(err).Debug("skipping malformed join")
					continue
				}
			}

			joined, jerr, err := s.join(ctx, msg)
			if err != nil {
				return nil, err
			}
			if jerr != nil {
				if err := s.send(protocol.TypeJoinError, jerr); err != nil {
					return nil, err
				}
				continue
			}
			return joined, nil
		}
	}
}

func (s *session) join(ctx context.Context, msg protocol.Join) (*game.Joined, *protocol.JoinError, error) {
	roomId := game.SanitizeRoomId(msg.RoomId)

	accountId, ok := s.m.identify(msg.AuthToken)
	if !ok {
		return nil, &protocol.JoinError{Code: protocol.ErrCodeAuthRequired, RoomId: roomId}, nil
	}

	req := game.JoinRequest{
		PlayerId:    uuid.NewString(),
		AccountId:   accountId,
		RoomId:      roomId,
		DisplayName: msg.DisplayName,
		Cosmetic:    msg.CosmeticChoice,
		ResumeId:    msg.ClientMeta.ResumeId,
	}

	var welcomeProfile func(*protocol.Welcome)
	if accountId != "" && s.m.profiles != nil {
		snap, err := s.m.profiles.Snapshot(accountId)
		if err != nil {
			s.log.WithError(err).WithField("account", accountId).Warn("loading profile, joining without it")
		} else {
			req.LastRoomId = snap.LastRoomId
			req.LastPosition = snap.LastPosition
			if req.DisplayName == "" {
				req.DisplayName = snap.Profile.DisplayName
			}
			welcomeProfile = func(w *protocol.Welcome) {
				w.Profile = &snap.Profile
				w.Progression = &snap.Progression
				w.Quests = snap.Quests
			}
		}
	}

	s.playerId = req.PlayerId
	s.log = log.GetLogger(ctx).WithField("player", req.PlayerId)

	subjects := []string{messaging.PlayerSubject(req.PlayerId), messaging.RoomSubject(roomId)}
	if accountId != "" {
		subjects = append(subjects, messaging.AccountSubject(accountId))
	}
	for _, subject := range subjects {
		unsub, err := s.m.bus.Subscribe(subject, s.deliver)
		if err != nil {
			s.abandonJoin()
			return nil, nil, fmt.Errorf("subscribing player %s: %w", req.PlayerId, err)
		}
		s.unsubs = append(s.unsubs, unsub)
	}

	joined, err := s.m.world.Join(ctx, req)
	if err != nil {
		s.abandonJoin()
		switch {
		case errors.Is(err, game.ErrRoomFull):
			return nil, &protocol.JoinError{Code: protocol.ErrCodeRoomFull, RoomId: roomId, MaxPlayers: s.m.world.Config().MaxPlayers}, nil
		case errors.Is(err, game.ErrPlayerExists):
			return nil, &protocol.JoinError{Code: protocol.ErrCodeAlreadyJoined, RoomId: roomId}, nil
		default:
			return nil, nil, err
		}
	}

	if welcomeProfile != nil {
		welcomeProfile(&joined.Welcome)
	}
	if err := s.send(protocol.TypeWelcome, joined.Welcome); err != nil {
		return nil, nil, err
	}
	return &joined, nil, nil
}

func (s *session) play(ctx context.Context, evicted <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-evicted:
			return s.flushUntilKicked()

		case data := <-s.out:
			if err := s.conn.WriteMessage(data); err != nil {
				return fmt.Errorf("writing frame: %w", err)
			}

		case data, ok := <-s.frames:
			if !ok {
				return s.closed()
			}
			env, err := protocol.Decode(data)
			if err != nil {
				s.log.WithError(err).Debug("skipping malformed frame")
				continue
			}
			if env.Type == protocol.TypeJoin {
				if err := s.send(protocol.TypeJoinError, protocol.JoinError{Code: protocol.ErrCodeAlreadyJoined}); err != nil {
					return err
				}
				continue
			}

			err = s.m.router.Dispatch(ctx, s.playerId, env)
			switch {
			case err == nil:
			case errors.Is(err, game.ErrPlayerNotFound):
				return nil
			default:
				s.log.WithError(err).WithField("type", env.Type).Debug("message rejected")
			}
		}
	}
}

// flushUntilKicked writes queued frames until the kick notice has gone out
// or the grace period ends.
func (s *session) flushUntilKicked() error {
	timer := time.NewTimer(s.m.kickGrace)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return nil
		case data := <-s.out:
			if err := s.conn.WriteMessage(data); err != nil {
				return nil
			}
			if env, err := protocol.Decode(data); err == nil && env.Type == protocol.TypeKicked {
				return nil
			}
		}
	}
}

// deliver runs on the bus goroutine and must not block.
func (s *session) deliver(data []byte) {
	select {
	case s.out <- data:
	default:
		s.log.Warn("outbox full, dropping frame")
	}
}

func (s *session) send(msgType string, payload any) error {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		return err
	}
	if err := s.conn.WriteMessage(data); err != nil {
		return fmt.Errorf("writing %s: %w", msgType, err)
	}
	return nil
}

func (s *session) unsubscribe() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
}

// abandonJoin drops the subscriptions of a rejected join and any frames
// they already queued, so a retry in another room starts clean.
func (s *session) abandonJoin() {
	s.unsubscribe()
	for {
		select {
		case <-s.out:
		default:
			return
		}
	}
}

func (s *session) leave(ctx context.Context) {
	s.unsubscribe()
	if err := s.m.world.Leave(ctx, s.playerId); err != nil && !errors.Is(err, game.ErrPlayerNotFound) {
		s.log.WithError(err).Warn("leaving world")
	}
}
