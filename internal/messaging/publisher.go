package messaging

import (
	"fmt"
	"strings"
)

// Publisher sends raw frames to a bus subject.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Subscriber registers a handler on a bus subject.
type Subscriber interface {
	Subscribe(subject string, handler func(data []byte)) (func(), error)
}

func RoomSubject(roomId string) string {
	return "room-" + roomId
}

func PlayerSubject(playerId string) string {
	return "player-" + playerId
}

func AccountSubject(accountId string) string {
	return "account-" + accountId
}

// NatsPublisher fans simulation frames out to room, player and account
// subjects.
type NatsPublisher struct {
	bus Publisher
}

// NewNatsPublisher wraps a bus connection for room, player and account
// delivery.
func NewNatsPublisher(bus Publisher) *NatsPublisher {
	return &NatsPublisher{bus: bus}
}

func (p *NatsPublisher) PublishToRoom(roomId string, data []byte) error {
	return p.publish(RoomSubject(roomId), data)
}

func (p *NatsPublisher) PublishToPlayer(playerId string, data []byte) error {
	return p.publish(PlayerSubject(playerId), data)
}

func (p *NatsPublisher) PublishToAccount(accountId string, data []byte) error {
	return p.publish(AccountSubject(accountId), data)
}

func (p *NatsPublisher) publish(subject string, data []byte) error {
	if strings.ContainsAny(subject, ".*> \t\r\n") {
		return fmt.Errorf("invalid subject %q", subject)
	}
	if err := p.bus.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
