// Package journal records committed chat events for downstream consumers.
// Recording happens after the store commit and is best-effort: a journal
// failure never fails the chat operation that produced the event.
package journal

import (
	"context"
	"time"
)

type EventType string

const (
	MessageCreated  EventType = "message_created"
	StatusChanged   EventType = "status_changed"
	MessagesSeen    EventType = "messages_seen"
	PresenceChanged EventType = "presence_changed"
)

type Event struct {
	Type EventType `json:"type"`
	// Key orders events: all events with the same key land on the same
	// partition. Room keys are used for conversation events and identity
	// ids for presence.
	Key     string    `json:"key"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

type Journal interface {
	Record(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }
func (Nop) Close() error                        { return nil }
