package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/npezzotti/go-duochat/internal/database"
	"github.com/npezzotti/go-duochat/internal/journal"
	"github.com/npezzotti/go-duochat/internal/stats"
	"github.com/npezzotti/go-duochat/internal/types"
)

// Synchronizer owns the message lifecycle: it validates and persists new
// messages and advances their status. It does not publish; callers run it
// inside the conversation's room and publish the returned result.
type Synchronizer struct {
	log     *log.Logger
	db      database.ChatRepository
	stats   stats.StatsProvider
	journal journal.Journal
}

func NewSynchronizer(logger *log.Logger, db database.ChatRepository, su stats.StatsProvider, j journal.Journal) *Synchronizer {
	return &Synchronizer{
		log:     logger,
		db:      db,
		stats:   su,
		journal: j,
	}
}

func validateSend(from, to, body, media string) error {
	if strings.TrimSpace(body) == "" && strings.TrimSpace(media) == "" {
		return fmt.Errorf("%w: message has neither body nor media", types.ErrValidation)
	}
	if to == "" {
		return fmt.Errorf("%w: recipient is required", types.ErrValidation)
	}
	if from == to {
		return fmt.Errorf("%w: cannot send a message to yourself", types.ErrValidation)
	}
	return nil
}

// Send persists a new message in status sent.
func (s *Synchronizer) Send(ctx context.Context, from, to, body, media string) (types.Message, error) {
	if err := validateSend(from, to, body, media); err != nil {
		return types.Message{}, err
	}

	if _, err := s.db.GetAccountById(ctx, to); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.Message{}, fmt.Errorf("%w: recipient %q", types.ErrNotFound, to)
		}
		return types.Message{}, fmt.Errorf("%w: get recipient: %v", types.ErrPersistence, err)
	}

	dbMsg, err := s.db.AppendMessage(ctx, database.AppendMessageParams{
		From:  from,
		To:    to,
		Body:  body,
		Media: media,
	})
	if err != nil {
		if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrValidation) {
			return types.Message{}, err
		}
		return types.Message{}, fmt.Errorf("%w: append message: %v", types.ErrPersistence, err)
	}

	msg := dbMsg.ToMessage()
	s.stats.Incr(stats.MessagesSent)
	s.record(ctx, journal.MessageCreated, types.RoomKey(from, to), msg)

	return msg, nil
}

// Deliver advances a message to delivered on behalf of its recipient.
// Acknowledgements that no longer apply return an error wrapping
// types.ErrStaleTransition.
func (s *Synchronizer) Deliver(ctx context.Context, actor, messageId string) (types.Message, error) {
	current, err := s.db.GetMessage(ctx, messageId)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.Message{}, fmt.Errorf("%w: unknown message %q", types.ErrStaleTransition, messageId)
		}
		return types.Message{}, fmt.Errorf("%w: get message: %v", types.ErrPersistence, err)
	}

	if current.To != actor {
		return types.Message{}, fmt.Errorf("%w: %q is not the recipient of %q", types.ErrStaleTransition, actor, messageId)
	}

	updated, changed, err := s.db.UpdateMessageStatus(ctx, messageId, types.StatusDelivered)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.Message{}, fmt.Errorf("%w: unknown message %q", types.ErrStaleTransition, messageId)
		}
		return types.Message{}, fmt.Errorf("%w: update status: %v", types.ErrPersistence, err)
	}
	if !changed {
		return types.Message{}, fmt.Errorf("%w: message %q already %s", types.ErrStaleTransition, messageId, updated.Status)
	}

	msg := updated.ToMessage()
	s.stats.Incr(stats.StatusTransitions)
	s.record(ctx, journal.StatusChanged, types.RoomKey(msg.From, msg.To), StatusChanged{
		MessageId: msg.Id,
		From:      msg.From,
		To:        msg.To,
		Status:    msg.Status,
	})

	return msg, nil
}

// MarkSeen marks every message from -> to as seen and returns how many
// changed. A call that changes nothing returns types.ErrStaleTransition.
func (s *Synchronizer) MarkSeen(ctx context.Context, from, to string) (int64, error) {
	if from == "" || to == "" {
		return 0, fmt.Errorf("%w: both participants are required", types.ErrValidation)
	}
	if from == to {
		return 0, fmt.Errorf("%w: sender and reader are the same identity", types.ErrValidation)
	}

	n, err := s.db.MarkAllSeen(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("%w: mark seen: %v", types.ErrPersistence, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: no unseen messages from %q to %q", types.ErrStaleTransition, from, to)
	}

	s.stats.Incr(stats.StatusTransitions)
	s.record(ctx, journal.MessagesSeen, types.RoomKey(from, to), MessagesSeen{From: from, To: to})

	return n, nil
}

func (s *Synchronizer) record(ctx context.Context, typ journal.EventType, key string, payload any) {
	if err := s.journal.Record(ctx, journal.Event{
		Type:    typ,
		Key:     key,
		Payload: payload,
		At:      types.Now(),
	}); err != nil {
		s.log.Printf("journal %s: %v", typ, err)
	}
}
