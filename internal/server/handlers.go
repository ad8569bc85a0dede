package server

import (
	"fmt"

	"github.com/npezzotti/go-duochat/internal/types"
)

type eventHandler func(c *Client, msg *ClientMessage) (any, error)

var eventHandlers = map[EventType]eventHandler{
	EventIdentify:     handleIdentify,
	EventJoinRoom:     handleJoinRoom,
	EventLeaveRoom:    handleLeaveRoom,
	EventSendMessage:  handleSendMessage,
	EventAckDelivered: handleAckDelivered,
	EventAckSeen:      handleAckSeen,
}

func missingPayload(event EventType) error {
	return fmt.Errorf("%w: %s requires a payload", types.ErrValidation, event)
}

// actingAs checks that an identity named in a payload is the session
// identity. An empty id means the session identity.
func (c *Client) actingAs(id string) error {
	if id != "" && id != c.user.Id {
		return fmt.Errorf("%w: payload identity does not match session", types.ErrUnauthenticated)
	}
	return nil
}

func handleIdentify(c *Client, msg *ClientMessage) (any, error) {
	if msg.Identify == nil {
		return nil, missingPayload(msg.Event)
	}
	if msg.Identify.UserId == "" {
		return nil, fmt.Errorf("%w: user_id is required", types.ErrValidation)
	}
	if err := c.actingAs(msg.Identify.UserId); err != nil {
		return nil, err
	}

	if err := c.cs.registerClient(c); err != nil {
		return nil, err
	}

	return nil, nil
}

func handleJoinRoom(c *Client, msg *ClientMessage) (any, error) {
	if msg.Join == nil {
		return nil, missingPayload(msg.Event)
	}
	if _, _, err := types.ParseRoomKey(msg.Join.RoomKey); err != nil {
		return nil, err
	}
	if !types.IsParticipant(msg.Join.RoomKey, c.user.Id) {
		return nil, fmt.Errorf("%w: not a participant of %q", types.ErrUnauthenticated, msg.Join.RoomKey)
	}

	if err := c.cs.joinRoom(msg.Join.RoomKey, c); err != nil {
		return nil, err
	}

	return map[string]any{"room_key": msg.Join.RoomKey}, nil
}

func handleLeaveRoom(c *Client, msg *ClientMessage) (any, error) {
	if msg.Leave == nil {
		return nil, missingPayload(msg.Event)
	}
	if !c.inRoom(msg.Leave.RoomKey) {
		return nil, fmt.Errorf("%w: not subscribed to %q", types.ErrNotFound, msg.Leave.RoomKey)
	}

	if err := c.cs.leaveRoom(msg.Leave.RoomKey, c); err != nil {
		return nil, err
	}

	return nil, nil
}

func handleSendMessage(c *Client, msg *ClientMessage) (any, error) {
	if msg.Send == nil {
		return nil, missingPayload(msg.Event)
	}
	if err := c.actingAs(msg.Send.From); err != nil {
		return nil, err
	}

	sent, err := c.cs.SendMessage(c.user.Id, msg.Send.To, msg.Send.Body, msg.Send.Media)
	if err != nil {
		return nil, err
	}

	return sent, nil
}

func handleAckDelivered(c *Client, msg *ClientMessage) (any, error) {
	if msg.Delivered == nil {
		return nil, missingPayload(msg.Event)
	}
	if msg.Delivered.MessageId == "" {
		return nil, fmt.Errorf("%w: message_id is required", types.ErrValidation)
	}

	return nil, c.cs.AckDelivered(c.user.Id, msg.Delivered.MessageId)
}

func handleAckSeen(c *Client, msg *ClientMessage) (any, error) {
	if msg.Seen == nil {
		return nil, missingPayload(msg.Event)
	}
	if err := c.actingAs(msg.Seen.To); err != nil {
		return nil, err
	}
	if msg.Seen.From == "" {
		return nil, fmt.Errorf("%w: from is required", types.ErrValidation)
	}

	return nil, c.cs.AckSeen(c.user.Id, msg.Seen.From)
}
