package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/npezzotti/go-duochat/internal/types"
)

type EventType string

// Client events.
const (
	EventIdentify     EventType = "identify"
	EventJoinRoom     EventType = "join_room"
	EventLeaveRoom    EventType = "leave_room"
	EventSendMessage  EventType = "send_message"
	EventAckDelivered EventType = "ack_delivered"
	EventAckSeen      EventType = "ack_seen"
)

// Server events.
const (
	EventResponse      EventType = "response"
	EventChatMessage   EventType = "chat_message"
	EventStatusChanged EventType = "status_changed"
	EventMessagesSeen  EventType = "messages_seen"
	EventUserStatus    EventType = "user_status"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Event     EventType  `json:"event"`
	Identify  *Identify  `json:"identify,omitempty"`
	Join      *Join      `json:"join,omitempty"`
	Leave     *Leave     `json:"leave,omitempty"`
	Send      *Send      `json:"send,omitempty"`
	Delivered *Delivered `json:"delivered,omitempty"`
	Seen      *Seen      `json:"seen,omitempty"`
}

type Identify struct {
	UserId string `json:"user_id"`
}

type Join struct {
	RoomKey string `json:"room_key"`
}

type Leave struct {
	RoomKey string `json:"room_key"`
}

type Send struct {
	From  string `json:"from,omitempty"`
	To    string `json:"to"`
	Body  string `json:"body,omitempty"`
	Media string `json:"media,omitempty"`
}

type Delivered struct {
	MessageId string `json:"message_id"`
}

// Seen acknowledges every message From sent to To. To defaults to the
// session identity.
type Seen struct {
	From string `json:"from"`
	To   string `json:"to,omitempty"`
}

type ServerMessage struct {
	BaseMessage
	Event         EventType      `json:"event"`
	Response      *Response      `json:"response,omitempty"`
	Message       *types.Message `json:"message,omitempty"`
	StatusChanged *StatusChanged `json:"status_changed,omitempty"`
	MessagesSeen  *MessagesSeen  `json:"messages_seen,omitempty"`
	UserStatus    *UserStatus    `json:"user_status,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

type StatusChanged struct {
	MessageId string       `json:"message_id"`
	From      string       `json:"from"`
	To        string       `json:"to"`
	Status    types.Status `json:"status"`
}

type MessagesSeen struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type UserStatus struct {
	UserId string `json:"user_id"`
	Online bool   `json:"online"`
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: types.Now(),
		},
		Event: EventResponse,
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func errResponse(id, code int, msg string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: types.Now(),
		},
		Event: EventResponse,
		Response: &Response{
			ResponseCode: code,
			Error:        msg,
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	return errResponse(id, http.StatusBadRequest, "invalid message format")
}

func ErrUnknownEvent(id int) *ServerMessage {
	return errResponse(id, http.StatusBadRequest, "unknown event")
}

func ErrInternalError(id int) *ServerMessage {
	return errResponse(id, http.StatusInternalServerError, "internal server error")
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return errResponse(id, http.StatusServiceUnavailable, "service unavailable")
}

// ErrorResponse maps err onto a response code. Persistence failures and
// unclassified errors are reported without detail.
func ErrorResponse(id int, err error) *ServerMessage {
	switch {
	case errors.Is(err, types.ErrValidation):
		return errResponse(id, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrUnauthenticated):
		return errResponse(id, http.StatusUnauthorized, err.Error())
	case errors.Is(err, types.ErrNotFound):
		return errResponse(id, http.StatusNotFound, err.Error())
	case errors.Is(err, types.ErrUnavailable):
		return ErrServiceUnavailable(id)
	default:
		return ErrInternalError(id)
	}
}

func chatMessage(msg types.Message) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: types.Now()},
		Event:       EventChatMessage,
		Message:     &msg,
	}
}

func statusChanged(msg types.Message) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: types.Now()},
		Event:       EventStatusChanged,
		StatusChanged: &StatusChanged{
			MessageId: msg.Id,
			From:      msg.From,
			To:        msg.To,
			Status:    msg.Status,
		},
	}
}

func messagesSeen(from, to string) *ServerMessage {
	return &ServerMessage{
		BaseMessage:  BaseMessage{Timestamp: types.Now()},
		Event:        EventMessagesSeen,
		MessagesSeen: &MessagesSeen{From: from, To: to},
	}
}

func userStatus(userId string, online bool) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: types.Now()},
		Event:       EventUserStatus,
		UserStatus:  &UserStatus{UserId: userId, Online: online},
	}
}
