package server

import (
	"log"
	"time"
)

const idleRoomTimeout = time.Second * 5

type roomResult struct {
	data any
	err  error
}

// roomEvent is a unit of work executed on the room goroutine. reply is
// buffered so the room never blocks on a caller that stopped waiting.
type roomEvent struct {
	fn    func(r *Room) (any, error)
	reply chan roomResult
}

// Room is the delivery channel for one conversation. All mutations of the
// conversation run on the room goroutine in arrival order, so persistence
// and publication for a room are linearized.
type Room struct {
	key         string
	cs          *ChatServer
	log         *log.Logger
	events      chan *roomEvent
	subscribers map[*Client]struct{}
	idleTimeout time.Duration
	// killTimer unloads the room once it has been idle with no subscribers
	killTimer *time.Timer
	exit      chan struct{}
	done      chan struct{}
}

func newRoom(key string, cs *ChatServer) *Room {
	return &Room{
		key:         key,
		cs:          cs,
		log:         cs.log,
		idleTimeout: cs.roomIdleTimeout,
		events:      make(chan *roomEvent),
		subscribers: make(map[*Client]struct{}),
		exit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.key)
	r.killTimer = time.NewTimer(r.idleTimeout)
	defer func() {
		r.killTimer.Stop()
		close(r.done)
	}()

	for {
		select {
		case ev := <-r.events:
			data, err := ev.fn(r)
			ev.reply <- roomResult{data: data, err: err}
			r.resetIdle()
		case <-r.killTimer.C:
			if r.handleRoomTimeout() {
				return
			}
		case <-r.exit:
			r.handleRoomExit()
			return
		}
	}
}

func (r *Room) resetIdle() {
	if len(r.subscribers) == 0 {
		r.killTimer.Reset(r.idleTimeout)
	} else {
		r.killTimer.Stop()
	}
}

// handleRoomTimeout reports whether the room was unloaded.
func (r *Room) handleRoomTimeout() bool {
	if len(r.subscribers) > 0 {
		return false
	}

	r.log.Printf("room %q timed out", r.key)
	r.cs.unloadRoom(r)
	return true
}

func (r *Room) handleRoomExit() {
	r.log.Printf("room %q is exiting", r.key)
	for c := range r.subscribers {
		c.delRoom(r.key)
	}
	clear(r.subscribers)
}

func (r *Room) subscribe(c *Client) {
	if _, ok := r.subscribers[c]; ok {
		return
	}

	r.subscribers[c] = struct{}{}
	c.addRoom(r)
	r.log.Printf("subscribed %q to room %q", c.user.Username, r.key)
}

func (r *Room) unsubscribe(c *Client) {
	if _, ok := r.subscribers[c]; !ok {
		return
	}

	delete(r.subscribers, c)
	c.delRoom(r.key)
	r.log.Printf("unsubscribed %q from room %q", c.user.Username, r.key)
}

// publish delivers msg to every subscriber, the sender's connection
// included. Subscribers that cannot take the message are dropped.
func (r *Room) publish(msg *ServerMessage) {
	for c := range r.subscribers {
		if !c.queueMessage(msg) {
			r.log.Printf("dropping subscriber %q from room %q", c.user.Username, r.key)
			r.unsubscribe(c)
		}
	}
}
