package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/npezzotti/go-duochat/internal/database"
	"github.com/npezzotti/go-duochat/internal/journal"
	"github.com/npezzotti/go-duochat/internal/presence"
	"github.com/npezzotti/go-duochat/internal/stats"
	"github.com/npezzotti/go-duochat/internal/types"
)

var errUnavailable = fmt.Errorf("%w: chat server is shutting down", types.ErrUnavailable)

type registerReq struct {
	client *Client
	done   chan struct{}
}

type ChatServer struct {
	log            *log.Logger
	db             database.ChatRepository
	presence       *presence.Registry
	synchronizer   *Synchronizer
	stats          stats.StatsProvider
	journal        journal.Journal
	clients        map[*Client]struct{}
	clientsLock    sync.RWMutex
	rooms          map[string]*Room
	roomsLock      sync.Mutex
	closed         bool
	registerChan   chan registerReq
	deRegisterChan chan *Client
	// roomIdleTimeout is how long a room with no subscribers stays loaded.
	roomIdleTimeout time.Duration
	// ctx bounds store operations started by rooms. It outlives the
	// connection that triggered them and is cancelled after shutdown.
	ctx      context.Context
	cancel   context.CancelFunc
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewChatServer(logger *log.Logger, db database.ChatRepository, reg *presence.Registry, su stats.StatsProvider, j journal.Journal) (*ChatServer, error) {
	if j == nil {
		j = journal.Nop{}
	}

	for _, name := range []string{
		stats.NumActiveClients,
		stats.NumActiveRooms,
		stats.MessagesSent,
		stats.StatusTransitions,
		stats.AbsorbedAcks,
	} {
		su.RegisterMetric(name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ChatServer{
		log:             logger,
		db:              db,
		presence:        reg,
		synchronizer:    NewSynchronizer(logger, db, su, j),
		stats:           su,
		journal:         j,
		clients:         make(map[*Client]struct{}),
		rooms:           make(map[string]*Room),
		registerChan:    make(chan registerReq),
		deRegisterChan:  make(chan *Client),
		roomIdleTimeout: idleRoomTimeout,
		ctx:             ctx,
		cancel:          cancel,
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case req := <-cs.registerChan:
			cs.handleRegister(req.client)
			close(req.done)
		case c := <-cs.deRegisterChan:
			cs.handleDeregister(c)
		case <-cs.stop:
			cs.handleShutdown()
			close(cs.done)
			return
		}
	}
}

func (cs *ChatServer) handleRegister(c *Client) {
	if cs.addClient(c) {
		cs.log.Printf("adding connection %s from %q", c.id, c.user.Username)
		cs.stats.Incr(stats.NumActiveClients)
	}

	change := cs.presence.MarkOnline(cs.ctx, c.user.Id, c.id)
	cs.broadcastPresence(change)
}

func (cs *ChatServer) handleDeregister(c *Client) {
	if cs.removeClient(c) {
		cs.log.Printf("removing connection %s from %q", c.id, c.user.Username)
		cs.stats.Decr(stats.NumActiveClients)
	}

	if change, ok := cs.presence.MarkOffline(cs.ctx, c.id); ok {
		cs.broadcastPresence(change)
	}
}

func (cs *ChatServer) handleShutdown() {
	cs.log.Println("shutting down clients")
	cs.clientsLock.RLock()
	clients := make([]*Client, 0, len(cs.clients))
	for c := range cs.clients {
		clients = append(clients, c)
	}
	cs.clientsLock.RUnlock()

	for _, c := range clients {
		c.stopClient()
	}

	cs.roomsLock.Lock()
	cs.closed = true
	rooms := cs.rooms
	cs.rooms = make(map[string]*Room)
	cs.roomsLock.Unlock()

	cs.log.Println("shutting down rooms")
	for _, r := range rooms {
		close(r.exit)
		<-r.done
		cs.stats.Decr(stats.NumActiveRooms)
	}

	for _, c := range clients {
		cs.removeClient(c)
		cs.presence.MarkOffline(cs.ctx, c.id)
	}

	cs.cancel()
}

// Shutdown stops all clients and rooms. It returns ctx.Err() if ctx ends
// before the server has finished.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")
	cs.stopOnce.Do(func() { close(cs.stop) })

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterClient binds c as the live connection of its identity and starts
// its pumps.
func (cs *ChatServer) RegisterClient(c *Client) error {
	if err := cs.registerClient(c); err != nil {
		return err
	}

	go c.Write()
	go c.Read()
	return nil
}

func (cs *ChatServer) registerClient(c *Client) error {
	req := registerReq{client: c, done: make(chan struct{})}
	select {
	case cs.registerChan <- req:
	case <-cs.stop:
		return errUnavailable
	}

	select {
	case <-req.done:
		return nil
	case <-cs.stop:
		return errUnavailable
	}
}

func (cs *ChatServer) deregisterClient(c *Client) {
	select {
	case cs.deRegisterChan <- c:
	case <-cs.stop:
	}
}

func (cs *ChatServer) addClient(c *Client) bool {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if _, ok := cs.clients[c]; ok {
		return false
	}
	cs.clients[c] = struct{}{}
	return true
}

func (cs *ChatServer) removeClient(c *Client) bool {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if _, ok := cs.clients[c]; !ok {
		return false
	}
	delete(cs.clients, c)
	return true
}

func (cs *ChatServer) broadcastPresence(change presence.Change) {
	msg := userStatus(change.UserId, change.Online)

	cs.clientsLock.RLock()
	for c := range cs.clients {
		c.queueMessage(msg)
	}
	cs.clientsLock.RUnlock()

	if err := cs.journal.Record(cs.ctx, journal.Event{
		Type:    journal.PresenceChanged,
		Key:     change.UserId,
		Payload: UserStatus{UserId: change.UserId, Online: change.Online},
		At:      types.Now(),
	}); err != nil {
		cs.log.Printf("journal %s: %v", journal.PresenceChanged, err)
	}
}

// IsOnline reports the live presence of an identity.
func (cs *ChatServer) IsOnline(userId string) bool {
	return cs.presence.IsOnline(userId)
}

// OnlineUsers returns the set of identities that are currently online.
func (cs *ChatServer) OnlineUsers() map[string]bool {
	online := make(map[string]bool)
	for _, userId := range cs.presence.Online() {
		online[userId] = true
	}
	return online
}

func (cs *ChatServer) loadRoom(key string) (*Room, error) {
	cs.roomsLock.Lock()
	defer cs.roomsLock.Unlock()

	if cs.closed {
		return nil, errUnavailable
	}

	if r, ok := cs.rooms[key]; ok {
		return r, nil
	}

	r := newRoom(key, cs)
	cs.rooms[key] = r
	cs.stats.Incr(stats.NumActiveRooms)
	go r.start()

	return r, nil
}

func (cs *ChatServer) getRoom(key string) (*Room, bool) {
	cs.roomsLock.Lock()
	defer cs.roomsLock.Unlock()

	r, ok := cs.rooms[key]
	return r, ok
}

func (cs *ChatServer) unloadRoom(r *Room) {
	cs.roomsLock.Lock()
	defer cs.roomsLock.Unlock()

	if cs.rooms[r.key] == r {
		cs.log.Printf("removing room %q", r.key)
		delete(cs.rooms, r.key)
		cs.stats.Decr(stats.NumActiveRooms)
	}
}

// submit runs fn on r's goroutine and waits for the result. ok is false if
// the room exited before accepting the event.
func (cs *ChatServer) submit(r *Room, fn func(r *Room) (any, error)) (data any, ok bool, err error) {
	ev := &roomEvent{fn: fn, reply: make(chan roomResult, 1)}
	select {
	case r.events <- ev:
	case <-r.done:
		return nil, false, nil
	case <-cs.stop:
		return nil, false, errUnavailable
	}

	res := <-ev.reply
	return res.data, true, res.err
}

// exec runs fn inside the room for key, loading the room if needed. A room
// that unloads between lookup and submission is loaded again.
func (cs *ChatServer) exec(key string, fn func(r *Room) (any, error)) (any, error) {
	for {
		r, err := cs.loadRoom(key)
		if err != nil {
			return nil, err
		}

		data, ok, err := cs.submit(r, fn)
		if ok || err != nil {
			return data, err
		}
	}
}

func (cs *ChatServer) joinRoom(key string, c *Client) error {
	_, err := cs.exec(key, func(r *Room) (any, error) {
		if c.stopped() {
			return nil, fmt.Errorf("%w: connection closed", types.ErrUnavailable)
		}
		r.subscribe(c)
		return nil, nil
	})
	return err
}

func (cs *ChatServer) leaveRoom(key string, c *Client) error {
	r, ok := cs.getRoom(key)
	if !ok {
		c.delRoom(key)
		return nil
	}

	_, _, err := cs.submit(r, func(r *Room) (any, error) {
		r.unsubscribe(c)
		return nil, nil
	})
	return err
}

// SendMessage persists a message from -> to and publishes it to the
// conversation's room.
func (cs *ChatServer) SendMessage(from, to, body, media string) (types.Message, error) {
	data, err := cs.exec(types.RoomKey(from, to), func(r *Room) (any, error) {
		msg, err := cs.synchronizer.Send(cs.ctx, from, to, body, media)
		if err != nil {
			return nil, err
		}

		r.publish(chatMessage(msg))
		return msg, nil
	})
	if err != nil {
		return types.Message{}, err
	}

	return data.(types.Message), nil
}

// AckDelivered records that actor received messageId. Acknowledgements
// that no longer apply are absorbed.
func (cs *ChatServer) AckDelivered(actor, messageId string) error {
	msg, err := cs.db.GetMessage(cs.ctx, messageId)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return cs.absorb(fmt.Errorf("%w: unknown message %q", types.ErrStaleTransition, messageId))
		}
		return fmt.Errorf("%w: get message: %v", types.ErrPersistence, err)
	}

	_, err = cs.exec(types.RoomKey(msg.From, msg.To), func(r *Room) (any, error) {
		delivered, err := cs.synchronizer.Deliver(cs.ctx, actor, messageId)
		if err != nil {
			return nil, err
		}

		r.publish(statusChanged(delivered))
		return nil, nil
	})

	return cs.absorb(err)
}

// AckSeen marks every message from -> actor as seen.
func (cs *ChatServer) AckSeen(actor, from string) error {
	if from == actor {
		return fmt.Errorf("%w: sender and reader are the same identity", types.ErrValidation)
	}

	_, err := cs.exec(types.RoomKey(from, actor), func(r *Room) (any, error) {
		if _, err := cs.synchronizer.MarkSeen(cs.ctx, from, actor); err != nil {
			return nil, err
		}

		r.publish(messagesSeen(from, actor))
		return nil, nil
	})

	return cs.absorb(err)
}

func (cs *ChatServer) absorb(err error) error {
	if errors.Is(err, types.ErrStaleTransition) {
		cs.log.Printf("absorbed: %v", err)
		cs.stats.Incr(stats.AbsorbedAcks)
		return nil
	}
	return err
}
