// Package presence tracks which identities currently have a live
// connection. Each identity is bound to at most one connection; binding a
// new connection silently supersedes the previous one.
package presence

import (
	"context"
	"log"
	"sync"
)

type Change struct {
	UserId string `json:"user_id"`
	Online bool   `json:"online"`
}

// Mirror receives every presence change while the identity's lock is held,
// so writes for one identity reach the mirror in the order they happened.
type Mirror interface {
	SetPresence(ctx context.Context, userId string, online bool) error
}

type binding struct {
	mu     sync.Mutex
	conn   string
	online bool
}

type Registry struct {
	log     *log.Logger
	mirrors []Mirror

	mu       sync.Mutex
	bindings map[string]*binding
	// conns maps a live connection handle to the identity it is bound to
	conns map[string]string
}

func NewRegistry(logger *log.Logger, mirrors ...Mirror) *Registry {
	return &Registry{
		log:      logger,
		mirrors:  mirrors,
		bindings: make(map[string]*binding),
		conns:    make(map[string]string),
	}
}

func (r *Registry) binding(userId string) *binding {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[userId]
	if !ok {
		b = &binding{}
		r.bindings[userId] = b
	}
	return b
}

// MarkOnline binds userId to conn and returns the change to broadcast.
func (r *Registry) MarkOnline(ctx context.Context, userId, conn string) Change {
	b := r.binding(userId)
	b.mu.Lock()
	defer b.mu.Unlock()

	r.mu.Lock()
	if b.conn != "" && b.conn != conn {
		delete(r.conns, b.conn)
	}
	r.conns[conn] = userId
	r.mu.Unlock()

	b.conn = conn
	b.online = true
	r.mirror(ctx, userId, true)

	return Change{UserId: userId, Online: true}
}

// MarkOffline releases conn. It reports false when conn is unknown or its
// identity has already been rebound to a newer connection, in which case
// nothing changes.
func (r *Registry) MarkOffline(ctx context.Context, conn string) (Change, bool) {
	r.mu.Lock()
	userId, ok := r.conns[conn]
	r.mu.Unlock()
	if !ok {
		return Change{}, false
	}

	b := r.binding(userId)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != conn {
		// superseded between the lookup and taking the lock
		return Change{}, false
	}

	r.mu.Lock()
	delete(r.conns, conn)
	r.mu.Unlock()

	b.conn = ""
	b.online = false
	r.mirror(ctx, userId, false)

	return Change{UserId: userId, Online: false}, true
}

func (r *Registry) IsOnline(userId string) bool {
	r.mu.Lock()
	b, ok := r.bindings[userId]
	r.mu.Unlock()
	if !ok {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.online
}

// Online returns the identities that are currently online.
func (r *Registry) Online() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.conns))
	for _, userId := range r.conns {
		ids = append(ids, userId)
	}
	return ids
}

func (r *Registry) mirror(ctx context.Context, userId string, online bool) {
	for _, m := range r.mirrors {
		if err := m.SetPresence(ctx, userId, online); err != nil {
			r.log.Printf("presence mirror: %s online=%t: %v", userId, online, err)
		}
	}
}
