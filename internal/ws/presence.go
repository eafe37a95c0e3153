package ws

import (
	"sort"
	"sync"

	"taskhub/internal/domain"
	"taskhub/internal/metrics"
)

type broadcaster interface {
	Broadcast(ev Event) int
}

// Presence maps each user to at most one live connection. A newer bind for
// the same user replaces the older one; the older connection stays open but
// no longer receives user-addressed pushes.
type Presence struct {
	mu     sync.RWMutex
	byUser map[uint]string
	byConn map[string]uint

	out     broadcaster
	metrics *metrics.Metrics
}

func NewPresence(m *metrics.Metrics) *Presence {
	return &Presence{
		byUser:  make(map[uint]string),
		byConn:  make(map[string]uint),
		metrics: m,
	}
}

func (p *Presence) attach(out broadcaster) {
	p.mu.Lock()
	p.out = out
	p.mu.Unlock()
}

// Bind registers connID as the live connection for userID and returns the
// connection it replaced ("" if none).
func (p *Presence) Bind(userID uint, connID string) string {
	p.mu.Lock()
	prev := p.byUser[userID]
	if prev != "" && prev != connID {
		delete(p.byConn, prev)
	}
	// a connection re-joining as somebody else leaves its old identity
	var left uint
	if old, ok := p.byConn[connID]; ok && old != userID && p.byUser[old] == connID {
		delete(p.byUser, old)
		left = old
	}
	p.byUser[userID] = connID
	p.byConn[connID] = userID
	online := len(p.byUser)
	out := p.out
	p.mu.Unlock()

	p.metrics.SetOnlineUsers(online)
	if out != nil {
		if left != 0 {
			out.Broadcast(NewEvent(domain.EventUserOffline, PresencePayload{UserID: left}))
		}
		out.Broadcast(NewEvent(domain.EventUserOnline, PresencePayload{UserID: userID}))
	}
	if prev == connID {
		return ""
	}
	return prev
}

// Unbind removes the entry owned by connID. A connection that was replaced
// by a newer bind no longer owns an entry, so unbinding it changes nothing.
func (p *Presence) Unbind(connID string) (uint, bool) {
	p.mu.Lock()
	userID, ok := p.byConn[connID]
	if !ok || p.byUser[userID] != connID {
		p.mu.Unlock()
		return 0, false
	}
	delete(p.byConn, connID)
	delete(p.byUser, userID)
	online := len(p.byUser)
	out := p.out
	p.mu.Unlock()

	p.metrics.SetOnlineUsers(online)
	if out != nil {
		out.Broadcast(NewEvent(domain.EventUserOffline, PresencePayload{UserID: userID}))
	}
	return userID, true
}

func (p *Presence) Resolve(userID uint) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	connID, ok := p.byUser[userID]
	return connID, ok
}

func (p *Presence) IsOnline(userID uint) bool {
	_, ok := p.Resolve(userID)
	return ok
}

// ListOnline returns the online user IDs in ascending order.
func (p *Presence) ListOnline() []uint {
	p.mu.RLock()
	ids := make([]uint, 0, len(p.byUser))
	for id := range p.byUser {
		ids = append(ids, id)
	}
	p.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
