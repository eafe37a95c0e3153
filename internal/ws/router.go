package ws

import (
	"errors"
	"sync"

	"taskhub/internal/metrics"

	"github.com/rs/zerolog"
)

var ErrUnknownConnection = errors.New("unknown connection")

// Router groups connections into topics and fans events out to them.
// Delivery never blocks: a subscriber whose buffer is full misses the frame.
type Router struct {
	presence *Presence
	metrics  *metrics.Metrics
	log      zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
	topics  map[string]map[string]struct{} // topic -> connection IDs
	subs    map[string]map[string]struct{} // connection ID -> topics
}

// NewRouter wires the router to the presence registry; presence changes are
// broadcast through the router from then on.
func NewRouter(p *Presence, m *metrics.Metrics, log zerolog.Logger) *Router {
	r := &Router{
		presence: p,
		metrics:  m,
		log:      log.With().Str("component", "router").Logger(),
		clients:  make(map[string]*Client),
		topics:   make(map[string]map[string]struct{}),
		subs:     make(map[string]map[string]struct{}),
	}
	p.attach(r)
	return r
}

func (r *Router) Presence() *Presence { return r.presence }

func (r *Router) Register(c *Client) {
	r.mu.Lock()
	r.clients[c.ID] = c
	r.subs[c.ID] = make(map[string]struct{})
	n := len(r.clients)
	r.mu.Unlock()
	r.metrics.SetConnections(n)
}

func (r *Router) Client(connID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[connID]
	return c, ok
}

// Join binds the connection to userID in the presence registry. Pushes to
// the user go through PublishToUser, which resolves the live connection from
// presence, so joining adds no topic subscription.
func (r *Router) Join(connID string, userID uint) error {
	c, ok := r.Client(connID)
	if !ok {
		return ErrUnknownConnection
	}
	c.setUser(userID)
	r.presence.Bind(userID, connID)
	return nil
}

// Disconnect drops every subscription of the connection and its presence
// entry before returning, then closes the client's send queue.
func (r *Router) Disconnect(connID string) {
	r.mu.Lock()
	c, ok := r.clients[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	for topic := range r.subs[connID] {
		r.removeLocked(connID, topic)
	}
	delete(r.subs, connID)
	delete(r.clients, connID)
	n := len(r.clients)
	r.mu.Unlock()

	r.metrics.SetConnections(n)
	r.presence.Unbind(connID)
	c.Close()
}

// Subscribe is idempotent.
func (r *Router) Subscribe(connID, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	topics, ok := r.subs[connID]
	if !ok {
		return ErrUnknownConnection
	}
	topics[topic] = struct{}{}
	members := r.topics[topic]
	if members == nil {
		members = make(map[string]struct{})
		r.topics[topic] = members
	}
	members[connID] = struct{}{}
	return nil
}

func (r *Router) Unsubscribe(connID, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(connID, topic)
}

func (r *Router) removeLocked(connID, topic string) {
	if topics := r.subs[connID]; topics != nil {
		delete(topics, topic)
	}
	if members := r.topics[topic]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.topics, topic)
		}
	}
}

func (r *Router) Subscribers(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}

func (r *Router) IsSubscribed(connID, topic string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.topics[topic][connID]
	return ok
}

// Publish delivers ev to every subscriber of topic except exclude and
// returns how many connections accepted it.
func (r *Router) Publish(topic string, ev Event, exclude string) int {
	data, ok := r.encode(ev)
	if !ok {
		return 0
	}
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.topics[topic]))
	for connID := range r.topics[topic] {
		if connID == exclude {
			continue
		}
		if c := r.clients[connID]; c != nil {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()
	return r.deliver(ev.Name, data, targets)
}

// PublishToUser pushes ev to the user's live connection. It reports false
// when the user is offline or their connection did not accept the frame;
// durable fallback is the caller's concern.
func (r *Router) PublishToUser(userID uint, ev Event) bool {
	connID, ok := r.presence.Resolve(userID)
	if !ok {
		return false
	}
	return r.SendTo(connID, ev)
}

func (r *Router) SendTo(connID string, ev Event) bool {
	c, ok := r.Client(connID)
	if !ok {
		return false
	}
	data, ok := r.encode(ev)
	if !ok {
		return false
	}
	return r.deliver(ev.Name, data, []*Client{c}) == 1
}

// Broadcast sends ev to every registered connection.
func (r *Router) Broadcast(ev Event) int {
	data, ok := r.encode(ev)
	if !ok {
		return 0
	}
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		targets = append(targets, c)
	}
	r.mu.RUnlock()
	return r.deliver(ev.Name, data, targets)
}

func (r *Router) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *Router) encode(ev Event) ([]byte, bool) {
	data, err := ev.Encode()
	if err != nil {
		r.log.Error().Err(err).Str("event", ev.Name).Msg("encode event")
		return nil, false
	}
	return data, true
}

func (r *Router) deliver(name string, data []byte, targets []*Client) int {
	n := 0
	for _, c := range targets {
		if c.Enqueue(data) {
			n++
			r.metrics.RecordPush(name, "delivered")
			continue
		}
		r.metrics.RecordPush(name, "dropped")
		r.log.Debug().Str("conn", c.ID).Str("event", name).Msg("send buffer full, frame dropped")
	}
	return n
}
