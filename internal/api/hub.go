package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/gptprojectmanager/utxoracle-go/internal/store"
)

const (
	heartbeatInterval = 30 * time.Second
	heartbeatTimeout   = 90 * time.Second
	maxMissedPongs     = 3

	writeDeadline = 5 * time.Second

	// per-subscriber inbound message budget: 20/s sustained, burst 10.
	subscriberRateLimit = 20
	subscriberBurst     = 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Subscriber is one connected WebSocket client: a unique identifier, a
// channel set, a monotonic outbound sequence number, and heartbeat
// bookkeeping.
type Subscriber struct {
	ID      string
	conn    *websocket.Conn
	limiter *rate.Limiter

	// writeMu serializes writes to conn, which readLoop replies and
	// BroadcastUpdate issue from different goroutines.
	writeMu sync.Mutex

	mu           sync.Mutex
	channels     map[string]bool
	seq          uint64
	lastActivity time.Time
	missedPongs  int
}

func newSubscriber(conn *websocket.Conn) *Subscriber {
	return &Subscriber{
		ID:           uuid.NewString(),
		conn:         conn,
		limiter:      rate.NewLimiter(rate.Limit(subscriberRateLimit), subscriberBurst),
		channels:     make(map[string]bool),
		lastActivity: time.Now(),
	}
}

// touch records that a message was received from the subscriber, resetting
// both the idle clock and the missed-heartbeat counter.
func (s *Subscriber) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.missedPongs = 0
	s.mu.Unlock()
}

func (s *Subscriber) nextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

func (s *Subscriber) send(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Subscriber) sendAck(status string, channels []string, requestSeq uint64) {
	now := time.Now().UnixMilli()
	msg := AckMessage{
		Type:               TypeAck,
		Timestamp:          now,
		Sequence:           s.nextSeq(),
		RequestSequence:    requestSeq,
		Status:             status,
		SubscribedChannels: channels,
		ServerTime:         now,
	}
	if err := s.send(mustJSON(msg)); err != nil {
		log.Printf("api: subscriber ack write failed: %v", err)
	}
}

func (s *Subscriber) sendError(code, message string, retryAfter *int) {
	now := time.Now().UnixMilli()
	msg := ErrorMessage{
		Type:       TypeError,
		Timestamp:  now,
		Sequence:   s.nextSeq(),
		Code:       code,
		Message:    message,
		RetryAfter: retryAfter,
	}
	if err := s.send(mustJSON(msg)); err != nil {
		log.Printf("api: subscriber error write failed: %v", err)
	}
}

func (s *Subscriber) sendPong(pingSeq uint64) {
	now := time.Now().UnixMilli()
	msg := PongMessage{
		Type:         TypePong,
		Timestamp:    now,
		Sequence:     s.nextSeq(),
		PingSequence: pingSeq,
		ServerTime:   now,
	}
	if err := s.send(mustJSON(msg)); err != nil {
		log.Printf("api: subscriber pong write failed: %v", err)
	}
}

func (s *Subscriber) sendHistory(points []HistoryPoint, requestSeq uint64) {
	msg := HistoryMessage{
		Type:            TypeHistory,
		Timestamp:       time.Now().UnixMilli(),
		Sequence:        s.nextSeq(),
		RequestSequence: requestSeq,
		Points:          points,
	}
	if err := s.send(mustJSON(msg)); err != nil {
		log.Printf("api: subscriber history write failed: %v", err)
	}
}

func (s *Subscriber) subscribedTo(channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channels[channel]
}

func (s *Subscriber) setChannels(channels []string, subscribe bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range channels {
		if subscribe {
			s.channels[ch] = true
		} else {
			delete(s.channels, ch)
		}
	}
}

// Hub maintains the set of connected subscribers and fans price updates out
// to every subscriber of the "price" channel. One goroutine per subscriber
// handles its inbound reads; broadcast writes happen from whichever
// goroutine calls BroadcastUpdate (the pipeline orchestrator's T-bcast
// tick). mu guards the subscriber set; each subscriber's writeMu
// serializes the writes to its connection.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]bool
	auth        *Authenticator
	budget      *ConnectionBudget
	store       *store.Store
}

// NewHub returns an empty hub. auth and budget may be nil to disable token
// validation and connection-attempt budgeting respectively (dev mode). st
// may be nil, in which case historical_request is answered with an error
// pointing callers at GET /history instead.
func NewHub(auth *Authenticator, budget *ConnectionBudget, st *store.Store) *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]bool),
		auth:        auth,
		budget:      budget,
		store:       st,
	}
}

func (h *Hub) add(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[s] = true
}

func (h *Hub) remove(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, s)
}

// Count returns the number of currently connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// BroadcastUpdate sends an UpdateMessage to every subscriber of the "price"
// channel. Each subscriber gets its own sequence number and its own write.
// Writes happen one after another from this single caller, matching the
// orchestrator's single coalesced broadcast tick rather than per-client
// goroutines, so a slow subscriber delays the ones after it by at most
// writeDeadline.
func (h *Hub) BroadcastUpdate(update UpdateMessage) {
	h.mu.RLock()
	targets := make([]*Subscriber, 0, len(h.subscribers))
	for s := range h.subscribers {
		if s.subscribedTo("price") {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		update.Sequence = s.nextSeq()
		update.Timestamp = time.Now().UnixMilli()
		if err := s.send(mustJSON(update)); err != nil {
			log.Printf("api: broadcast write failed, dropping subscriber: %v", err)
			s.conn.Close()
			h.remove(s)
		}
	}
}

// Serve upgrades an HTTP request to a WebSocket connection, validates the
// auth token and connection-attempt budget, and runs the subscriber's
// read loop and heartbeat monitor until disconnect.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	sourceIP := clientIP(r)
	if h.budget != nil && !h.budget.Allow(sourceIP) {
		http.Error(w, "connection attempt budget exceeded", http.StatusTooManyRequests)
		return
	}
	if h.auth != nil {
		token := r.URL.Query().Get("token")
		if !h.auth.Validate(token) {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("api: websocket upgrade failed: %v", err)
		return
	}

	sub := newSubscriber(conn)
	sub.sendAck("connected", nil, 0)
	h.add(sub)
	log.Printf("api: subscriber %s connected (%d active)", sub.ID, h.Count())

	done := make(chan struct{})
	go h.heartbeatMonitor(sub, done)
	h.readLoop(r.Context(), sub, done)

	h.remove(sub)
	conn.Close()
	log.Printf("api: subscriber disconnected (%d active)", h.Count())
}

// heartbeatMonitor enforces two disconnect triggers against a single
// subscriber: a hard idle cutoff (closes as soon as the subscriber has
// gone silent for more than heartbeatTimeout) and a missed-heartbeat
// counter (closes after maxMissedPongs consecutive ticks at which the
// subscriber had been silent for at least heartbeatInterval). Any inbound
// message resets the counter through touch, so both triggers fire only
// after roughly heartbeatTimeout of silence.
func (h *Hub) heartbeatMonitor(s *Subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.mu.Lock()
			silent := time.Since(s.lastActivity)
			if silent > heartbeatTimeout {
				s.mu.Unlock()
				log.Printf("api: subscriber %s idle for %s, closing", s.ID, silent)
				s.conn.Close()
				return
			}
			if silent >= heartbeatInterval {
				s.missedPongs++
			} else {
				s.missedPongs = 0
			}
			miss := s.missedPongs
			s.mu.Unlock()
			if miss >= maxMissedPongs {
				log.Printf("api: subscriber %s missed %d heartbeats, closing", s.ID, miss)
				s.conn.Close()
				return
			}
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, s *Subscriber, done chan<- struct{}) {
	defer close(done)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("api: websocket read error: %v", err)
			}
			return
		}

		s.touch()

		if !s.limiter.Allow() {
			s.sendError("rate_limited", "message rate limit exceeded", intPtr(1))
			continue
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.sendError("bad_request", "malformed message", nil)
			continue
		}

		switch env.Type {
		case TypeSubscribe:
			s.setChannels(env.Channels, true)
			s.sendAck("subscribed", env.Channels, env.Sequence)
		case TypeUnsubscribe:
			s.setChannels(env.Channels, false)
			s.sendAck("unsubscribed", env.Channels, env.Sequence)
		case TypePing:
			s.sendPong(env.Sequence)
		case TypeHistoricalRequest:
			points, err := queryHistory(ctx, h.store, env.Since)
			if err != nil {
				s.sendError("unsupported", "use GET /history for historical_request", nil)
				continue
			}
			s.sendHistory(points, env.Sequence)
		default:
			s.sendError("bad_request", "unknown message type: "+env.Type, nil)
		}
	}
}

func intPtr(v int) *int { return &v }
