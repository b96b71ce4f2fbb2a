// Package feed maintains the live WebSocket subscriptions: candles, price,
// market stats and open positions. Connections are pooled and ref-counted
// by stream key; one connection serves every subscriber of the same key
// and closes only when the last subscriber leaves.
package feed

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/Tumo-Markets/Tumo-MVP/pkg/logger"
)

// ReconnectPolicy controls reconnection after an unexpected close. The
// delay is fixed, not exponential: these feeds are display-grade and a
// steady 3s cadence matches the product behavior.
type ReconnectPolicy struct {
	BaseDelay   time.Duration
	MaxAttempts int // 0 = retry forever while subscribers remain
}

// DefaultReconnectPolicy retries every 3 seconds, indefinitely.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{BaseDelay: 3 * time.Second, MaxAttempts: 0}
}

// Subscription is one subscriber's handle on a stream. Updates delivers
// decoded messages; the channel closes when the subscriber unsubscribes or
// the pool shuts down.
type Subscription struct {
	id      uuid.UUID
	key     StreamKey
	updates chan Message
	pool    *Pool
	once    sync.Once
}

// Updates returns the message channel. Slow consumers lose old messages
// rather than stalling the feed: state is last-write-wins anyway.
func (s *Subscription) Updates() <-chan Message { return s.updates }

// Key returns the stream key this subscription is attached to.
func (s *Subscription) Key() StreamKey { return s.key }

// Unsubscribe detaches from the stream. The underlying connection closes
// only if this was the last subscriber on the key.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() { s.pool.unsubscribe(s) })
}

// Pool owns every feed connection. Construct once at application start,
// Shutdown at exit.
type Pool struct {
	wsBase string
	dialer *websocket.Dialer
	policy ReconnectPolicy

	mu     sync.Mutex
	conns  map[string]*managedConn
	closed bool
}

// NewPool creates a pool rooted at wsBase
// (e.g. wss://backend-product.futstar.fun/api/v1/ws).
func NewPool(wsBase string, policy ReconnectPolicy) *Pool {
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 3 * time.Second
	}
	return &Pool{
		wsBase: strings.TrimSuffix(wsBase, "/"),
		dialer: websocket.DefaultDialer,
		policy: policy,
		conns:  make(map[string]*managedConn),
	}
}

// Subscribe attaches to the stream identified by key, sharing an existing
// connection when one is live. The latest message per envelope type is
// replayed immediately so late subscribers start from current state.
func (p *Pool) Subscribe(key StreamKey) (*Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New("feed pool is shut down")
	}

	mc, ok := p.conns[key.String()]
	if !ok {
		mc = newManagedConn(p, key)
		p.conns[key.String()] = mc
		go mc.run()
	}

	sub := &Subscription{
		id:      uuid.New(),
		key:     key,
		updates: make(chan Message, 16),
		pool:    p,
	}
	mc.addSubscriber(sub)
	return sub, nil
}

// SubscriberCount reports the number of active subscribers on a key.
func (p *Pool) SubscriberCount(key StreamKey) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	mc, ok := p.conns[key.String()]
	if !ok {
		return 0
	}
	return mc.subscriberCount()
}

// ConnectionCount reports the number of live pooled connections.
func (p *Pool) ConnectionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Shutdown closes every connection and subscriber channel.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	conns := make([]*managedConn, 0, len(p.conns))
	for _, mc := range p.conns {
		conns = append(conns, mc)
	}
	p.conns = make(map[string]*managedConn)
	p.mu.Unlock()

	for _, mc := range conns {
		mc.stop()
	}
}

func (p *Pool) unsubscribe(s *Subscription) {
	p.mu.Lock()
	mc, ok := p.conns[s.key.String()]
	if !ok {
		// Pool already shut down; channels were closed there.
		p.mu.Unlock()
		return
	}
	last := mc.removeSubscriber(s)
	if last {
		delete(p.conns, s.key.String())
	}
	p.mu.Unlock()

	if last {
		mc.stop()
	}
}

// managedConn is one pooled connection plus its subscriber set and the
// last-write-wins snapshot per message type.
type managedConn struct {
	pool *Pool
	key  StreamKey
	url  string

	mu          sync.Mutex
	subscribers map[uuid.UUID]*Subscription
	snapshots   map[string]Message
	conn        *websocket.Conn
	stopped     bool

	stopCh chan struct{}
}

func newManagedConn(p *Pool, key StreamKey) *managedConn {
	return &managedConn{
		pool:        p,
		key:         key,
		url:         p.wsBase + key.path,
		subscribers: make(map[uuid.UUID]*Subscription),
		snapshots:   make(map[string]Message),
		stopCh:      make(chan struct{}),
	}
}

func (mc *managedConn) addSubscriber(s *Subscription) {
	mc.mu.Lock()
	mc.subscribers[s.id] = s
	// Replay latest known state so the subscriber does not wait for the
	// next server push.
	for _, msg := range mc.snapshots {
		select {
		case s.updates <- msg:
		default:
		}
	}
	mc.mu.Unlock()
}

// removeSubscriber detaches and closes the subscriber's channel, reporting
// whether it was the last one. Closing under mc.mu keeps fan-out from ever
// writing to a closed channel.
func (mc *managedConn) removeSubscriber(s *Subscription) bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if _, ok := mc.subscribers[s.id]; ok {
		delete(mc.subscribers, s.id)
		close(s.updates)
	}
	return len(mc.subscribers) == 0
}

func (mc *managedConn) subscriberCount() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.subscribers)
}

func (mc *managedConn) stop() {
	mc.mu.Lock()
	if mc.stopped {
		mc.mu.Unlock()
		return
	}
	mc.stopped = true
	conn := mc.conn
	for _, s := range mc.subscribers {
		close(s.updates)
	}
	mc.subscribers = make(map[uuid.UUID]*Subscription)
	mc.mu.Unlock()

	close(mc.stopCh)
	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}
}

// run owns the connection lifecycle: dial, read until failure, reconnect
// per policy while subscribers remain.
func (mc *managedConn) run() {
	attempts := 0
	for {
		select {
		case <-mc.stopCh:
			return
		default:
		}

		conn, _, err := mc.pool.dialer.Dial(mc.url, nil)
		if err != nil {
			attempts++
			if mc.giveUp(attempts) {
				return
			}
			logger.WithField("stream", mc.key.String()).
				Warnf("feed dial failed (attempt %d): %v", attempts, err)
			if !mc.sleep() {
				return
			}
			continue
		}

		mc.mu.Lock()
		if mc.stopped {
			mc.mu.Unlock()
			_ = conn.Close()
			return
		}
		mc.conn = conn
		mc.mu.Unlock()

		attempts = 0
		logger.WithField("stream", mc.key.String()).Debug("feed connected")

		mc.readLoop(conn)

		mc.mu.Lock()
		mc.conn = nil
		stopped := mc.stopped
		mc.mu.Unlock()
		if stopped {
			return
		}

		logger.WithField("stream", mc.key.String()).Debug("feed disconnected, reconnecting")
		if !mc.sleep() {
			return
		}
	}
}

func (mc *managedConn) giveUp(attempts int) bool {
	if mc.pool.policy.MaxAttempts == 0 {
		return false
	}
	if attempts < mc.pool.policy.MaxAttempts {
		return false
	}
	logger.WithField("stream", mc.key.String()).
		Errorf("feed giving up after %d attempts", attempts)
	return true
}

func (mc *managedConn) sleep() bool {
	select {
	case <-mc.stopCh:
		return false
	case <-time.After(mc.pool.policy.BaseDelay):
		return true
	}
}

func (mc *managedConn) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logger.WithField("stream", mc.key.String()).
				Debugf("dropping malformed feed message: %v", err)
			continue
		}
		// Unrecognized envelope types are ignored, not errored: the server
		// may add message kinds at any time.
		if env.Type == "" {
			continue
		}
		msg := Message{Type: env.Type, Raw: json.RawMessage(raw)}
		mc.fanOut(msg)
	}
}

func (mc *managedConn) fanOut(msg Message) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.snapshots[msg.Type] = msg
	for _, s := range mc.subscribers {
		select {
		case s.updates <- msg:
		default:
			// Drop for slow consumers; the snapshot above keeps the latest
			// state available.
		}
	}
}
