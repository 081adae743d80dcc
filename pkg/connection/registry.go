// Package connection implements the shared-connection registry: at most one
// live WebSocket connection per normalized endpoint, reference-counted
// across the subscribers that acquired it, with transport events fanned out
// to every subscriber in registration order.
//
// Fan-out uses snapshot semantics: the subscriber list is captured under the
// registry lock and invoked outside it, so acquiring or releasing during a
// fan-out pass never corrupts the pass. A subscriber released mid-pass may
// still observe that pass's event; nothing is delivered to it afterwards.
package connection

import (
	"context"
	"sync"

	"github.com/docstream/docstream.go/pkg/logger"
)

// Registry owns the shared connections. Use NewRegistry; the zero value has
// no dialer.
type Registry struct {
	mu     sync.Mutex
	conns  map[string]*managed
	dialer Dialer
	log    logger.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithDialer replaces the transport dialer. Tests use it to run against an
// in-process transport.
func WithDialer(d Dialer) Option {
	return func(r *Registry) { r.dialer = d }
}

// WithLogger sets the registry's logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// NewRegistry returns an empty registry dialing with DefaultDialer unless
// configured otherwise.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		conns:  make(map[string]*managed),
		dialer: DefaultDialer,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire returns a handle on the shared connection for endpoint, dialing
// one if none exists or the existing one is already closing. h is
// registered for the connection's events.
//
// The returned release is idempotent: the first call unregisters h and
// decrements the reference count, initiating close when it reaches zero;
// further calls, and calls after the connection is already gone, are
// no-ops. If the connection is already open at acquisition time, h.OnOpen
// is invoked before Acquire returns.
func (r *Registry) Acquire(endpoint string, h Handlers) (func(), error) {
	key, err := Normalize(endpoint)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	m := r.conns[key]
	if m == nil || m.closing {
		m = newManaged(key)
		r.conns[key] = m
		ctx, cancel := context.WithCancel(context.Background())
		m.dialCancel = cancel
		r.log.Debug("stream dialing", "conn", m.id, "endpoint", key)
		go r.run(ctx, m)
	}
	m.refCount++
	id := m.nextSub
	m.nextSub++
	m.subs[id] = h
	replayOpen := m.opened
	r.mu.Unlock()

	if replayOpen && h.OnOpen != nil {
		r.invoke(m, "open", h.OnOpen)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.release(m, id)
		})
	}
	return release, nil
}

// release is the body of the closure handed out by Acquire.
func (r *Registry) release(m *managed, id uint64) {
	var (
		conn   Conn
		cancel context.CancelFunc
	)
	r.mu.Lock()
	delete(m.subs, id)
	if m.refCount > 0 {
		m.refCount--
	}
	if m.refCount == 0 && !m.closing {
		m.closing = true
		conn = m.conn
		cancel = m.dialCancel
		r.log.Debug("stream closing", "conn", m.id, "endpoint", m.key)
	}
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		shutdownConn(conn)
	}
}

// CloseEndpoint force-closes the connection for endpoint, if one is live
// and not already closing. Attached subscribers observe an orderly close.
func (r *Registry) CloseEndpoint(endpoint string) {
	key, err := Normalize(endpoint)
	if err != nil {
		return
	}

	var (
		conn   Conn
		cancel context.CancelFunc
	)
	r.mu.Lock()
	if m := r.conns[key]; m != nil && !m.closing {
		m.closing = true
		conn = m.conn
		cancel = m.dialCancel
		r.log.Debug("stream closing", "conn", m.id, "endpoint", m.key)
	}
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		shutdownConn(conn)
	}
}

// CloseAll force-closes every live connection and empties the registry.
func (r *Registry) CloseAll() {
	type victim struct {
		conn   Conn
		cancel context.CancelFunc
	}

	r.mu.Lock()
	victims := make([]victim, 0, len(r.conns))
	for key, m := range r.conns {
		if !m.closing {
			m.closing = true
			victims = append(victims, victim{conn: m.conn, cancel: m.dialCancel})
		}
		delete(r.conns, key)
	}
	r.mu.Unlock()

	for _, v := range victims {
		if v.cancel != nil {
			v.cancel()
		}
		if v.conn != nil {
			shutdownConn(v.conn)
		}
	}
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
