package connection

import (
	"context"
	"slices"

	"github.com/oklog/ulid/v2"
)

// managed is one shared transport connection plus its subscriber
// bookkeeping. All mutable fields are guarded by the owning registry's
// mutex; the reader goroutine owns the conn's read side.
type managed struct {
	key string
	id  string

	conn       Conn
	dialCancel context.CancelFunc
	refCount   int
	opened     bool
	closing    bool
	subs       map[uint64]Handlers
	nextSub    uint64
}

func newManaged(key string) *managed {
	return &managed{
		key:  key,
		id:   ulid.Make().String(),
		subs: make(map[uint64]Handlers),
	}
}

// snapshotLocked returns m's handlers in registration order. Caller holds
// the registry mutex.
func snapshotLocked(m *managed) []Handlers {
	ids := make([]uint64, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	hs := make([]Handlers, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, m.subs[id])
	}
	return hs
}

// run dials and then pumps the connection. It is the only goroutine reading
// from the conn, and every handler invocation for this connection happens
// here, except the OnOpen replay documented on Acquire.
func (r *Registry) run(ctx context.Context, m *managed) {
	conn, err := r.dialer.Dial(ctx, m.key)
	if err != nil {
		r.log.Debug("stream dial failed", "conn", m.id, "endpoint", m.key, "err", err)
		r.teardown(m, err, closeEventFrom(err))
		return
	}

	r.mu.Lock()
	if m.closing {
		// Shut down while still dialing; the late conn is surplus.
		r.mu.Unlock()
		shutdownConn(conn)
		r.teardown(m, nil, CloseEvent{Code: CloseNormalClosure, Clean: true})
		return
	}
	m.conn = conn
	m.opened = true
	open := snapshotLocked(m)
	r.mu.Unlock()

	r.log.Debug("stream connected", "conn", m.id, "endpoint", m.key)
	for _, h := range open {
		if h.OnOpen != nil {
			r.invoke(m, "open", h.OnOpen)
		}
	}

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			r.teardown(m, err, closeEventFrom(err))
			return
		}
		r.mu.Lock()
		hs := snapshotLocked(m)
		r.mu.Unlock()
		for _, h := range hs {
			if h.OnMessage != nil {
				h := h
				r.invoke(m, "message", func() { h.OnMessage(data) })
			}
		}
	}
}

// teardown fans out the final events for m and drops it from the registry.
// Subscribers of a registry-initiated close observe an orderly closure
// whatever the read side reported.
func (r *Registry) teardown(m *managed, cause error, ev CloseEvent) {
	r.mu.Lock()
	if m.closing {
		ev = CloseEvent{Code: CloseNormalClosure, Clean: true}
		cause = nil
	}
	m.closing = true
	m.opened = false
	conn := m.conn
	hs := snapshotLocked(m)
	m.subs = nil
	if r.conns[m.key] == m {
		delete(r.conns, m.key)
	}
	r.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}

	if cause != nil && !ev.Clean {
		for _, h := range hs {
			if h.OnError != nil {
				h := h
				r.invoke(m, "error", func() { h.OnError(cause) })
			}
		}
	}

	r.log.Debug("stream closed", "conn", m.id, "endpoint", m.key, "code", ev.Code, "clean", ev.Clean)
	for _, h := range hs {
		if h.OnClose != nil {
			h := h
			r.invoke(m, "close", func() { h.OnClose(ev) })
		}
	}
}

// invoke runs one handler, containing its panics so the rest of a fan-out
// pass still runs.
func (r *Registry) invoke(m *managed, event string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("stream handler panicked", "conn", m.id, "event", event, "panic", rec)
		}
	}()
	fn()
}

// shutdownConn performs the orderly close handshake: close frame first,
// then transport close.
func shutdownConn(c Conn) {
	_ = c.WriteClose(CloseNormalClosure)
	_ = c.Close()
}
