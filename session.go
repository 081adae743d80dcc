package docstream

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/docstream/docstream.go/pkg/connection"
	"github.com/docstream/docstream.go/pkg/logger"
)

// Session reconstructs one live document of type T from a patch stream.
//
// A session owns its document snapshot and its lifecycle: it acquires the
// shared connection for its endpoint from the registry, folds incoming
// patch batches into fresh snapshots, schedules reconnects with capped
// exponential backoff after unexpected closes, and stops for good once the
// stream's terminal message arrives. Many sessions may share one
// underlying connection; each keeps its own document and its own timers.
//
// All methods are safe for concurrent use.
type Session[T any] struct {
	conns Acquirer
	opts  Options[T]
	log   logger.Logger

	mu           sync.Mutex
	state        State
	endpoint     string
	raw          json.RawMessage
	doc          *T
	finished     bool
	connected    bool
	lastErr      error
	retryAttempt int
	retryTimer   *time.Timer
	release      func()

	// epoch identifies one enable cycle. Callbacks and timers carry the
	// epoch they were created under and are dropped once it moves on.
	epoch uint64
}

// NewSession builds a session streaming documents of type T through conns.
// It panics if conns or opts.InitialData is nil; both are required.
func NewSession[T any](conns Acquirer, opts Options[T]) *Session[T] {
	if conns == nil {
		panic("BUG: NewSession requires a connection registry")
	}
	if opts.InitialData == nil {
		panic("BUG: Options.InitialData is required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	opts.Backoff = opts.Backoff.withDefaults()
	return &Session[T]{
		conns: conns,
		opts:  opts,
		log:   log,
		state: StateIdle,
	}
}

// Enable points the session at endpoint and starts streaming. An invalid
// endpoint is rejected without touching the session. A session that is
// already enabled is torn down first, exactly as Disable does, then brought
// up against the new endpoint with a fresh document.
func (s *Session[T]) Enable(endpoint string) error {
	key, err := connection.Normalize(endpoint)
	if err != nil {
		return err
	}

	s.mu.Lock()
	var notify []func()
	s.teardownLocked(&notify)
	epoch := s.epoch
	s.endpoint = key
	if err := s.initDocumentLocked(&notify); err != nil {
		s.mu.Unlock()
		fire(notify)
		return err
	}
	s.log.Debug("session enabled", "endpoint", key)
	s.transitionLocked(StateConnecting, &notify)
	s.mu.Unlock()
	fire(notify)

	s.attach(epoch, key)
	return nil
}

// Disable stops streaming and resets the session to Idle: the connection
// handle is released, any pending retry is cancelled, and the document is
// discarded. Safe to call at any time, repeatedly.
func (s *Session[T]) Disable() {
	s.mu.Lock()
	var notify []func()
	s.teardownLocked(&notify)
	s.mu.Unlock()
	fire(notify)
}

// Document returns the current snapshot, if one exists. Snapshots are
// immutable: later patches produce new values, never mutations of
// previously returned ones.
func (s *Session[T]) Document() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		var zero T
		return zero, false
	}
	return *s.doc, true
}

// Connected reports whether the transport is open right now, independent
// of whether Err is set.
func (s *Session[T]) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Err returns the most recent transport, parse, or apply error. A
// successful (re)connection clears it.
func (s *Session[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Finished reports whether the stream ended with a terminal message.
func (s *Session[T]) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// State returns the session's lifecycle state.
func (s *Session[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Endpoint returns the normalized endpoint while enabled, "" otherwise.
func (s *Session[T]) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

// attach acquires the shared connection for this cycle and stores the
// release handle. Handlers may fire synchronously inside Acquire (open
// replay on an already-open connection), so the handle is only stored if
// the session is still in this cycle and not terminal once Acquire
// returns.
func (s *Session[T]) attach(epoch uint64, endpoint string) {
	release, err := s.conns.Acquire(endpoint, s.handlersFor(epoch))
	if err != nil {
		// Normalize already succeeded in Enable, so this is a registry
		// failure, not a bad endpoint.
		s.onError(epoch, err)
		s.onClose(epoch, connection.CloseEvent{Code: connection.CloseAbnormalClosure})
		return
	}

	s.mu.Lock()
	if s.epoch != epoch || (s.state != StateConnecting && s.state != StateStreaming) {
		s.mu.Unlock()
		release()
		return
	}
	s.release = release
	s.mu.Unlock()
}

func (s *Session[T]) handlersFor(epoch uint64) connection.Handlers {
	return connection.Handlers{
		OnOpen:    func() { s.onOpen(epoch) },
		OnMessage: func(data []byte) { s.onMessage(epoch, data) },
		OnError:   func(err error) { s.onError(epoch, err) },
		OnClose:   func(ev connection.CloseEvent) { s.onClose(epoch, ev) },
	}
}

func (s *Session[T]) onOpen(epoch uint64) {
	s.mu.Lock()
	var notify []func()
	if s.epoch == epoch && s.state == StateConnecting {
		s.connected = true
		s.lastErr = nil
		s.retryAttempt = 0
		s.cancelRetryLocked()
		s.log.Debug("session streaming", "endpoint", s.endpoint)
		s.transitionLocked(StateStreaming, &notify)
	}
	s.mu.Unlock()
	fire(notify)
}

func (s *Session[T]) onMessage(epoch uint64, data []byte) {
	msg, parseErr := parseMessage(data)

	s.mu.Lock()
	if s.epoch != epoch || (s.state != StateConnecting && s.state != StateStreaming) {
		s.mu.Unlock()
		return
	}
	if parseErr != nil {
		s.lastErr = parseErr
		s.log.Warn("session dropped frame", "endpoint", s.endpoint, "err", parseErr)
		s.mu.Unlock()
		return
	}

	var notify []func()
	if msg.Finished {
		s.finished = true
		s.connected = false
		if rel := s.release; rel != nil {
			s.release = nil
			notify = append(notify, rel)
		}
		s.cancelRetryLocked()
		s.log.Debug("session finished", "endpoint", s.endpoint)
		s.transitionLocked(StateFinished, &notify)
		s.mu.Unlock()
		fire(notify)
		return
	}

	ops := msg.Patches
	if s.opts.DeduplicatePatches != nil {
		ops = s.opts.DeduplicatePatches(ops)
	}
	if len(ops) == 0 || s.raw == nil {
		s.mu.Unlock()
		return
	}
	raw, doc, err := applyPatches[T](s.raw, ops)
	if err != nil {
		s.lastErr = err
		s.log.Warn("session kept previous snapshot", "endpoint", s.endpoint, "err", err)
		s.mu.Unlock()
		return
	}
	s.raw = raw
	s.doc = doc
	s.publishLocked(&notify)
	s.mu.Unlock()
	fire(notify)
}

func (s *Session[T]) onError(epoch uint64, err error) {
	s.mu.Lock()
	if s.epoch == epoch && (s.state == StateConnecting || s.state == StateStreaming) {
		s.lastErr = err
		s.log.Warn("session transport error", "endpoint", s.endpoint, "err", err)
	}
	s.mu.Unlock()
}

func (s *Session[T]) onClose(epoch uint64, ev connection.CloseEvent) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	var notify []func()
	if rel := s.release; rel != nil {
		// The connection is gone; releasing a dead handle is a no-op.
		s.release = nil
		notify = append(notify, rel)
	}
	s.connected = false

	switch {
	case s.finished || s.state.Terminal():
		// Terminal stays terminal whatever the close code.
	case s.state != StateConnecting && s.state != StateStreaming:
		// Idle, or already waiting on a retry.
	case ev.Normal():
		s.log.Debug("session closed by peer", "endpoint", s.endpoint)
		s.transitionLocked(StateClosed, &notify)
	default:
		delay := s.opts.Backoff.Delay(s.retryAttempt)
		s.retryAttempt++
		s.log.Debug("session reconnecting",
			"endpoint", s.endpoint, "attempt", s.retryAttempt, "delay", delay,
			"code", ev.Code)
		s.transitionLocked(StateReconnectPending, &notify)
		s.armRetryLocked(epoch, delay)
	}
	s.mu.Unlock()
	fire(notify)
}

// armRetryLocked schedules the single reconnect timer. Arming while one is
// already pending is a no-op.
func (s *Session[T]) armRetryLocked(epoch uint64, delay time.Duration) {
	if s.retryTimer != nil {
		return
	}
	s.retryTimer = time.AfterFunc(delay, func() { s.retryFire(epoch) })
}

func (s *Session[T]) retryFire(epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch || s.state != StateReconnectPending {
		s.mu.Unlock()
		return
	}
	s.retryTimer = nil
	endpoint := s.endpoint
	var notify []func()
	s.transitionLocked(StateConnecting, &notify)
	s.mu.Unlock()
	fire(notify)

	s.attach(epoch, endpoint)
}

func (s *Session[T]) cancelRetryLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

// teardownLocked resets the session to Idle and invalidates everything in
// flight. Idempotent.
func (s *Session[T]) teardownLocked(notify *[]func()) {
	s.epoch++
	if rel := s.release; rel != nil {
		s.release = nil
		*notify = append(*notify, rel)
	}
	s.cancelRetryLocked()
	s.retryAttempt = 0
	s.finished = false
	s.connected = false
	s.lastErr = nil
	s.raw = nil
	s.doc = nil
	s.transitionLocked(StateIdle, notify)
	s.endpoint = ""
}

// initDocumentLocked builds the initial document and publishes it.
func (s *Session[T]) initDocumentLocked(notify *[]func()) error {
	doc := s.opts.InitialData()
	if s.opts.InjectInitialEntry != nil {
		s.opts.InjectInitialEntry(&doc)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		s.teardownLocked(notify)
		return fmt.Errorf("encode initial document: %w", err)
	}
	s.raw = raw
	s.doc = &doc
	s.publishLocked(notify)
	return nil
}

// publishLocked queues OnUpdate with the current snapshot. Queued
// callbacks run after the session lock is dropped.
func (s *Session[T]) publishLocked(notify *[]func()) {
	if s.opts.OnUpdate == nil || s.doc == nil {
		return
	}
	doc := *s.doc
	fn := s.opts.OnUpdate
	*notify = append(*notify, func() { fn(doc) })
}

func (s *Session[T]) transitionLocked(next State, notify *[]func()) {
	if s.state == next {
		return
	}
	s.log.Debug("session state changed", "endpoint", s.endpoint, "from", s.state, "to", next)
	s.state = next
	if fn := s.opts.OnStateChange; fn != nil {
		*notify = append(*notify, func() { fn(next) })
	}
}

func fire(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
