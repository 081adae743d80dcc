package docstream

import "fmt"

// State identifies where a session is in its lifecycle.
type State int

const (
	// StateIdle means the session is not enabled: no document, no
	// connection.
	StateIdle State = iota

	// StateConnecting means a connection handle is acquired but the
	// transport is not open yet.
	StateConnecting

	// StateStreaming means the transport is open and patches are being
	// folded into the document.
	StateStreaming

	// StateReconnectPending means the transport was lost unexpectedly and
	// the retry timer is armed.
	StateReconnectPending

	// StateFinished means the stream's terminal message was observed. The
	// session never reconnects from here.
	StateFinished

	// StateClosed means the peer closed cleanly without a terminal
	// message. The session never reconnects from here.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateReconnectPending:
		return "reconnect_pending"
	case StateFinished:
		return "finished"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether the session can never reconnect from s.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateClosed
}
