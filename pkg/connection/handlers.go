package connection

// Handlers carries one subscriber's callbacks for events on a shared
// connection. Any field may be nil. All handlers for one connection are
// invoked from that connection's reader goroutine, in subscriber
// registration order; OnOpen may additionally be invoked from inside
// Acquire when the connection is already open at acquisition time.
type Handlers struct {
	// OnOpen fires once the transport connection is established, or
	// immediately on acquisition of an already-open connection.
	OnOpen func()

	// OnMessage receives each text frame delivered by the transport.
	OnMessage func(data []byte)

	// OnError receives transport failures (dial errors, broken reads).
	// A close event follows separately.
	OnError func(err error)

	// OnClose fires exactly once, when the connection is gone.
	OnClose func(ev CloseEvent)
}

// CloseEvent describes how a connection ended.
type CloseEvent struct {
	// Code is the WebSocket close code. CloseAbnormalClosure when the
	// transport dropped without a close frame.
	Code int

	// Reason is the peer's close reason, if any.
	Reason string

	// Clean is true when the close was orderly: the peer sent a close
	// frame, or the registry itself shut the connection down.
	Clean bool
}

// Normal reports whether the connection ended with a clean normal closure.
func (e CloseEvent) Normal() bool {
	return e.Clean && e.Code == CloseNormalClosure
}
