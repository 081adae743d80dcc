// The [docstream] package keeps live JSON documents in sync over shared
// WebSocket connections.
//
// A server publishes a document as a stream of JSON Patch (RFC 6902)
// batches. Each consumer runs a [Session], which folds those batches into
// an immutable local snapshot of a Go value and hands every new snapshot
// to the application. Sessions never mutate a snapshot they have already
// published; every update is a fresh value.
//
// # Connection Sharing
//
// Sessions do not dial on their own. They borrow connections from a
// [github.com/docstream/docstream.go/pkg/connection.Registry], which keeps
// at most one WebSocket per endpoint and fans incoming traffic out to
// every consumer attached to it. Two sessions enabled against the same
// endpoint share one socket; the socket is dialed when the first consumer
// arrives and shut down when the last one leaves.
//
// # Lifecycle
//
// [Session.Enable] points a session at an endpoint and starts streaming;
// [Session.Disable] stops it and discards the document. In between, the
// session moves through the [State] values: it reconnects with capped
// exponential backoff after unexpected drops, stops quietly when the
// server closes with a normal closure, and stops for good once the stream
// publishes its terminal message. Malformed or inapplicable frames are
// recorded on [Session.Err] and skipped; they never drop the connection.
//
// # Wire Format
//
// Each text frame is a JSON object carrying either a patch batch or the
// terminal marker:
//
//	{"JsonPatch": [{"op": "replace", "path": "/title", "value": "hi"}]}
//	{"finished": true}
//
// Endpoints may be given as http(s) URLs; they normalize to ws(s) before
// dialing, so "http://host/stream" and "ws://host/stream" name the same
// connection.
package docstream
