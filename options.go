package docstream

import (
	"github.com/docstream/docstream.go/pkg/connection"
	"github.com/docstream/docstream.go/pkg/logger"
)

// Acquirer is the part of the connection registry a session uses.
// *connection.Registry satisfies it.
type Acquirer interface {
	Acquire(endpoint string, h connection.Handlers) (func(), error)
}

// Options configures a session over documents of type T.
type Options[T any] struct {
	// InitialData constructs the empty document. Required: patches fold
	// into whatever this returns, so it must marshal to a patchable JSON
	// value (usually an object).
	InitialData func() T

	// InjectInitialEntry, when set, seeds derived fields on the fresh
	// document once per enable, before any patch arrives.
	InjectInitialEntry func(*T)

	// DeduplicatePatches, when set, filters each incoming batch before it
	// is applied. It may drop operations but must preserve the relative
	// order of the survivors; application is order-dependent.
	DeduplicatePatches func(ops []PatchOp) []PatchOp

	// OnUpdate receives every published snapshot, including the initial
	// document.
	OnUpdate func(doc T)

	// OnStateChange observes lifecycle transitions.
	OnStateChange func(state State)

	// Backoff paces reconnect attempts. Zero value means DefaultBackoff.
	Backoff Backoff

	// Logger receives session logs. Nil discards them.
	Logger logger.Logger
}
