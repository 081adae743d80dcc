package docstream

import (
	"encoding/json"
	"fmt"
)

// PatchOp is one RFC 6902 operation as it appears on the wire. Value is
// kept raw so JSON null survives a round trip.
type PatchOp struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	From  string          `json:"from,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// streamMessage is a decoded frame: either a patch batch or a terminal
// marker.
type streamMessage struct {
	Patches  []PatchOp
	Finished bool
}

// wireMessage is the envelope. A true finished field wins over any patch
// batch in the same frame; a false one defers to the batch, or is a no-op
// on its own.
type wireMessage struct {
	JSONPatch []PatchOp `json:"JsonPatch"`
	Finished  *bool     `json:"finished"`
}

func parseMessage(data []byte) (streamMessage, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return streamMessage{}, fmt.Errorf("%w: %s", ErrMalformedMessage, err)
	}
	switch {
	case w.Finished != nil && *w.Finished:
		return streamMessage{Finished: true}, nil
	case w.JSONPatch != nil:
		return streamMessage{Patches: w.JSONPatch}, nil
	case w.Finished != nil:
		return streamMessage{}, nil
	default:
		return streamMessage{}, fmt.Errorf("%w: unrecognized message shape", ErrMalformedMessage)
	}
}
