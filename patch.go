package docstream

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// applyPatches applies ops to raw and decodes the result into a fresh T.
// The input bytes are never mutated; on any failure both returns are nil
// and the caller keeps its current snapshot.
func applyPatches[T any](raw json.RawMessage, ops []PatchOp) (json.RawMessage, *T, error) {
	encoded, err := json.Marshal(ops)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encode batch: %s", ErrPatchApply, err)
	}
	patch, err := jsonpatch.DecodePatch(encoded)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrPatchApply, err)
	}
	next, err := patch.Apply(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrPatchApply, err)
	}
	var doc T
	if err := json.Unmarshal(next, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: decode document: %s", ErrPatchApply, err)
	}
	return next, &doc, nil
}
