package docstream

import "errors"

var (
	// ErrMalformedMessage marks a frame that is not one of the two
	// understood message shapes. The connection stays open.
	ErrMalformedMessage = errors.New("malformed stream message")

	// ErrPatchApply marks a patch batch that failed against the current
	// document shape. The snapshot is unchanged and the stream continues.
	ErrPatchApply = errors.New("patch batch failed to apply")
)
