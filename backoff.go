package docstream

import "time"

// Backoff computes the delay before a reconnect attempt: InitialDelay
// doubled per consecutive failure, capped at MaxDelay.
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultBackoff is the standard pacing: 1s, 2s, 4s, 8s, then 8s forever.
var DefaultBackoff = Backoff{
	InitialDelay: 1 * time.Second,
	MaxDelay:     8 * time.Second,
}

// Delay returns the wait before the next reconnect. attempt counts
// consecutive unexpected closes since the last successful open, starting
// at 0.
func (b Backoff) Delay(attempt int) time.Duration {
	delay := b.InitialDelay
	for i := 0; i < attempt && delay < b.MaxDelay; i++ {
		delay *= 2
	}
	if delay > b.MaxDelay {
		delay = b.MaxDelay
	}
	return delay
}

func (b Backoff) withDefaults() Backoff {
	if b.InitialDelay <= 0 {
		b.InitialDelay = DefaultBackoff.InitialDelay
	}
	if b.MaxDelay <= 0 {
		b.MaxDelay = DefaultBackoff.MaxDelay
	}
	return b
}
