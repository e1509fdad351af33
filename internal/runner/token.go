package runner

import "sync"

// CancellationToken is the flag the orchestrator uses to stop the control
// loop. It starts active; only the orchestrator cancels it and only the
// control loop polls it.
type CancellationToken struct {
	mu     sync.Mutex
	active bool
}

func NewCancellationToken() *CancellationToken {
	return &CancellationToken{active: true}
}

// Active reports whether the holder should keep running.
func (t *CancellationToken) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Cancel clears the token. It is idempotent.
func (t *CancellationToken) Cancel() {
	t.mu.Lock()
	t.active = false
	t.mu.Unlock()
}
