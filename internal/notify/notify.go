// Package notify implements a latest-value broadcast with no payload: every
// call to Notify wakes every goroutine currently blocked in Wait.
package notify

import (
	"context"
	"sync"
)

// Notifier is safe for concurrent use.
type Notifier struct {
	mu sync.Mutex
	ch chan struct{}
}

// New returns a ready-to-use Notifier.
func New() *Notifier {
	return &Notifier{ch: make(chan struct{})}
}

// Notify wakes every current waiter. Waiters that call Wait after this
// returns are not woken by this call — only by the next one.
func (n *Notifier) Notify() {
	n.mu.Lock()
	closed := n.ch
	n.ch = make(chan struct{})
	n.mu.Unlock()
	close(closed)
}

// Wait blocks until the next Notify call after Wait began, or until ctx is
// cancelled.
func (n *Notifier) Wait(ctx context.Context) error {
	n.mu.Lock()
	ch := n.ch
	n.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
