// AngelaMos | 2026
// coordinator.go

// Package optimistic implements the apply-locally, commit-remotely,
// reconcile-or-roll-back pattern shared by likes, messages, and tier changes.
// One Coordinator guards one piece of viewer-visible state.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
)

var (
	// ErrRemoteRejected is a remote write the backend refused.
	ErrRemoteRejected = errors.New("remote mutation rejected")
	// ErrTransientNetwork is a remote write that never completed.
	ErrTransientNetwork = errors.New("transient network failure")
	// ErrDiscarded is returned when the coordinator's owner has gone away.
	ErrDiscarded = errors.New("mutation target discarded")
)

// Mutation is one optimistic change against state S.
//
// Apply runs synchronously before the remote call. Commit issues the remote
// write. Reconcile fetches the authoritative value after a successful commit;
// the optimistic result of Apply is only a placeholder, because concurrent
// writers make a local delta unreliable.
type Mutation[S any] struct {
	Apply     func(S) S
	Commit    func(ctx context.Context) error
	Reconcile func(ctx context.Context) (S, error)
}

// Coordinator serializes mutations against a single entity's state and keeps
// a version counter so stale writers (a periodic refresh that started before
// the mutation, a response landing after Discard) can never clobber newer
// state.
type Coordinator[S any] struct {
	runMu sync.Mutex

	mu        sync.Mutex
	state     S
	version   uint64
	discarded bool
}

func New[S any](initial S) *Coordinator[S] {
	return &Coordinator[S]{state: initial}
}

// State returns the current state and its version. Pass the version back to
// CompareAndSwap to publish an out-of-band refresh.
func (c *Coordinator[S]) State() (S, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.version
}

// CompareAndSwap overwrites the state only if nothing has written since the
// given version was observed. A lost swap means a mutation (or a newer
// refresh) got there first and its value wins.
func (c *Coordinator[S]) CompareAndSwap(version uint64, s S) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.discarded || c.version != version {
		return false
	}

	c.state = s
	c.version++
	return true
}

// Discard marks the coordinator's owner as gone. In-flight mutation results
// are dropped instead of being applied to absent state.
func (c *Coordinator[S]) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discarded = true
}

// Run executes one mutation: snapshot prior state, apply optimistically,
// commit remotely, then overwrite with the reconciled authoritative value.
// On commit failure the prior state is restored exactly. Mutations on the
// same coordinator run strictly one at a time, in call order.
func (c *Coordinator[S]) Run(ctx context.Context, m Mutation[S]) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	c.mu.Lock()
	if c.discarded {
		c.mu.Unlock()
		return ErrDiscarded
	}
	prior := c.state
	c.state = m.Apply(c.state)
	c.version++
	c.mu.Unlock()

	if err := m.Commit(ctx); err != nil {
		c.write(prior)
		return classify(err)
	}

	authoritative, err := m.Reconcile(ctx)
	if err != nil {
		// The commit landed; rolling back would contradict the server.
		// Keep the optimistic value as a stale-but-consistent view.
		return fmt.Errorf("reconcile: %w", err)
	}

	c.write(authoritative)
	return nil
}

func (c *Coordinator[S]) write(s S) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.discarded {
		return
	}

	c.state = s
	c.version++
}

func classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrTransientNetwork, err)
	}

	return fmt.Errorf("%w: %w", ErrRemoteRejected, err)
}
