// AngelaMos | 2026
// coordinator_test.go

package optimistic

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type likeState struct {
	LikesCount     int
	ViewerHasLiked bool
}

// TestRun_SuccessReconcilesToAuthoritative verifies the optimistic delta is
// replaced by the server-derived value, not trusted as final truth.
func TestRun_SuccessReconcilesToAuthoritative(t *testing.T) {
	c := New(likeState{LikesCount: 10, ViewerHasLiked: false})

	err := c.Run(context.Background(), Mutation[likeState]{
		Apply: func(s likeState) likeState {
			s.LikesCount++
			s.ViewerHasLiked = true
			return s
		},
		Commit: func(ctx context.Context) error { return nil },
		Reconcile: func(ctx context.Context) (likeState, error) {
			// Other viewers liked concurrently; the recount says 14.
			return likeState{LikesCount: 14, ViewerHasLiked: true}, nil
		},
	})
	require.NoError(t, err)

	state, _ := c.State()
	assert.Equal(t, likeState{LikesCount: 14, ViewerHasLiked: true}, state)
}

// TestRun_FailureRollsBackExactly: {10, false}
// toggled optimistically to {11, true}, rejected remotely, restored to
// exactly {10, false}.
func TestRun_FailureRollsBackExactly(t *testing.T) {
	c := New(likeState{LikesCount: 10, ViewerHasLiked: false})
	applied := make(chan likeState, 1)

	err := c.Run(context.Background(), Mutation[likeState]{
		Apply: func(s likeState) likeState {
			s.LikesCount++
			s.ViewerHasLiked = true
			applied <- s
			return s
		},
		Commit: func(ctx context.Context) error {
			return errors.New("permission denied")
		},
		Reconcile: func(ctx context.Context) (likeState, error) {
			t.Fatal("reconcile must not run after a failed commit")
			return likeState{}, nil
		},
	})
	require.ErrorIs(t, err, ErrRemoteRejected)

	assert.Equal(t, likeState{LikesCount: 11, ViewerHasLiked: true}, <-applied)

	state, _ := c.State()
	assert.Equal(t, likeState{LikesCount: 10, ViewerHasLiked: false}, state)
}

// TestRun_NetworkFailureClassified verifies deadline and cancellation errors
// surface as transient, still with a full rollback.
func TestRun_NetworkFailureClassified(t *testing.T) {
	c := New(likeState{LikesCount: 3})

	err := c.Run(context.Background(), Mutation[likeState]{
		Apply: func(s likeState) likeState {
			s.LikesCount++
			return s
		},
		Commit: func(ctx context.Context) error {
			return context.DeadlineExceeded
		},
		Reconcile: func(ctx context.Context) (likeState, error) {
			return likeState{}, nil
		},
	})
	require.ErrorIs(t, err, ErrTransientNetwork)

	state, _ := c.State()
	assert.Equal(t, 3, state.LikesCount)
}

// TestRun_DoubleToggleSerializes verifies the like round-trip property: two
// rapid toggles run in order, and the final state matches the authoritative
// count with the viewer flag back at its original value.
func TestRun_DoubleToggleSerializes(t *testing.T) {
	serverCount := 10
	var serverMu sync.Mutex

	c := New(likeState{LikesCount: 10, ViewerHasLiked: false})

	toggle := func() Mutation[likeState] {
		return Mutation[likeState]{
			Apply: func(s likeState) likeState {
				if s.ViewerHasLiked {
					s.LikesCount--
				} else {
					s.LikesCount++
				}
				s.ViewerHasLiked = !s.ViewerHasLiked
				return s
			},
			Commit: func(ctx context.Context) error {
				serverMu.Lock()
				defer serverMu.Unlock()
				state, _ := c.State()
				if state.ViewerHasLiked {
					serverCount++
				} else {
					serverCount--
				}
				return nil
			},
			Reconcile: func(ctx context.Context) (likeState, error) {
				serverMu.Lock()
				defer serverMu.Unlock()
				state, _ := c.State()
				return likeState{
					LikesCount:     serverCount,
					ViewerHasLiked: state.ViewerHasLiked,
				}, nil
			},
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, c.Run(context.Background(), toggle()))
		}()
	}
	wg.Wait()

	state, _ := c.State()
	assert.False(t, state.ViewerHasLiked)
	assert.Equal(t, 10, state.LikesCount)
}

// TestCompareAndSwap_RefreshLosesToMutation verifies a periodic refresh that
// read its version before a mutation cannot clobber the reconciled result.
func TestCompareAndSwap_RefreshLosesToMutation(t *testing.T) {
	c := New(likeState{LikesCount: 5})

	_, staleVersion := c.State()

	err := c.Run(context.Background(), Mutation[likeState]{
		Apply: func(s likeState) likeState {
			s.LikesCount++
			return s
		},
		Commit: func(ctx context.Context) error { return nil },
		Reconcile: func(ctx context.Context) (likeState, error) {
			return likeState{LikesCount: 6}, nil
		},
	})
	require.NoError(t, err)

	swapped := c.CompareAndSwap(staleVersion, likeState{LikesCount: 5})
	assert.False(t, swapped, "stale refresh must lose")

	state, _ := c.State()
	assert.Equal(t, 6, state.LikesCount)
}

// TestCompareAndSwap_FreshRefreshWins verifies an up-to-date refresh applies.
func TestCompareAndSwap_FreshRefreshWins(t *testing.T) {
	c := New(likeState{LikesCount: 5})

	_, version := c.State()
	require.True(t, c.CompareAndSwap(version, likeState{LikesCount: 9}))

	state, _ := c.State()
	assert.Equal(t, 9, state.LikesCount)
}

// TestDiscard_DropsInFlightResult verifies a response landing after Discard
// is not applied, and new mutations are refused.
func TestDiscard_DropsInFlightResult(t *testing.T) {
	c := New(likeState{LikesCount: 1})
	committed := make(chan struct{})
	release := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- c.Run(context.Background(), Mutation[likeState]{
			Apply: func(s likeState) likeState {
				s.LikesCount++
				return s
			},
			Commit: func(ctx context.Context) error {
				close(committed)
				<-release
				return nil
			},
			Reconcile: func(ctx context.Context) (likeState, error) {
				return likeState{LikesCount: 99}, nil
			},
		})
	}()

	<-committed
	c.Discard()
	close(release)
	require.NoError(t, <-done)

	state, _ := c.State()
	assert.NotEqual(t, 99, state.LikesCount, "discarded write must be dropped")

	err := c.Run(context.Background(), Mutation[likeState]{
		Apply:     func(s likeState) likeState { return s },
		Commit:    func(ctx context.Context) error { return nil },
		Reconcile: func(ctx context.Context) (likeState, error) {
			return likeState{}, nil
		},
	})
	assert.ErrorIs(t, err, ErrDiscarded)
}

// TestRun_ReconcileFailureKeepsOptimisticValue verifies a committed write
// whose readback failed is not rolled back; the view stays consistent, just
// possibly stale.
func TestRun_ReconcileFailureKeepsOptimisticValue(t *testing.T) {
	c := New(likeState{LikesCount: 2})

	err := c.Run(context.Background(), Mutation[likeState]{
		Apply: func(s likeState) likeState {
			s.LikesCount++
			s.ViewerHasLiked = true
			return s
		},
		Commit: func(ctx context.Context) error { return nil },
		Reconcile: func(ctx context.Context) (likeState, error) {
			return likeState{}, errors.New("connection reset")
		},
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRemoteRejected)

	state, _ := c.State()
	assert.Equal(t, likeState{LikesCount: 3, ViewerHasLiked: true}, state)
}
