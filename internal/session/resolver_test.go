// AngelaMos | 2026
// resolver_test.go

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/lumeo/internal/core"
	"github.com/angelamos/lumeo/internal/entitlement"
)

type fakeStore struct {
	mu         sync.Mutex
	profiles   map[string]*Profile
	roleWrites []string
	readErr    error
	readGate   chan struct{}
}

func newFakeStore(profiles ...*Profile) *fakeStore {
	s := &fakeStore{profiles: make(map[string]*Profile)}
	for _, p := range profiles {
		s.profiles[p.ID] = p
	}
	return s
}

func (s *fakeStore) ProfileByID(
	ctx context.Context,
	id string,
) (*Profile, error) {
	if s.readGate != nil {
		<-s.readGate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readErr != nil {
		return nil, s.readErr
	}

	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, core.ErrNotFound)
	}

	copied := *p
	return &copied, nil
}

func (s *fakeStore) UpdateRole(ctx context.Context, id, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roleWrites = append(s.roleWrites, id+":"+role)
	if p, ok := s.profiles[id]; ok {
		p.Role = role
	}
	return nil
}

type fakeAuth struct {
	mu         sync.Mutex
	passwords  map[string]string
	principals map[string]Principal
	alive      map[string]bool
	signOuts   int
	signOutErr error
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		passwords:  make(map[string]string),
		principals: make(map[string]Principal),
		alive:      make(map[string]bool),
	}
}

func (a *fakeAuth) addUser(id, email, password string) Principal {
	principal := Principal{ID: id, Email: email}
	a.passwords[email] = password
	a.principals[email] = principal
	a.alive[id] = true
	return principal
}

func (a *fakeAuth) SignIn(
	ctx context.Context,
	email, password string,
) (Principal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if stored, ok := a.passwords[email]; !ok || stored != password {
		return Principal{}, ErrInvalidCredentials
	}
	return a.principals[email], nil
}

func (a *fakeAuth) SignUp(
	ctx context.Context,
	email, password, displayName string,
) (Principal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.passwords[email]; ok {
		return Principal{}, core.ErrDuplicateKey
	}

	principal := Principal{ID: "new-" + email, Email: email}
	a.passwords[email] = password
	a.principals[email] = principal
	a.alive[principal.ID] = true
	return principal, nil
}

func (a *fakeAuth) SignOut(ctx context.Context, userID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.signOuts++
	a.alive[userID] = false
	return a.signOutErr
}

func (a *fakeAuth) SessionAlive(
	ctx context.Context,
	userID string,
) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.alive[userID], nil
}

// TestResolve_MergesStoredProfile verifies a provisioned row supplies
// username, display name, role, and tier.
func TestResolve_MergesStoredProfile(t *testing.T) {
	store := newFakeStore(&Profile{
		ID:          "u1",
		Email:       "maya@example.com",
		Username:    "maya",
		DisplayName: "Maya R",
		Role:        RoleModerator,
		Status:      StatusActive,
		Tier:        entitlement.TierSilver,
	})
	r := NewResolver(store, newFakeAuth(), Config{})

	err := r.Resolve(
		context.Background(),
		Principal{ID: "u1", Email: "maya@example.com"},
	)
	require.NoError(t, err)

	identity, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, "maya", identity.Username)
	assert.Equal(t, "Maya R", identity.DisplayName)
	assert.Equal(t, RoleModerator, identity.Role)
	assert.Equal(t, StateAuthenticated, r.State())

	snap, err := r.Entitlement()
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierSilver, snap.Tier)
	assert.Equal(t, entitlement.Quota(1000), snap.MessagesRemaining)
}

// TestResolve_UnprovisionedProfileSynthesized verifies a missing row is not
// an error: the identity is built from the principal with a derived username
// and default role.
func TestResolve_UnprovisionedProfileSynthesized(t *testing.T) {
	r := NewResolver(newFakeStore(), newFakeAuth(), Config{})

	err := r.Resolve(
		context.Background(),
		Principal{ID: "u9", Email: "New.Person@example.com"},
	)
	require.NoError(t, err)

	identity, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, "new.person", identity.Username)
	assert.Equal(t, RoleUser, identity.Role)
	assert.Equal(t, StatusActive, identity.Status)

	snap, err := r.Entitlement()
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierFree, snap.Tier)
}

// TestResolve_GatewayErrorSurfaces verifies a real store failure (not a
// missing row) fails the resolution and leaves the session unauthenticated.
func TestResolve_GatewayErrorSurfaces(t *testing.T) {
	store := newFakeStore()
	store.readErr = errors.New("connection refused")
	r := NewResolver(store, newFakeAuth(), Config{})

	err := r.Resolve(context.Background(), Principal{ID: "u1", Email: "a@b.c"})
	require.Error(t, err)
	assert.Equal(t, StateUnauthenticated, r.State())
}

// TestResolve_AllowListElevation verifies allow-listed emails resolve as
// admin and the correction is written back exactly once across repeated
// resolutions.
func TestResolve_AllowListElevation(t *testing.T) {
	store := newFakeStore(&Profile{
		ID:    "u1",
		Email: "boss@example.com",
		Role:  RoleUser,
		Tier:  entitlement.TierFree,
	})
	r := NewResolver(store, newFakeAuth(), Config{
		AdminEmails: []string{"Boss@Example.com"},
	})

	principal := Principal{ID: "u1", Email: "boss@example.com"}
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Resolve(context.Background(), principal))
	}

	identity, _ := r.Current()
	assert.Equal(t, RoleAdmin, identity.Role)
	assert.Equal(t, []string{"u1:admin"}, store.roleWrites,
		"elevation write-back must happen once, not per resolution")
}

// TestResolve_IdempotentPreservesQuota verifies re-resolving the same
// principal does not refill consumed quota.
func TestResolve_IdempotentPreservesQuota(t *testing.T) {
	store := newFakeStore(&Profile{
		ID:    "u1",
		Email: "a@b.c",
		Tier:  entitlement.TierFree,
	})
	r := NewResolver(store, newFakeAuth(), Config{})
	principal := Principal{ID: "u1", Email: "a@b.c"}

	require.NoError(t, r.Resolve(context.Background(), principal))

	for i := 0; i < 5; i++ {
		_, err := r.ConsumeMessage()
		require.NoError(t, err)
	}

	require.NoError(t, r.Resolve(context.Background(), principal))

	snap, err := r.Entitlement()
	require.NoError(t, err)
	assert.Equal(t, entitlement.Quota(95), snap.MessagesRemaining)
}

// TestResolve_SupersededResolutionDiscarded verifies a resolution still in
// flight when the user signs out cannot re-authenticate the session.
func TestResolve_SupersededResolutionDiscarded(t *testing.T) {
	store := newFakeStore(&Profile{ID: "u1", Email: "a@b.c"})
	store.readGate = make(chan struct{})
	r := NewResolver(store, newFakeAuth(), Config{})

	done := make(chan error, 1)
	go func() {
		done <- r.Resolve(context.Background(), Principal{ID: "u1", Email: "a@b.c"})
	}()

	// Sign out while the profile read is still blocked.
	require.NoError(t,
		r.HandleAuthEvent(context.Background(), EventSignedOut, nil))
	close(store.readGate)
	require.NoError(t, <-done)

	assert.Equal(t, StateUnauthenticated, r.State())
	_, ok := r.Current()
	assert.False(t, ok)
}

// TestLogin verifies good and bad credential paths.
func TestLogin(t *testing.T) {
	auth := newFakeAuth()
	auth.addUser("u1", "a@b.c", "hunter22")
	store := newFakeStore(&Profile{ID: "u1", Email: "a@b.c"})
	r := NewResolver(store, auth, Config{})

	ok, reason := r.Login(context.Background(), "a@b.c", "wrong")
	assert.False(t, ok)
	assert.Equal(t, "invalid email or password", reason)
	assert.Equal(t, StateUnauthenticated, r.State())

	ok, reason = r.Login(context.Background(), "a@b.c", "hunter22")
	assert.True(t, ok)
	assert.Empty(t, reason)
	assert.Equal(t, StateAuthenticated, r.State())
}

// TestLogout_ClearsBeforeRemoteCall verifies local state is gone even when
// the remote sign-out fails.
func TestLogout_ClearsBeforeRemoteCall(t *testing.T) {
	auth := newFakeAuth()
	principal := auth.addUser("u1", "a@b.c", "pw")
	auth.signOutErr = errors.New("gateway down")
	store := newFakeStore(&Profile{ID: "u1", Email: "a@b.c"})
	r := NewResolver(store, auth, Config{})

	require.NoError(t, r.Resolve(context.Background(), principal))
	r.Logout(context.Background())

	assert.Equal(t, StateUnauthenticated, r.State())
	_, err := r.Entitlement()
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, 1, auth.signOuts)
}

// TestConsumeMessage_ResetBeforeCheck verifies a stale free-tier snapshot is
// reset before the quota gate runs, even with no timer involved.
func TestConsumeMessage_ResetBeforeCheck(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	store := newFakeStore(&Profile{
		ID:    "u1",
		Email: "a@b.c",
		Tier:  entitlement.TierFree,
	})
	r := NewResolver(store, newFakeAuth(), Config{
		Now: func() time.Time { return now },
	})
	require.NoError(t,
		r.Resolve(context.Background(), Principal{ID: "u1", Email: "a@b.c"}))

	// Exhaust the whole quota.
	for i := 0; i < 100; i++ {
		_, err := r.ConsumeMessage()
		require.NoError(t, err)
	}
	_, err := r.ConsumeMessage()
	require.ErrorIs(t, err, entitlement.ErrQuotaExhausted)

	// A day later the consume itself triggers the reset.
	now = now.Add(25 * time.Hour)
	snap, err := r.ConsumeMessage()
	require.NoError(t, err)
	assert.Equal(t, entitlement.Quota(99), snap.MessagesRemaining)
}

// TestRefundMessage verifies the confirmed-failure refund path.
func TestRefundMessage(t *testing.T) {
	store := newFakeStore(&Profile{
		ID:    "u1",
		Email: "a@b.c",
		Tier:  entitlement.TierBronze,
	})
	r := NewResolver(store, newFakeAuth(), Config{})
	require.NoError(t,
		r.Resolve(context.Background(), Principal{ID: "u1", Email: "a@b.c"}))

	snap, err := r.ConsumeMessage()
	require.NoError(t, err)
	assert.Equal(t, entitlement.Quota(499), snap.MessagesRemaining)

	r.RefundMessage()
	snap, err = r.Entitlement()
	require.NoError(t, err)
	assert.Equal(t, entitlement.Quota(500), snap.MessagesRemaining)
}

// TestVerifyLiveSession verifies the backend check, not cached identity,
// decides liveness.
func TestVerifyLiveSession(t *testing.T) {
	auth := newFakeAuth()
	principal := auth.addUser("u1", "a@b.c", "pw")
	store := newFakeStore(&Profile{ID: "u1", Email: "a@b.c"})
	r := NewResolver(store, auth, Config{})

	require.NoError(t, r.Resolve(context.Background(), principal))
	require.NoError(t, r.VerifyLiveSession(context.Background()))

	// Session expires remotely; cached identity still says authenticated.
	auth.mu.Lock()
	auth.alive["u1"] = false
	auth.mu.Unlock()

	err := r.VerifyLiveSession(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

// TestRefreshEntitlement verifies an out-of-band tier change rebuilds the
// snapshot while an unchanged tier leaves consumed quota alone.
func TestRefreshEntitlement(t *testing.T) {
	store := newFakeStore(&Profile{
		ID:    "u1",
		Email: "a@b.c",
		Tier:  entitlement.TierFree,
	})
	r := NewResolver(store, newFakeAuth(), Config{})
	require.NoError(t,
		r.Resolve(context.Background(), Principal{ID: "u1", Email: "a@b.c"}))

	_, err := r.ConsumeMessage()
	require.NoError(t, err)

	// Tier unchanged: refresh must not clobber the consumed quota.
	require.NoError(t, r.RefreshEntitlement(context.Background()))
	snap, err := r.Entitlement()
	require.NoError(t, err)
	assert.Equal(t, entitlement.Quota(99), snap.MessagesRemaining)

	// Admin upgraded the user elsewhere: refresh rebuilds the snapshot.
	store.mu.Lock()
	store.profiles["u1"].Tier = entitlement.TierGold
	store.mu.Unlock()

	require.NoError(t, r.RefreshEntitlement(context.Background()))
	snap, err = r.Entitlement()
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierGold, snap.Tier)
	assert.True(t, snap.MessagesRemaining.IsUnbounded())
}

// TestSetTier_RebuildsWholeSnapshot verifies tier change atomicity: quota,
// visibility, and tier always agree after SetTier.
func TestSetTier_RebuildsWholeSnapshot(t *testing.T) {
	store := newFakeStore(&Profile{
		ID:    "u1",
		Email: "a@b.c",
		Tier:  entitlement.TierFree,
	})
	r := NewResolver(store, newFakeAuth(), Config{})
	require.NoError(t,
		r.Resolve(context.Background(), Principal{ID: "u1", Email: "a@b.c"}))

	require.NoError(t, r.SetTier(entitlement.TierSilver))

	snap, err := r.Entitlement()
	require.NoError(t, err)
	caps := entitlement.CapabilitiesFor(entitlement.TierSilver)
	assert.Equal(t, entitlement.TierSilver, snap.Tier)
	assert.Equal(t, entitlement.Quota(1000), snap.MessageQuota)
	assert.True(t, snap.CanViewVideos)
	assert.Equal(t, 1999, caps.PriceCents)
}

// TestCanView gates media kinds per tier and denies when unauthenticated.
func TestCanView(t *testing.T) {
	store := newFakeStore(&Profile{
		ID:    "u1",
		Email: "a@b.c",
		Tier:  entitlement.TierFree,
	})
	r := NewResolver(store, newFakeAuth(), Config{})

	assert.False(t, r.CanView(entitlement.MediaPhoto))

	require.NoError(t,
		r.Resolve(context.Background(), Principal{ID: "u1", Email: "a@b.c"}))
	assert.True(t, r.CanView(entitlement.MediaPhoto))
	assert.False(t, r.CanView(entitlement.MediaVideo))
}

// TestRegistry verifies attach/lookup/detach and that attach is idempotent.
func TestRegistry(t *testing.T) {
	auth := newFakeAuth()
	principal := auth.addUser("u1", "a@b.c", "pw")
	store := newFakeStore(&Profile{ID: "u1", Email: "a@b.c"})
	registry := NewRegistry(store, auth, Config{})

	first, err := registry.Attach(context.Background(), principal)
	require.NoError(t, err)

	again, err := registry.Attach(context.Background(), principal)
	require.NoError(t, err)
	assert.Same(t, first, again)

	found, ok := registry.Lookup("u1")
	require.True(t, ok)
	assert.Same(t, first, found)

	registry.Detach(context.Background(), "u1")
	_, ok = registry.Lookup("u1")
	assert.False(t, ok)
	assert.Equal(t, StateUnauthenticated, first.State())
}

// TestRegistryEnsure re-attaches a known user whose resolver was lost, as
// after a process restart, with the tier read from the profile store. Unknown
// users stay unauthenticated.
func TestRegistryEnsure(t *testing.T) {
	auth := newFakeAuth()
	auth.addUser("u1", "a@b.c", "pw")
	store := newFakeStore(&Profile{
		ID:    "u1",
		Email: "a@b.c",
		Tier:  entitlement.TierGold,
	})
	registry := NewRegistry(store, auth, Config{})

	resolver, err := registry.Ensure(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, resolver.State())

	snap, err := resolver.Entitlement()
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierGold, snap.Tier)

	again, err := registry.Ensure(context.Background(), "u1")
	require.NoError(t, err)
	assert.Same(t, resolver, again)

	_, err = registry.Ensure(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotAuthenticated)
}
