// AngelaMos | 2026
// service_test.go

package subscription

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/lumeo/internal/core"
	"github.com/angelamos/lumeo/internal/entitlement"
	"github.com/angelamos/lumeo/internal/session"
)

type fakeTierStore struct {
	tiers     map[string]string
	updateErr error
}

func (f *fakeTierStore) UpdateTier(_ context.Context, userID, tier string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.tiers[userID] = tier
	return nil
}

type fakeProfileStore struct {
	tiers map[string]string
}

func (f *fakeProfileStore) ProfileByID(
	_ context.Context,
	id string,
) (*session.Profile, error) {
	tier, ok := f.tiers[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &session.Profile{
		ID:       id,
		Email:    id + "@example.com",
		Username: id,
		Role:     "user",
		Status:   "active",
		Tier:     tier,
	}, nil
}

func (f *fakeProfileStore) UpdateRole(_ context.Context, _, _ string) error {
	return nil
}

type fakeAuth struct {
	alive    map[string]bool
	aliveErr error
}

func (f *fakeAuth) SignIn(
	_ context.Context,
	_, _ string,
) (session.Principal, error) {
	return session.Principal{}, session.ErrInvalidCredentials
}

func (f *fakeAuth) SignUp(
	_ context.Context,
	_, _, _ string,
) (session.Principal, error) {
	return session.Principal{}, session.ErrInvalidCredentials
}

func (f *fakeAuth) SignOut(_ context.Context, _ string) error { return nil }

func (f *fakeAuth) SessionAlive(
	_ context.Context,
	userID string,
) (bool, error) {
	if f.aliveErr != nil {
		return false, f.aliveErr
	}
	return f.alive[userID], nil
}

func newTestService(
	t *testing.T,
) (*Service, *fakeTierStore, *fakeAuth, *session.Resolver) {
	t.Helper()

	tiers := map[string]string{"u1": "free"}
	store := &fakeTierStore{tiers: tiers}
	profiles := &fakeProfileStore{tiers: tiers}
	auth := &fakeAuth{alive: map[string]bool{"u1": true}}

	registry := session.NewRegistry(profiles, auth, session.Config{})
	resolver, err := registry.Attach(context.Background(), session.Principal{
		ID:    "u1",
		Email: "u1@example.com",
	})
	require.NoError(t, err)

	return NewService(store, registry), store, auth, resolver
}

func TestChangeTier_RebuildsSnapshotFromTable(t *testing.T) {
	svc, store, _, resolver := newTestService(t)

	// spend some free quota first; the upgrade must not carry it over
	_, err := resolver.ConsumeMessage()
	require.NoError(t, err)

	snap, err := svc.ChangeTier(context.Background(), "u1", "gold")
	require.NoError(t, err)

	assert.Equal(t, "gold", store.tiers["u1"])
	assert.Equal(t, "gold", snap.Tier)
	assert.True(t, snap.MessagesRemaining.IsUnbounded())
	assert.True(t, snap.CanViewVideos)
}

func TestChangeTier_DowngradeRestoresFreeQuota(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.ChangeTier(context.Background(), "u1", "silver")
	require.NoError(t, err)

	snap, err := svc.ChangeTier(context.Background(), "u1", "free")
	require.NoError(t, err)

	assert.Equal(t, entitlement.Quota(100), snap.MessagesRemaining)
	assert.False(t, snap.CanViewVideos)
	assert.False(t, snap.QuotaResetAt.IsZero())
}

func TestChangeTier_UnknownTierRejected(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.ChangeTier(context.Background(), "u1", "platinum")
	require.ErrorIs(t, err, ErrUnknownTier)
}

// A dead backend session surfaces as an auth failure, not a rejected change.
func TestChangeTier_DeadSessionIsAuthFailure(t *testing.T) {
	svc, store, auth, resolver := newTestService(t)
	auth.alive["u1"] = false

	_, err := svc.ChangeTier(context.Background(), "u1", "gold")
	require.ErrorIs(t, err, session.ErrNotAuthenticated)

	// nothing was persisted and the live snapshot is untouched
	assert.Equal(t, "free", store.tiers["u1"])
	snap, err := resolver.Entitlement()
	require.NoError(t, err)
	assert.Equal(t, "free", snap.Tier)
}

func TestChangeTier_PersistFailureLeavesSnapshotAlone(t *testing.T) {
	svc, store, _, resolver := newTestService(t)
	store.updateErr = errors.New("db down")

	_, err := svc.ChangeTier(context.Background(), "u1", "gold")
	require.ErrorIs(t, err, ErrChangeRejected)

	snap, err := resolver.Entitlement()
	require.NoError(t, err)
	assert.Equal(t, "free", snap.Tier)
}

// A tier change from a user whose resolver was lost (process restart) is
// re-attached from the profile store rather than rejected as unauthenticated.
func TestChangeTier_ReattachesSessionFromStore(t *testing.T) {
	tiers := map[string]string{"u1": "free"}
	store := &fakeTierStore{tiers: tiers}
	profiles := &fakeProfileStore{tiers: tiers}
	auth := &fakeAuth{alive: map[string]bool{"u1": true}}
	registry := session.NewRegistry(profiles, auth, session.Config{})
	svc := NewService(store, registry)

	snap, err := svc.ChangeTier(context.Background(), "u1", "gold")
	require.NoError(t, err)

	assert.Equal(t, "gold", snap.Tier)
	assert.Equal(t, "gold", store.tiers["u1"])
}

func TestChangeTier_WithoutSessionFails(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.ChangeTier(context.Background(), "ghost", "gold")
	require.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestPlans_CoverEveryTierWithPrices(t *testing.T) {
	plans := Plans()
	require.Len(t, plans, 4)

	byTier := make(map[string]Plan, len(plans))
	for _, p := range plans {
		byTier[p.Tier] = p
	}

	assert.Equal(t, 0, byTier["free"].PriceCents)
	assert.Equal(t, 999, byTier["bronze"].PriceCents)
	assert.Equal(t, 1999, byTier["silver"].PriceCents)
	assert.Equal(t, 4999, byTier["gold"].PriceCents)
	assert.True(t, byTier["gold"].Unlimited)
	assert.False(t, byTier["free"].CanViewVideos)
}
