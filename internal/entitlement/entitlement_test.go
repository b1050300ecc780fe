// AngelaMos | 2026
// entitlement_test.go

package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCapabilitiesFor_Table verifies the static tier table.
func TestCapabilitiesFor_Table(t *testing.T) {
	tests := []struct {
		tier   string
		quota  Quota
		photos bool
		videos bool
	}{
		{TierFree, 100, true, false},
		{TierBronze, 500, true, true},
		{TierSilver, 1000, true, true},
		{TierGold, Unbounded, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.tier, func(t *testing.T) {
			caps := CapabilitiesFor(tt.tier)
			assert.Equal(t, tt.quota, caps.MessageQuota)
			assert.Equal(t, tt.photos, caps.CanViewPhotos)
			assert.Equal(t, tt.videos, caps.CanViewVideos)
		})
	}
}

// TestCapabilitiesFor_UnknownTierFailsClosed verifies an unrecognized tier
// gets the free tier's capabilities, never gold's.
func TestCapabilitiesFor_UnknownTierFailsClosed(t *testing.T) {
	caps := CapabilitiesFor("platinum")
	assert.Equal(t, CapabilitiesFor(TierFree), caps)
	assert.False(t, caps.MessageQuota.IsUnbounded())
}

// TestConsume_Monotonic verifies remaining messages only ever decrease under
// consumption and never go below zero.
func TestConsume_Monotonic(t *testing.T) {
	snap := SnapshotFor(TierFree, time.Now())
	prev := snap.MessagesRemaining

	for i := 0; i < int(snap.MessageQuota)+10; i++ {
		next, err := Consume(snap)
		if err != nil {
			require.ErrorIs(t, err, ErrQuotaExhausted)
			assert.Equal(t, snap, next, "failed consume must not mutate")
			assert.Equal(t, Quota(0), next.MessagesRemaining)
			continue
		}
		assert.Less(t, next.MessagesRemaining, prev)
		assert.GreaterOrEqual(t, next.MessagesRemaining, Quota(0))
		prev = next.MessagesRemaining
		snap = next
	}
}

// TestConsume_ExhaustionScenario: one message left,
// consume succeeds to zero, second consume fails and leaves zero.
func TestConsume_ExhaustionScenario(t *testing.T) {
	snap := SnapshotFor(TierFree, time.Now())
	snap.MessagesRemaining = 1

	snap, err := Consume(snap)
	require.NoError(t, err)
	assert.Equal(t, Quota(0), snap.MessagesRemaining)

	after, err := Consume(snap)
	require.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Equal(t, Quota(0), after.MessagesRemaining)
}

// TestConsume_UnboundedInvariance verifies gold never decrements and never
// fails.
func TestConsume_UnboundedInvariance(t *testing.T) {
	snap := SnapshotFor(TierGold, time.Now())

	for i := 0; i < 10_000; i++ {
		next, err := Consume(snap)
		require.NoError(t, err)
		assert.Equal(t, Unbounded, next.MessagesRemaining)
		snap = next
	}
}

// TestRefund_ClampsAtQuota verifies a refund never pushes remaining above the
// quota ceiling.
func TestRefund_ClampsAtQuota(t *testing.T) {
	snap := SnapshotFor(TierBronze, time.Now())

	refunded := Refund(snap)
	assert.Equal(t, snap.MessageQuota, refunded.MessagesRemaining)

	spent, err := Consume(snap)
	require.NoError(t, err)
	back := Refund(spent)
	assert.Equal(t, snap.MessagesRemaining, back.MessagesRemaining)
}

// TestRefund_UnboundedNoop verifies refunds are a no-op on unbounded quotas.
func TestRefund_UnboundedNoop(t *testing.T) {
	snap := SnapshotFor(TierGold, time.Now())
	assert.Equal(t, snap, Refund(snap))
}

// TestMaybeReset_FreeTierScenario: an exhausted free
// snapshot past its reset time refills to the full quota with a new reset
// time 24h out.
func TestMaybeReset_FreeTierScenario(t *testing.T) {
	resetAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Tier:              TierFree,
		MessageQuota:      100,
		MessagesRemaining: 0,
		QuotaResetAt:      resetAt,
		CanViewPhotos:     true,
	}

	now := resetAt.Add(time.Second)
	reset := MaybeReset(snap, now)

	assert.Equal(t, Quota(100), reset.MessagesRemaining)
	assert.Equal(t, now.Add(24*time.Hour), reset.QuotaResetAt)
}

// TestMaybeReset_Idempotent verifies resetting twice before the next reset
// window yields the same snapshot.
func TestMaybeReset_Idempotent(t *testing.T) {
	resetAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Tier:              TierFree,
		MessageQuota:      100,
		MessagesRemaining: 3,
		QuotaResetAt:      resetAt,
	}

	now := resetAt.Add(time.Minute)
	once := MaybeReset(snap, now)
	twice := MaybeReset(once, now)
	assert.Equal(t, once, twice)
}

// TestMaybeReset_BeforeWindowUnchanged verifies no reset happens before the
// reset time, and paid tiers never reset.
func TestMaybeReset_BeforeWindowUnchanged(t *testing.T) {
	resetAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	free := Snapshot{
		Tier:              TierFree,
		MessageQuota:      100,
		MessagesRemaining: 1,
		QuotaResetAt:      resetAt,
	}
	assert.Equal(t, free, MaybeReset(free, resetAt.Add(-time.Second)))

	silver := SnapshotFor(TierSilver, resetAt)
	silver.MessagesRemaining = 0
	assert.Equal(t, silver, MaybeReset(silver, resetAt.Add(48*time.Hour)))
}

// TestSnapshotFor_Consistency verifies a snapshot is built atomically from
// the capability table: tier, quota, and visibility always agree.
func TestSnapshotFor_Consistency(t *testing.T) {
	now := time.Now()

	for _, tier := range Tiers() {
		caps := CapabilitiesFor(tier)
		snap := SnapshotFor(tier, now)

		assert.Equal(t, tier, snap.Tier)
		assert.Equal(t, caps.MessageQuota, snap.MessageQuota)
		assert.Equal(t, caps.MessageQuota, snap.MessagesRemaining)
		assert.Equal(t, caps.CanViewPhotos, snap.CanViewPhotos)
		assert.Equal(t, caps.CanViewVideos, snap.CanViewVideos)
	}
}

// TestSnapshotFor_FreeTierHasResetTime verifies free snapshots always carry a
// future reset time, and unknown tiers snapshot as free.
func TestSnapshotFor_FreeTierHasResetTime(t *testing.T) {
	now := time.Now()

	free := SnapshotFor(TierFree, now)
	assert.True(t, free.QuotaResetAt.After(now))

	unknown := SnapshotFor("diamond", now)
	assert.Equal(t, TierFree, unknown.Tier)
	assert.True(t, unknown.QuotaResetAt.After(now))

	gold := SnapshotFor(TierGold, now)
	assert.True(t, gold.QuotaResetAt.IsZero())
}

// TestCanView routes photo and video visibility per tier.
func TestCanView(t *testing.T) {
	now := time.Now()

	free := SnapshotFor(TierFree, now)
	assert.True(t, CanView(free, MediaPhoto))
	assert.False(t, CanView(free, MediaVideo))

	bronze := SnapshotFor(TierBronze, now)
	assert.True(t, CanView(bronze, MediaPhoto))
	assert.True(t, CanView(bronze, MediaVideo))

	assert.False(t, CanView(bronze, MediaKind("audio")))
}
