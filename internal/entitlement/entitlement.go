// AngelaMos | 2026
// entitlement.go

// Package entitlement maps subscription tiers to capability sets and keeps
// the message-quota bookkeeping. Everything here is pure: functions take and
// return plain values and never touch the network or the clock on their own.
package entitlement

import (
	"errors"
	"time"
)

const (
	TierFree   = "free"
	TierBronze = "bronze"
	TierSilver = "silver"
	TierGold   = "gold"
)

const quotaResetInterval = 24 * time.Hour

var ErrQuotaExhausted = errors.New("message quota exhausted")

// Quota counts remaining or allowed messages. The zero-capable integer range
// is ordinary; Unbounded never decrements and never exhausts.
type Quota int

const Unbounded Quota = -1

func (q Quota) IsUnbounded() bool {
	return q == Unbounded
}

type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

type Capabilities struct {
	MessageQuota  Quota
	CanViewPhotos bool
	CanViewVideos bool
	PriceCents    int
}

var tierTable = map[string]Capabilities{
	TierFree: {
		MessageQuota:  100,
		CanViewPhotos: true,
		CanViewVideos: false,
		PriceCents:    0,
	},
	TierBronze: {
		MessageQuota:  500,
		CanViewPhotos: true,
		CanViewVideos: true,
		PriceCents:    999,
	},
	TierSilver: {
		MessageQuota:  1000,
		CanViewPhotos: true,
		CanViewVideos: true,
		PriceCents:    1999,
	},
	TierGold: {
		MessageQuota:  Unbounded,
		CanViewPhotos: true,
		CanViewVideos: true,
		PriceCents:    4999,
	},
}

// CapabilitiesFor returns the capability set for a tier. Unknown tiers fail
// closed to the free tier's capabilities, never upward.
func CapabilitiesFor(tier string) Capabilities {
	if caps, ok := tierTable[tier]; ok {
		return caps
	}
	return tierTable[TierFree]
}

func ValidTier(tier string) bool {
	_, ok := tierTable[tier]
	return ok
}

func Tiers() []string {
	return []string{TierFree, TierBronze, TierSilver, TierGold}
}

// Snapshot is the viewer's entitlement state. Invariant: MessagesRemaining
// never exceeds MessageQuota unless both are Unbounded; free-tier snapshots
// always carry a QuotaResetAt.
type Snapshot struct {
	Tier              string
	MessageQuota      Quota
	MessagesRemaining Quota
	QuotaResetAt      time.Time
	CanViewPhotos     bool
	CanViewVideos     bool
}

// SnapshotFor builds a fully consistent snapshot from the capability table.
// Tier changes must go through here rather than patching fields one by one,
// so quota, visibility, and tier can never drift apart.
func SnapshotFor(tier string, now time.Time) Snapshot {
	caps := CapabilitiesFor(tier)

	snap := Snapshot{
		Tier:              tier,
		MessageQuota:      caps.MessageQuota,
		MessagesRemaining: caps.MessageQuota,
		CanViewPhotos:     caps.CanViewPhotos,
		CanViewVideos:     caps.CanViewVideos,
	}

	if !ValidTier(tier) {
		snap.Tier = TierFree
	}

	if snap.Tier == TierFree {
		snap.QuotaResetAt = now.Add(quotaResetInterval)
	}

	return snap
}

// Consume spends one message from the quota. An unbounded quota passes
// through unchanged. An exhausted quota returns ErrQuotaExhausted and the
// snapshot untouched; callers must not attempt the send in that case.
func Consume(snap Snapshot) (Snapshot, error) {
	if snap.MessagesRemaining.IsUnbounded() {
		return snap, nil
	}

	if snap.MessagesRemaining <= 0 {
		return snap, ErrQuotaExhausted
	}

	snap.MessagesRemaining--
	return snap, nil
}

// Refund returns one consumed message to the quota, clamped at the quota
// ceiling. Used when a send fails after the optimistic decrement.
func Refund(snap Snapshot) Snapshot {
	if snap.MessagesRemaining.IsUnbounded() {
		return snap
	}

	if snap.MessagesRemaining < snap.MessageQuota {
		snap.MessagesRemaining++
	}

	return snap
}

// MaybeReset refills a free-tier quota whose reset time has passed. It must
// run before every quota check that gates a user-facing action, not just on a
// timer: a session can sit idle past the reset window.
func MaybeReset(snap Snapshot, now time.Time) Snapshot {
	if snap.Tier != TierFree {
		return snap
	}

	if now.Before(snap.QuotaResetAt) {
		return snap
	}

	snap.MessagesRemaining = snap.MessageQuota
	snap.QuotaResetAt = now.Add(quotaResetInterval)
	return snap
}

// CanView reports whether the snapshot permits viewing the given media kind.
// A false return is a routing decision (show the upsell state), not an error.
func CanView(snap Snapshot, kind MediaKind) bool {
	switch kind {
	case MediaPhoto:
		return snap.CanViewPhotos
	case MediaVideo:
		return snap.CanViewVideos
	default:
		return false
	}
}
