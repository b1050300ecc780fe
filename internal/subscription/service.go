// AngelaMos | 2026
// service.go

package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelamos/lumeo/internal/core"
	"github.com/angelamos/lumeo/internal/entitlement"
	"github.com/angelamos/lumeo/internal/session"
)

var (
	ErrUnknownTier    = errors.New("unknown tier")
	ErrChangeRejected = errors.New("tier change rejected")
)

// TierStore persists the chosen tier on the user's profile row.
type TierStore interface {
	UpdateTier(ctx context.Context, userID, tier string) error
}

type Service struct {
	store    TierStore
	sessions *session.Registry
}

func NewService(store TierStore, sessions *session.Registry) *Service {
	return &Service{store: store, sessions: sessions}
}

type Plan struct {
	Tier          string `json:"tier"`
	PriceCents    int    `json:"price_cents"`
	MessageQuota  int    `json:"message_quota"`
	Unlimited     bool   `json:"unlimited"`
	CanViewPhotos bool   `json:"can_view_photos"`
	CanViewVideos bool   `json:"can_view_videos"`
}

func Plans() []Plan {
	tiers := entitlement.Tiers()
	plans := make([]Plan, 0, len(tiers))

	for _, tier := range tiers {
		caps := entitlement.CapabilitiesFor(tier)
		plan := Plan{
			Tier:          tier,
			PriceCents:    caps.PriceCents,
			Unlimited:     caps.MessageQuota.IsUnbounded(),
			CanViewPhotos: caps.CanViewPhotos,
			CanViewVideos: caps.CanViewVideos,
		}
		if !plan.Unlimited {
			plan.MessageQuota = int(caps.MessageQuota)
		}
		plans = append(plans, plan)
	}

	return plans
}

// ChangeTier switches the user's subscription. The session is re-verified
// against the backend first: a tier change off a dead session must fail as an
// auth problem, not as a rejected change. Only after the remote write lands
// does the live snapshot rebuild, so a failed change leaves entitlements
// exactly as they were.
func (s *Service) ChangeTier(
	ctx context.Context,
	userID, tier string,
) (entitlement.Snapshot, error) {
	if !entitlement.ValidTier(tier) {
		return entitlement.Snapshot{}, fmt.Errorf(
			"%w: %q",
			ErrUnknownTier,
			tier,
		)
	}

	resolver, err := s.sessions.Ensure(ctx, userID)
	if err != nil {
		return entitlement.Snapshot{}, err
	}

	if err := resolver.VerifyLiveSession(ctx); err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			return entitlement.Snapshot{}, err
		}
		return entitlement.Snapshot{}, fmt.Errorf(
			"%w: %w",
			ErrChangeRejected,
			err,
		)
	}

	if err := s.store.UpdateTier(ctx, userID, tier); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return entitlement.Snapshot{}, session.ErrNotAuthenticated
		}
		return entitlement.Snapshot{}, fmt.Errorf(
			"%w: %w",
			ErrChangeRejected,
			err,
		)
	}

	if err := resolver.SetTier(tier); err != nil {
		return entitlement.Snapshot{}, err
	}

	return resolver.Entitlement()
}
