// AngelaMos | 2026
// resolver.go

// Package session reconciles authentication events into an application-level
// identity plus entitlement snapshot, and owns both for the lifetime of one
// signed-in session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/angelamos/lumeo/internal/core"
	"github.com/angelamos/lumeo/internal/entitlement"
)

type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateResolving       State = "resolving"
	StateAuthenticated   State = "authenticated"
)

type AuthEvent string

const (
	EventSignedIn       AuthEvent = "signed_in"
	EventSignedOut      AuthEvent = "signed_out"
	EventTokenRefreshed AuthEvent = "token_refreshed"
)

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ProfileStore is the slice of the remote gateway the resolver reads profile
// rows from and persists role corrections to.
type ProfileStore interface {
	ProfileByID(ctx context.Context, id string) (*Profile, error)
	UpdateRole(ctx context.Context, id, role string) error
}

// Authenticator is the gateway's auth subsystem.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (Principal, error)
	SignUp(
		ctx context.Context,
		email, password, displayName string,
	) (Principal, error)
	SignOut(ctx context.Context, userID string) error
	// SessionAlive reports whether the user still holds a live session,
	// checked against the backend rather than cached state.
	SessionAlive(ctx context.Context, userID string) (bool, error)
}

type Config struct {
	// AdminEmails is the allow-list whose members resolve with an elevated
	// admin role.
	AdminEmails []string
	Now         func() time.Time
	Logger      *slog.Logger
}

// Resolver is the session state machine. All fields behind mu; every
// read-modify-write on the snapshot happens inside one critical section so a
// second consume can never race ahead of the first one's store.
type Resolver struct {
	store       ProfileStore
	auth        Authenticator
	adminEmails map[string]struct{}
	now         func() time.Time
	logger      *slog.Logger

	mu         sync.Mutex
	state      State
	identity   Identity
	snapshot   entitlement.Snapshot
	generation uint64
	elevated   map[string]struct{}
}

func NewResolver(store ProfileStore, auth Authenticator, cfg Config) *Resolver {
	adminEmails := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, email := range cfg.AdminEmails {
		adminEmails[normalizeEmail(email)] = struct{}{}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		store:       store,
		auth:        auth,
		adminEmails: adminEmails,
		now:         now,
		logger:      logger,
		state:       StateUnauthenticated,
		elevated:    make(map[string]struct{}),
	}
}

func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Resolver) IsResolving() bool {
	return r.State() == StateResolving
}

// Current returns the resolved identity, or false when unauthenticated.
func (r *Resolver) Current() (Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identity, r.state == StateAuthenticated
}

// Resolve fetches and merges the profile row for a principal. Missing rows
// are absorbed by synthesizing a minimal identity, so a brand-new signup
// never dangles unauthenticated. Calling Resolve again with the same
// principal is a no-op beyond the redundant read: quota state survives and
// the role-elevation write-back runs at most once per user per resolver.
func (r *Resolver) Resolve(ctx context.Context, principal Principal) error {
	r.mu.Lock()
	r.generation++
	gen := r.generation
	if r.state != StateAuthenticated {
		r.state = StateResolving
	}
	r.mu.Unlock()

	profile, err := r.store.ProfileByID(ctx, principal.ID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		r.abandon(gen)
		return fmt.Errorf("resolve profile: %w", err)
	}

	identity := buildIdentity(principal, profile)
	storedRole := identity.Role
	identity.Role = effectiveRole(principal.Email, storedRole, r.adminEmails)

	tier := entitlement.TierFree
	if profile != nil && entitlement.ValidTier(profile.Tier) {
		tier = profile.Tier
	}

	r.mu.Lock()
	if r.generation != gen {
		// A newer resolution or a sign-out superseded this one.
		r.mu.Unlock()
		return nil
	}

	sameUser := r.state == StateAuthenticated && r.identity.ID == identity.ID
	r.identity = identity
	r.state = StateAuthenticated
	if !sameUser || r.snapshot.Tier != tier {
		r.snapshot = entitlement.SnapshotFor(tier, r.now())
	}
	_, alreadyPersisted := r.elevated[identity.ID]
	r.mu.Unlock()

	if identity.Role == RoleAdmin && storedRole != RoleAdmin &&
		profile != nil && !alreadyPersisted {
		r.persistElevation(ctx, identity.ID)
	}

	return nil
}

// persistElevation writes the allow-list elevation back to the store so later
// resolutions agree without consulting the allow-list. The write is
// idempotent; it is attempted at most once per user per resolver lifetime.
func (r *Resolver) persistElevation(ctx context.Context, userID string) {
	if err := r.store.UpdateRole(ctx, userID, RoleAdmin); err != nil {
		r.logger.Warn("persist role elevation",
			"user_id", userID,
			"error", err,
		)
		return
	}

	r.mu.Lock()
	r.elevated[userID] = struct{}{}
	r.mu.Unlock()
}

func (r *Resolver) abandon(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.generation == gen && r.state == StateResolving {
		r.state = StateUnauthenticated
	}
}

// Login delegates the credential check to the auth subsystem and resolves on
// success. Failures come back as false plus a human-readable reason; raw
// backend errors never cross this boundary.
func (r *Resolver) Login(
	ctx context.Context,
	email, password string,
) (bool, string) {
	principal, err := r.auth.SignIn(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return false, "invalid email or password"
		}
		r.logger.Warn("login failed", "error", err)
		return false, "authentication is temporarily unavailable"
	}

	if err := r.Resolve(ctx, principal); err != nil {
		r.logger.Warn("login resolve failed", "error", err)
		return false, "could not load your profile"
	}

	return true, ""
}

func (r *Resolver) Signup(
	ctx context.Context,
	email, password, displayName string,
) (bool, string) {
	principal, err := r.auth.SignUp(ctx, email, password, displayName)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return false, "an account with this email already exists"
		}
		r.logger.Warn("signup failed", "error", err)
		return false, "signup is temporarily unavailable"
	}

	if err := r.Resolve(ctx, principal); err != nil {
		r.logger.Warn("signup resolve failed", "error", err)
		return false, "could not load your profile"
	}

	return true, ""
}

// Logout clears identity and entitlement synchronously, before the remote
// sign-out resolves, so no privileged state is readable during the gap.
func (r *Resolver) Logout(ctx context.Context) {
	r.mu.Lock()
	userID := r.identity.ID
	r.identity = Identity{}
	r.snapshot = entitlement.Snapshot{}
	r.state = StateUnauthenticated
	r.generation++
	r.mu.Unlock()

	if userID == "" {
		return
	}

	if err := r.auth.SignOut(ctx, userID); err != nil {
		r.logger.Warn("remote sign-out failed",
			"user_id", userID,
			"error", err,
		)
	}
}

// HandleAuthEvent applies an external auth-state-change. The event stream is
// authoritative: a sign-in or token refresh (re)resolves, a sign-out clears
// local state without another remote call.
func (r *Resolver) HandleAuthEvent(
	ctx context.Context,
	event AuthEvent,
	principal *Principal,
) error {
	switch event {
	case EventSignedIn, EventTokenRefreshed:
		if principal == nil {
			return fmt.Errorf("auth event %s without principal", event)
		}
		return r.Resolve(ctx, *principal)
	case EventSignedOut:
		r.mu.Lock()
		r.identity = Identity{}
		r.snapshot = entitlement.Snapshot{}
		r.state = StateUnauthenticated
		r.generation++
		r.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("unknown auth event %q", event)
	}
}

// Entitlement returns the current snapshot, applying a due quota reset
// first. The reset is persisted so repeated reads agree.
func (r *Resolver) Entitlement() (entitlement.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateAuthenticated {
		return entitlement.Snapshot{}, ErrNotAuthenticated
	}

	r.snapshot = entitlement.MaybeReset(r.snapshot, r.now())
	return r.snapshot, nil
}

// ConsumeMessage spends one message from the quota. Reset check, decrement,
// and store happen in a single critical section.
func (r *Resolver) ConsumeMessage() (entitlement.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateAuthenticated {
		return entitlement.Snapshot{}, ErrNotAuthenticated
	}

	r.snapshot = entitlement.MaybeReset(r.snapshot, r.now())

	next, err := entitlement.Consume(r.snapshot)
	if err != nil {
		return r.snapshot, err
	}

	r.snapshot = next
	return r.snapshot, nil
}

// RefundMessage returns one consumed message after a confirmed send failure.
func (r *Resolver) RefundMessage() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateAuthenticated {
		return
	}

	r.snapshot = entitlement.Refund(r.snapshot)
}

func (r *Resolver) CanView(kind entitlement.MediaKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateAuthenticated {
		return false
	}

	return entitlement.CanView(r.snapshot, kind)
}

// SetTier rebuilds the whole snapshot from the capability table for a new
// tier. Field-by-field patching is deliberately impossible here.
func (r *Resolver) SetTier(tier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateAuthenticated {
		return ErrNotAuthenticated
	}

	r.snapshot = entitlement.SnapshotFor(tier, r.now())
	return nil
}

// VerifyLiveSession checks against the backend that the session is still
// alive, for mutations too risky to gate on cached identity.
func (r *Resolver) VerifyLiveSession(ctx context.Context) error {
	r.mu.Lock()
	userID := r.identity.ID
	authenticated := r.state == StateAuthenticated
	r.mu.Unlock()

	if !authenticated || userID == "" {
		return ErrNotAuthenticated
	}

	alive, err := r.auth.SessionAlive(ctx, userID)
	if err != nil {
		return fmt.Errorf("verify session: %w", err)
	}
	if !alive {
		return ErrNotAuthenticated
	}

	return nil
}

// RefreshEntitlement re-pulls the profile to catch out-of-band changes (an
// admin tier or role change elsewhere). A refresh that started before a
// newer resolution or sign-out is discarded; a refresh that finds the tier
// unchanged leaves the snapshot alone so it cannot clobber consumed quota.
func (r *Resolver) RefreshEntitlement(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateAuthenticated {
		r.mu.Unlock()
		return nil
	}
	gen := r.generation
	principal := Principal{ID: r.identity.ID, Email: r.identity.Email}
	r.mu.Unlock()

	profile, err := r.store.ProfileByID(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("refresh entitlement: %w", err)
	}

	identity := buildIdentity(principal, profile)
	identity.Role = effectiveRole(principal.Email, identity.Role, r.adminEmails)

	tier := entitlement.TierFree
	if entitlement.ValidTier(profile.Tier) {
		tier = profile.Tier
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.generation != gen || r.state != StateAuthenticated {
		return nil
	}

	r.identity = identity
	if r.snapshot.Tier != tier {
		r.snapshot = entitlement.SnapshotFor(tier, r.now())
	}

	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
