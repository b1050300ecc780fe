// AngelaMos | 2026
// registry.go

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/angelamos/lumeo/internal/core"
)

// Registry keeps one Resolver per signed-in user. It is the server-side
// analogue of the app's ambient session state: services look sessions up
// here, and a background loop refreshes entitlements to catch out-of-band
// changes.
type Registry struct {
	store  ProfileStore
	auth   Authenticator
	cfg    Config
	logger *slog.Logger

	mu        sync.RWMutex
	resolvers map[string]*Resolver
}

func NewRegistry(store ProfileStore, auth Authenticator, cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		store:     store,
		auth:      auth,
		cfg:       cfg,
		logger:    logger,
		resolvers: make(map[string]*Resolver),
	}
}

// Attach resolves a principal and returns the user's resolver, creating one
// on first sight. Re-attaching an already-resolved principal is idempotent.
func (g *Registry) Attach(
	ctx context.Context,
	principal Principal,
) (*Resolver, error) {
	g.mu.Lock()
	resolver, ok := g.resolvers[principal.ID]
	if !ok {
		resolver = NewResolver(g.store, g.auth, g.cfg)
		g.resolvers[principal.ID] = resolver
	}
	g.mu.Unlock()

	if err := resolver.Resolve(ctx, principal); err != nil {
		return nil, err
	}

	return resolver, nil
}

// Lookup returns the resolver for a user, if one is attached.
func (g *Registry) Lookup(userID string) (*Resolver, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	resolver, ok := g.resolvers[userID]
	return resolver, ok
}

// Ensure returns the user's resolver, attaching one from the profile store
// when none is held, as after a process restart or an attach that failed at
// token grant time. The store supplies the email the access token does not
// carry. A user with no profile row surfaces as ErrNotAuthenticated.
func (g *Registry) Ensure(
	ctx context.Context,
	userID string,
) (*Resolver, error) {
	if resolver, ok := g.Lookup(userID); ok &&
		resolver.State() == StateAuthenticated {
		return resolver, nil
	}

	profile, err := g.store.ProfileByID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("ensure session: %w", err)
	}

	return g.Attach(ctx, Principal{ID: profile.ID, Email: profile.Email})
}

// Count reports how many resolvers are currently attached.
func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.resolvers)
}

// Detach logs the user's session out and forgets it.
func (g *Registry) Detach(ctx context.Context, userID string) {
	g.mu.Lock()
	resolver, ok := g.resolvers[userID]
	delete(g.resolvers, userID)
	g.mu.Unlock()

	if ok {
		resolver.Logout(ctx)
	}
}

// RefreshLoop re-pulls entitlements for every attached session on a fixed
// interval until the context is done.
func (g *Registry) RefreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.refreshAll(ctx)
		}
	}
}

func (g *Registry) refreshAll(ctx context.Context) {
	g.mu.RLock()
	resolvers := make([]*Resolver, 0, len(g.resolvers))
	for _, r := range g.resolvers {
		resolvers = append(resolvers, r)
	}
	g.mu.RUnlock()

	for _, r := range resolvers {
		if err := r.RefreshEntitlement(ctx); err != nil {
			g.logger.Warn("entitlement refresh failed", "error", err)
		}
	}
}
