// AngelaMos | 2026
// gateway.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelamos/lumeo/internal/core"
	"github.com/angelamos/lumeo/internal/session"
)

// Gateway adapts the auth service to the credential interface the session
// resolver consumes. Sign-in and sign-up skip token issuance entirely: the
// resolver tracks identity in-process and has no use for a JWT pair.
type Gateway struct {
	service *Service
	repo    Repository
}

func NewGateway(service *Service, repo Repository) *Gateway {
	return &Gateway{service: service, repo: repo}
}

var _ session.Authenticator = (*Gateway)(nil)

func (g *Gateway) SignIn(
	ctx context.Context,
	email, password string,
) (session.Principal, error) {
	user, err := g.service.authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) ||
			errors.Is(err, ErrAccountBanned) {
			return session.Principal{}, session.ErrInvalidCredentials
		}
		return session.Principal{}, fmt.Errorf("sign in: %w", err)
	}

	return session.Principal{ID: user.ID, Email: user.Email}, nil
}

func (g *Gateway) SignUp(
	ctx context.Context,
	email, password, displayName string,
) (session.Principal, error) {
	passwordHash, err := core.HashPassword(password)
	if err != nil {
		return session.Principal{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := g.service.userProvider.Create(
		ctx,
		email,
		passwordHash,
		usernameFromEmail(email),
		displayName,
	)
	if err != nil {
		return session.Principal{}, fmt.Errorf("sign up: %w", err)
	}

	return session.Principal{ID: user.ID, Email: user.Email}, nil
}

func (g *Gateway) SignOut(ctx context.Context, userID string) error {
	return g.service.LogoutAll(ctx, userID)
}

func (g *Gateway) SessionAlive(
	ctx context.Context,
	userID string,
) (bool, error) {
	user, err := g.service.userProvider.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("session alive: %w", err)
	}

	if user.IsBanned() {
		return false, nil
	}

	sessions, err := g.repo.GetActiveSessionsForUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("session alive: %w", err)
	}

	return len(sessions) > 0, nil
}

func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return strings.ToLower(local)
}
