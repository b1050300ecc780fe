// AngelaMos | 2026
// identity.go

package session

import (
	"strings"
)

const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

const (
	StatusActive = "active"
	StatusBanned = "banned"
)

// Identity is the application-level view of an authenticated user. It is a
// closed type: every field is filled exactly once, in buildIdentity, with
// explicit defaults for anything the profile row is missing.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
	Username    string
	Role        string
	Status      string
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

func (i Identity) IsBanned() bool {
	return i.Status == StatusBanned
}

// Principal is the raw authenticated subject handed over by the auth
// subsystem, before the profile row has been merged in.
type Principal struct {
	ID    string
	Email string
}

// Profile is the stored profile row as the gateway returns it.
type Profile struct {
	ID          string
	Email       string
	Username    string
	DisplayName string
	Role        string
	Status      string
	Tier        string
}

// buildIdentity merges a principal with its profile row. A nil profile means
// the row was not provisioned yet (fresh signup); the identity is synthesized
// from the principal alone so the session never dangles unauthenticated.
func buildIdentity(principal Principal, profile *Profile) Identity {
	identity := Identity{
		ID:       principal.ID,
		Email:    principal.Email,
		Username: deriveUsername(principal.Email),
		Role:     RoleUser,
		Status:   StatusActive,
	}

	if profile == nil {
		identity.DisplayName = identity.Username
		return identity
	}

	if profile.Username != "" {
		identity.Username = profile.Username
	}
	if profile.DisplayName != "" {
		identity.DisplayName = profile.DisplayName
	} else {
		identity.DisplayName = identity.Username
	}
	if validRole(profile.Role) {
		identity.Role = profile.Role
	}
	if profile.Status == StatusBanned {
		identity.Status = StatusBanned
	}

	return identity
}

// effectiveRole computes the role an identity should hold given the stored
// role and the admin allow-list. Pure; persisting a computed elevation is a
// separate, explicit side effect owned by the resolver.
func effectiveRole(email, storedRole string, adminEmails map[string]struct{}) string {
	if _, ok := adminEmails[strings.ToLower(email)]; ok {
		return RoleAdmin
	}

	if validRole(storedRole) {
		return storedRole
	}

	return RoleUser
}

func validRole(role string) bool {
	switch role {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	default:
		return false
	}
}

func deriveUsername(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return strings.ToLower(email)
	}
	return strings.ToLower(local)
}
