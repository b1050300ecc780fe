// AngelaMos | 2026
// entity.go

package friend

import (
	"time"
)

const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

// Friendship is a directed request row: requester asked, addressee answers.
// Once accepted the edge is treated as undirected by every query.
type Friendship struct {
	ID          string    `db:"id"           json:"id"`
	RequesterID string    `db:"requester_id" json:"requester_id"`
	AddresseeID string    `db:"addressee_id" json:"addressee_id"`
	Status      string    `db:"status"       json:"status"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updated_at"`
}

func (f *Friendship) Involves(userID string) bool {
	return f.RequesterID == userID || f.AddresseeID == userID
}

// FriendEntry is one row of a user's friend list.
type FriendEntry struct {
	UserID      string    `db:"user_id"      json:"user_id"`
	Username    string    `db:"username"     json:"username"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Since       time.Time `db:"since"        json:"since"`
}
