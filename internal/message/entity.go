// AngelaMos | 2026
// entity.go

package message

import (
	"time"
)

// Conversation stores its participant pair in sorted order; the pair is
// unique, so the same two users always land in the same thread.
type Conversation struct {
	ID           string    `db:"id"            json:"id"`
	ParticipantA string    `db:"participant_a" json:"participant_a"`
	ParticipantB string    `db:"participant_b" json:"participant_b"`
	CreatedAt    time.Time `db:"created_at"    json:"created_at"`
}

// ConversationSummary is a conversation as listed for one participant.
type ConversationSummary struct {
	ID            string     `db:"id"              json:"id"`
	PeerID        string     `db:"peer_id"         json:"peer_id"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at"      json:"created_at"`
}

type Message struct {
	ID             string    `db:"id"              json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	SenderID       string    `db:"sender_id"       json:"sender_id"`
	Body           string    `db:"body"            json:"body"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
}
