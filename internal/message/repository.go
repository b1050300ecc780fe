// AngelaMos | 2026
// repository.go

package message

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/angelamos/lumeo/internal/core"
)

type Repository interface {
	// EnsureConversation returns the direct conversation between two users,
	// creating it inside one transaction when it does not exist yet.
	EnsureConversation(ctx context.Context, userA, userB string) (string, error)
	IsParticipant(
		ctx context.Context,
		conversationID, userID string,
	) (bool, error)
	InsertMessage(ctx context.Context, msg *Message) error
	ListMessages(
		ctx context.Context,
		conversationID string,
		params ListMessagesParams,
	) ([]Message, int, error)
	ListConversations(
		ctx context.Context,
		userID string,
	) ([]ConversationSummary, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// canonicalPair orders two participant IDs so the same conversation row is
// addressed regardless of who messaged first.
func canonicalPair(x, y string) (string, string) {
	if x > y {
		return y, x
	}
	return x, y
}

const findConversationQuery = `
	SELECT id FROM conversations
	WHERE participant_a = $1 AND participant_b = $2`

func (r *repository) EnsureConversation(
	ctx context.Context,
	userA, userB string,
) (string, error) {
	a, b := canonicalPair(userA, userB)

	var id string
	err := r.db.GetContext(ctx, &id, findConversationQuery, a, b)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("find conversation: %w", err)
	}

	id = uuid.New().String()
	err = core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO conversations (id, participant_a, participant_b)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (participant_a, participant_b) DO NOTHING`,
			id, a, b,
		)
		if err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}

		inserted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		if inserted == 0 {
			// A concurrent first message won the race; reuse its row.
			if err := tx.GetContext(
				ctx, &id, findConversationQuery, a, b,
			); err != nil {
				return fmt.Errorf("find conversation: %w", err)
			}
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id)
			 VALUES ($1, $2), ($1, $3)`,
			id, a, b,
		); err != nil {
			return fmt.Errorf("add participants: %w", err)
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

func (r *repository) IsParticipant(
	ctx context.Context,
	conversationID, userID string,
) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $1 AND user_id = $2
		)`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, conversationID, userID)
	if err != nil {
		return false, fmt.Errorf("check participant: %w", err)
	}

	return exists, nil
}

func (r *repository) InsertMessage(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, sender_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &msg.CreatedAt, query,
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		msg.Body,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	return nil
}

func (r *repository) ListMessages(
	ctx context.Context,
	conversationID string,
	params ListMessagesParams,
) ([]Message, int, error) {
	params.Normalize()

	var total int
	countQuery := `SELECT COUNT(*) FROM messages WHERE conversation_id = $1`
	if err := r.db.GetContext(
		ctx,
		&total,
		countQuery,
		conversationID,
	); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	query := `
		SELECT id, conversation_id, sender_id, body, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	var messages []Message
	err := r.db.SelectContext(ctx, &messages, query,
		conversationID,
		params.PageSize,
		params.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}

	return messages, total, nil
}

func (r *repository) ListConversations(
	ctx context.Context,
	userID string,
) ([]ConversationSummary, error) {
	query := `
		SELECT
			c.id,
			peer.user_id AS peer_id,
			(
				SELECT MAX(m.created_at)
				FROM messages m
				WHERE m.conversation_id = c.id
			) AS last_message_at,
			c.created_at
		FROM conversations c
		JOIN conversation_participants me
			ON me.conversation_id = c.id AND me.user_id = $1
		JOIN conversation_participants peer
			ON peer.conversation_id = c.id AND peer.user_id <> $1
		ORDER BY last_message_at DESC NULLS LAST`

	var conversations []ConversationSummary
	err := r.db.SelectContext(ctx, &conversations, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	return conversations, nil
}
