// AngelaMos | 2026
// repository.go

package friend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/angelamos/lumeo/internal/core"
)

type Repository interface {
	Create(ctx context.Context, friendship *Friendship) error
	GetByID(ctx context.Context, id string) (*Friendship, error)
	GetByPair(ctx context.Context, userA, userB string) (*Friendship, error)
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
	ListFriends(ctx context.Context, userID string) ([]FriendEntry, error)
	ListPending(ctx context.Context, userID string) ([]Friendship, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const friendshipColumns = `
	id, requester_id, addressee_id, status, created_at, updated_at`

func (r *repository) Create(ctx context.Context, friendship *Friendship) error {
	query := `
		INSERT INTO friendships (id, requester_id, addressee_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, friendship, query,
		friendship.ID,
		friendship.RequesterID,
		friendship.AddresseeID,
		friendship.Status,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("create friendship: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create friendship: %w", err)
	}

	return nil
}

func (r *repository) GetByID(
	ctx context.Context,
	id string,
) (*Friendship, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM friendships
		WHERE id = $1`, friendshipColumns)

	var friendship Friendship
	err := r.db.GetContext(ctx, &friendship, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get friendship: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get friendship: %w", err)
	}

	return &friendship, nil
}

func (r *repository) GetByPair(
	ctx context.Context,
	userA, userB string,
) (*Friendship, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM friendships
		WHERE (requester_id = $1 AND addressee_id = $2)
		   OR (requester_id = $2 AND addressee_id = $1)`, friendshipColumns)

	var friendship Friendship
	err := r.db.GetContext(ctx, &friendship, query, userA, userB)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get friendship: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get friendship: %w", err)
	}

	return &friendship, nil
}

func (r *repository) UpdateStatus(
	ctx context.Context,
	id, status string,
) error {
	query := `
		UPDATE friendships
		SET status = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update friendship: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update friendship: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("update friendship: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM friendships WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete friendship: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) ListFriends(
	ctx context.Context,
	userID string,
) ([]FriendEntry, error) {
	query := `
		SELECT
			u.id AS user_id,
			u.username,
			u.display_name,
			f.updated_at AS since
		FROM friendships f
		JOIN users u ON u.id = CASE
			WHEN f.requester_id = $1 THEN f.addressee_id
			ELSE f.requester_id
		END
		WHERE (f.requester_id = $1 OR f.addressee_id = $1)
		  AND f.status = 'accepted'
		  AND u.deleted_at IS NULL
		ORDER BY u.username`

	var friends []FriendEntry
	if err := r.db.SelectContext(ctx, &friends, query, userID); err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}

	return friends, nil
}

func (r *repository) ListPending(
	ctx context.Context,
	userID string,
) ([]Friendship, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM friendships
		WHERE addressee_id = $1 AND status = 'pending'
		ORDER BY created_at DESC`, friendshipColumns)

	var pending []Friendship
	if err := r.db.SelectContext(ctx, &pending, query, userID); err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}

	return pending, nil
}
