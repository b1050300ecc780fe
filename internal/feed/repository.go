// AngelaMos | 2026
// repository.go

package feed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/angelamos/lumeo/internal/core"
)

type Repository interface {
	CreatePost(ctx context.Context, post *Post) error
	GetPost(ctx context.Context, id string) (*Post, error)
	ListPosts(ctx context.Context, params ListPostsParams) ([]Post, int, error)
	SoftDeletePost(ctx context.Context, id, authorID string) error

	InsertLike(ctx context.Context, postID, userID string) error
	DeleteLike(ctx context.Context, postID, userID string) error
	LikeStats(
		ctx context.Context,
		postID, viewerID string,
	) (LikeState, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const postColumns = `
	id, author_id, body, media_kind, media_url,
	created_at, updated_at, deleted_at`

func (r *repository) CreatePost(ctx context.Context, post *Post) error {
	query := `
		INSERT INTO posts (id, author_id, body, media_kind, media_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, post, query,
		post.ID,
		post.AuthorID,
		post.Body,
		post.MediaKind,
		post.MediaURL,
	)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}

	return nil
}

func (r *repository) GetPost(ctx context.Context, id string) (*Post, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM posts
		WHERE id = $1 AND deleted_at IS NULL`, postColumns)

	var post Post
	err := r.db.GetContext(ctx, &post, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get post: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}

	return &post, nil
}

func (r *repository) ListPosts(
	ctx context.Context,
	params ListPostsParams,
) ([]Post, int, error) {
	params.Normalize()

	whereClause := "deleted_at IS NULL"
	var args []any
	argIdx := 1

	if params.AuthorID != "" {
		whereClause += fmt.Sprintf(" AND author_id = $%d", argIdx)
		args = append(args, params.AuthorID)
		argIdx++
	}

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM posts WHERE %s",
		whereClause,
	)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM posts
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		postColumns, whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var posts []Post
	if err := r.db.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}

	return posts, total, nil
}

func (r *repository) SoftDeletePost(
	ctx context.Context,
	id, authorID string,
) error {
	query := `
		UPDATE posts
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND author_id = $2 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, authorID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("delete post: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) InsertLike(
	ctx context.Context,
	postID, userID string,
) error {
	query := `
		INSERT INTO likes (post_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (post_id, user_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, postID, userID); err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("insert like: %w", core.ErrNotFound)
		}
		return fmt.Errorf("insert like: %w", err)
	}

	return nil
}

func (r *repository) DeleteLike(
	ctx context.Context,
	postID, userID string,
) error {
	query := `DELETE FROM likes WHERE post_id = $1 AND user_id = $2`

	if _, err := r.db.ExecContext(ctx, query, postID, userID); err != nil {
		return fmt.Errorf("delete like: %w", err)
	}

	return nil
}

// LikeStats re-counts rows rather than adjusting a cached counter, so the
// value it returns is authoritative regardless of what the caller believed.
func (r *repository) LikeStats(
	ctx context.Context,
	postID, viewerID string,
) (LikeState, error) {
	query := `
		SELECT
			COUNT(*) AS likes_count,
			COALESCE(
				BOOL_OR(user_id = $2),
				FALSE
			) AS viewer_has_liked
		FROM likes
		WHERE post_id = $1`

	var state LikeState
	err := r.db.GetContext(ctx, &state, query, postID, viewerID)
	if err != nil {
		return LikeState{}, fmt.Errorf("like stats: %w", err)
	}

	return state, nil
}

func isForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
