// AngelaMos | 2026
// entity.go

package feed

import (
	"time"
)

type Post struct {
	ID        string     `db:"id"         json:"id"`
	AuthorID  string     `db:"author_id"  json:"author_id"`
	Body      string     `db:"body"       json:"body"`
	MediaKind string     `db:"media_kind" json:"media_kind"`
	MediaURL  string     `db:"media_url"  json:"media_url,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

const (
	MediaNone  = "none"
	MediaPhoto = "photo"
	MediaVideo = "video"
)

func (p *Post) HasMedia() bool {
	return p.MediaKind != MediaNone && p.MediaURL != ""
}

// LikeState is the per-viewer view of a post's like counter. Both fields
// move together: the coordinator applies them as one value so a rollback
// can never leave the flag and the count disagreeing.
type LikeState struct {
	LikesCount     int  `db:"likes_count"      json:"likes_count"`
	ViewerHasLiked bool `db:"viewer_has_liked" json:"viewer_has_liked"`
}
