// AngelaMos | 2026
// dto.go

package feed

import (
	"time"
)

type CreatePostRequest struct {
	Body      string `json:"body"       validate:"required,min=1,max=2000"`
	MediaKind string `json:"media_kind" validate:"omitempty,oneof=none photo video"`
	MediaURL  string `json:"media_url"  validate:"omitempty,url,max=2048"`
}

// PostResponse is a post as one specific viewer sees it. Media the viewer's
// tier cannot display is replaced by MediaLocked=true with an empty URL.
type PostResponse struct {
	ID          string    `json:"id"`
	AuthorID    string    `json:"author_id"`
	Body        string    `json:"body"`
	MediaKind   string    `json:"media_kind"`
	MediaURL    string    `json:"media_url,omitempty"`
	MediaLocked bool      `json:"media_locked,omitempty"`
	Likes       LikeState `json:"likes"`
	CreatedAt   time.Time `json:"created_at"`
}

type ListPostsParams struct {
	AuthorID string `json:"author_id"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

func (p *ListPostsParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 100 {
		p.PageSize = 20
	}
}

func (p *ListPostsParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}
