// AngelaMos | 2026
// service.go

package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelamos/lumeo/internal/entitlement"
	"github.com/angelamos/lumeo/internal/optimistic"
	"github.com/angelamos/lumeo/internal/session"
)

var ErrMediaMismatch = errors.New("media url and media kind must be set together")

const (
	coordinatorIdleTTL  = 15 * time.Minute
	coordinatorSweepAge = 5 * time.Minute
)

// likeEntry pairs a coordinator with its last touch, so idle (viewer, post)
// state can be swept instead of accumulating for every feed render.
type likeEntry struct {
	coord      *optimistic.Coordinator[LikeState]
	lastAccess time.Time
}

type Service struct {
	repo     Repository
	sessions *session.Registry

	mu           sync.Mutex
	coordinators map[string]*likeEntry
}

func NewService(repo Repository, sessions *session.Registry) *Service {
	s := &Service{
		repo:         repo,
		sessions:     sessions,
		coordinators: make(map[string]*likeEntry),
	}
	go s.evictLoop()
	return s
}

func (s *Service) evictLoop() {
	ticker := time.NewTicker(coordinatorSweepAge)
	defer ticker.Stop()

	for range ticker.C {
		s.evictIdle(time.Now().Add(-coordinatorIdleTTL))
	}
}

// evictIdle discards and forgets every coordinator last touched before the
// cutoff. Discard keeps a late in-flight result inert; the next read reseeds
// from the repository.
func (s *Service) evictIdle(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.coordinators {
		if entry.lastAccess.Before(cutoff) {
			entry.coord.Discard()
			delete(s.coordinators, key)
		}
	}
}

func (s *Service) CreatePost(
	ctx context.Context,
	authorID string,
	req CreatePostRequest,
) (*PostResponse, error) {
	kind := req.MediaKind
	if kind == "" {
		kind = MediaNone
	}

	if (kind == MediaNone) != (req.MediaURL == "") {
		return nil, ErrMediaMismatch
	}

	post := &Post{
		ID:        uuid.New().String(),
		AuthorID:  authorID,
		Body:      req.Body,
		MediaKind: kind,
		MediaURL:  req.MediaURL,
	}

	if err := s.repo.CreatePost(ctx, post); err != nil {
		return nil, err
	}

	resp := s.render(ctx, post, authorID, LikeState{})
	return &resp, nil
}

func (s *Service) GetPost(
	ctx context.Context,
	viewerID, postID string,
) (*PostResponse, error) {
	post, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	likes, err := s.refreshLikes(ctx, viewerID, postID)
	if err != nil {
		return nil, err
	}

	resp := s.render(ctx, post, viewerID, likes)
	return &resp, nil
}

func (s *Service) ListPosts(
	ctx context.Context,
	viewerID string,
	params ListPostsParams,
) ([]PostResponse, int, error) {
	posts, total, err := s.repo.ListPosts(ctx, params)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]PostResponse, 0, len(posts))
	for i := range posts {
		likes, err := s.refreshLikes(ctx, viewerID, posts[i].ID)
		if err != nil {
			return nil, 0, err
		}
		responses = append(responses, s.render(ctx, &posts[i], viewerID, likes))
	}

	return responses, total, nil
}

func (s *Service) DeletePost(
	ctx context.Context,
	authorID, postID string,
) error {
	if err := s.repo.SoftDeletePost(ctx, postID, authorID); err != nil {
		return err
	}

	s.discardPost(postID)
	return nil
}

// ToggleLike flips the viewer's like on a post. The flip is applied to the
// cached state immediately, committed remotely, then replaced by a fresh
// re-count. A failed commit restores the pre-toggle state exactly.
func (s *Service) ToggleLike(
	ctx context.Context,
	viewerID, postID string,
) (LikeState, error) {
	coord, err := s.coordinator(ctx, viewerID, postID)
	if err != nil {
		return LikeState{}, err
	}

	// Run serializes Apply against the current state, so the flip direction
	// is decided where no concurrent toggle can be mid-way through changing
	// it. Commit reads the decision after Apply has run.
	var liking bool
	err = coord.Run(ctx, optimistic.Mutation[LikeState]{
		Apply: func(cur LikeState) LikeState {
			liking = !cur.ViewerHasLiked
			next := LikeState{ViewerHasLiked: liking}
			if liking {
				next.LikesCount = cur.LikesCount + 1
			} else {
				next.LikesCount = cur.LikesCount - 1
				if next.LikesCount < 0 {
					next.LikesCount = 0
				}
			}
			return next
		},
		Commit: func(ctx context.Context) error {
			if liking {
				return s.repo.InsertLike(ctx, postID, viewerID)
			}
			return s.repo.DeleteLike(ctx, postID, viewerID)
		},
		Reconcile: func(ctx context.Context) (LikeState, error) {
			return s.repo.LikeStats(ctx, postID, viewerID)
		},
	})
	if err != nil {
		state, _ := coord.State()
		return state, err
	}

	state, _ := coord.State()
	return state, nil
}

// refreshLikes reads the authoritative count and publishes it to the cached
// state unless a toggle landed in between, in which case the toggle's
// reconciled value wins and the stale read is dropped.
func (s *Service) refreshLikes(
	ctx context.Context,
	viewerID, postID string,
) (LikeState, error) {
	coord, err := s.coordinator(ctx, viewerID, postID)
	if err != nil {
		return LikeState{}, err
	}

	_, version := coord.State()

	fresh, err := s.repo.LikeStats(ctx, postID, viewerID)
	if err != nil {
		return LikeState{}, err
	}

	coord.CompareAndSwap(version, fresh)

	state, _ := coord.State()
	return state, nil
}

func (s *Service) coordinator(
	ctx context.Context,
	viewerID, postID string,
) (*optimistic.Coordinator[LikeState], error) {
	key := viewerID + ":" + postID

	s.mu.Lock()
	entry, ok := s.coordinators[key]
	if ok {
		entry.lastAccess = time.Now()
	}
	s.mu.Unlock()
	if ok {
		return entry.coord, nil
	}

	initial, err := s.repo.LikeStats(ctx, postID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("seed like state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.coordinators[key]; ok {
		existing.lastAccess = time.Now()
		return existing.coord, nil
	}
	coord := optimistic.New(initial)
	s.coordinators[key] = &likeEntry{coord: coord, lastAccess: time.Now()}
	return coord, nil
}

func (s *Service) discardPost(postID string) {
	suffix := ":" + postID

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.coordinators {
		if len(key) >= len(suffix) &&
			key[len(key)-len(suffix):] == suffix {
			entry.coord.Discard()
			delete(s.coordinators, key)
		}
	}
}

// render projects a post through the viewer's entitlements. Authors always
// see their own media; everyone else is checked against their live snapshot.
func (s *Service) render(
	ctx context.Context,
	post *Post,
	viewerID string,
	likes LikeState,
) PostResponse {
	resp := PostResponse{
		ID:        post.ID,
		AuthorID:  post.AuthorID,
		Body:      post.Body,
		MediaKind: post.MediaKind,
		MediaURL:  post.MediaURL,
		Likes:     likes,
		CreatedAt: post.CreatedAt,
	}

	if !post.HasMedia() || post.AuthorID == viewerID {
		return resp
	}

	if !s.viewerCanSee(ctx, viewerID, entitlement.MediaKind(post.MediaKind)) {
		resp.MediaURL = ""
		resp.MediaLocked = true
	}

	return resp
}

// viewerCanSee resolves the viewer's live entitlement, attaching a session
// from the profile store when the registry holds none. A viewer who cannot
// be resolved at all is gated as free tier.
func (s *Service) viewerCanSee(
	ctx context.Context,
	viewerID string,
	kind entitlement.MediaKind,
) bool {
	if resolver, err := s.sessions.Ensure(ctx, viewerID); err == nil {
		return resolver.CanView(kind)
	}

	caps := entitlement.CapabilitiesFor(entitlement.TierFree)
	switch kind {
	case entitlement.MediaPhoto:
		return caps.CanViewPhotos
	case entitlement.MediaVideo:
		return caps.CanViewVideos
	default:
		return false
	}
}
