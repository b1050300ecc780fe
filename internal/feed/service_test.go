// AngelaMos | 2026
// service_test.go

package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/lumeo/internal/core"
	"github.com/angelamos/lumeo/internal/optimistic"
	"github.com/angelamos/lumeo/internal/session"
)

type fakeRepo struct {
	mu        sync.Mutex
	posts     map[string]*Post
	likes     map[string]map[string]bool
	insertErr error
	statsErr  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		posts: make(map[string]*Post),
		likes: make(map[string]map[string]bool),
	}
}

func (f *fakeRepo) CreatePost(_ context.Context, post *Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[post.ID] = post
	return nil
}

func (f *fakeRepo) GetPost(_ context.Context, id string) (*Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return post, nil
}

func (f *fakeRepo) ListPosts(
	_ context.Context,
	_ ListPostsParams,
) ([]Post, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	posts := make([]Post, 0, len(f.posts))
	for _, p := range f.posts {
		posts = append(posts, *p)
	}
	return posts, len(posts), nil
}

func (f *fakeRepo) SoftDeletePost(
	_ context.Context,
	id, authorID string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok || post.AuthorID != authorID {
		return core.ErrNotFound
	}
	delete(f.posts, id)
	return nil
}

func (f *fakeRepo) InsertLike(_ context.Context, postID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if f.likes[postID] == nil {
		f.likes[postID] = make(map[string]bool)
	}
	f.likes[postID][userID] = true
	return nil
}

func (f *fakeRepo) DeleteLike(_ context.Context, postID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.likes[postID], userID)
	return nil
}

func (f *fakeRepo) LikeStats(
	_ context.Context,
	postID, viewerID string,
) (LikeState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return LikeState{}, f.statsErr
	}
	return LikeState{
		LikesCount:     len(f.likes[postID]),
		ViewerHasLiked: f.likes[postID][viewerID],
	}, nil
}

type staticStore struct {
	profiles map[string]*session.Profile
}

func (s *staticStore) ProfileByID(
	_ context.Context,
	id string,
) (*session.Profile, error) {
	p, ok := s.profiles[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return p, nil
}

func (s *staticStore) UpdateRole(_ context.Context, _, _ string) error {
	return nil
}

type staticAuth struct{}

func (staticAuth) SignIn(
	_ context.Context,
	_, _ string,
) (session.Principal, error) {
	return session.Principal{}, session.ErrInvalidCredentials
}

func (staticAuth) SignUp(
	_ context.Context,
	_, _, _ string,
) (session.Principal, error) {
	return session.Principal{}, session.ErrInvalidCredentials
}

func (staticAuth) SignOut(_ context.Context, _ string) error { return nil }

func (staticAuth) SessionAlive(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func newTestService(
	t *testing.T,
	tiers map[string]string,
) (*Service, *fakeRepo, *session.Registry) {
	t.Helper()

	store := &staticStore{profiles: make(map[string]*session.Profile)}
	for id, tier := range tiers {
		store.profiles[id] = &session.Profile{
			ID:       id,
			Email:    id + "@example.com",
			Username: id,
			Role:     "user",
			Status:   "active",
			Tier:     tier,
		}
	}

	registry := session.NewRegistry(store, staticAuth{}, session.Config{})
	for id := range tiers {
		_, err := registry.Attach(context.Background(), session.Principal{
			ID:    id,
			Email: id + "@example.com",
		})
		require.NoError(t, err)
	}

	repo := newFakeRepo()
	return NewService(repo, registry), repo, registry
}

func seedPost(t *testing.T, svc *Service, authorID, kind, url string) string {
	t.Helper()

	post, err := svc.CreatePost(context.Background(), authorID, CreatePostRequest{
		Body:      "hello",
		MediaKind: kind,
		MediaURL:  url,
	})
	require.NoError(t, err)
	return post.ID
}

// A successful like lands remotely and the returned state comes from the
// re-count, not from the local +1.
func TestToggleLike_ReconcilesToAuthoritativeCount(t *testing.T) {
	svc, repo, _ := newTestService(t, map[string]string{"alice": "free"})
	postID := seedPost(t, svc, "bob", MediaNone, "")

	// two other users already liked the post
	require.NoError(t, repo.InsertLike(context.Background(), postID, "u1"))
	require.NoError(t, repo.InsertLike(context.Background(), postID, "u2"))

	state, err := svc.ToggleLike(context.Background(), "alice", postID)
	require.NoError(t, err)

	assert.True(t, state.ViewerHasLiked)
	assert.Equal(t, 3, state.LikesCount)
}

// A failed commit restores the exact pre-toggle state.
func TestToggleLike_FailureRollsBack(t *testing.T) {
	svc, repo, _ := newTestService(t, map[string]string{"alice": "free"})
	postID := seedPost(t, svc, "bob", MediaNone, "")

	require.NoError(t, repo.InsertLike(context.Background(), postID, "u1"))

	// seed the coordinator with the clean state first
	_, err := svc.GetPost(context.Background(), "alice", postID)
	require.NoError(t, err)

	repo.insertErr = errors.New("boom")

	state, err := svc.ToggleLike(context.Background(), "alice", postID)
	require.ErrorIs(t, err, optimistic.ErrRemoteRejected)

	assert.False(t, state.ViewerHasLiked)
	assert.Equal(t, 1, state.LikesCount)
}

func TestToggleLike_TwiceReturnsToUnliked(t *testing.T) {
	svc, _, _ := newTestService(t, map[string]string{"alice": "free"})
	postID := seedPost(t, svc, "bob", MediaNone, "")

	state, err := svc.ToggleLike(context.Background(), "alice", postID)
	require.NoError(t, err)
	assert.True(t, state.ViewerHasLiked)
	assert.Equal(t, 1, state.LikesCount)

	state, err = svc.ToggleLike(context.Background(), "alice", postID)
	require.NoError(t, err)
	assert.False(t, state.ViewerHasLiked)
	assert.Equal(t, 0, state.LikesCount)
}

// Simultaneous toggles serialize inside the coordinator: the second flip is
// decided against the first one's result, so a pair nets out to the original
// unliked state.
func TestToggleLike_SimultaneousTogglesNetOut(t *testing.T) {
	svc, repo, _ := newTestService(t, map[string]string{"alice": "free"})
	postID := seedPost(t, svc, "bob", MediaNone, "")

	// seed the coordinator so both goroutines share it
	_, err := svc.GetPost(context.Background(), "alice", postID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ToggleLike(context.Background(), "alice", postID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stats, err := repo.LikeStats(context.Background(), postID, "alice")
	require.NoError(t, err)
	assert.False(t, stats.ViewerHasLiked)
	assert.Equal(t, 0, stats.LikesCount)
}

// Idle coordinators are swept; a late result against one is dropped and the
// next read reseeds from the repository with nothing lost.
func TestLikeCoordinators_EvictAfterIdle(t *testing.T) {
	svc, _, _ := newTestService(t, map[string]string{"alice": "free"})
	postID := seedPost(t, svc, "bob", MediaNone, "")

	_, err := svc.ToggleLike(context.Background(), "alice", postID)
	require.NoError(t, err)

	svc.mu.Lock()
	entry := svc.coordinators["alice:"+postID]
	svc.mu.Unlock()
	require.NotNil(t, entry)

	svc.evictIdle(time.Now().Add(time.Minute))

	svc.mu.Lock()
	assert.Empty(t, svc.coordinators)
	svc.mu.Unlock()

	err = entry.coord.Run(context.Background(), optimistic.Mutation[LikeState]{})
	require.ErrorIs(t, err, optimistic.ErrDiscarded)

	state, err := svc.refreshLikes(context.Background(), "alice", postID)
	require.NoError(t, err)
	assert.True(t, state.ViewerHasLiked)
	assert.Equal(t, 1, state.LikesCount)
}

func TestGetPost_VideoLockedForFreeTier(t *testing.T) {
	svc, _, _ := newTestService(t, map[string]string{"alice": "free"})
	postID := seedPost(t, svc, "bob", MediaVideo, "https://cdn.example.com/v.mp4")

	post, err := svc.GetPost(context.Background(), "alice", postID)
	require.NoError(t, err)

	assert.True(t, post.MediaLocked)
	assert.Empty(t, post.MediaURL)
	assert.Equal(t, MediaVideo, post.MediaKind)
}

func TestGetPost_VideoVisibleForGoldTier(t *testing.T) {
	svc, _, _ := newTestService(t, map[string]string{"carol": "gold"})
	postID := seedPost(t, svc, "bob", MediaVideo, "https://cdn.example.com/v.mp4")

	post, err := svc.GetPost(context.Background(), "carol", postID)
	require.NoError(t, err)

	assert.False(t, post.MediaLocked)
	assert.Equal(t, "https://cdn.example.com/v.mp4", post.MediaURL)
}

func TestGetPost_PhotosVisibleOnEveryTier(t *testing.T) {
	svc, _, _ := newTestService(t, map[string]string{"alice": "free"})
	postID := seedPost(t, svc, "bob", MediaPhoto, "https://cdn.example.com/p.jpg")

	post, err := svc.GetPost(context.Background(), "alice", postID)
	require.NoError(t, err)

	assert.False(t, post.MediaLocked)
	assert.Equal(t, "https://cdn.example.com/p.jpg", post.MediaURL)
}

// Authors always see their own uploads, whatever their tier allows others.
func TestGetPost_AuthorSeesOwnVideo(t *testing.T) {
	svc, _, _ := newTestService(t, map[string]string{"alice": "free"})
	postID := seedPost(
		t,
		svc,
		"alice",
		MediaVideo,
		"https://cdn.example.com/v.mp4",
	)

	post, err := svc.GetPost(context.Background(), "alice", postID)
	require.NoError(t, err)

	assert.False(t, post.MediaLocked)
	assert.NotEmpty(t, post.MediaURL)
}

// A paying viewer whose resolver was lost (process restart) is re-attached
// from the profile store instead of being degraded to free-tier visibility.
func TestGetPost_ReattachesViewerAfterRestart(t *testing.T) {
	store := &staticStore{profiles: map[string]*session.Profile{
		"carol": {
			ID:       "carol",
			Email:    "carol@example.com",
			Username: "carol",
			Role:     "user",
			Status:   "active",
			Tier:     "gold",
		},
	}}
	registry := session.NewRegistry(store, staticAuth{}, session.Config{})
	svc := NewService(newFakeRepo(), registry)

	postID := seedPost(t, svc, "bob", MediaVideo, "https://cdn.example.com/v.mp4")

	post, err := svc.GetPost(context.Background(), "carol", postID)
	require.NoError(t, err)
	assert.False(t, post.MediaLocked)
	assert.Equal(t, "https://cdn.example.com/v.mp4", post.MediaURL)

	_, attached := registry.Lookup("carol")
	assert.True(t, attached)
}

// A viewer unknown to the profile store falls back to free-tier capabilities.
func TestGetPost_UnattachedViewerFailsClosed(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	postID := seedPost(t, svc, "bob", MediaVideo, "https://cdn.example.com/v.mp4")

	post, err := svc.GetPost(context.Background(), "stranger", postID)
	require.NoError(t, err)

	assert.True(t, post.MediaLocked)
}

func TestCreatePost_MediaKindAndURLMustAgree(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	_, err := svc.CreatePost(context.Background(), "bob", CreatePostRequest{
		Body:      "no url",
		MediaKind: MediaPhoto,
	})
	require.ErrorIs(t, err, ErrMediaMismatch)

	_, err = svc.CreatePost(context.Background(), "bob", CreatePostRequest{
		Body:     "url without kind",
		MediaURL: "https://cdn.example.com/p.jpg",
	})
	require.ErrorIs(t, err, ErrMediaMismatch)
}

// Deleting a post discards its coordinators so a late toggle cannot write.
func TestDeletePost_DiscardsLikeCoordinators(t *testing.T) {
	svc, _, _ := newTestService(t, map[string]string{"alice": "free"})
	postID := seedPost(t, svc, "bob", MediaNone, "")

	_, err := svc.ToggleLike(context.Background(), "alice", postID)
	require.NoError(t, err)

	require.NoError(t, svc.DeletePost(context.Background(), "bob", postID))

	svc.mu.Lock()
	assert.Empty(t, svc.coordinators)
	svc.mu.Unlock()
}

func TestDeletePost_OnlyAuthorMayDelete(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	postID := seedPost(t, svc, "bob", MediaNone, "")

	err := svc.DeletePost(context.Background(), "mallory", postID)
	require.ErrorIs(t, err, core.ErrNotFound)
}
