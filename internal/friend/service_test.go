// AngelaMos | 2026
// service_test.go

package friend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelamos/lumeo/internal/core"
)

type fakeRepo struct {
	rows map[string]*Friendship
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[string]*Friendship)}
}

func (f *fakeRepo) Create(_ context.Context, friendship *Friendship) error {
	for _, row := range f.rows {
		if row.Involves(friendship.RequesterID) &&
			row.Involves(friendship.AddresseeID) {
			return core.ErrDuplicateKey
		}
	}
	clone := *friendship
	f.rows[friendship.ID] = &clone
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*Friendship, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	clone := *row
	return &clone, nil
}

func (f *fakeRepo) GetByPair(
	_ context.Context,
	userA, userB string,
) (*Friendship, error) {
	for _, row := range f.rows {
		if row.Involves(userA) && row.Involves(userB) {
			clone := *row
			return &clone, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id, status string) error {
	row, ok := f.rows[id]
	if !ok {
		return core.ErrNotFound
	}
	row.Status = status
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.rows[id]; !ok {
		return core.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeRepo) ListFriends(
	_ context.Context,
	userID string,
) ([]FriendEntry, error) {
	var friends []FriendEntry
	for _, row := range f.rows {
		if row.Status == StatusAccepted && row.Involves(userID) {
			other := row.RequesterID
			if other == userID {
				other = row.AddresseeID
			}
			friends = append(friends, FriendEntry{UserID: other})
		}
	}
	return friends, nil
}

func (f *fakeRepo) ListPending(
	_ context.Context,
	userID string,
) ([]Friendship, error) {
	var pending []Friendship
	for _, row := range f.rows {
		if row.Status == StatusPending && row.AddresseeID == userID {
			pending = append(pending, *row)
		}
	}
	return pending, nil
}

func TestRequestAndAccept(t *testing.T) {
	svc := NewService(newFakeRepo())

	friendship, err := svc.Request(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, friendship.Status)

	accepted, err := svc.Accept(context.Background(), "bob", friendship.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, accepted.Status)

	friends, err := svc.Friends(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].UserID)
}

func TestRequest_RejectsSelf(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Request(context.Background(), "alice", "alice")
	require.ErrorIs(t, err, ErrSelfFriend)
}

func TestRequest_DuplicateIsConflict(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Request(context.Background(), "alice", "bob")
	require.NoError(t, err)

	_, err = svc.Request(context.Background(), "alice", "bob")
	require.ErrorIs(t, err, ErrAlreadyPending)

	// the reverse direction is the same edge
	_, err = svc.Request(context.Background(), "bob", "alice")
	require.ErrorIs(t, err, ErrAlreadyPending)
}

func TestRequest_AfterAcceptIsAlreadyFriends(t *testing.T) {
	svc := NewService(newFakeRepo())

	friendship, err := svc.Request(context.Background(), "alice", "bob")
	require.NoError(t, err)
	_, err = svc.Accept(context.Background(), "bob", friendship.ID)
	require.NoError(t, err)

	_, err = svc.Request(context.Background(), "alice", "bob")
	require.ErrorIs(t, err, ErrAlreadyFriends)
}

// A declined request can be retried; the old edge is replaced.
func TestRequest_ReopensDeclinedEdge(t *testing.T) {
	svc := NewService(newFakeRepo())

	friendship, err := svc.Request(context.Background(), "alice", "bob")
	require.NoError(t, err)
	_, err = svc.Decline(context.Background(), "bob", friendship.ID)
	require.NoError(t, err)

	reopened, err := svc.Request(context.Background(), "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, reopened.Status)
	assert.Equal(t, "bob", reopened.RequesterID)
}

func TestAccept_OnlyAddresseeMayAnswer(t *testing.T) {
	svc := NewService(newFakeRepo())

	friendship, err := svc.Request(context.Background(), "alice", "bob")
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), "alice", friendship.ID)
	require.ErrorIs(t, err, ErrNotAddressee)

	_, err = svc.Accept(context.Background(), "eve", friendship.ID)
	require.ErrorIs(t, err, ErrNotAddressee)
}

func TestAccept_AnsweredRequestStaysAnswered(t *testing.T) {
	svc := NewService(newFakeRepo())

	friendship, err := svc.Request(context.Background(), "alice", "bob")
	require.NoError(t, err)
	_, err = svc.Decline(context.Background(), "bob", friendship.ID)
	require.NoError(t, err)

	_, err = svc.Accept(context.Background(), "bob", friendship.ID)
	require.ErrorIs(t, err, ErrNotPending)
}

func TestRemove_DeletesEitherDirection(t *testing.T) {
	svc := NewService(newFakeRepo())

	friendship, err := svc.Request(context.Background(), "alice", "bob")
	require.NoError(t, err)
	_, err = svc.Accept(context.Background(), "bob", friendship.ID)
	require.NoError(t, err)

	// the addressee removes the edge the requester created
	require.NoError(t, svc.Remove(context.Background(), "bob", "alice"))

	friends, err := svc.Friends(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestPending_ListsOnlyIncomingRequests(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.Request(context.Background(), "alice", "bob")
	require.NoError(t, err)
	_, err = svc.Request(context.Background(), "carol", "bob")
	require.NoError(t, err)

	pending, err := svc.Pending(context.Background(), "bob")
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	pending, err = svc.Pending(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, pending)
}
