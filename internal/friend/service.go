// AngelaMos | 2026
// service.go

package friend

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelamos/lumeo/internal/core"
)

var (
	ErrSelfFriend     = errors.New("cannot befriend yourself")
	ErrAlreadyFriends = errors.New("already friends")
	ErrAlreadyPending = errors.New("request already pending")
	ErrNotAddressee   = errors.New("only the addressee can answer a request")
	ErrNotPending     = errors.New("request is not pending")
	ErrNotParticipant = errors.New("not part of this friendship")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Request creates a pending friendship edge. A declined edge between the
// same pair is reopened as a fresh request from the current requester.
func (s *Service) Request(
	ctx context.Context,
	requesterID, addresseeID string,
) (*Friendship, error) {
	if requesterID == addresseeID {
		return nil, ErrSelfFriend
	}

	existing, err := s.repo.GetByPair(ctx, requesterID, addresseeID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		switch existing.Status {
		case StatusAccepted:
			return nil, ErrAlreadyFriends
		case StatusPending:
			return nil, ErrAlreadyPending
		case StatusDeclined:
			if err := s.repo.Delete(ctx, existing.ID); err != nil {
				return nil, err
			}
		}
	}

	friendship := &Friendship{
		ID:          uuid.New().String(),
		RequesterID: requesterID,
		AddresseeID: addresseeID,
		Status:      StatusPending,
	}

	if err := s.repo.Create(ctx, friendship); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrAlreadyPending
		}
		return nil, err
	}

	return friendship, nil
}

func (s *Service) Accept(
	ctx context.Context,
	userID, friendshipID string,
) (*Friendship, error) {
	return s.answer(ctx, userID, friendshipID, StatusAccepted)
}

func (s *Service) Decline(
	ctx context.Context,
	userID, friendshipID string,
) (*Friendship, error) {
	return s.answer(ctx, userID, friendshipID, StatusDeclined)
}

func (s *Service) answer(
	ctx context.Context,
	userID, friendshipID, status string,
) (*Friendship, error) {
	friendship, err := s.repo.GetByID(ctx, friendshipID)
	if err != nil {
		return nil, err
	}

	if friendship.AddresseeID != userID {
		return nil, ErrNotAddressee
	}

	if friendship.Status != StatusPending {
		return nil, ErrNotPending
	}

	if err := s.repo.UpdateStatus(ctx, friendshipID, status); err != nil {
		return nil, err
	}

	friendship.Status = status
	return friendship, nil
}

// Remove deletes the friendship edge between the caller and another user,
// whichever direction it was created in.
func (s *Service) Remove(ctx context.Context, userID, otherID string) error {
	friendship, err := s.repo.GetByPair(ctx, userID, otherID)
	if err != nil {
		return err
	}

	if !friendship.Involves(userID) {
		return ErrNotParticipant
	}

	if err := s.repo.Delete(ctx, friendship.ID); err != nil {
		return fmt.Errorf("remove friend: %w", err)
	}

	return nil
}

func (s *Service) Friends(
	ctx context.Context,
	userID string,
) ([]FriendEntry, error) {
	return s.repo.ListFriends(ctx, userID)
}

func (s *Service) Pending(
	ctx context.Context,
	userID string,
) ([]Friendship, error) {
	return s.repo.ListPending(ctx, userID)
}
