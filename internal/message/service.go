// AngelaMos | 2026
// service.go

package message

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelamos/lumeo/internal/entitlement"
	"github.com/angelamos/lumeo/internal/session"
)

var (
	ErrNotParticipant = errors.New("not a conversation participant")
	ErrSelfMessage    = errors.New("cannot message yourself")
)

type Service struct {
	repo     Repository
	sessions *session.Registry
}

func NewService(repo Repository, sessions *session.Registry) *Service {
	return &Service{repo: repo, sessions: sessions}
}

// Send spends quota before touching the network. When the quota is already
// exhausted no insert is attempted at all; when the insert fails after the
// spend, the message is refunded. Quota accounting therefore tracks confirmed
// sends plus at most one in-flight attempt.
func (s *Service) Send(
	ctx context.Context,
	senderID string,
	req SendMessageRequest,
) (*SendMessageResponse, error) {
	if req.RecipientID == senderID {
		return nil, ErrSelfMessage
	}

	resolver, err := s.sessions.Ensure(ctx, senderID)
	if err != nil {
		return nil, err
	}

	snap, err := resolver.ConsumeMessage()
	if err != nil {
		if errors.Is(err, entitlement.ErrQuotaExhausted) {
			return nil, err
		}
		return nil, fmt.Errorf("consume quota: %w", err)
	}

	conversationID, err := s.repo.EnsureConversation(
		ctx,
		senderID,
		req.RecipientID,
	)
	if err != nil {
		resolver.RefundMessage()
		return nil, err
	}

	msg := &Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           req.Body,
	}

	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		resolver.RefundMessage()
		return nil, err
	}

	return &SendMessageResponse{
		Message: *msg,
		Quota:   toQuotaResponse(snap),
	}, nil
}

func (s *Service) Quota(
	ctx context.Context,
	senderID string,
) (*QuotaResponse, error) {
	resolver, err := s.sessions.Ensure(ctx, senderID)
	if err != nil {
		return nil, err
	}

	snap, err := resolver.Entitlement()
	if err != nil {
		return nil, err
	}

	resp := toQuotaResponse(snap)
	return &resp, nil
}

func (s *Service) ListConversations(
	ctx context.Context,
	userID string,
) ([]ConversationSummary, error) {
	return s.repo.ListConversations(ctx, userID)
}

func (s *Service) ListMessages(
	ctx context.Context,
	userID, conversationID string,
	params ListMessagesParams,
) ([]Message, int, error) {
	participant, err := s.repo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, 0, err
	}
	if !participant {
		return nil, 0, ErrNotParticipant
	}

	return s.repo.ListMessages(ctx, conversationID, params)
}
