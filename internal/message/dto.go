// AngelaMos | 2026
// dto.go

package message

import (
	"time"

	"github.com/angelamos/lumeo/internal/entitlement"
)

type SendMessageRequest struct {
	RecipientID string `json:"recipient_id" validate:"required,uuid4"`
	Body        string `json:"body"         validate:"required,min=1,max=4000"`
}

// SendMessageResponse carries the stored message plus the quota state after
// the send, so clients can disable the composer the moment quota runs out.
type SendMessageResponse struct {
	Message Message       `json:"message"`
	Quota   QuotaResponse `json:"quota"`
}

type QuotaResponse struct {
	Tier              string     `json:"tier"`
	MessagesRemaining int        `json:"messages_remaining"`
	Unlimited         bool       `json:"unlimited"`
	QuotaResetAt      *time.Time `json:"quota_reset_at,omitempty"`
}

func toQuotaResponse(snap entitlement.Snapshot) QuotaResponse {
	resp := QuotaResponse{
		Tier:      snap.Tier,
		Unlimited: snap.MessageQuota.IsUnbounded(),
	}

	if !resp.Unlimited {
		resp.MessagesRemaining = int(snap.MessagesRemaining)
	}

	if !snap.QuotaResetAt.IsZero() {
		t := snap.QuotaResetAt
		resp.QuotaResetAt = &t
	}

	return resp
}

type ListMessagesParams struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func (p *ListMessagesParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 100 {
		p.PageSize = 50
	}
}

func (p *ListMessagesParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}
