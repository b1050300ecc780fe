// AngelaMos | 2026
// handler.go

package subscription

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/angelamos/lumeo/internal/core"
	"github.com/angelamos/lumeo/internal/entitlement"
	"github.com/angelamos/lumeo/internal/middleware"
	"github.com/angelamos/lumeo/internal/session"
)

type ChangeTierRequest struct {
	Tier string `json:"tier" validate:"required,oneof=free bronze silver gold"`
}

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/subscription", func(r chi.Router) {
		r.Get("/plans", h.Plans)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Put("/tier", h.ChangeTier)
		})
	})
}

func (h *Handler) Plans(w http.ResponseWriter, r *http.Request) {
	core.OK(w, Plans())
}

func (h *Handler) ChangeTier(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req ChangeTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	snapshot, err := h.service.ChangeTier(r.Context(), userID, req.Tier)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotAuthenticated):
			core.JSONError(w, core.UnauthorizedError("session expired"))
		case errors.Is(err, ErrUnknownTier):
			core.BadRequest(w, "unknown tier")
		case errors.Is(err, ErrChangeRejected):
			core.Conflict(w, "tier change could not be completed")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, snapshotResponse(snapshot))
}

type SnapshotResponse struct {
	Tier              string `json:"tier"`
	MessagesRemaining int    `json:"messages_remaining"`
	Unlimited         bool   `json:"unlimited"`
	CanViewPhotos     bool   `json:"can_view_photos"`
	CanViewVideos     bool   `json:"can_view_videos"`
}

func snapshotResponse(snap entitlement.Snapshot) SnapshotResponse {
	resp := SnapshotResponse{
		Tier:          snap.Tier,
		Unlimited:     snap.MessagesRemaining.IsUnbounded(),
		CanViewPhotos: snap.CanViewPhotos,
		CanViewVideos: snap.CanViewVideos,
	}

	if !resp.Unlimited {
		resp.MessagesRemaining = int(snap.MessagesRemaining)
	}

	return resp
}
