// AngelaMos | 2026
// handler.go

package message

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/angelamos/lumeo/internal/core"
	"github.com/angelamos/lumeo/internal/entitlement"
	"github.com/angelamos/lumeo/internal/middleware"
	"github.com/angelamos/lumeo/internal/session"
)

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
	r.Route("/messages", func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/", h.Send)
		r.Get("/quota", h.Quota)
		r.Get("/conversations", h.ListConversations)
		r.Get("/conversations/{conversationID}", h.ListMessages)
	})
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	resp, err := h.service.Send(r.Context(), userID, req)
	if err != nil {
		switch {
		case errors.Is(err, entitlement.ErrQuotaExhausted):
			core.PaymentRequired(
				w,
				"QUOTA_EXHAUSTED",
				"message quota exhausted, upgrade to keep chatting",
			)
		case errors.Is(err, ErrSelfMessage):
			core.BadRequest(w, "cannot message yourself")
		case errors.Is(err, session.ErrNotAuthenticated):
			core.JSONError(w, core.UnauthorizedError("session expired"))
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.Created(w, resp)
}

func (h *Handler) Quota(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	quota, err := h.service.Quota(r.Context(), userID)
	if err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			core.JSONError(w, core.UnauthorizedError("session expired"))
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, quota)
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	conversations, err := h.service.ListConversations(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, conversations)
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	conversationID := chi.URLParam(r, "conversationID")

	params := ListMessagesParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 50),
	}

	messages, total, err := h.service.ListMessages(
		r.Context(),
		userID,
		conversationID,
		params,
	)
	if err != nil {
		if errors.Is(err, ErrNotParticipant) {
			core.JSONError(
				w,
				core.ForbiddenError("not a participant in this conversation"),
			)
			return
		}
		core.InternalServerError(w, err)
		return
	}

	params.Normalize()
	core.Paginated(w, messages, params.Page, params.PageSize, total)
}

func parseIntQuery(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return value
}
