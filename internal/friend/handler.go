// AngelaMos | 2026
// handler.go

package friend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/angelamos/lumeo/internal/core"
	"github.com/angelamos/lumeo/internal/middleware"
)

type RequestFriendRequest struct {
	UserID string `json:"user_id" validate:"required,uuid4"`
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
	r.Route("/friends", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.Post("/requests", h.Request)
		r.Get("/requests", h.Pending)
		r.Post("/requests/{friendshipID}/accept", h.Accept)
		r.Post("/requests/{friendshipID}/decline", h.Decline)
		r.Delete("/{userID}", h.Remove)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	friends, err := h.service.Friends(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, friends)
}

func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req RequestFriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	friendship, err := h.service.Request(r.Context(), userID, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, ErrSelfFriend):
			core.BadRequest(w, "cannot befriend yourself")
		case errors.Is(err, ErrAlreadyFriends), errors.Is(err, ErrAlreadyPending):
			core.Conflict(w, err.Error())
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.Created(w, friendship)
}

func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	pending, err := h.service.Pending(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, pending)
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.service.Accept)
}

func (h *Handler) Decline(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.service.Decline)
}

func (h *Handler) respond(
	w http.ResponseWriter,
	r *http.Request,
	answer func(ctx context.Context, userID, friendshipID string) (*Friendship, error),
) {
	userID := middleware.GetUserID(r.Context())
	friendshipID := chi.URLParam(r, "friendshipID")

	friendship, err := answer(r.Context(), userID, friendshipID)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			core.NotFound(w, "friend request")
		case errors.Is(err, ErrNotAddressee):
			core.JSONError(
				w,
				core.ForbiddenError("only the addressee can answer a request"),
			)
		case errors.Is(err, ErrNotPending):
			core.Conflict(w, "request already answered")
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.OK(w, friendship)
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	otherID := chi.URLParam(r, "userID")

	if err := h.service.Remove(r.Context(), userID, otherID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "friendship")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}
