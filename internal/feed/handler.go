// AngelaMos | 2026
// handler.go

package feed

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/angelamos/lumeo/internal/core"
	"github.com/angelamos/lumeo/internal/middleware"
	"github.com/angelamos/lumeo/internal/optimistic"
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
	r.Route("/posts", func(r chi.Router) {
		r.Use(authenticator)

		r.Post("/", h.CreatePost)
		r.Get("/", h.ListPosts)
		r.Get("/{postID}", h.GetPost)
		r.Delete("/{postID}", h.DeletePost)
		r.Post("/{postID}/like", h.ToggleLike)
	})
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	post, err := h.service.CreatePost(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, ErrMediaMismatch) {
			core.BadRequest(w, err.Error())
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.Created(w, post)
}

func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	params := ListPostsParams{
		AuthorID: r.URL.Query().Get("author_id"),
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
	}

	posts, total, err := h.service.ListPosts(r.Context(), userID, params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	params.Normalize()
	core.Paginated(w, posts, params.Page, params.PageSize, total)
}

func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	postID := chi.URLParam(r, "postID")

	post, err := h.service.GetPost(r.Context(), userID, postID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "post")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, post)
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	postID := chi.URLParam(r, "postID")

	if err := h.service.DeletePost(r.Context(), userID, postID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "post")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	postID := chi.URLParam(r, "postID")

	state, err := h.service.ToggleLike(r.Context(), userID, postID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "post")
			return
		}
		if errors.Is(err, optimistic.ErrRemoteRejected) ||
			errors.Is(err, optimistic.ErrTransientNetwork) {
			core.JSONError(w, core.NewAppError(
				err,
				"like could not be saved",
				http.StatusConflict,
				"LIKE_REJECTED",
			))
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, state)
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
