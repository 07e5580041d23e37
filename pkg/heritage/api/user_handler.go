package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

// UserHandler serves the caller's own profile and favorites
type UserHandler struct {
	handler
}

// NewUserHandler creates a new user handler
func NewUserHandler(base handler) *UserHandler {
	return &UserHandler{handler: base}
}

// Routes returns the routes for the current user
func (h *UserHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequireUser)

	r.Get("/profile", h.GetProfile)
	r.Post("/favorites/{heritageId}", h.ToggleFavorite)

	return r
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	profile, err := h.service.GetProfile(r.Context(), identity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, profile)
}

// FavoritesResponse lists the caller's favorite entry ids in the order added
type FavoritesResponse struct {
	Favorites []uuid.UUID `json:"favorites"`
}

func (h *UserHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "heritageId")
	if !ok {
		return
	}
	identity, _ := IdentityFromContext(r.Context())

	favorites, err := h.service.ToggleFavorite(r.Context(), identity, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, FavoritesResponse{Favorites: favorites})
}
