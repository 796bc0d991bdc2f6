package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/render"
)

// HandleGetDistanceCache handles GET /api/v1/distance-cache
func (h *Handler) HandleGetDistanceCache(w http.ResponseWriter, r *http.Request) {
	n, err := h.DB.DistanceCache().Count(r.Context())
	if err != nil {
		log.Printf("[ERROR] Failed to count distance cache: err=%v", err)
		render.Render(w, r, ErrInternalServerErrorRend(err))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, DistanceCacheResponse{Entries: n})
}

// HandleClearDistanceCache handles DELETE /api/v1/distance-cache
func (h *Handler) HandleClearDistanceCache(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.DistanceCache().Clear(r.Context()); err != nil {
		log.Printf("[ERROR] Failed to clear distance cache: err=%v", err)
		render.Render(w, r, ErrInternalServerErrorRend(err))
		return
	}

	log.Printf("[HTTP] DELETE /api/v1/distance-cache: cleared")
	render.NoContent(w, r)
}
