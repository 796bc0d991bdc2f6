package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/render"

	"scenic-route-planner/internal/routing"
)

// HandleSolve handles POST /api/v1/solve. It runs the solver on a
// caller-supplied graph without touching any external service.
func (h *Handler) HandleSolve(w http.ResponseWriter, r *http.Request) {
	data := &SolveRequest{}
	if !h.bind(w, r, data) {
		h.Metrics.observeSolve("invalid")
		return
	}

	req, nOptions := data.toRoutingRequest(h.Planner.Options())
	log.Printf("[HTTP] POST /api/v1/solve: origins=%d destinations=%d pois=%d edges=%d",
		len(req.Origins), len(req.Destinations), len(req.Scores), len(req.Distances))

	paths, err := routing.Solve(r.Context(), req, nOptions)
	if err != nil {
		log.Printf("[ERROR] Solve failed: err=%v", err)
		h.Metrics.observeSolve(outcome(err))
		render.Render(w, r, ErrPlanning(err))
		return
	}
	h.Metrics.observeSolve("ok")

	render.Status(r, http.StatusOK)
	render.JSON(w, r, SolveResponse{Paths: paths})
}
