package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"scenic-route-planner/internal/database"
	"scenic-route-planner/internal/routing"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// HandleCreatePlan handles POST /api/v1/plans
func (h *Handler) HandleCreatePlan(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	data := &CreatePlanRequest{}
	if !h.bind(w, r, data) {
		h.Metrics.observePlan("invalid", start)
		return
	}

	log.Printf("[HTTP] POST /api/v1/plans: origins=%d destinations=%d budget=%.0f categories=%d",
		len(data.Origins), len(data.Destinations), data.BudgetMeters, len(data.Preferences))

	result, err := h.Planner.Plan(r.Context(), data.toPlanRequest(h.Planner.Options()))
	if err != nil {
		log.Printf("[ERROR] Planning failed: err=%v", err)
		h.Metrics.observePlan(outcome(err), start)
		render.Render(w, r, ErrPlanning(err))
		return
	}
	h.Metrics.observePlan("ok", start)

	log.Printf("[HTTP] POST /api/v1/plans: id=%d routes=%d pois=%d", result.ID, len(result.Routes), result.POICount)
	render.Status(r, http.StatusOK)
	render.JSON(w, r, result)
}

// HandleListPlans handles GET /api/v1/plans?limit=&offset=
func (h *Handler) HandleListPlans(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		render.Render(w, r, ErrInvalidRequest(errors.New("limit must be between 1 and 100")))
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		render.Render(w, r, ErrInvalidRequest(errors.New("offset must be a non-negative integer")))
		return
	}

	plans, total, err := h.DB.Plans().List(r.Context(), limit, offset)
	if err != nil {
		log.Printf("[ERROR] Failed to list plans: err=%v", err)
		render.Render(w, r, ErrInternalServerErrorRend(err))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, PlanListResponse{Plans: plans, Total: total, Limit: limit, Offset: offset})
}

// HandleGetPlan handles GET /api/v1/plans/{id}
func (h *Handler) HandleGetPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(w, r)
	if !ok {
		return
	}

	plan, err := h.DB.Plans().GetByID(r.Context(), id)
	if err != nil {
		log.Printf("[ERROR] Failed to get plan: id=%d err=%v", id, err)
		render.Render(w, r, ErrInternalServerErrorRend(err))
		return
	}
	if plan == nil {
		render.Render(w, r, ErrNotFound("Plan not found"))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, plan)
}

// HandleDeletePlan handles DELETE /api/v1/plans/{id}
func (h *Handler) HandleDeletePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := planID(w, r)
	if !ok {
		return
	}

	if err := h.DB.Plans().Delete(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			render.Render(w, r, ErrNotFound("Plan not found"))
			return
		}
		log.Printf("[ERROR] Failed to delete plan: id=%d err=%v", id, err)
		render.Render(w, r, ErrInternalServerErrorRend(err))
		return
	}

	log.Printf("[HTTP] DELETE /api/v1/plans/%d", id)
	render.NoContent(w, r)
}

func planID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		render.Render(w, r, ErrInvalidRequest(errors.New("plan id must be a positive integer")))
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// outcome labels a failed request for metrics
func outcome(err error) string {
	var invalid *routing.ErrInvalidInput
	switch {
	case errors.As(err, &invalid):
		return "invalid"
	case errors.Is(err, routing.ErrUnreachable):
		return "no_route"
	default:
		return "error"
	}
}
