package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"scenic-route-planner/internal/database"
	"scenic-route-planner/internal/planner"
)

// Handler provides the HTTP API and its dependencies
type Handler struct {
	DB      database.DataStore
	Planner *planner.Planner
	Metrics *Metrics

	validate *validator.Validate
	trans    ut.Translator
}

// New creates a Handler with an English validation translator
func New(db database.DataStore, p *planner.Planner, m *Metrics) *Handler {
	validate := validator.New()
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		log.Printf("[ERROR] Failed to register validation translations: %v", err)
	}

	return &Handler{
		DB:       db,
		Planner:  p,
		Metrics:  m,
		validate: validate,
		trans:    trans,
	}
}

// Routes mounts the API under /api/v1
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.HandleHealthCheck)

		r.Route("/plans", func(r chi.Router) {
			r.Get("/", h.HandleListPlans)
			r.Post("/", h.HandleCreatePlan)
			r.Get("/{id}", h.HandleGetPlan)
			r.Delete("/{id}", h.HandleDeletePlan)
		})

		r.Post("/solve", h.HandleSolve)

		r.Get("/distance-cache", h.HandleGetDistanceCache)
		r.Delete("/distance-cache", h.HandleClearDistanceCache)
	})
}

// bind decodes the body into data and validates it. On failure the error
// response has already been written.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, data render.Binder) bool {
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return false
	}

	if err := h.validate.Struct(data); err != nil {
		render.Render(w, r, ErrValidation(err, translateError(err, h.trans)))
		return false
	}
	return true
}

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.HealthCheck(r.Context()); err != nil {
		log.Printf("[ERROR] Health check failed: %v", err)
		render.Render(w, r, ErrUnavailable(err))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "healthy"})
}
