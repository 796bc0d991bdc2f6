package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/render"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"scenic-route-planner/internal/database"
	"scenic-route-planner/internal/distance"
	"scenic-route-planner/internal/geocoding"
	"scenic-route-planner/internal/routing"
)

// ErrResponse is the JSON body of every error
type ErrResponse struct {
	Err            error `json:"-"` // low-level runtime error
	HTTPStatusCode int   `json:"-"` // http response status code

	StatusText    string   `json:"status"`          // user-level status message
	AppCode       string   `json:"code,omitempty"`  // application-specific error code
	ErrorText     string   `json:"error,omitempty"` // application-level error message
	ErrValidation []string `json:"validation,omitempty"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func ErrInvalidRequest(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		AppCode:        "INVALID_REQUEST",
		ErrorText:      err.Error(),
	}
}

func ErrValidation(err error, errV []error) render.Renderer {
	vv := []string{}
	for _, v := range errV {
		vv = append(vv, v.Error())
	}
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusBadRequest,
		StatusText:     "Invalid request.",
		AppCode:        "VALIDATION_ERROR",
		ErrorText:      err.Error(),
		ErrValidation:  vv,
	}
}

func ErrNotFound(message string) render.Renderer {
	return &ErrResponse{
		HTTPStatusCode: http.StatusNotFound,
		StatusText:     "Resource not found.",
		AppCode:        "NOT_FOUND",
		ErrorText:      message,
	}
}

func ErrUnavailable(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusServiceUnavailable,
		StatusText:     "Service unavailable.",
		AppCode:        "UNAVAILABLE",
		ErrorText:      err.Error(),
	}
}

func ErrInternalServerErrorRend(err error) render.Renderer {
	return &ErrResponse{
		Err:            err,
		HTTPStatusCode: http.StatusInternalServerError,
		StatusText:     "Internal server error.",
		AppCode:        "INTERNAL_ERROR",
		ErrorText:      "An error occurred. Please try again.",
	}
}

// ErrPlanning maps planner and solver errors to a response
func ErrPlanning(err error) render.Renderer {
	var invalid *routing.ErrInvalidInput
	var geo *geocoding.ErrGeocodingFailed
	var calc *distance.ErrDistanceCalculationFailed

	switch {
	case errors.As(err, &invalid):
		return ErrInvalidRequest(err)
	case errors.As(err, &geo):
		return &ErrResponse{
			Err:            err,
			HTTPStatusCode: http.StatusUnprocessableEntity,
			StatusText:     "Location could not be resolved.",
			AppCode:        "GEOCODING_FAILED",
			ErrorText:      err.Error(),
		}
	case errors.Is(err, routing.ErrUnreachable):
		return &ErrResponse{
			Err:            err,
			HTTPStatusCode: http.StatusUnprocessableEntity,
			StatusText:     "No route found.",
			AppCode:        "NO_ROUTE",
			ErrorText:      err.Error(),
		}
	case errors.As(err, &calc):
		return &ErrResponse{
			Err:            err,
			HTTPStatusCode: http.StatusBadGateway,
			StatusText:     "Routing service failed.",
			AppCode:        "DISTANCE_FAILED",
			ErrorText:      err.Error(),
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrUnavailable(err)
	case errors.Is(err, database.ErrNotFound):
		return ErrNotFound(err.Error())
	default:
		return ErrInternalServerErrorRend(err)
	}
}

func translateError(err error, trans ut.Translator) (errs []error) {
	var validatorErrs validator.ValidationErrors
	if !errors.As(err, &validatorErrs) {
		return []error{err}
	}
	for _, e := range validatorErrs {
		errs = append(errs, errors.New(e.Translate(trans)))
	}
	return errs
}
