// Package server provides the HTTP REST API for the CV ranker.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/cv-ranker/internal/schemas"
	"github.com/jonathan/cv-ranker/internal/types"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation  *ErrValidation
		schemaErr   *schemas.ValidationError
		fieldErrors validator.ValidationErrors
	)
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.As(err, &validation), errors.As(err, &schemaErr), errors.As(err, &fieldErrors):
		return http.StatusBadRequest
	case types.IsMalformedRecord(err):
		return http.StatusBadRequest
	case types.IsDataNotFound(err):
		return http.StatusNotFound
	case types.IsEmbeddingUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
