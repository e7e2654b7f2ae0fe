package app

import (
	"errors"
	"fmt"
	"net/http"

	"thea/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func notFound(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
}

func validationFailed(message string) *DomainError {
	return domainError(http.StatusBadRequest, "VALIDATION", message, nil)
}

// storeError folds a store failure into the domain taxonomy: absent keys are
// NOT_FOUND, malformed expressions are VALIDATION, the rest is STORE_FAILURE.
func storeError(err error) *DomainError {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	case errors.Is(err, store.ErrValidation):
		return domainError(http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	default:
		return domainError(http.StatusInternalServerError, "STORE_FAILURE", "Store operation failed", nil)
	}
}
