// Package errors holds the domain error taxonomy shared by services and handlers.
package errors

import (
	stderrors "errors"
	"net/http"
)

// DomainError is a caller-facing failure with a stable code.
type DomainError struct {
	Code    string
	Message string
	Status  int
}

func (e *DomainError) Error() string {
	return e.Message
}

// HTTPStatus returns the status carried by a DomainError anywhere in err's chain,
// or 500 when err is not a domain error.
func HTTPStatus(err error) (int, string) {
	var de *DomainError
	if stderrors.As(err, &de) {
		status := de.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		return status, de.Code
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}
