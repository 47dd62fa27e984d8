package dataapi

import (
	"fmt"
	"net/http"
)

const (
	ReasonAccessPolicyViolation = "ACCESS_POLICY_VIOLATION"
	ReasonResourceNotFound      = "RESOURCE_NOT_FOUND"
	ReasonInvalidRequest        = "INVALID_REQUEST"
)

// Error is a client facing failure with the http status it maps to.
type Error struct {
	Status  int
	Reason  string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func invalidRequest(format string, args ...any) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Reason:  ReasonInvalidRequest,
		Message: fmt.Sprintf(format, args...),
	}
}

func policyViolation(model, op string) *Error {
	return &Error{
		Status:  http.StatusForbidden,
		Reason:  ReasonAccessPolicyViolation,
		Message: fmt.Sprintf("denied by policy: %s entities failed '%s' check", model, op),
	}
}

func notFound(model string) *Error {
	return &Error{
		Status:  http.StatusNotFound,
		Reason:  ReasonResourceNotFound,
		Message: fmt.Sprintf("%s not found", model),
	}
}
