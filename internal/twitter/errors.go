package twitter

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrAccessLevel means the credential works but its API tier does not cover the endpoint.
	ErrAccessLevel = errors.New("endpoint requires a higher API access level")
	ErrNotFound    = errors.New("resource not found")
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrCircuitOpen = errors.New("upstream unavailable: circuit open")
)

type APIError struct {
	StatusCode int
	Title      string
	Detail     string
	Type       string
	Reason     string
}

func (e *APIError) Error() string {
	msg := e.Title
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Detail != "" && e.Detail != msg {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	return fmt.Sprintf("x api (status %d): %s", e.StatusCode, msg)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAccessLevel:
		return e.StatusCode == http.StatusForbidden ||
			e.Reason == "client-not-enrolled" ||
			strings.HasSuffix(e.Type, "/client-forbidden")
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound ||
			strings.HasSuffix(e.Type, "/resource-not-found")
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

func problemError(status int, p problem) *APIError {
	return &APIError{
		StatusCode: status,
		Title:      p.Title,
		Detail:     p.Detail,
		Type:       p.Type,
		Reason:     p.Reason,
	}
}
