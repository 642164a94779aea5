package tools

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed invocation.
type ErrorKind string

const (
	KindUnknownCapability    ErrorKind = "UnknownCapability"
	KindInvalidArguments     ErrorKind = "InvalidArguments"
	KindUnsupportedOperation ErrorKind = "UnsupportedOperation"
	KindUpstreamFailure      ErrorKind = "UpstreamFailure"
	KindCancelled            ErrorKind = "Cancelled"
)

type ToolError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ToolError) Error() string {
	return e.Message
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

func NewUnknownCapabilityError(name string) *ToolError {
	return &ToolError{
		Kind:    KindUnknownCapability,
		Message: fmt.Sprintf("unknown capability: %s", name),
	}
}

func NewInvalidArgumentsError(name string, err error) *ToolError {
	return &ToolError{
		Kind:    KindInvalidArguments,
		Message: fmt.Sprintf("invalid arguments for %s: %v", name, err),
		Err:     err,
	}
}

func NewUnsupportedError(message string) *ToolError {
	return &ToolError{
		Kind:    KindUnsupportedOperation,
		Message: message,
	}
}

func NewUpstreamError(name string, err error) *ToolError {
	return &ToolError{
		Kind:    KindUpstreamFailure,
		Message: fmt.Sprintf("error executing %s: %v", name, err),
		Err:     err,
	}
}

func NewCancelledError(name string, err error) *ToolError {
	return &ToolError{
		Kind:    KindCancelled,
		Message: fmt.Sprintf("invocation of %s cancelled: %v", name, err),
		Err:     err,
	}
}

// AsToolError reports whether err carries a ToolError and returns it.
func AsToolError(err error) (*ToolError, bool) {
	var te *ToolError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
