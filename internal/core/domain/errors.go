package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrRecordNotFound    = errors.New("rule not found")
	ErrServiceNotFound   = errors.New("service entry not found")
	ErrInvalidFieldValue = errors.New("invalid field value")
)

// ValidationError is a local failure that never reaches the network. Fields
// maps a json path (e.g. "services[0].model") to a readable message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NewValidationError builds a ValidationError from a field map.
func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// RemoteError is anything the admin API refused or failed to answer.
type RemoteError struct {
	// Op is the attempted operation, e.g. "update rule"
	Op string
	// HTTP status, 0 for transport failures
	StatusCode int
	// Message is the server's reason, shown verbatim to the operator
	Message string
	// Err is the underlying cause, if any
	Err error
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + " failed"
}

func (e *RemoteError) Unwrap() error { return e.Err }

// RemoteFailure creates a RemoteError from a server-reported reason.
func RemoteFailure(op string, status int, message string) *RemoteError {
	return &RemoteError{Op: op, StatusCode: status, Message: message}
}

// WrapRemote wraps a transport or decoding error.
func WrapRemote(op string, err error) *RemoteError {
	if err == nil {
		return nil
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re
	}
	return &RemoteError{Op: op, Err: err}
}

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsRemote reports whether err came from the admin API.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// UserMessage renders err for a notification: the generic fallback followed
// by the server's verbatim reason when there is one.
func UserMessage(fallback string, err error) string {
	if err == nil {
		return fallback
	}
	var re *RemoteError
	if errors.As(err, &re) {
		if re.Message != "" {
			return fallback + ": " + re.Message
		}
		if re.Err != nil {
			return fallback + ": " + re.Err.Error()
		}
		return fallback
	}
	return fallback + ": " + err.Error()
}
