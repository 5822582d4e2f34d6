package ai

import (
	"errors"
	"fmt"
)

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

var (
	ErrRequestFailed = errors.New("model request failed")
	ErrEmptyResponse = errors.New("model returned empty response")
)

// ErrorKind classifies model gateway failures.
type ErrorKind int

const (
	RequestFailed ErrorKind = iota
	EmptyResponse
)

func (k ErrorKind) String() string {
	if k == EmptyResponse {
		return "empty_response"
	}
	return "request_failed"
}

// ModelError is returned by every Client implementation.
type ModelError struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.sentinel())
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.sentinel(), e.Err)
}

func (e *ModelError) sentinel() error {
	if e.Kind == EmptyResponse {
		return ErrEmptyResponse
	}
	return ErrRequestFailed
}

// Is lets errors.Is match ErrRequestFailed / ErrEmptyResponse by kind.
func (e *ModelError) Is(target error) bool { return target == e.sentinel() }

func (e *ModelError) Unwrap() error { return e.Err }

// Failed wraps a transport or provider error.
func Failed(provider string, err error) error {
	return &ModelError{Kind: RequestFailed, Provider: provider, Err: err}
}

// Empty reports a successful call that produced no text.
func Empty(provider string) error {
	return &ModelError{Kind: EmptyResponse, Provider: provider}
}
