package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// FallbackMessage is shown when the gateway did not explain a failure.
const FallbackMessage = "Something went wrong. Please try again."

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// Error is a failed gateway call. Message is the text provided by the
// gateway, if any.
type Error struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is maps HTTP statuses onto the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrConflict:
		return e.Status == http.StatusConflict
	}
	return false
}

// NewError builds an Error for op from a status and optional gateway message.
func NewError(op string, status int, message string) *Error {
	return &Error{Op: op, Status: status, Message: strings.TrimSpace(message)}
}

// UserMessage extracts the gateway-provided message from err, falling back
// to FallbackMessage.
func UserMessage(err error) string {
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	return FallbackMessage
}
