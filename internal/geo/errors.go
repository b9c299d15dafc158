package geo

import (
	"errors"
	"fmt"
)

// Kind classifies an analysis failure.
type Kind int

const (
	InvalidImageData Kind = iota + 1
	MissingCredential
	AuthError
	VisionUnsupported
	ProviderError
	MalformedResponse
)

var kindNames = map[Kind]string{
	InvalidImageData:  "invalid image data",
	MissingCredential: "missing credential",
	AuthError:         "authentication failed",
	VisionUnsupported: "vision unsupported",
	ProviderError:     "provider error",
	MalformedResponse: "malformed response",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Sentinels for errors.Is; every *Error matches the sentinel of its Kind.
var (
	ErrInvalidImageData  = errors.New("geo: invalid image data")
	ErrMissingCredential = errors.New("geo: missing credential")
	ErrAuth              = errors.New("geo: authentication failed")
	ErrVisionUnsupported = errors.New("geo: vision unsupported")
	ErrProvider          = errors.New("geo: provider error")
	ErrMalformedResponse = errors.New("geo: malformed response")
)

var sentinels = map[Kind]error{
	InvalidImageData:  ErrInvalidImageData,
	MissingCredential: ErrMissingCredential,
	AuthError:         ErrAuth,
	VisionUnsupported: ErrVisionUnsupported,
	ProviderError:     ErrProvider,
	MalformedResponse: ErrMalformedResponse,
}

// Error is returned by providers and the client.
type Error struct {
	Kind     Kind
	Provider Selection
	Status   int    // HTTP status, 0 when no response was received
	Body     string // response body or provider message, truncated
	Err      error
}

func (e *Error) Error() string {
	msg := "geo"
	if e.Provider != "" {
		msg += ": " + string(e.Provider)
	}
	msg += ": " + e.Kind.String()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target != nil && sentinels[e.Kind] == target
}

// KindOf returns the Kind of err, or ProviderError for foreign errors.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ProviderError
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
