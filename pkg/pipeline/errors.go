package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xhad/pdfchat/pkg/store"
)

// AuthorizationError means the caller is not the owner of the document (or
// the document does not exist; the two are indistinguishable on purpose).
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return e.Reason }

// ValidationError means a request field is missing or malformed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotReadyError means the document has not completed ingestion; the caller
// must finish vectorization before querying.
type NotReadyError struct {
	DocumentID string
}

func (e *NotReadyError) Error() string {
	return "document has not been vectorized yet; vectorize the document first"
}

// PreconditionError means a stage was invoked when it is not eligible:
// either its inputs are missing or it already completed. The stage is not
// re-executed.
type PreconditionError struct {
	Stage  string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
}

// UpstreamKind is the closed classification of external-capability failures.
type UpstreamKind int

const (
	UpstreamUnknown UpstreamKind = iota
	UpstreamInvalidCredentials
	UpstreamRateLimited
	UpstreamNetworkUnavailable
	UpstreamDimensionMismatch
)

// UpstreamError wraps any failure returned by an external capability,
// classified once at the call boundary.
type UpstreamError struct {
	Op   string
	Kind UpstreamKind
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// UserMessage is the human-readable explanation surfaced to the caller.
func (e *UpstreamError) UserMessage() string {
	switch e.Kind {
	case UpstreamInvalidCredentials:
		return "API key is invalid or missing."
	case UpstreamRateLimited:
		return "Rate limit exceeded. Please try again in a moment."
	case UpstreamNetworkUnavailable:
		return "Network error. Please check your connection."
	case UpstreamDimensionMismatch:
		return "Embedding dimension does not match the document index."
	default:
		return "An error occurred while processing your request."
	}
}

// classifyUpstream inspects a capability failure and assigns its kind. This
// is the single place failure text is interpreted.
func classifyUpstream(op string, err error) *UpstreamError {
	kind := UpstreamUnknown

	switch {
	case errors.Is(err, store.ErrDimensionMismatch):
		kind = UpstreamDimensionMismatch
	default:
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "api key") ||
			strings.Contains(msg, "invalid_api_key") ||
			strings.Contains(msg, "unauthorized") ||
			strings.Contains(msg, "status 401") ||
			strings.Contains(msg, "status 403"):
			kind = UpstreamInvalidCredentials
		case strings.Contains(msg, "rate limit") ||
			strings.Contains(msg, "too many requests") ||
			strings.Contains(msg, "status 429"):
			kind = UpstreamRateLimited
		case strings.Contains(msg, "network") ||
			strings.Contains(msg, "connection refused") ||
			strings.Contains(msg, "no such host") ||
			strings.Contains(msg, "i/o timeout") ||
			errors.Is(err, context.DeadlineExceeded):
			kind = UpstreamNetworkUnavailable
		case strings.Contains(msg, "dimension"):
			kind = UpstreamDimensionMismatch
		}
	}

	return &UpstreamError{Op: op, Kind: kind, Err: err}
}
