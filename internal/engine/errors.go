package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/mfnet/internal/network"
)

// RuntimeError is an error detected while evaluating a graph.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected evaluation, if one was started.
	RunID string

	// Nodes lists the nodes involved, formatted as name#id.
	Nodes []string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeCycleDetected indicates the requested outputs depend on a cycle.
	ErrCodeCycleDetected RuntimeErrorCode = "CYCLE_DETECTED"

	// ErrCodeOutputNotComputed indicates the pool drained without producing
	// a requested output.
	ErrCodeOutputNotComputed RuntimeErrorCode = "OUTPUT_NOT_COMPUTED"

	// ErrCodeInvalidRequest indicates a requested socket is missing or is
	// not an output.
	ErrCodeInvalidRequest RuntimeErrorCode = "INVALID_REQUEST"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if len(e.Nodes) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Nodes, ", "))
	}
	if e.RunID != "" {
		fmt.Fprintf(&b, " (run=%s)", e.RunID)
	}
	return b.String()
}

// IsCycleError reports whether err is, or wraps, a cycle error.
func IsCycleError(err error) bool {
	return hasCode(err, ErrCodeCycleDetected)
}

// IsOutputNotComputed reports whether err is, or wraps, a missing-output error.
func IsOutputNotComputed(err error) bool {
	return hasCode(err, ErrCodeOutputNotComputed)
}

// IsInvalidRequest reports whether err is, or wraps, an invalid request error.
func IsInvalidRequest(err error) bool {
	return hasCode(err, ErrCodeInvalidRequest)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewCycleError creates a RuntimeError for a cycle through nodes.
func NewCycleError(runID string, nodes []string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCycleDetected,
		Message: "requested outputs depend on a cycle",
		RunID:   runID,
		Nodes:   nodes,
	}
}

// NewOutputNotComputedError creates a RuntimeError for a requested output
// that was never produced.
func NewOutputNotComputedError(runID, node string, socket network.SocketID) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeOutputNotComputed,
		Message: fmt.Sprintf("output socket %d was not computed", socket),
		RunID:   runID,
		Nodes:   []string{node},
		Details: map[string]string{"socket": fmt.Sprintf("%d", socket)},
	}
}

// NewInvalidRequestError creates a RuntimeError for a malformed request.
func NewInvalidRequestError(msg string) *RuntimeError {
	return &RuntimeError{Code: ErrCodeInvalidRequest, Message: msg}
}
