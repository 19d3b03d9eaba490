// Package errors provides structured error handling for the weave core.
//
// Failures fall into two families. Recoverable frame errors (build, layout,
// paint, cancellation) are caught at the single node where they occur and
// reported to the pipeline's recovery policy; they never unwind past the
// owning frame. Protocol violations (painting a dirty-layout node,
// min>max constraints, hook ordering breaks) indicate a broken core
// invariant and always panic.
package errors

import (
	"fmt"
	"time"

	"github.com/go-weave/weave/pkg/identity"
)

// Phase identifies where in frame production an error occurred.
type Phase int

const (
	// PhaseUnknown indicates an error outside the tracked phases.
	PhaseUnknown Phase = iota
	// PhaseBuild indicates a failure while rebuilding an element.
	PhaseBuild
	// PhaseLayout indicates a failure while laying out a render node.
	PhaseLayout
	// PhasePaint indicates a failure while painting a render node.
	PhasePaint
	// PhaseCancelled indicates the frame deadline expired mid-phase.
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseBuild:
		return "build"
	case PhaseLayout:
		return "layout"
	case PhasePaint:
		return "paint"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// FrameError is a recoverable per-node failure during frame production.
type FrameError struct {
	// Phase is the pipeline phase that failed.
	Phase Phase
	// Node is the element or render node the failure occurred at.
	Node identity.ID
	// Widget is the type name of the offending configuration, if known.
	Widget string
	// Recovered is the panic value (nil for regular errors).
	Recovered any
	// Err is the underlying error (nil for panics).
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *FrameError) Error() string {
	switch {
	case e.Recovered != nil && e.Widget != "":
		return fmt.Sprintf("%s panic in %s (node %d): %v", e.Phase, e.Widget, e.Node, e.Recovered)
	case e.Recovered != nil:
		return fmt.Sprintf("%s panic at node %d: %v", e.Phase, e.Node, e.Recovered)
	case e.Err != nil:
		return fmt.Sprintf("%s failure at node %d: %v", e.Phase, e.Node, e.Err)
	default:
		return fmt.Sprintf("%s failure at node %d", e.Phase, e.Node)
	}
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Cancelled constructs the recoverable error for an expired frame deadline.
func Cancelled(node identity.ID, cause error) *FrameError {
	return &FrameError{
		Phase:     PhaseCancelled,
		Node:      node,
		Err:       cause,
		Timestamp: time.Now(),
	}
}

// ProtocolViolation panics with a description of the broken invariant.
// Violations are never routed through the recovery policy: continuing
// would operate on inconsistent tree state.
func ProtocolViolation(format string, args ...any) {
	panic(&ProtocolError{Message: fmt.Sprintf(format, args...)})
}

// ProtocolError is the panic payload of a protocol violation.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "protocol violation: " + e.Message
}

// Handler receives frame errors reported by the core.
type Handler interface {
	// HandleFrameError is called once per recoverable frame failure,
	// regardless of which recovery action the pipeline takes.
	HandleFrameError(err *FrameError)
}
