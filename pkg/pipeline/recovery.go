package pipeline

import (
	"fmt"
	"sync"

	"github.com/go-weave/weave/pkg/errors"
)

// Policy selects what a frame does when a node fails recoverably.
type Policy int

const (
	// PolicyReusePreviousFrame abandons the frame and presents the last
	// good one again.
	PolicyReusePreviousFrame Policy = iota
	// PolicyShowErrorPlaceholder substitutes a placeholder for the
	// failed subtree and finishes the frame.
	PolicyShowErrorPlaceholder
	// PolicySkipFrame abandons the frame and presents nothing new.
	PolicySkipFrame
	// PolicyPanic escalates the failure immediately.
	PolicyPanic
)

// String returns a human-readable representation of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyReusePreviousFrame:
		return "reuse-previous-frame"
	case PolicyShowErrorPlaceholder:
		return "show-error-placeholder"
	case PolicySkipFrame:
		return "skip-frame"
	case PolicyPanic:
		return "panic"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy converts a configuration string into a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "reuse-previous-frame":
		return PolicyReusePreviousFrame, nil
	case "show-error-placeholder":
		return PolicyShowErrorPlaceholder, nil
	case "skip-frame":
		return PolicySkipFrame, nil
	case "panic":
		return PolicyPanic, nil
	default:
		return 0, fmt.Errorf("pipeline: unknown recovery policy %q", name)
	}
}

// ErrorRecovery decides, per recoverable frame error, how the frame
// proceeds. The error counter always increments, whatever the policy; once
// it passes MaxErrors the recovery escalates to panic so a persistently
// broken tree cannot silently skip frames forever.
type ErrorRecovery struct {
	mu       sync.Mutex
	policy   Policy
	maxError int
	count    int
}

// NewErrorRecovery creates a recovery with the given policy. maxErrors
// bounds the total recoverable failures; zero or negative means unbounded.
func NewErrorRecovery(policy Policy, maxErrors int) *ErrorRecovery {
	return &ErrorRecovery{policy: policy, maxError: maxErrors}
}

// Admit records one failure and returns the effective policy for it. The
// frame error is also forwarded to the ambient error handler for logging.
func (r *ErrorRecovery) Admit(err *errors.FrameError) Policy {
	errors.ReportFrameError(err)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	if r.maxError > 0 && r.count > r.maxError {
		return PolicyPanic
	}
	return r.policy
}

// ErrorCount returns the number of failures admitted so far.
func (r *ErrorRecovery) ErrorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Reset clears the failure counter, typically after the application
// replaced the offending subtree.
func (r *ErrorRecovery) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count = 0
}
