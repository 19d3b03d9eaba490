package pipeline

import (
	"testing"

	"github.com/go-weave/weave/pkg/errors"
)

func buildFailure() *errors.FrameError {
	return &errors.FrameError{Phase: errors.PhaseBuild, Recovered: "boom"}
}

func TestErrorRecoveryReturnsConfiguredPolicy(t *testing.T) {
	for _, policy := range []Policy{
		PolicyReusePreviousFrame,
		PolicyShowErrorPlaceholder,
		PolicySkipFrame,
	} {
		r := NewErrorRecovery(policy, 0)
		if got := r.Admit(buildFailure()); got != policy {
			t.Errorf("Admit under %v returned %v", policy, got)
		}
	}
}

func TestErrorRecoveryEscalatesPastCeiling(t *testing.T) {
	r := NewErrorRecovery(PolicySkipFrame, 3)
	for i := 0; i < 3; i++ {
		if got := r.Admit(buildFailure()); got != PolicySkipFrame {
			t.Fatalf("failure %d: Admit = %v, want skip", i+1, got)
		}
	}
	if got := r.Admit(buildFailure()); got != PolicyPanic {
		t.Fatalf("failure 4: Admit = %v, want panic", got)
	}
	if got := r.ErrorCount(); got != 4 {
		t.Errorf("ErrorCount() = %d, want 4", got)
	}
}

func TestErrorRecoveryResetRestoresBudget(t *testing.T) {
	r := NewErrorRecovery(PolicySkipFrame, 1)
	r.Admit(buildFailure())
	if got := r.Admit(buildFailure()); got != PolicyPanic {
		t.Fatalf("Admit past ceiling = %v, want panic", got)
	}
	r.Reset()
	if got := r.ErrorCount(); got != 0 {
		t.Fatalf("ErrorCount() after Reset = %d", got)
	}
	if got := r.Admit(buildFailure()); got != PolicySkipFrame {
		t.Errorf("Admit after Reset = %v, want skip", got)
	}
}

func TestErrorRecoveryUnboundedNeverEscalates(t *testing.T) {
	r := NewErrorRecovery(PolicyShowErrorPlaceholder, 0)
	for i := 0; i < 100; i++ {
		if got := r.Admit(buildFailure()); got != PolicyShowErrorPlaceholder {
			t.Fatalf("failure %d escalated to %v", i+1, got)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	cases := []struct {
		name string
		want Policy
	}{
		{"reuse-previous-frame", PolicyReusePreviousFrame},
		{"show-error-placeholder", PolicyShowErrorPlaceholder},
		{"skip-frame", PolicySkipFrame},
		{"panic", PolicyPanic},
	}
	for _, tc := range cases {
		got, err := ParsePolicy(tc.name)
		if err != nil || got != tc.want {
			t.Errorf("ParsePolicy(%q) = %v, %v; want %v", tc.name, got, err, tc.want)
		}
		if got.String() != tc.name {
			t.Errorf("(%v).String() = %q, want %q", got, got.String(), tc.name)
		}
	}
	if _, err := ParsePolicy("explode-quietly"); err == nil {
		t.Error("ParsePolicy accepted an unknown policy")
	}
}
