package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-weave/weave/pkg/pipeline"
	"github.com/go-weave/weave/pkg/scheduler"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "weave.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing weave.yaml: %v", err)
	}
	return dir
}

func TestResolveDefaultsWithoutFile(t *testing.T) {
	resolved, err := Resolve(t.TempDir())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.RefreshRate != 60 {
		t.Errorf("RefreshRate = %d, want 60", resolved.RefreshRate)
	}
	if resolved.Mode != scheduler.ModeWaitForSignal {
		t.Errorf("Mode = %v, want wait-for-signal", resolved.Mode)
	}
	if resolved.Policy != pipeline.PolicyShowErrorPlaceholder {
		t.Errorf("Policy = %v, want show-error-placeholder", resolved.Policy)
	}
	if resolved.MaxErrors != 0 {
		t.Errorf("MaxErrors = %d, want 0 (unbounded)", resolved.MaxErrors)
	}
	if resolved.StatsWindow != 120 {
		t.Errorf("StatsWindow = %d, want 120", resolved.StatsWindow)
	}
}

func TestResolveReadsAllFields(t *testing.T) {
	dir := writeConfig(t, `
frame:
  refresh_rate: 120
  mode: adaptive
recovery:
  policy: skip-frame
  max_errors: 3
stats:
  window: 30
`)
	resolved, err := Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.RefreshRate != 120 {
		t.Errorf("RefreshRate = %d, want 120", resolved.RefreshRate)
	}
	if resolved.Mode != scheduler.ModeAdaptive {
		t.Errorf("Mode = %v, want adaptive", resolved.Mode)
	}
	if resolved.Policy != pipeline.PolicySkipFrame {
		t.Errorf("Policy = %v, want skip-frame", resolved.Policy)
	}
	if resolved.MaxErrors != 3 {
		t.Errorf("MaxErrors = %d, want 3", resolved.MaxErrors)
	}
	if resolved.StatsWindow != 30 {
		t.Errorf("StatsWindow = %d, want 30", resolved.StatsWindow)
	}
}

func TestResolvePartialFileKeepsDefaults(t *testing.T) {
	dir := writeConfig(t, "frame:\n  refresh_rate: 144\n")
	resolved, err := Resolve(dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.RefreshRate != 144 {
		t.Errorf("RefreshRate = %d, want 144", resolved.RefreshRate)
	}
	if resolved.Policy != pipeline.PolicyShowErrorPlaceholder {
		t.Errorf("Policy = %v, want the default", resolved.Policy)
	}
}

func TestResolveRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"refresh rate out of range", "frame:\n  refresh_rate: 100000\n"},
		{"negative refresh rate", "frame:\n  refresh_rate: -60\n"},
		{"unknown mode", "frame:\n  mode: telepathic\n"},
		{"unknown policy", "recovery:\n  policy: wish-harder\n"},
		{"negative max errors", "recovery:\n  max_errors: -1\n"},
		{"negative stats window", "stats:\n  window: -10\n"},
		{"malformed yaml", "frame: [\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Resolve(writeConfig(t, tc.content)); err == nil {
				t.Errorf("Resolve accepted %q", tc.content)
			}
		})
	}
}
