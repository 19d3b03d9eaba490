package errors

import (
	"fmt"
	"os"
)

// LogHandler is a Handler that logs errors to stderr.
type LogHandler struct {
	// Verbose enables detailed output including stack traces.
	Verbose bool
}

// HandleFrameError logs a FrameError to stderr.
func (h *LogHandler) HandleFrameError(err *FrameError) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "[weave %s error] %s\n", err.Phase, err.Error())
	if h.Verbose && err.StackTrace != "" {
		fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", err.StackTrace)
	}
}
