package core

import (
	"sync"

	"github.com/go-weave/weave/pkg/errors"
	"github.com/go-weave/weave/pkg/layout"
	"github.com/go-weave/weave/pkg/rendering"
)

// ErrorWidgetBuilder creates the substitute subtree shown in place of a
// widget whose build failed.
type ErrorWidgetBuilder func(err *errors.FrameError) Widget

var (
	errorWidgetBuilder ErrorWidgetBuilder = DefaultErrorWidgetBuilder
	errorBuilderMu     sync.RWMutex
)

// SetErrorWidgetBuilder configures the global error widget builder.
// Pass nil to restore the default.
func SetErrorWidgetBuilder(builder ErrorWidgetBuilder) {
	errorBuilderMu.Lock()
	defer errorBuilderMu.Unlock()
	if builder == nil {
		errorWidgetBuilder = DefaultErrorWidgetBuilder
	} else {
		errorWidgetBuilder = builder
	}
}

// GetErrorWidgetBuilder returns the current error widget builder.
func GetErrorWidgetBuilder() ErrorWidgetBuilder {
	errorBuilderMu.RLock()
	defer errorBuilderMu.RUnlock()
	return errorWidgetBuilder
}

// DefaultErrorWidgetBuilder returns the built-in placeholder: a translucent
// red box sized by its parent.
func DefaultErrorWidgetBuilder(err *errors.FrameError) Widget {
	return ErrorPlaceholder{Failure: err}
}

// ErrorPlaceholder is the minimal widget shown where a build failed.
type ErrorPlaceholder struct {
	RenderBase
	Failure *errors.FrameError
}

// CreateRenderNode builds the placeholder's painted box.
func (p ErrorPlaceholder) CreateRenderNode() layout.BoxNode {
	return &layout.ColoredBox{Color: rendering.RGBA(0xFF, 0x00, 0x00, 0x66)}
}
