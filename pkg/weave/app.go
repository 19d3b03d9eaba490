// Package weave assembles the framework into a runnable application: a
// configured pipeline, a vsync scheduler pacing it, and a dispatch queue
// for work that other goroutines want run on the frame goroutine.
package weave

import (
	"context"
	stderrors "errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-weave/weave/pkg/config"
	"github.com/go-weave/weave/pkg/core"
	"github.com/go-weave/weave/pkg/identity"
	"github.com/go-weave/weave/pkg/layout"
	"github.com/go-weave/weave/pkg/pipeline"
	"github.com/go-weave/weave/pkg/rendering"
	"github.com/go-weave/weave/pkg/scheduler"
)

// App owns one UI. The frame goroutine is whichever goroutine runs the
// scheduler; everything else talks to the trees through Dispatch or the
// read-locked Inspect.
type App struct {
	pipeline *pipeline.PipelineOwner
	sched    *scheduler.Scheduler

	dispatchMu    sync.Mutex
	dispatchQueue []func()

	pendingFrame atomic.Bool
}

// NewApp creates an application from resolved configuration. A nil cfg
// uses the defaults of an absent weave.yaml.
func NewApp(cfg *config.Resolved) *App {
	if cfg == nil {
		resolved, err := (&config.Config{}).Resolve()
		if err != nil {
			// The zero config always resolves.
			panic(err)
		}
		cfg = resolved
	}

	p := pipeline.New(pipeline.NewErrorRecovery(cfg.Policy, cfg.MaxErrors))
	p.SetStatsWindow(cfg.StatsWindow)

	s := scheduler.New(cfg.RefreshRate)
	s.SetMode(cfg.Mode)

	a := &App{pipeline: p, sched: s}
	p.OnNeedsFrame = a.RequestFrame
	s.SetCallback(a.stepFrame)
	return a
}

// Mount inflates root as the application's widget tree.
func (a *App) Mount(root core.Widget) (identity.ID, error) {
	return a.pipeline.MountRoot(root)
}

// SetViewportSize establishes the root constraints for every frame.
func (a *App) SetViewportSize(size rendering.Size) {
	a.pipeline.SetViewportSize(size)
}

// Run paces frames until ctx is done. The calling goroutine becomes the
// frame goroutine: every dispatched callback and every build, layout and
// paint runs on it.
func (a *App) Run(ctx context.Context) error {
	return a.sched.Run(ctx)
}

// Dispatch schedules callback to run on the frame goroutine at the start
// of the next frame. Safe to call from any goroutine; this is the one
// sanctioned way to mutate the tree from outside it.
func (a *App) Dispatch(callback func()) {
	if callback == nil {
		return
	}
	a.dispatchMu.Lock()
	a.dispatchQueue = append(a.dispatchQueue, callback)
	a.dispatchMu.Unlock()
	a.RequestFrame()
}

// RequestFrame marks that the next vsync should produce a frame even if
// no element is dirty yet. Safe to call from any goroutine.
func (a *App) RequestFrame() {
	a.pendingFrame.Store(true)
}

// AcquireFrame returns the latest completed frame. Fresh reports whether
// it is new since the previous call. Consumer side of the frame buffer;
// call from one presentation goroutine.
func (a *App) AcquireFrame() (*rendering.DisplayList, bool) {
	return a.pipeline.Buffer().Acquire()
}

// HitTest resolves the render nodes under position, deepest first.
func (a *App) HitTest(position rendering.Offset) ([]identity.ID, bool) {
	return a.pipeline.HitTest(position)
}

// Inspect exposes the trees for read-only tooling between frames.
func (a *App) Inspect(read func(tree *core.Tree, render *layout.RenderTree)) {
	a.pipeline.Inspect(read)
}

// Pipeline returns the underlying pipeline owner.
func (a *App) Pipeline() *pipeline.PipelineOwner { return a.pipeline }

// Scheduler returns the vsync scheduler.
func (a *App) Scheduler() *scheduler.Scheduler { return a.sched }

// Stats returns a snapshot of the frame statistics.
func (a *App) Stats() pipeline.StatsSnapshot {
	return a.pipeline.Stats().Snapshot()
}

// stepFrame is the scheduler callback: drain dispatched work, then draw
// if anything needs it. The frame gets the rest of the vsync interval as
// its deadline.
func (a *App) stepFrame(now time.Time) {
	callbacks := a.drainDispatchQueue()
	for _, callback := range callbacks {
		callback()
	}

	requested := a.pendingFrame.Swap(false)
	if requested {
		a.pipeline.RequestRepaint()
	} else if !a.pipeline.NeedsFrame() {
		return
	}

	ctx, cancel := context.WithDeadline(context.Background(), now.Add(a.sched.FrameInterval()))
	defer cancel()

	_, err := a.pipeline.DrawFrame(ctx)
	if err != nil && !stderrors.Is(err, pipeline.ErrFrameSkipped) && !stderrors.Is(err, pipeline.ErrNoRoot) {
		log.Printf("weave: frame failed: %v", err)
	}
}

func (a *App) drainDispatchQueue() []func() {
	a.dispatchMu.Lock()
	defer a.dispatchMu.Unlock()
	callbacks := a.dispatchQueue
	a.dispatchQueue = nil
	return callbacks
}
