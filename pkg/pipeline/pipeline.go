package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-weave/weave/pkg/core"
	"github.com/go-weave/weave/pkg/errors"
	"github.com/go-weave/weave/pkg/identity"
	"github.com/go-weave/weave/pkg/layout"
	"github.com/go-weave/weave/pkg/rendering"
)

// ErrFrameSkipped reports that DrawFrame abandoned the frame under the
// active recovery policy and produced no new display list.
var ErrFrameSkipped = stderrors.New("pipeline: frame skipped")

// ErrNoRoot reports that DrawFrame was called before any widget was
// mounted.
var ErrNoRoot = stderrors.New("pipeline: no root mounted")

// PipelineOwner drives the frame in its fixed phase order: build, then
// layout, then paint. Completed frames go out through a triple buffer so
// a consumer on another goroutine always sees the latest finished frame
// without ever blocking frame production.
//
// All mutation happens under the frame lock; inspection tooling takes the
// read side and can observe the trees between frames without pausing them.
type PipelineOwner struct {
	mu sync.RWMutex

	tree     *core.Tree
	owner    *core.BuildOwner
	render   *layout.RenderTree
	recovery *ErrorRecovery
	recorder rendering.PictureRecorder

	buffer   *TripleBuffer
	hitCache *HitTestCache
	stats    *FrameStats

	rootConstraints layout.Constraints
	lastFrame       *rendering.DisplayList

	// abortPolicy holds the decision made by the error sink when it
	// rejected a failure mid-phase. Only read after the phase reports an
	// abort, always on the frame goroutine.
	abortPolicy Policy

	// OnNeedsFrame fires when an idle tree becomes dirty. The scheduler
	// hooks this to request a vsync.
	OnNeedsFrame func()
}

// New creates a pipeline with empty element and render trees sharing one
// identity allocator. recovery may be nil, which defaults to showing
// error placeholders with no failure ceiling.
func New(recovery *ErrorRecovery) *PipelineOwner {
	if recovery == nil {
		recovery = NewErrorRecovery(PolicyShowErrorPlaceholder, 0)
	}
	alloc := &identity.Allocator{}
	render := layout.NewRenderTree(alloc)
	owner := core.NewBuildOwner()
	tree := core.NewTree(alloc, render, owner)

	p := &PipelineOwner{
		tree:     tree,
		owner:    owner,
		render:   render,
		recovery: recovery,
		buffer:   NewTripleBuffer(),
		hitCache: NewHitTestCache(),
		stats:    NewFrameStats(defaultStatsWindow),
	}
	tree.SetErrorSink(p.handleFrameError)
	render.SetErrorSink(p.handleFrameError)
	owner.OnNeedsFrame = func() {
		if p.OnNeedsFrame != nil {
			p.OnNeedsFrame()
		}
	}
	return p
}

// SetViewportSize establishes the tight constraints applied to the root
// on every frame. Changing it invalidates the whole layout.
func (p *PipelineOwner) SetViewportSize(size rendering.Size) {
	p.mu.Lock()
	defer p.mu.Unlock()
	constraints := layout.Tight(size)
	if constraints == p.rootConstraints {
		return
	}
	p.rootConstraints = constraints
	if root := p.render.Root(); !root.IsNone() {
		p.render.MarkNeedsLayout(root)
	}
}

// MountRoot inflates widget as the root of the element tree.
func (p *PipelineOwner) MountRoot(widget core.Widget) (identity.ID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tree.Mount(widget, identity.None, 0)
}

// Inspect runs read with both trees under the read lock. read must not
// mutate either tree or retain references past its return.
func (p *PipelineOwner) Inspect(read func(tree *core.Tree, render *layout.RenderTree)) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	read(p.tree, p.render)
}

// Tree returns the element tree. Callers coordinating their own access
// should prefer Inspect.
func (p *PipelineOwner) Tree() *core.Tree { return p.tree }

// Buffer returns the triple buffer holding finished frames.
func (p *PipelineOwner) Buffer() *TripleBuffer { return p.buffer }

// Stats returns the frame statistics collector.
func (p *PipelineOwner) Stats() *FrameStats { return p.stats }

// SetStatsWindow replaces the statistics collector with one holding a
// rolling window of the given size. Call before the first frame;
// previously collected statistics are discarded.
func (p *PipelineOwner) SetStatsWindow(window int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = NewFrameStats(window)
}

// Recovery returns the error recovery in effect.
func (p *PipelineOwner) Recovery() *ErrorRecovery { return p.recovery }

// RequestRepaint forces the next DrawFrame to repaint and republish even
// when every tree is clean.
func (p *PipelineOwner) RequestRepaint() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if root := p.render.Root(); !root.IsNone() {
		p.render.MarkNeedsPaint(root)
	}
}

// NeedsFrame reports whether any phase has pending work.
func (p *PipelineOwner) NeedsFrame() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.owner.NeedsBuild() || p.render.NeedsLayout() || p.render.NeedsPaint()
}

// DrawFrame produces one frame: flush dirty builds to a fixed point, lay
// out dirty boundaries under the root constraints, then record the paint
// into a display list and publish it. Deadline expiry on ctx surfaces
// through the error sink as a cancelled frame error and follows the same
// recovery policy as any other failure.
//
// A frame abandoned by policy returns (nil, ErrFrameSkipped) under
// PolicySkipFrame, or the previous frame and a nil error under
// PolicyReusePreviousFrame.
func (p *PipelineOwner) DrawFrame(ctx context.Context) (*rendering.DisplayList, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tree.Root().IsNone() {
		return nil, ErrNoRoot
	}
	start := time.Now()

	if !p.owner.NeedsBuild() && !p.render.NeedsLayout() && !p.render.NeedsPaint() && p.lastFrame != nil {
		return p.lastFrame, nil
	}

	if err := p.owner.BuildScope(p.tree); err != nil {
		return p.resolveAbort(err)
	}
	if p.owner.NeedsBuild() {
		errors.ProtocolViolation("layout phase entered with dirty elements pending")
	}

	if err := p.render.FlushLayout(ctx, p.rootConstraints); err != nil {
		return p.resolveAbort(err)
	}
	if p.render.NeedsLayout() {
		errors.ProtocolViolation("paint phase entered with layout pending")
	}

	root := p.render.Node(p.render.Root())
	if root == nil {
		return nil, ErrNoRoot
	}
	canvas := p.recorder.BeginRecording(root.Size())
	if err := p.render.PaintRoot(ctx, canvas); err != nil {
		p.recorder.EndRecording()
		return p.resolveAbort(err)
	}

	frame := p.recorder.EndRecording()
	p.lastFrame = frame
	p.buffer.Publish(frame)
	p.hitCache.Bump()
	p.stats.RecordFrame(time.Since(start))
	return frame, nil
}

// HitTest resolves the render nodes under position, deepest first,
// against the geometry of the last completed layout. Results are cached
// per frame; the cache is invalidated when a frame publishes.
func (p *PipelineOwner) HitTest(position rendering.Offset) ([]identity.ID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if entries, ok := p.hitCache.Lookup(position); ok {
		return entries, len(entries) > 0
	}
	var result layout.HitTestResult
	hit := p.render.HitTest(position, &result)
	p.hitCache.Store(position, result.Entries)
	return result.Entries, hit
}

// handleFrameError is the shared sink for build and layout failures. It
// counts the failure, then maps the recovery policy onto the sink
// contract: accept and substitute a placeholder, or reject and let the
// phase abort.
func (p *PipelineOwner) handleFrameError(ferr *errors.FrameError) bool {
	p.stats.RecordError(ferr.Phase)

	switch policy := p.recovery.Admit(ferr); policy {
	case PolicyShowErrorPlaceholder:
		return true
	case PolicyPanic:
		panic(fmt.Sprintf("pipeline: unrecoverable frame error: %v", ferr))
	default:
		p.abortPolicy = policy
		return false
	}
}

// resolveAbort maps a phase abort onto the policy the sink chose for it.
// Unexpected errors pass through unchanged.
func (p *PipelineOwner) resolveAbort(err error) (*rendering.DisplayList, error) {
	if !core.IsBuildAborted(err) && !layout.IsPhaseAborted(err) {
		return nil, err
	}
	p.stats.RecordSkip()
	if p.abortPolicy == PolicyReusePreviousFrame && p.lastFrame != nil {
		p.buffer.Publish(p.lastFrame)
		return p.lastFrame, nil
	}
	return nil, ErrFrameSkipped
}
