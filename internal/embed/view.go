package embed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var ErrViewClosed = errors.New("embed view closed")

// View is one mounted panel. It re-renders when its inputs change and can
// refresh itself on an interval to renew guest tokens.
type View struct {
	renderer *Renderer
	onFrame  func(Frame)

	mu     sync.Mutex
	req    Request
	frame  Frame
	closed bool

	refreshing atomic.Bool
	stop       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewView prepares a panel. onFrame, when set, receives every rendered frame.
func NewView(r *Renderer, req Request, onFrame func(Frame)) *View {
	return &View{
		renderer: r,
		onFrame:  onFrame,
		req:      req,
		frame:    Frame{State: StateLoading, Target: req.Target},
		stop:     make(chan struct{}),
	}
}

func (v *View) Load(ctx context.Context) (Frame, error) {
	return v.render(ctx, nil)
}

// Refresh re-resolves the frame. It reports false without rendering when
// another refresh of this view is still running.
func (v *View) Refresh(ctx context.Context) (Frame, bool, error) {
	if !v.refreshing.CompareAndSwap(false, true) {
		return v.Frame(), false, nil
	}
	defer v.refreshing.Store(false)

	f, err := v.render(ctx, nil)
	return f, err == nil, err
}

func (v *View) SetDateRange(ctx context.Context, r *DateRange) (Frame, error) {
	return v.render(ctx, func(req *Request) { req.Range = r })
}

func (v *View) SetFilterEnabled(ctx context.Context, enabled bool) (Frame, error) {
	return v.render(ctx, func(req *Request) { req.FilterEnabled = enabled })
}

// StartAutoRefresh refreshes every interval until ctx is done or the view
// is closed.
func (v *View) StartAutoRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-v.stop:
				return
			case <-ticker.C:
				_, _, _ = v.Refresh(ctx)
			}
		}
	}()
}

func (v *View) Frame() Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frame
}

// Close stops auto refresh and drops the SDK mount. It is safe to call
// more than once.
func (v *View) Close() {
	v.stopOnce.Do(func() { close(v.stop) })
	v.wg.Wait()

	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.frame.Token = ""
	v.frame.TokenExpiresAt = nil
}

func (v *View) render(ctx context.Context, change func(*Request)) (Frame, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return Frame{}, ErrViewClosed
	}
	if change != nil {
		change(&v.req)
	}
	req := v.req
	v.mu.Unlock()

	f := v.renderer.Render(ctx, req)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return Frame{}, ErrViewClosed
	}
	v.frame = f
	v.mu.Unlock()

	if v.onFrame != nil {
		v.onFrame(f)
	}
	return f, nil
}
