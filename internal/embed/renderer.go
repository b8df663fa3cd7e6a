package embed

import (
	"context"
	"fmt"
	"time"

	"github.com/GregMSThompson/insight-portal/internal/dto"
)

type State string

const (
	StateLoading  State = "loading"
	StateSuccess  State = "success"
	StateFallback State = "fallback"
	StateError    State = "error"
)

type Mode string

const (
	ModeSDK    Mode = "sdk"
	ModeIframe Mode = "iframe"
)

// IframeSandbox is applied to every iframe fallback.
const IframeSandbox = "allow-same-origin allow-scripts allow-popups allow-forms allow-downloads"

var transitions = map[State][]State{
	StateLoading: {StateSuccess, StateFallback, StateError},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TokenSource supplies guest tokens. A nil token means the resource must be
// shown through a plain iframe.
type TokenSource interface {
	Token(ctx context.Context, resourceType, id string) *dto.GuestToken
}

// Frame describes how a panel should be mounted.
type Frame struct {
	State          State      `json:"state"`
	Mode           Mode       `json:"mode,omitempty"`
	Target         Target     `json:"target"`
	URL            string     `json:"url,omitempty"`
	Token          string     `json:"token,omitempty"`
	TokenExpiresAt *time.Time `json:"tokenExpiresAt,omitempty"`
	Sandbox        string     `json:"sandbox,omitempty"`
	Filtered       bool       `json:"filtered"`
	Error          string     `json:"error,omitempty"`
	RenderedAt     time.Time  `json:"renderedAt"`
}

func (f *Frame) transition(to State) error {
	if !canTransition(f.State, to) {
		return fmt.Errorf("illegal embed transition %s -> %s", f.State, to)
	}
	f.State = to
	return nil
}

type Request struct {
	Target        Target
	Range         *DateRange
	FilterEnabled bool
}

type Renderer struct {
	tokens TokenSource
	filter *FilterInjector
	now    func() time.Time
}

func NewRenderer(tokens TokenSource, filter *FilterInjector) *Renderer {
	if filter == nil {
		filter = NewFilterInjector(DefaultDateColumn)
	}
	return &Renderer{tokens: tokens, filter: filter, now: time.Now}
}

// Render resolves one frame. Dashboards with a guest token mount through
// the SDK; everything else falls back to a sandboxed iframe.
func (r *Renderer) Render(ctx context.Context, req Request) Frame {
	frame := Frame{State: StateLoading, Target: req.Target, RenderedAt: r.now()}

	if !req.Target.Valid {
		return fail(frame, req.Target.Reason)
	}

	finalURL := req.Target.URL
	if req.FilterEnabled && req.Range != nil {
		filtered, err := r.filter.Apply(finalURL, req.Range)
		if err != nil {
			return fail(frame, err.Error())
		}
		finalURL = filtered
		frame.Filtered = true
	}
	frame.URL = finalURL

	if req.Target.Type == ResourceDashboard && r.tokens != nil {
		if tok := r.tokens.Token(ctx, string(req.Target.Type), req.Target.ID); tok != nil {
			frame.Mode = ModeSDK
			frame.Token = tok.Token
			expires := tok.ExpiresAt
			frame.TokenExpiresAt = &expires
			_ = frame.transition(StateSuccess)
			return frame
		}
	}

	frame.Mode = ModeIframe
	frame.Sandbox = IframeSandbox
	_ = frame.transition(StateFallback)
	return frame
}

func fail(frame Frame, msg string) Frame {
	if msg == "" {
		msg = reasonInvalid
	}
	frame.Error = msg
	_ = frame.transition(StateError)
	return frame
}
