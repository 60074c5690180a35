// Package input routes viewer pointer and keyboard events on drawn buttons
// back to the controller as protocol messages.
package input

import (
	"context"
	"errors"
	"fmt"

	"github.com/amxpanel/amxpanel/internal/display"
	"github.com/amxpanel/amxpanel/internal/model"
	"github.com/amxpanel/amxpanel/internal/observability"
	"github.com/amxpanel/amxpanel/internal/panel"
	"github.com/amxpanel/amxpanel/internal/protocol"
)

var ErrUnbound = errors.New("no button bound to element")

// Sender delivers a message to the controller.
type Sender interface {
	Send(ctx context.Context, msg string) error
}

// Phase is the pointer transition.
type Phase int

const (
	Down Phase = iota
	Up
)

// ParsePhase maps "down" and "up" to a Phase.
func ParsePhase(s string) (Phase, error) {
	switch s {
	case "down":
		return Down, nil
	case "up":
		return Up, nil
	}
	return 0, fmt.Errorf("unknown pointer phase %q", s)
}

// Router implements display.Binder and turns events on bound buttons into
// PUSH and KEY messages.
type Router struct {
	panel   *panel.Panel
	out     Sender
	panelID int
	bound   map[string]display.ButtonContext
	metrics *observability.MetricsCollector
	log     *observability.Logger
}

// New creates a router. The caller binds it to the display engine with
// SetBinder.
func New(p *panel.Panel, out Sender, panelID int, m *observability.MetricsCollector, log *observability.Logger) *Router {
	if log == nil {
		log = observability.Discard()
	}
	if m == nil {
		m = observability.NewMetricsCollector(0)
	}
	return &Router{
		panel:   p,
		out:     out,
		panelID: panelID,
		bound:   make(map[string]display.ButtonContext),
		metrics: m,
		log:     log,
	}
}

// Bind implements display.Binder.
func (r *Router) Bind(c display.ButtonContext) { r.bound[c.ElementID] = c }

// Unbind implements display.Binder.
func (r *Router) Unbind(elementID string) { delete(r.bound, elementID) }

// Bound reports whether elementID has a button context.
func (r *Router) Bound(elementID string) bool {
	_, ok := r.bound[elementID]
	return ok
}

// Pointer handles a press or release on the button drawn as elementID.
// Buttons without a channel act on press only, running the press and the
// release back to back.
func (r *Router) Pointer(ctx context.Context, elementID string, phase Phase) error {
	bc, ok := r.bound[elementID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnbound, elementID)
	}
	if r.panel.Disabled(bc.Key) {
		r.log.Debug("press on disabled button", "button", elementID)
		return nil
	}
	if !bc.Button.HasChannel() {
		if phase != Down {
			return nil
		}
		if err := r.down(ctx, bc); err != nil {
			return err
		}
		return r.up(ctx, bc)
	}
	if phase == Down {
		return r.down(ctx, bc)
	}
	return r.up(ctx, bc)
}

func (r *Router) down(ctx context.Context, bc display.ButtonContext) error {
	btn := bc.Button
	switch btn.Feedback {
	case model.FeedbackMomentary:
		r.swap(btn, 2)
		return r.push(ctx, btn, true)
	case model.FeedbackInverted:
		return r.push(ctx, btn, false)
	default:
		return r.push(ctx, btn, true)
	}
}

func (r *Router) up(ctx context.Context, bc display.ButtonContext) error {
	btn := bc.Button
	var err error
	switch btn.Feedback {
	case model.FeedbackMomentary:
		r.swap(btn, 1)
		err = r.push(ctx, btn, false)
	case model.FeedbackInverted:
		err = r.push(ctx, btn, true)
	case model.FeedbackAlwaysOn:
	default:
		err = r.push(ctx, btn, false)
	}
	if !r.panel.FlipsCleared(bc.Key) {
		r.flip(ctx, btn.PageFlips)
	}
	return err
}

func (r *Router) swap(btn *model.ButtonDefinition, n int) {
	if btn.HasChannel() {
		r.panel.Select(btn.Address(), display.Selection{Ion: n, Visible: true})
	}
}

func (r *Router) push(ctx context.Context, btn *model.ButtonDefinition, on bool) error {
	if !btn.HasChannel() {
		return nil
	}
	msg := protocol.Push(btn.Port, btn.Channel, on)
	r.metrics.Increment(observability.CounterPushes)
	r.metrics.Record(observability.MetricPush, 1, observability.Labels{"channel": fmt.Sprint(btn.Channel)})
	if err := r.out.Send(ctx, msg); err != nil {
		return fmt.Errorf("push %d:%d: %w", btn.Port, btn.Channel, err)
	}
	return nil
}

func (r *Router) flip(ctx context.Context, flips []model.PageFlip) {
	for _, f := range flips {
		var err error
		switch f.Action {
		case model.FlipPage:
			err = r.panel.ShowPage(ctx, f.Name)
		case model.FlipShowPopup:
			err = r.panel.ShowPopup(ctx, f.Name, "")
		case model.FlipHidePopup:
			err = r.panel.HidePopup(f.Name, "")
		case model.FlipTogglePopup:
			err = r.panel.TogglePopup(ctx, f.Name, "")
		case model.FlipCloseGroup:
			r.panel.HideGroup(f.Name)
		default:
			err = fmt.Errorf("unknown page flip %q", f.Action)
		}
		if err != nil {
			r.log.Warn("page flip failed", "action", f.Action, "name", f.Name, "error", err)
		}
	}
}

// Keyboard sends text typed on the keyboard.
func (r *Router) Keyboard(ctx context.Context, text string) error {
	return r.out.Send(ctx, protocol.KeyboardText(r.panelID, text))
}

// Keypad sends text typed on the keypad.
func (r *Router) Keypad(ctx context.Context, text string) error {
	return r.out.Send(ctx, protocol.KeypadText(r.panelID, text))
}
