// Package display materializes page and popup definitions into the panel's
// document and keeps their rendered state in step with the runtime state
// held by package panel.
//
// Each page or popup moves through Unloaded -> Rendered -> Shown <-> Hidden
// -> Dropped. The engine tracks that explicitly instead of reading it back
// from element styles.
package display

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/amxpanel/amxpanel/internal/compositor"
	"github.com/amxpanel/amxpanel/internal/dom"
	"github.com/amxpanel/amxpanel/internal/model"
	"github.com/amxpanel/amxpanel/internal/observability"
	"github.com/amxpanel/amxpanel/internal/resource"
)

var (
	ErrNotDrawn    = errors.New("page not drawn")
	ErrNoButton    = errors.New("no such button")
	ErrUnknownPage = errors.New("unknown page id")
)

// Compositor renders chameleon and bargraph images. *compositor.Service
// implements it.
type Compositor interface {
	DrawChameleon(ctx context.Context, req compositor.ChameleonRequest) (string, error)
	DrawBargraph(req compositor.BargraphRequest) (string, error)
}

// Engine draws pages into a dom.Document.
type Engine struct {
	doc       *dom.Document
	idx       *model.Index
	log       *observability.Logger
	comp      Compositor
	binder    Binder
	states    StateSource
	resources *resource.Table
	imageBase string
	life      map[int]Lifecycle
}

// New creates an engine for the pages in idx.
func New(doc *dom.Document, idx *model.Index, log *observability.Logger) *Engine {
	if log == nil {
		log = observability.Discard()
	}
	return &Engine{
		doc:       doc,
		idx:       idx,
		log:       log,
		imageBase: "images/",
		life:      make(map[int]Lifecycle),
	}
}

// SetCompositor enables chameleon and bargraph rendering.
func (e *Engine) SetCompositor(c Compositor) { e.comp = c }

// SetBinder sets who receives button contexts.
func (e *Engine) SetBinder(b Binder) { e.binder = b }

// SetStateSource sets where runtime button state is read from.
func (e *Engine) SetStateSource(s StateSource) { e.states = s }

// SetResources lets image names resolve through the resource table.
func (e *Engine) SetResources(t *resource.Table) { e.resources = t }

// SetImageBase sets the URL prefix for plain image file names.
func (e *Engine) SetImageBase(base string) { e.imageBase = base }

// Document returns the document the engine draws into.
func (e *Engine) Document() *dom.Document { return e.doc }

// State returns the lifecycle state of page id.
func (e *Engine) State(id int) Lifecycle { return e.life[id] }

// IsShown reports the derived display state of page id.
func (e *Engine) IsShown(id int) bool {
	v, err := e.doc.Style(PageElementID(id), "display")
	return err == nil && v == "block"
}

// Draw builds the container for def with all its buttons. The container is
// attached hidden; Show makes it visible. Drawing a live page is a no-op.
// On failure nothing of def stays in the document.
func (e *Engine) Draw(ctx context.Context, def *model.PageDefinition) error {
	if def == nil {
		return ErrUnknownPage
	}
	if e.life[def.ID].IsLive() {
		return nil
	}

	root := dom.NewElement("div", PageElementID(def.ID))
	root.Attrs["data-name"] = def.Name
	root.Attrs["class"] = string(def.Kind)
	setBox(root, def.Box)
	root.Style["display"] = "none"
	e.background(ctx, root, def)

	for i := range def.Buttons {
		btn := &def.Buttons[i]
		root.Add(e.buildButton(ctx, def, btn))
	}

	if err := e.doc.Append("", root); err != nil {
		return fmt.Errorf("draw %s: %w", def.Name, err)
	}
	for i := range def.Buttons {
		key := ButtonKey{Page: def.ID, Index: def.Buttons[i].Index}
		if err := e.syncButton(key, def, &def.Buttons[i]); err != nil {
			e.doc.Remove(root.ID)
			return fmt.Errorf("draw %s: %w", def.Name, err)
		}
	}
	if e.binder != nil {
		for i := range def.Buttons {
			btn := &def.Buttons[i]
			key := ButtonKey{Page: def.ID, Index: btn.Index}
			e.binder.Bind(ButtonContext{
				ElementID: ButtonElementID(key),
				Key:       key,
				PageName:  def.Name,
				Button:    btn,
			})
		}
	}
	e.life[def.ID] = Rendered
	e.log.Debug("drawn", "page", def.Name, "buttons", len(def.Buttons))
	return nil
}

func (e *Engine) background(ctx context.Context, el *dom.Element, def *model.PageDefinition) {
	bg := def.Background
	if bg.Color != "" {
		el.Style["background-color"] = bg.Color
	}
	src := ""
	if bg.Mask != "" && e.comp != nil {
		uri, err := e.comp.DrawChameleon(ctx, compositor.ChameleonRequest{
			Mask:      e.ImageURL(bg.Mask),
			AlphaMask: e.optionalURL(bg.AlphaMask),
			Width:     def.Box.Width,
			Height:    def.Box.Height,
			Fill:      bg.Color,
			Border:    bg.Border,
		})
		if err != nil {
			e.log.Warn("chameleon background failed", "page", def.Name, "error", err)
		} else {
			src = uri
		}
	}
	if src == "" && bg.Image != "" {
		src = e.ImageURL(bg.Image)
	}
	if src != "" {
		el.Style["background-image"] = "url(" + src + ")"
		el.Style["background-repeat"] = "no-repeat"
	}
}

// Show displays page id at stacking level z. A z of 0 leaves the z-index
// unset. Modal popups get a backdrop below the container.
func (e *Engine) Show(id, z int) error {
	def, ok := e.idx.ByID(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPage, id)
	}
	if !e.life[id].IsLive() {
		return fmt.Errorf("%w: %s", ErrNotDrawn, def.Name)
	}
	pid := PageElementID(id)
	e.doc.SetStyle(pid, "display", "block")
	zs := ""
	if z > 0 {
		zs = strconv.Itoa(z)
	}
	e.doc.SetStyle(pid, "z-index", zs)
	e.doc.SetStyle(pid, "animation", e.EnsureEffect(def))

	if def.Modal {
		bid := BackdropElementID(id)
		if !e.doc.Has(bid) {
			m := dom.NewElement("div", bid)
			m.Attrs["class"] = "backdrop"
			m.Style["position"] = "fixed"
			m.Style["inset"] = "0"
			m.Style["background-color"] = "rgba(0,0,0,0.4)"
			if err := e.doc.InsertBefore(pid, m); err != nil {
				return err
			}
		}
		e.doc.SetStyle(bid, "z-index", zs)
	}
	e.life[id] = Shown
	return nil
}

// Hide turns display off for page id and clears its z-index.
func (e *Engine) Hide(id int) error {
	if !e.life[id].IsLive() {
		return fmt.Errorf("%w: %d", ErrNotDrawn, id)
	}
	pid := PageElementID(id)
	e.doc.SetStyle(pid, "display", "none")
	e.doc.SetStyle(pid, "z-index", "")
	e.doc.SetStyle(pid, "animation", "")
	if bid := BackdropElementID(id); e.doc.Has(bid) {
		e.doc.Remove(bid)
	}
	e.life[id] = Hidden
	return nil
}

// Drop removes page id and everything under it from the document.
func (e *Engine) Drop(id int) error {
	if !e.life[id].IsLive() {
		return fmt.Errorf("%w: %d", ErrNotDrawn, id)
	}
	pid := PageElementID(id)
	if e.binder != nil {
		if def, ok := e.idx.ByID(id); ok {
			for _, b := range def.Buttons {
				e.binder.Unbind(ButtonElementID(ButtonKey{Page: id, Index: b.Index}))
			}
		}
	}
	if bid := BackdropElementID(id); e.doc.Has(bid) {
		e.doc.Remove(bid)
	}
	if err := e.doc.Remove(pid); err != nil {
		return err
	}
	e.life[id] = Dropped
	return nil
}

// Reset forgets every page and empties the document.
func (e *Engine) Reset() {
	if e.binder != nil {
		for id, l := range e.life {
			if !l.IsLive() {
				continue
			}
			if def, ok := e.idx.ByID(id); ok {
				for _, b := range def.Buttons {
					e.binder.Unbind(ButtonElementID(ButtonKey{Page: id, Index: b.Index}))
				}
			}
		}
	}
	e.doc.Reset()
	e.life = make(map[int]Lifecycle)
}

// ImageURL resolves an image name: resource names go through the resource
// table, absolute URLs and data URIs pass through, anything else is
// prefixed with the image base.
func (e *Engine) ImageURL(name string) string {
	if name == "" {
		return ""
	}
	if e.resources != nil {
		if r, ok := e.resources.Find(name); ok {
			return resource.MakeURL(r)
		}
	}
	if strings.Contains(name, "://") || strings.HasPrefix(name, "data:") || strings.HasPrefix(name, "/") {
		return name
	}
	return e.imageBase + name
}

func (e *Engine) optionalURL(name string) string {
	if name == "" {
		return ""
	}
	return e.ImageURL(name)
}

func setBox(el *dom.Element, b model.Box) {
	el.Style["position"] = "absolute"
	el.Style["left"] = px(b.Left)
	el.Style["top"] = px(b.Top)
	el.Style["width"] = px(b.Width)
	el.Style["height"] = px(b.Height)
}

func px(n int) string { return strconv.Itoa(n) + "px" }
