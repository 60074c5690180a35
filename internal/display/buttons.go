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
)

var ErrNoImage = errors.New("no element shows this image")

// LayerVisible decides whether state record n (1-based) of btn is shown.
// With a runtime selection, n must equal the selected instance and the
// selection must be visible. Without one, the feedback mode's default
// state is shown.
func LayerVisible(btn *model.ButtonDefinition, n int, sel Selection, hasSel bool) bool {
	if hasSel {
		return n == sel.Ion && sel.Visible
	}
	return n == btn.Feedback.DefaultState()
}

func (e *Engine) buildButton(ctx context.Context, def *model.PageDefinition, btn *model.ButtonDefinition) *dom.Element {
	key := ButtonKey{Page: def.ID, Index: btn.Index}
	el := dom.NewElement("div", ButtonElementID(key))
	el.Attrs["class"] = "button"
	if btn.Name != "" {
		el.Attrs["data-name"] = btn.Name
	}
	el.Attrs["data-addr"] = fmt.Sprintf("%d:%d", btn.Port, btn.Channel)
	setBox(el, btn.Box)

	for i := range btn.States {
		n := i + 1
		sr := &btn.States[i]
		layer := el.Add(dom.NewElement("div", LayerElementID(key, n)))
		layer.Style["position"] = "absolute"
		layer.Style["left"] = "0"
		layer.Style["top"] = "0"
		layer.Style["width"] = "100%"
		layer.Style["height"] = "100%"
		layer.Style["display"] = "none"
		if sr.Color != "" {
			layer.Style["background-color"] = sr.Color
		}
		if sr.BorderColor != "" {
			w := sr.BorderWidth
			if w <= 0 {
				w = 1
			}
			layer.Style["border"] = fmt.Sprintf("%dpx solid %s", w, sr.BorderColor)
			layer.Style["box-sizing"] = "border-box"
		}

		if src := e.stateImage(ctx, def, btn, sr); src != "" {
			img := layer.Add(dom.NewElement("img", ImageElementID(key, n)))
			img.Attrs["src"] = src
			fillStyle(img)
		}
		if sr.Bargraph != nil {
			bar := layer.Add(dom.NewElement("img", BarElementID(key, n)))
			fillStyle(bar)
		}

		txt := layer.Add(dom.NewElement("span", TextElementID(key, n)))
		if sr.TextColor != "" {
			txt.Style["color"] = sr.TextColor
		}
		if sr.Font != "" {
			txt.Style["font-family"] = sr.Font
		}
		orient(txt, sr.TextOrient, sr.TextX, sr.TextY, true)
	}
	return el
}

// stateImage returns the chameleon-composited image when the state has a
// mask and a compositor is set, falling back to the plain image.
func (e *Engine) stateImage(ctx context.Context, def *model.PageDefinition, btn *model.ButtonDefinition, sr *model.StateRecord) string {
	if sr.Mask != "" && e.comp != nil {
		uri, err := e.comp.DrawChameleon(ctx, compositor.ChameleonRequest{
			Mask:      e.ImageURL(sr.Mask),
			AlphaMask: e.optionalURL(sr.AlphaMask),
			Width:     btn.Box.Width,
			Height:    btn.Box.Height,
			Fill:      sr.Color,
			Border:    sr.BorderColor,
		})
		if err == nil {
			return uri
		}
		e.log.Warn("chameleon button failed", "page", def.Name, "button", btn.Index, "error", err)
	}
	return e.ImageURL(sr.Image)
}

// syncButton applies runtime selection and overrides to a drawn button.
func (e *Engine) syncButton(key ButtonKey, def *model.PageDefinition, btn *model.ButtonDefinition) error {
	ov := e.overrides(key)
	var sel Selection
	var hasSel bool
	if e.states != nil {
		sel, hasSel = e.states.Selection(btn.Address())
	}

	bid := ButtonElementID(key)
	hidden := ""
	if ov.Hidden {
		hidden = "none"
	}
	if err := e.doc.SetStyle(bid, "display", hidden); err != nil {
		return err
	}
	if ov.Box != nil {
		e.doc.SetStyle(bid, "left", px(ov.Box.Left))
		e.doc.SetStyle(bid, "top", px(ov.Box.Top))
		e.doc.SetStyle(bid, "width", px(ov.Box.Width))
		e.doc.SetStyle(bid, "height", px(ov.Box.Height))
	}

	for i := range btn.States {
		n := i + 1
		sr := &btn.States[i]
		lid := LayerElementID(key, n)

		display := "none"
		if LayerVisible(btn, n, sel, hasSel) {
			display = "block"
		}
		if err := e.doc.SetStyle(lid, "display", display); err != nil {
			return err
		}

		text, ok := ov.Text[n]
		if !ok {
			text = sr.Text
		}
		if err := e.doc.SetText(TextElementID(key, n), text); err != nil {
			return err
		}

		if bm, ok := ov.Bitmap[n]; ok {
			if err := e.ensureImg(key, n, ImageElementID(key, n)); err != nil {
				return err
			}
			e.doc.SetAttr(ImageElementID(key, n), "src", e.ImageURL(bm))
		}

		icon, ok := ov.Icon[n]
		if !ok {
			icon = sr.Icon
		}
		if icon > 0 {
			if err := e.syncIcon(key, n, icon, sr); err != nil {
				return err
			}
		}

		if sr.Bargraph != nil && e.comp != nil {
			w, h := btn.Box.Width, btn.Box.Height
			if ov.Box != nil {
				w, h = ov.Box.Width, ov.Box.Height
			}
			uri, err := e.comp.DrawBargraph(compositor.BargraphRequest{
				Width:      w,
				Height:     h,
				Fill:       colorOr(sr.BorderColor, "#FFFFFF"),
				Background: colorOr(sr.Color, "#000000"),
				Level:      ov.Level,
				Low:        sr.Bargraph.Low,
				High:       sr.Bargraph.High,
				Vertical:   sr.Bargraph.Vert,
			})
			if err != nil {
				e.log.Warn("bargraph failed", "page", def.Name, "button", btn.Index, "error", err)
			} else {
				e.doc.SetAttr(BarElementID(key, n), "src", uri)
			}
		}
	}
	return nil
}

func (e *Engine) syncIcon(key ButtonKey, n, num int, sr *model.StateRecord) error {
	ic, ok := e.idx.Icon(num)
	if !ok {
		e.log.Warn("unknown icon", "icon", num, "button", ButtonElementID(key))
		return nil
	}
	id := IconElementID(key, n)
	if err := e.ensureImg(key, n, id); err != nil {
		return err
	}
	e.doc.SetAttr(id, "src", e.ImageURL(ic.File))
	el, err := e.doc.Get(id)
	if err != nil {
		return err
	}
	if ic.Width > 0 {
		el.Style["width"] = px(ic.Width)
	}
	if ic.Height > 0 {
		el.Style["height"] = px(ic.Height)
	}
	orient(el, sr.IconOrient, 0, 0, false)
	return nil
}

// ensureImg creates an <img> with id under layer n when it is missing,
// placed before the text so text stays on top.
func (e *Engine) ensureImg(key ButtonKey, n int, id string) error {
	if e.doc.Has(id) {
		return nil
	}
	img := dom.NewElement("img", id)
	fillStyle(img)
	return e.doc.InsertBefore(TextElementID(key, n), img)
}

func (e *Engine) overrides(key ButtonKey) *Overrides {
	if e.states != nil {
		if ov := e.states.Overrides(key); ov != nil {
			return ov
		}
	}
	return NewOverrides()
}

// Button returns the definition behind key.
func (e *Engine) Button(key ButtonKey) (*model.PageDefinition, *model.ButtonDefinition, bool) {
	def, ok := e.idx.ByID(key.Page)
	if !ok {
		return nil, nil, false
	}
	for i := range def.Buttons {
		if def.Buttons[i].Index == key.Index {
			return def, &def.Buttons[i], true
		}
	}
	return def, nil, false
}

// RefreshButton re-applies runtime state to one button. Buttons on pages
// that are not drawn are skipped; they pick up their state when drawn.
func (e *Engine) RefreshButton(key ButtonKey) error {
	def, btn, ok := e.Button(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoButton, ButtonElementID(key))
	}
	if !e.life[key.Page].IsLive() {
		return nil
	}
	return e.syncButton(key, def, btn)
}

// RefreshAddress re-applies runtime state to every drawn button at addr and
// returns how many were refreshed.
func (e *Engine) RefreshAddress(addr model.Address) int {
	count := 0
	for _, def := range e.idx.All() {
		if !e.life[def.ID].IsLive() {
			continue
		}
		for i := range def.Buttons {
			btn := &def.Buttons[i]
			if btn.Address() != addr {
				continue
			}
			key := ButtonKey{Page: def.ID, Index: btn.Index}
			if err := e.syncButton(key, def, btn); err != nil {
				e.log.Warn("refresh failed", "button", ButtonElementID(key), "error", err)
				continue
			}
			count++
		}
	}
	return count
}

// RefreshResource reloads every drawn image showing the named resource.
// gen is appended to the URL so viewers fetch it again. It fails when no
// drawn element shows the resource.
func (e *Engine) RefreshResource(name string, gen uint64) (int, error) {
	count := 0
	for _, def := range e.idx.All() {
		if !e.life[def.ID].IsLive() {
			continue
		}
		for i := range def.Buttons {
			btn := &def.Buttons[i]
			key := ButtonKey{Page: def.ID, Index: btn.Index}
			ov := e.overrides(key)
			for j := range btn.States {
				n := j + 1
				img, ok := ov.Bitmap[n]
				if !ok {
					img = btn.States[j].Image
				}
				id := ImageElementID(key, n)
				if img != name || !e.doc.Has(id) {
					continue
				}
				e.doc.SetAttr(id, "src", bust(e.ImageURL(name), gen))
				count++
			}
		}
	}
	if count == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoImage, name)
	}
	return count, nil
}

func bust(u string, gen uint64) string {
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "r=" + strconv.FormatUint(gen, 10)
}

func fillStyle(el *dom.Element) {
	el.Style["position"] = "absolute"
	el.Style["left"] = "0"
	el.Style["top"] = "0"
	el.Style["width"] = "100%"
	el.Style["height"] = "100%"
}

func colorOr(c, def string) string {
	if c == "" {
		return def
	}
	return c
}

// orient positions el inside its button. Orientations 1-9 form a 3x3 grid
// read like a keypad; 0 places el at (x, y).
func orient(el *dom.Element, o model.Orientation, x, y int, text bool) {
	el.Style["position"] = "absolute"
	for _, k := range []string{"left", "right", "top", "bottom", "transform"} {
		delete(el.Style, k)
	}
	if o <= model.OrientAbsolute || o > model.OrientBottomRight {
		el.Style["left"] = px(x)
		el.Style["top"] = px(y)
		return
	}
	col := int(o-1) % 3
	row := int(o-1) / 3

	var tx, ty string
	switch col {
	case 0:
		el.Style["left"] = "0"
	case 1:
		el.Style["left"] = "50%"
		tx = "-50%"
	case 2:
		el.Style["right"] = "0"
	}
	switch row {
	case 0:
		el.Style["top"] = "0"
	case 1:
		el.Style["top"] = "50%"
		ty = "-50%"
	case 2:
		el.Style["bottom"] = "0"
	}
	if tx != "" || ty != "" {
		el.Style["transform"] = fmt.Sprintf("translate(%s,%s)", zeroOr(tx), zeroOr(ty))
	}
	if text {
		el.Style["text-align"] = [...]string{"left", "center", "right"}[col]
		el.Style["white-space"] = "pre"
	}
}

func zeroOr(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
