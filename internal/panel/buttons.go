package panel

import (
	"github.com/amxpanel/amxpanel/internal/display"
	"github.com/amxpanel/amxpanel/internal/model"
	"github.com/amxpanel/amxpanel/internal/protocol"
)

// Selection implements display.StateSource.
func (p *Panel) Selection(addr model.Address) (display.Selection, bool) {
	s, ok := p.selections[addr]
	return s, ok
}

// Overrides implements display.StateSource.
func (p *Panel) Overrides(key display.ButtonKey) *display.Overrides {
	return p.overrides[key]
}

func (p *Panel) override(key display.ButtonKey) *display.Overrides {
	ov, ok := p.overrides[key]
	if !ok {
		ov = display.NewOverrides()
		p.overrides[key] = ov
	}
	return ov
}

// Buttons returns every button on port whose channel is in channels, on
// every page and popup, ordered by page ID then position. Invalid channels
// match nothing.
func (p *Panel) Buttons(port int, channels []int) []display.ButtonKey {
	want := make(map[int]bool, len(channels))
	for _, ch := range channels {
		if ch != protocol.InvalidChannel {
			want[ch] = true
		}
	}
	var out []display.ButtonKey
	if len(want) == 0 {
		return out
	}
	for _, def := range p.idx.All() {
		for _, b := range def.Buttons {
			if b.Port == port && want[b.Channel] {
				out = append(out, display.ButtonKey{Page: def.ID, Index: b.Index})
			}
		}
	}
	return out
}

// instances expands an instance list for a button with count states. A 0
// entry means all of them; out-of-range entries are dropped.
func instances(list []int, count int) []int {
	var out []int
	seen := make(map[int]bool)
	for _, n := range list {
		if n == 0 {
			out = out[:0]
			for i := 1; i <= count; i++ {
				out = append(out, i)
			}
			return out
		}
		if n >= 1 && n <= count && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// each runs fn for every state instance of every button matched by port
// and channels, then refreshes the button. It returns the number of
// buttons touched.
func (p *Panel) each(port int, channels, insts []int, fn func(key display.ButtonKey, ov *display.Overrides, n int)) int {
	count := 0
	for _, key := range p.Buttons(port, channels) {
		_, btn, ok := p.eng.Button(key)
		if !ok {
			continue
		}
		ov := p.override(key)
		for _, n := range instances(insts, len(btn.States)) {
			fn(key, ov, n)
		}
		p.refresh(key)
		count++
	}
	return count
}

func (p *Panel) refresh(key display.ButtonKey) {
	if err := p.eng.RefreshButton(key); err != nil {
		p.log.Warn("button refresh failed", "button", display.ButtonElementID(key), "error", err)
	}
}

// Text returns the text state n of a button currently shows.
func (p *Panel) Text(key display.ButtonKey, n int) string {
	if ov, ok := p.overrides[key]; ok {
		if t, ok := ov.Text[n]; ok {
			return t
		}
	}
	if _, btn, ok := p.eng.Button(key); ok && n >= 1 && n <= len(btn.States) {
		return btn.States[n-1].Text
	}
	return ""
}

// AppendText appends text to the matched instances' current text.
func (p *Panel) AppendText(port int, channels, insts []int, text string) int {
	return p.each(port, channels, insts, func(key display.ButtonKey, ov *display.Overrides, n int) {
		ov.Text[n] = p.Text(key, n) + text
	})
}

// SetText replaces the matched instances' text.
func (p *Panel) SetText(port int, channels, insts []int, text string) int {
	return p.each(port, channels, insts, func(_ display.ButtonKey, ov *display.Overrides, n int) {
		ov.Text[n] = text
	})
}

// SetBitmap assigns an image to the matched instances.
func (p *Panel) SetBitmap(port int, channels, insts []int, image string) int {
	return p.each(port, channels, insts, func(_ display.ButtonKey, ov *display.Overrides, n int) {
		ov.Bitmap[n] = image
	})
}

// SetIcon assigns an icon slot to the matched instances.
func (p *Panel) SetIcon(port int, channels, insts []int, icon int) int {
	if _, ok := p.idx.Icon(icon); !ok && icon > 0 {
		p.log.Warn("unknown icon", "icon", icon)
	}
	return p.each(port, channels, insts, func(_ display.ButtonKey, ov *display.Overrides, n int) {
		ov.Icon[n] = icon
	})
}

func (p *Panel) eachButton(port int, channels []int, fn func(ov *display.Overrides)) int {
	keys := p.Buttons(port, channels)
	for _, key := range keys {
		fn(p.override(key))
		p.refresh(key)
	}
	return len(keys)
}

// SetGeometry moves the matched buttons to the absolute rectangle
// (left, top)-(right, bottom).
func (p *Panel) SetGeometry(port int, channels []int, left, top, right, bottom int) int {
	box := model.Box{Left: left, Top: top, Width: right - left, Height: bottom - top}
	if box.Width < 0 {
		box.Width = 0
	}
	if box.Height < 0 {
		box.Height = 0
	}
	return p.eachButton(port, channels, func(ov *display.Overrides) {
		b := box
		ov.Box = &b
	})
}

// SetShown shows or hides the matched buttons.
func (p *Panel) SetShown(port int, channels []int, shown bool) int {
	return p.eachButton(port, channels, func(ov *display.Overrides) {
		ov.Hidden = !shown
	})
}

// SetEnabled enables or disables the matched buttons. Disabled buttons are
// hidden and ignore presses.
func (p *Panel) SetEnabled(port int, channels []int, enabled bool) int {
	return p.eachButton(port, channels, func(ov *display.Overrides) {
		ov.Disabled = !enabled
		ov.Hidden = !enabled
	})
}

// ClearPageFlips removes the page-flip bindings of the matched buttons.
func (p *Panel) ClearPageFlips(port int, channels []int) int {
	return p.eachButton(port, channels, func(ov *display.Overrides) {
		ov.NoFlips = true
	})
}

// SetChannel records controller feedback for addr: on selects state 2,
// off state 1.
func (p *Panel) SetChannel(addr model.Address, on bool) int {
	ion := 1
	if on {
		ion = 2
	}
	return p.Select(addr, display.Selection{Ion: ion, Visible: true})
}

// Select sets the runtime selection for addr and refreshes its buttons.
func (p *Panel) Select(addr model.Address, sel display.Selection) int {
	p.selections[addr] = sel
	return p.eng.RefreshAddress(addr)
}

// SetLevel stores value on every button bound to level (port, level).
func (p *Panel) SetLevel(port, level, value int) int {
	count := 0
	for _, def := range p.idx.All() {
		for _, b := range def.Buttons {
			if b.Level == 0 || b.LevelPort != port || b.Level != level {
				continue
			}
			key := display.ButtonKey{Page: def.ID, Index: b.Index}
			p.override(key).Level = value
			p.refresh(key)
			count++
		}
	}
	return count
}

// FlipsCleared reports whether a button's page flips were cleared.
func (p *Panel) FlipsCleared(key display.ButtonKey) bool {
	ov, ok := p.overrides[key]
	return ok && ov.NoFlips
}

// Disabled reports whether a button ignores presses.
func (p *Panel) Disabled(key display.ButtonKey) bool {
	ov, ok := p.overrides[key]
	return ok && (ov.Disabled || ov.Hidden)
}
