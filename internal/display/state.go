package display

import (
	"fmt"

	"github.com/amxpanel/amxpanel/internal/model"
)

// Lifecycle is the render state of one page or popup.
type Lifecycle int

const (
	Unloaded Lifecycle = iota
	Rendered
	Shown
	Hidden
	Dropped
)

func (l Lifecycle) String() string {
	switch l {
	case Unloaded:
		return "unloaded"
	case Rendered:
		return "rendered"
	case Shown:
		return "shown"
	case Hidden:
		return "hidden"
	case Dropped:
		return "dropped"
	}
	return fmt.Sprintf("lifecycle(%d)", int(l))
}

// IsLive reports whether the page's container is in the document.
func (l Lifecycle) IsLive() bool {
	return l == Rendered || l == Shown || l == Hidden
}

// ButtonKey identifies one drawn button: its page and its index on it.
type ButtonKey struct {
	Page  int
	Index int
}

// Selection is the channel-driven state choice for an address. When a
// selection exists, state n (1-based) is shown iff n == Ion and Visible.
type Selection struct {
	Ion     int
	Visible bool
}

// Overrides are runtime changes commands made to one button. Maps are keyed
// by 1-based state number.
type Overrides struct {
	Text     map[int]string
	Bitmap   map[int]string
	Icon     map[int]int
	Box      *model.Box
	Hidden   bool
	Disabled bool
	Level    int
	NoFlips  bool
}

// NewOverrides returns empty overrides.
func NewOverrides() *Overrides {
	return &Overrides{
		Text:   make(map[int]string),
		Bitmap: make(map[int]string),
		Icon:   make(map[int]int),
	}
}

// StateSource gives the engine the runtime button state it needs when
// drawing. Package panel implements it.
type StateSource interface {
	Selection(addr model.Address) (Selection, bool)
	Overrides(key ButtonKey) *Overrides
}

// ButtonContext is bound to a drawn button so pointer events can be routed
// without capturing loop variables.
type ButtonContext struct {
	ElementID string
	Key       ButtonKey
	PageName  string
	Button    *model.ButtonDefinition
}

// Binder receives button contexts as buttons are drawn and dropped.
type Binder interface {
	Bind(ctx ButtonContext)
	Unbind(elementID string)
}

// Element ID helpers. Layers and children are numbered by 1-based state.

func PageElementID(id int) string     { return fmt.Sprintf("p%d", id) }
func BackdropElementID(id int) string { return fmt.Sprintf("m%d", id) }
func ButtonElementID(k ButtonKey) string {
	return fmt.Sprintf("b%d_%d", k.Page, k.Index)
}
func LayerElementID(k ButtonKey, n int) string {
	return fmt.Sprintf("b%d_%d_%d", k.Page, k.Index, n)
}
func TextElementID(k ButtonKey, n int) string  { return LayerElementID(k, n) + "_txt" }
func IconElementID(k ButtonKey, n int) string  { return LayerElementID(k, n) + "_ico" }
func ImageElementID(k ButtonKey, n int) string { return LayerElementID(k, n) + "_img" }
func BarElementID(k ButtonKey, n int) string   { return LayerElementID(k, n) + "_bar" }
