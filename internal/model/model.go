// Package model holds the declarative page, popup and button definitions a
// panel project is made of. Definitions are immutable once loaded; runtime
// state lives in package panel.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind distinguishes full pages from popups (subpages).
type Kind string

const (
	KindPage  Kind = "page"
	KindPopup Kind = "popup"
)

// FeedbackMode controls how a button's states follow press and channel
// feedback.
type FeedbackMode int

const (
	FeedbackNone FeedbackMode = iota
	FeedbackChannel
	FeedbackInverted
	FeedbackAlwaysOn
	FeedbackMomentary
	FeedbackBlink
)

var feedbackNames = map[FeedbackMode]string{
	FeedbackNone:      "none",
	FeedbackChannel:   "channel",
	FeedbackInverted:  "inverted",
	FeedbackAlwaysOn:  "always-on",
	FeedbackMomentary: "momentary",
	FeedbackBlink:     "blink",
}

func (f FeedbackMode) String() string {
	if s, ok := feedbackNames[f]; ok {
		return s
	}
	return fmt.Sprintf("feedback(%d)", int(f))
}

// MarshalJSON encodes the mode by name.
func (f FeedbackMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON accepts the mode name or its number.
func (f *FeedbackMode) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FeedbackMode(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("feedback: %w", err)
	}
	for mode, name := range feedbackNames {
		if strings.EqualFold(name, s) {
			*f = mode
			return nil
		}
	}
	return fmt.Errorf("feedback: unknown mode %q", s)
}

// DefaultState is the 1-based state record shown when no runtime state
// drives the button.
func (f FeedbackMode) DefaultState() int {
	if f == FeedbackInverted || f == FeedbackAlwaysOn {
		return 2
	}
	return 1
}

// Orientation positions text or an icon inside a button, numbered like a
// keypad: 1 top-left through 9 bottom-right, 0 absolute.
type Orientation int

const (
	OrientAbsolute Orientation = iota
	OrientTopLeft
	OrientTopMiddle
	OrientTopRight
	OrientCenterLeft
	OrientCenterMiddle
	OrientCenterRight
	OrientBottomLeft
	OrientBottomMiddle
	OrientBottomRight
)

// EffectKind is the animation used when a page or popup is shown.
type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectFade
	EffectSlideLeft
	EffectSlideRight
	EffectSlideTop
	EffectSlideBottom
	EffectSlideLeftFade
	EffectSlideRightFade
	EffectSlideTopFade
	EffectSlideBottomFade
)

// ShowEffect is the show animation and its duration in deciseconds.
type ShowEffect struct {
	Kind     EffectKind `json:"kind"`
	Duration int        `json:"duration"`
}

// Box is an absolute rectangle in panel pixels.
type Box struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Background styles a page or popup.
type Background struct {
	Color     string `json:"color,omitempty"`
	Image     string `json:"image,omitempty"`
	Mask      string `json:"mask,omitempty"`       // chameleon red/green mask
	AlphaMask string `json:"alpha_mask,omitempty"` // chameleon alpha mask
	Border    string `json:"border,omitempty"`     // second chameleon color
}

// Bargraph is the level range a state record renders.
type Bargraph struct {
	Low  int  `json:"low"`
	High int  `json:"high"`
	Vert bool `json:"vertical,omitempty"`
}

// StateRecord is one visual state of a button.
type StateRecord struct {
	Color       string      `json:"color,omitempty"`
	BorderColor string      `json:"border_color,omitempty"`
	BorderWidth int         `json:"border_width,omitempty"`
	TextColor   string      `json:"text_color,omitempty"`
	Text        string      `json:"text,omitempty"`
	TextOrient  Orientation `json:"text_orientation,omitempty"`
	TextX       int         `json:"text_x,omitempty"`
	TextY       int         `json:"text_y,omitempty"`
	Font        string      `json:"font,omitempty"`
	Icon        int         `json:"icon,omitempty"`
	IconOrient  Orientation `json:"icon_orientation,omitempty"`
	Image       string      `json:"image,omitempty"`
	Mask        string      `json:"mask,omitempty"`
	AlphaMask   string      `json:"alpha_mask,omitempty"`
	Bargraph    *Bargraph   `json:"bargraph,omitempty"`
}

// FlipAction is what a page-flip binding does on release.
type FlipAction string

const (
	FlipPage        FlipAction = "page"
	FlipShowPopup   FlipAction = "show"
	FlipHidePopup   FlipAction = "hide"
	FlipTogglePopup FlipAction = "toggle"
	FlipCloseGroup  FlipAction = "close_group"
)

// PageFlip binds a button release to a page or popup operation.
type PageFlip struct {
	Action FlipAction `json:"action"`
	Name   string     `json:"name"`
}

// ButtonDefinition describes one button on a page or popup.
type ButtonDefinition struct {
	Index     int           `json:"index"`
	Name      string        `json:"name,omitempty"`
	Port      int           `json:"cp"`
	Channel   int           `json:"ch"`
	LevelPort int           `json:"lp,omitempty"`
	Level     int           `json:"lv,omitempty"`
	Box       Box           `json:"box"`
	Feedback  FeedbackMode  `json:"feedback"`
	States    []StateRecord `json:"sr"`
	PageFlips []PageFlip    `json:"page_flips,omitempty"`
}

// HasChannel reports whether presses are sent to the controller.
func (b *ButtonDefinition) HasChannel() bool {
	return b.Channel > 0
}

// Address is the (port, channel) pair commands use to find buttons.
type Address struct {
	Port    int
	Channel int
}

// Address returns the button's command address.
func (b *ButtonDefinition) Address() Address {
	return Address{Port: b.Port, Channel: b.Channel}
}

// PageDefinition describes a page or a popup.
type PageDefinition struct {
	ID         int                `json:"id"`
	Name       string             `json:"name"`
	Kind       Kind               `json:"kind"`
	Box        Box                `json:"box"`
	Background Background         `json:"background"`
	Buttons    []ButtonDefinition `json:"buttons,omitempty"`
	Effect     ShowEffect         `json:"effect"`
	Timeout    int                `json:"timeout,omitempty"` // deciseconds
	Modal      bool               `json:"modal,omitempty"`
	Group      string             `json:"group,omitempty"`
}

// IsPopup reports whether the definition is a popup.
func (p *PageDefinition) IsPopup() bool {
	return p.Kind == KindPopup
}

// Icon is an entry of the project's icon table.
type Icon struct {
	File   string `json:"file"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}
