package display

import (
	"fmt"
	"strings"

	"github.com/amxpanel/amxpanel/internal/model"
)

// EffectName is the keyframes name used for a page's show effect.
func EffectName(def *model.PageDefinition) string {
	return fmt.Sprintf("show_p%d", def.ID)
}

// EnsureEffect injects the keyframes for def's show effect once per page
// name and returns the CSS animation value to apply, or "" when the page
// has no effect.
func (e *Engine) EnsureEffect(def *model.PageDefinition) string {
	if def.Effect.Kind == model.EffectNone {
		return ""
	}
	css := Keyframes(def)
	if css == "" {
		return ""
	}
	e.doc.AddCSS("effect:"+def.Name, css)
	dur := def.Effect.Duration
	if dur <= 0 {
		dur = 5
	}
	return fmt.Sprintf("%s %d.%ds ease-out", EffectName(def), dur/10, dur%10)
}

// Keyframes builds the @keyframes block for def's effect from its geometry.
func Keyframes(def *model.PageDefinition) string {
	b := def.Box
	var from, to []string
	fade := false

	switch def.Effect.Kind {
	case model.EffectFade:
		fade = true
	case model.EffectSlideLeft, model.EffectSlideLeftFade:
		from = append(from, fmt.Sprintf("left:%dpx", -b.Width))
		to = append(to, fmt.Sprintf("left:%dpx", b.Left))
	case model.EffectSlideRight, model.EffectSlideRightFade:
		from = append(from, fmt.Sprintf("left:%dpx", b.Left+2*b.Width))
		to = append(to, fmt.Sprintf("left:%dpx", b.Left))
	case model.EffectSlideTop, model.EffectSlideTopFade:
		from = append(from, fmt.Sprintf("top:%dpx", -b.Height))
		to = append(to, fmt.Sprintf("top:%dpx", b.Top))
	case model.EffectSlideBottom, model.EffectSlideBottomFade:
		from = append(from, fmt.Sprintf("top:%dpx", b.Top+2*b.Height))
		to = append(to, fmt.Sprintf("top:%dpx", b.Top))
	default:
		return ""
	}
	switch def.Effect.Kind {
	case model.EffectSlideLeftFade, model.EffectSlideRightFade,
		model.EffectSlideTopFade, model.EffectSlideBottomFade:
		fade = true
	}
	if fade {
		from = append(from, "opacity:0")
		to = append(to, "opacity:1")
	}
	return fmt.Sprintf("@keyframes %s{from{%s;}to{%s;}}",
		EffectName(def), strings.Join(from, ";"), strings.Join(to, ";"))
}
