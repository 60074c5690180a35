// Package compositor renders chameleon images and bargraphs.
//
// A chameleon image is tinted at runtime from two masks: the red channel of
// the color mask weights the fill color, the green channel weights the
// border color, and the alpha mask supplies transparency.
package compositor

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

var ErrBadColor = errors.New("bad color")

// ImageSource loads a mask image by URL.
type ImageSource interface {
	Fetch(ctx context.Context, url string) (image.Image, error)
}

// Service composites images fetched through an ImageSource.
type Service struct {
	Source ImageSource
}

// New returns a compositor backed by src.
func New(src ImageSource) *Service {
	return &Service{Source: src}
}

// ChameleonRequest describes one chameleon draw.
type ChameleonRequest struct {
	Mask      string // red/green mask URL
	AlphaMask string // optional alpha mask URL
	Width     int
	Height    int
	Fill      string
	Border    string
}

// DrawChameleon fetches the masks and returns the tinted image as a PNG
// data URI. A missing alpha mask falls back to the color mask's alpha.
func (s *Service) DrawChameleon(ctx context.Context, req ChameleonRequest) (string, error) {
	fill, err := ParseColor(req.Fill)
	if err != nil {
		return "", err
	}
	border, err := ParseColor(req.Border)
	if err != nil {
		return "", err
	}
	mask, err := s.Source.Fetch(ctx, req.Mask)
	if err != nil {
		return "", fmt.Errorf("chameleon mask: %w", err)
	}
	var alpha image.Image
	if req.AlphaMask != "" {
		alpha, err = s.Source.Fetch(ctx, req.AlphaMask)
		if err != nil {
			return "", fmt.Errorf("chameleon alpha mask: %w", err)
		}
	}
	img := Chameleon(mask, alpha, req.Width, req.Height, fill, border)
	return DataURI(img)
}

// Chameleon tints mask with fill and border at width x height. Masks of a
// different size are resized first.
func Chameleon(mask, alpha image.Image, width, height int, fill, border color.NRGBA) *image.NRGBA {
	if width <= 0 || height <= 0 {
		b := mask.Bounds()
		width, height = b.Dx(), b.Dy()
	}
	m := fit(mask, width, height)
	a := m
	if alpha != nil {
		a = fit(alpha, width, height)
	}

	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := m.PixOffset(x, y)
			rw := float64(m.Pix[i]) / 255
			gw := float64(m.Pix[i+1]) / 255
			av := float64(a.Pix[a.PixOffset(x, y)+3]) / 255

			o := out.PixOffset(x, y)
			out.Pix[o] = clamp(rw*float64(fill.R) + gw*float64(border.R))
			out.Pix[o+1] = clamp(rw*float64(fill.G) + gw*float64(border.G))
			out.Pix[o+2] = clamp(rw*float64(fill.B) + gw*float64(border.B))
			out.Pix[o+3] = clamp(av * (rw*float64(fill.A) + gw*float64(border.A)) / maxf(rw+gw, 1))
		}
	}
	return out
}

// BargraphRequest describes a level bar.
type BargraphRequest struct {
	Width      int
	Height     int
	Fill       string
	Background string
	Level      int
	Low        int
	High       int
	Vertical   bool
}

// DrawBargraph renders a bar filled in proportion to Level within
// [Low, High] and returns it as a PNG data URI.
func (s *Service) DrawBargraph(req BargraphRequest) (string, error) {
	fill, err := ParseColor(req.Fill)
	if err != nil {
		return "", err
	}
	bg, err := ParseColor(req.Background)
	if err != nil {
		return "", err
	}
	return DataURI(Bargraph(req.Width, req.Height, fill, bg, req.Level, req.Low, req.High, req.Vertical))
}

// Bargraph fills the bottom (vertical) or left (horizontal) part of the
// area according to level.
func Bargraph(width, height int, fill, bg color.NRGBA, level, low, high int, vertical bool) *image.NRGBA {
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	out := imaging.New(width, height, bg)
	if high <= low {
		return out
	}
	if level < low {
		level = low
	}
	if level > high {
		level = high
	}
	frac := float64(level-low) / float64(high-low)

	if vertical {
		h := int(frac * float64(height))
		if h == 0 {
			return out
		}
		return imaging.Paste(out, imaging.New(width, h, fill), image.Pt(0, height-h))
	}
	w := int(frac * float64(width))
	if w == 0 {
		return out
	}
	return imaging.Paste(out, imaging.New(w, height, fill), image.Pt(0, 0))
}

// DataURI encodes img as a PNG data URI.
func DataURI(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ParseColor accepts #RRGGBB and #RRGGBBAA.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 && len(s) != 8 {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	if len(s) == 6 {
		return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func fit(img image.Image, w, h int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

func clamp(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
