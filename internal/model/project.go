package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

var (
	ErrDuplicateID       = errors.New("duplicate page id")
	ErrDuplicateName     = errors.New("duplicate page name")
	ErrMomentaryStates   = errors.New("momentary button needs exactly 2 state records")
	ErrNoStates          = errors.New("button has no state records")
	ErrUnknownPageKind   = errors.New("unknown page kind")
	ErrUnknownGroupPopup = errors.New("group member is not a popup")
)

// Project is everything a panel loads at start: pages, popups, popup groups
// and the icon table.
type Project struct {
	PanelID int                 `json:"panel_id,omitempty"`
	Start   string              `json:"start,omitempty"` // first page shown
	Pages   []PageDefinition    `json:"pages"`
	Groups  map[string][]string `json:"groups,omitempty"`
	Icons   map[int]Icon        `json:"icons,omitempty"`
}

// LoadProject decodes and validates a JSON project.
func LoadProject(r io.Reader) (*Project, error) {
	var p Project
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks identity uniqueness and button state counts. Popups named
// in Groups must exist as popups.
func (p *Project) Validate() error {
	ids := make(map[int]bool, len(p.Pages))
	names := make(map[string]Kind, len(p.Pages))
	for i := range p.Pages {
		pg := &p.Pages[i]
		if pg.Kind == "" {
			pg.Kind = KindPage
		}
		if pg.Kind != KindPage && pg.Kind != KindPopup {
			return fmt.Errorf("page %d: %w: %q", pg.ID, ErrUnknownPageKind, pg.Kind)
		}
		if ids[pg.ID] {
			return fmt.Errorf("page %d: %w", pg.ID, ErrDuplicateID)
		}
		if _, ok := names[pg.Name]; ok {
			return fmt.Errorf("page %q: %w", pg.Name, ErrDuplicateName)
		}
		ids[pg.ID] = true
		names[pg.Name] = pg.Kind

		for _, b := range pg.Buttons {
			if len(b.States) == 0 {
				return fmt.Errorf("page %q button %d: %w", pg.Name, b.Index, ErrNoStates)
			}
			if b.Feedback == FeedbackMomentary && len(b.States) != 2 {
				return fmt.Errorf("page %q button %d: %w", pg.Name, b.Index, ErrMomentaryStates)
			}
		}
	}
	for group, members := range p.Groups {
		for _, m := range members {
			if names[m] != KindPopup {
				return fmt.Errorf("group %q member %q: %w", group, m, ErrUnknownGroupPopup)
			}
		}
	}
	return nil
}

// Index gives direct lookup of definitions by ID and by name.
type Index struct {
	byID   map[int]*PageDefinition
	byName map[string]*PageDefinition
	icons  map[int]Icon
}

// NewIndex builds an index over a validated project.
func NewIndex(p *Project) *Index {
	idx := &Index{
		byID:   make(map[int]*PageDefinition, len(p.Pages)),
		byName: make(map[string]*PageDefinition, len(p.Pages)),
		icons:  p.Icons,
	}
	for i := range p.Pages {
		pg := &p.Pages[i]
		idx.byID[pg.ID] = pg
		idx.byName[pg.Name] = pg
	}
	return idx
}

// ByID returns the definition with the given ID.
func (x *Index) ByID(id int) (*PageDefinition, bool) {
	pg, ok := x.byID[id]
	return pg, ok
}

// ByName returns the definition with the given name.
func (x *Index) ByName(name string) (*PageDefinition, bool) {
	pg, ok := x.byName[name]
	return pg, ok
}

// Popups returns every popup ordered by ID.
func (x *Index) Popups() []*PageDefinition {
	return x.filter(KindPopup)
}

// Pages returns every page ordered by ID.
func (x *Index) Pages() []*PageDefinition {
	return x.filter(KindPage)
}

func (x *Index) filter(k Kind) []*PageDefinition {
	var out []*PageDefinition
	for _, pg := range x.byID {
		if pg.Kind == k {
			out = append(out, pg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// All returns every definition ordered by ID.
func (x *Index) All() []*PageDefinition {
	out := make([]*PageDefinition, 0, len(x.byID))
	for _, pg := range x.byID {
		out = append(out, pg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Icon looks up an icon by its numeric slot.
func (x *Index) Icon(n int) (Icon, bool) {
	ic, ok := x.icons[n]
	return ic, ok
}
