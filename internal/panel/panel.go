// Package panel owns the runtime state of a touch panel: which page is
// current, which popups are active and where they are linked, popup groups,
// the z-index counter, auto-hide timers and per-button runtime state. Its
// methods are the imperative API the dispatcher and router drive.
//
// A Panel is not safe for concurrent use. The session loop owns it, and
// timers fire back into that loop through the Scheduler.
package panel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/amxpanel/amxpanel/internal/display"
	"github.com/amxpanel/amxpanel/internal/model"
	"github.com/amxpanel/amxpanel/internal/observability"
)

var (
	ErrUnknownPopup = errors.New("unknown popup")
	ErrUnknownPage  = errors.New("unknown page")
)

// PopupState is the runtime state of one popup. Shown is the single
// authoritative display flag; the document's display style is derived
// from it.
type PopupState struct {
	Active     bool   `json:"active"`
	LinkedPage string `json:"linked_page,omitempty"`
	Group      string `json:"group,omitempty"`
	Modal      bool   `json:"modal,omitempty"`
	Z          int    `json:"z,omitempty"`
	Shown      bool   `json:"shown"`
	seq        uint64
}

// Panel is the mutable half of the page registry.
type Panel struct {
	project *model.Project
	idx     *model.Index
	eng     *display.Engine
	log     *observability.Logger
	metrics *observability.MetricsCollector

	popups  map[string]*PopupState
	groups  *Groups
	z       ZCounter
	current string
	seq     uint64
	timers  *timers

	selections map[model.Address]display.Selection
	overrides  map[display.ButtonKey]*display.Overrides
}

// New creates a panel over project p drawing through eng. The engine's
// state source is set to the new panel.
func New(p *model.Project, idx *model.Index, eng *display.Engine, log *observability.Logger) *Panel {
	if log == nil {
		log = observability.Discard()
	}
	pn := &Panel{
		project: p,
		idx:     idx,
		eng:     eng,
		log:     log,
		timers:  newTimers(LoopScheduler{}),
	}
	eng.SetStateSource(pn)
	pn.init()
	return pn
}

// SetScheduler replaces the timer scheduler. Pending timers are cancelled.
func (p *Panel) SetScheduler(s Scheduler) {
	p.timers.cancelAll()
	p.timers = newTimers(s)
}

// SetMetrics enables z-index metrics.
func (p *Panel) SetMetrics(m *observability.MetricsCollector) { p.metrics = m }

// Index returns the definitions the panel was built from.
func (p *Panel) Index() *model.Index { return p.idx }

// Engine returns the display engine.
func (p *Panel) Engine() *display.Engine { return p.eng }

// Groups returns the popup group table.
func (p *Panel) Groups() *Groups { return p.groups }

func (p *Panel) init() {
	p.popups = make(map[string]*PopupState)
	p.groups = NewGroups()
	p.z = ZCounter{}
	p.current = ""
	p.seq = 0
	p.selections = make(map[model.Address]display.Selection)
	p.overrides = make(map[display.ButtonKey]*display.Overrides)

	for _, def := range p.idx.Popups() {
		p.popups[def.Name] = &PopupState{Modal: def.Modal}
		if def.Group != "" {
			p.AddToGroup(def.Group, def.Name)
		}
	}
	names := make([]string, 0, len(p.project.Groups))
	for name := range p.project.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, m := range p.project.Groups[name] {
			p.AddToGroup(name, m)
		}
	}
}

// Reset drops everything drawn and returns all runtime state to its
// session-start values.
func (p *Panel) Reset() {
	p.timers.cancelAll()
	p.eng.Reset()
	p.init()
	p.recordZ()
	p.log.Info("panel reset")
}

// CurrentPage returns the name of the page on screen, or "".
func (p *Panel) CurrentPage() string { return p.current }

// ZIndex returns the z counter value.
func (p *Panel) ZIndex() int { return p.z.Value() }

func (p *Panel) popup(name string) (*PopupState, *model.PageDefinition, error) {
	st, ok := p.popups[name]
	if !ok {
		p.log.Warn("unknown popup", "popup", name)
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownPopup, name)
	}
	def, _ := p.idx.ByName(name)
	return st, def, nil
}

// AddToGroup puts a popup into group.
func (p *Panel) AddToGroup(group, popup string) error {
	st, ok := p.popups[popup]
	if !ok {
		p.log.Warn("unknown popup", "popup", popup, "group", group)
		return fmt.Errorf("%w: %q", ErrUnknownPopup, popup)
	}
	if prev := p.groups.GroupOf(popup); prev != "" && prev != group {
		p.log.Debug("popup moved between groups", "popup", popup, "from", prev, "to", group)
	}
	p.groups.Add(group, popup)
	st.Group = group
	return nil
}

// ClearGroup empties group.
func (p *Panel) ClearGroup(group string) {
	for _, m := range p.groups.Members(group) {
		if st, ok := p.popups[m]; ok {
			st.Group = ""
		}
	}
	p.groups.Clear(group)
}

// ShowPopup activates popup name linked to page. An empty page means the
// current page. Other popups of its group are hidden first. The popup is
// displayed with a fresh z-index only when page is on screen; otherwise it
// is taken off screen and waits for ShowPage.
func (p *Panel) ShowPopup(ctx context.Context, name, page string) error {
	st, def, err := p.popup(name)
	if err != nil {
		return err
	}
	if page == "" {
		page = p.current
	}
	if g := p.groups.GroupOf(name); g != "" {
		p.hideGroupExcept(g, name)
	}
	st.Active = true
	st.LinkedPage = page
	p.seq++
	st.seq = p.seq

	if page != "" && page == p.current {
		if err := p.display(ctx, def, st); err != nil {
			return err
		}
	} else {
		p.undisplay(def, st)
	}
	if def.Timeout > 0 {
		p.timers.schedule(name, time.Duration(def.Timeout)*100*time.Millisecond, func() {
			p.log.PopupEvent("timeout", name)
			p.HidePopup(name, "")
		})
	}
	p.log.PopupEvent("show", name, "page", page, "z", st.Z, "shown", st.Shown)
	return nil
}

// HidePopup deactivates popup name. A non-empty page that is not the
// popup's linked page makes it a no-op. Hiding twice is harmless.
func (p *Panel) HidePopup(name, page string) error {
	st, def, err := p.popup(name)
	if err != nil {
		return err
	}
	if page != "" && page != st.LinkedPage {
		return nil
	}
	p.deactivate(def, st)
	p.log.PopupEvent("hide", name, "page", page)
	return nil
}

// TogglePopup hides name if it is shown and shows it otherwise.
func (p *Panel) TogglePopup(ctx context.Context, name, page string) error {
	st, _, err := p.popup(name)
	if err != nil {
		return err
	}
	if st.Shown {
		return p.HidePopup(name, page)
	}
	return p.ShowPopup(ctx, name, page)
}

// HideGroup hides every member of group. An empty name is a no-op.
func (p *Panel) HideGroup(group string) {
	if group == "" {
		return
	}
	p.hideGroupExcept(group, "")
}

func (p *Panel) hideGroupExcept(group, except string) {
	for _, m := range p.groups.Members(group) {
		if m == except {
			continue
		}
		st, def, err := p.popup(m)
		if err != nil {
			continue
		}
		p.deactivate(def, st)
	}
}

// ClosePopupOrGroup hides the group called name when it has members, and
// the single popup called name otherwise.
func (p *Panel) ClosePopupOrGroup(name string) error {
	if len(p.groups.Members(name)) > 0 {
		p.HideGroup(name)
		return nil
	}
	return p.HidePopup(name, "")
}

// HideAllPopups hides every popup in the registry.
func (p *Panel) HideAllPopups() {
	for _, def := range p.idx.Popups() {
		p.deactivate(def, p.popups[def.Name])
	}
	p.log.PopupEvent("hide_all", "", "z", p.z.Value())
}

// HidePopupsOnPage hides every popup linked to page, or to the current
// page when page is empty.
func (p *Panel) HidePopupsOnPage(page string) {
	if page == "" {
		page = p.current
	}
	for _, def := range p.idx.Popups() {
		if st := p.popups[def.Name]; st.LinkedPage == page {
			p.deactivate(def, st)
		}
	}
}

// ShowPage makes name the current page. The previous page is hidden, and
// popups are re-evaluated: active ones linked to name are displayed with
// fresh z-indexes in the order they were shown, displayed ones linked
// elsewhere are deactivated.
func (p *Panel) ShowPage(ctx context.Context, name string) error {
	def, ok := p.idx.ByName(name)
	if !ok || def.IsPopup() {
		p.log.Warn("unknown page", "page", name)
		return fmt.Errorf("%w: %q", ErrUnknownPage, name)
	}
	if p.current != "" && p.current != name {
		if cur, ok := p.idx.ByName(p.current); ok {
			p.eng.Hide(cur.ID)
		}
	}
	if err := p.eng.Draw(ctx, def); err != nil {
		return err
	}
	if err := p.eng.Show(def.ID, 0); err != nil {
		return err
	}
	p.current = name

	var relink []*model.PageDefinition
	for _, pd := range p.idx.Popups() {
		st := p.popups[pd.Name]
		switch {
		case st.Active && st.LinkedPage == name:
			relink = append(relink, pd)
		case st.Shown:
			p.deactivate(pd, st)
		}
	}
	sort.SliceStable(relink, func(i, j int) bool {
		return p.popups[relink[i].Name].seq < p.popups[relink[j].Name].seq
	})
	for _, pd := range relink {
		if err := p.display(ctx, pd, p.popups[pd.Name]); err != nil {
			p.log.Error("popup display failed", "popup", pd.Name, "error", err)
		}
	}
	p.log.Info("page shown", "page", name, "popups", len(relink))
	return nil
}

// HidePage turns the page's display off.
func (p *Panel) HidePage(name string) error {
	def, ok := p.idx.ByName(name)
	if !ok || def.IsPopup() {
		return fmt.Errorf("%w: %q", ErrUnknownPage, name)
	}
	if p.eng.State(def.ID).IsLive() {
		return p.eng.Hide(def.ID)
	}
	return nil
}

// Drop removes a page or popup from the document. A popup is deactivated
// first so its z-index is released.
func (p *Panel) Drop(name string) error {
	def, ok := p.idx.ByName(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPage, name)
	}
	if st, ok := p.popups[name]; ok {
		p.deactivate(def, st)
	} else if p.current == name {
		p.current = ""
	}
	if !p.eng.State(def.ID).IsLive() {
		return nil
	}
	return p.eng.Drop(def.ID)
}

// display draws and shows def with a freshly allocated z-index.
func (p *Panel) display(ctx context.Context, def *model.PageDefinition, st *PopupState) error {
	if err := p.eng.Draw(ctx, def); err != nil {
		return fmt.Errorf("display %s: %w", def.Name, err)
	}
	if st.Z > 0 {
		p.z.Release()
	}
	st.Z = p.z.Alloc()
	if err := p.eng.Show(def.ID, st.Z); err != nil {
		return err
	}
	st.Shown = true
	p.recordZ()
	return nil
}

// undisplay turns display off and releases a held z-index. The activation
// is kept.
func (p *Panel) undisplay(def *model.PageDefinition, st *PopupState) {
	if st.Shown && p.eng.State(def.ID).IsLive() {
		p.eng.Hide(def.ID)
	}
	st.Shown = false
	if st.Z > 0 {
		p.z.Release()
		st.Z = 0
		p.recordZ()
	}
}

// deactivate turns display off, releases a held z-index and clears the
// activation and its timer.
func (p *Panel) deactivate(def *model.PageDefinition, st *PopupState) {
	p.undisplay(def, st)
	st.Active = false
	st.LinkedPage = ""
	p.timers.cancel(def.Name)
}

func (p *Panel) recordZ() {
	if p.metrics != nil {
		p.metrics.Record(observability.MetricZIndex, float64(p.z.Value()), nil)
	}
}

// PopupStatus returns a copy of the named popup's state.
func (p *Panel) PopupStatus(name string) (PopupState, error) {
	st, ok := p.popups[name]
	if !ok {
		return PopupState{}, fmt.Errorf("%w: %q", ErrUnknownPopup, name)
	}
	return *st, nil
}

// TimerPending reports whether popup name has an auto-hide scheduled.
func (p *Panel) TimerPending(name string) bool { return p.timers.pending(name) }

// PopupView is one popup in a Snapshot.
type PopupView struct {
	Name string `json:"name"`
	PopupState
}

// Snapshot is the panel state served by the API.
type Snapshot struct {
	CurrentPage string              `json:"current_page"`
	ZIndex      int                 `json:"z_index"`
	Popups      []PopupView         `json:"popups"`
	Groups      map[string][]string `json:"groups"`
}

// Snapshot captures the current state.
func (p *Panel) Snapshot() Snapshot {
	s := Snapshot{
		CurrentPage: p.current,
		ZIndex:      p.z.Value(),
		Groups:      p.groups.Map(),
	}
	for _, def := range p.idx.Popups() {
		s.Popups = append(s.Popups, PopupView{Name: def.Name, PopupState: *p.popups[def.Name]})
	}
	return s
}
