package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/amxpanel/amxpanel/internal/display"
	"github.com/amxpanel/amxpanel/internal/dom"
	"github.com/amxpanel/amxpanel/internal/model"
	"github.com/amxpanel/amxpanel/internal/observability"
	"github.com/amxpanel/amxpanel/internal/panel"
	"github.com/amxpanel/amxpanel/internal/resource"
)

func testProject() *model.Project {
	popup := func(id int, name string) model.PageDefinition {
		return model.PageDefinition{ID: id, Name: name, Kind: model.KindPopup}
	}
	return &model.Project{
		Pages: []model.PageDefinition{
			{
				ID:   1,
				Name: "Home",
				Kind: model.KindPage,
				Buttons: []model.ButtonDefinition{
					{Index: 1, Port: 1, Channel: 12, States: []model.StateRecord{{Text: "a"}, {Text: "b"}}},
					{Index: 2, Port: 1, Channel: 13, States: []model.StateRecord{{Image: "cam"}}},
					{Index: 3, Port: 2, Channel: 1, LevelPort: 2, Level: 1,
						States: []model.StateRecord{{Bargraph: &model.Bargraph{High: 100}}}},
				},
			},
			{ID: 2, Name: "Other", Kind: model.KindPage},
			popup(10, "Menu"),
			popup(11, "Info"),
			popup(12, "Help"),
		},
	}
}

type testEnv struct {
	d       *Dispatcher
	p       *panel.Panel
	res     *resource.Table
	ref     *resource.Refresher
	metrics *observability.MetricsCollector
}

func newTestDispatcher(t *testing.T) *testEnv {
	t.Helper()
	proj := testProject()
	if err := proj.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	idx := model.NewIndex(proj)
	eng := display.New(dom.NewDocument(), idx, nil)
	res := resource.NewTable()
	eng.SetResources(res)
	p := panel.New(proj, idx, eng, nil)
	m := observability.NewMetricsCollector(100)
	ref := resource.NewRefresher(nil)
	res.SetRefresher(ref)
	t.Cleanup(ref.StopAll)
	return &testEnv{
		d:       New(p, res, ref, m, observability.Discard()),
		p:       p,
		res:     res,
		ref:     ref,
		metrics: m,
	}
}

func (e *testEnv) send(t *testing.T, raw string) Result {
	t.Helper()
	return e.d.Dispatch(context.Background(), raw)
}

func TestDispatch_PopupFlow(t *testing.T) {
	e := newTestDispatcher(t)
	e.send(t, "1|PAGE-Home")
	if e.p.CurrentPage() != "Home" {
		t.Fatalf("current page = %q", e.p.CurrentPage())
	}
	e.send(t, "1|@PPN-Menu")
	e.send(t, "1|PPON-Info;Home")
	if e.p.ZIndex() != 2 {
		t.Fatalf("z = %d, want 2", e.p.ZIndex())
	}
	e.send(t, "1|@PPF-Info")
	if st, _ := e.p.PopupStatus("Info"); st.Active {
		t.Error("Info still active")
	}
	e.send(t, "1|@PPG-Info")
	if st, _ := e.p.PopupStatus("Info"); !st.Shown {
		t.Error("toggle did not show Info")
	}
}

func TestDispatch_PPXRestoresBaseline(t *testing.T) {
	e := newTestDispatcher(t)
	e.send(t, "PAGE-Home")
	base := e.p.ZIndex()
	e.send(t, "1|@PPN-Menu")
	e.send(t, "1|@PPN-Info")
	res := e.send(t, "1|@PPX")
	if res.Err != nil || res.Prefix != "@PPX" {
		t.Fatalf("result = %+v", res)
	}
	for _, name := range []string{"Menu", "Info"} {
		if st, _ := e.p.PopupStatus(name); st.Active {
			t.Errorf("%s still active", name)
		}
	}
	if e.p.ZIndex() != base {
		t.Errorf("z = %d, want %d", e.p.ZIndex(), base)
	}
}

func TestDispatch_Groups(t *testing.T) {
	e := newTestDispatcher(t)
	e.send(t, "PAGE-Home")
	e.send(t, "@APG-g;Menu")
	e.send(t, "@APG-g;Info")
	e.send(t, "@APG-g;Info")
	if got := e.p.Groups().Members("g"); strings.Join(got, ",") != "Menu,Info" {
		t.Errorf("members = %v", got)
	}
	e.send(t, "@PPN-Menu")
	e.send(t, "@PPN-Info")
	if st, _ := e.p.PopupStatus("Menu"); st.Active {
		t.Error("group exclusivity not enforced")
	}
	e.send(t, "@PPK-g")
	if st, _ := e.p.PopupStatus("Info"); st.Active {
		t.Error("PPK did not close group")
	}
	e.send(t, "@CPG-g")
	if len(e.p.Groups().Members("g")) != 0 {
		t.Error("CPG left members")
	}
	if res := e.send(t, "@APG-g"); !errors.Is(res.Err, ErrBadArgs) {
		t.Errorf("err = %v", res.Err)
	}
}

func TestDispatch_BATAllInstances(t *testing.T) {
	e := newTestDispatcher(t)
	e.send(t, "PAGE-Home")
	if res := e.send(t, "1|^BAT-12,0,Hello"); res.Err != nil {
		t.Fatalf("BAT: %v", res.Err)
	}
	key := display.ButtonKey{Page: 1, Index: 1}
	if e.p.Text(key, 1) != "aHello" || e.p.Text(key, 2) != "bHello" {
		t.Errorf("texts = %q %q", e.p.Text(key, 1), e.p.Text(key, 2))
	}
	e.send(t, "1|^TXT-12,2,x, y")
	if e.p.Text(key, 2) != "x, y" {
		t.Errorf("TXT text = %q", e.p.Text(key, 2))
	}
	e.send(t, "2|^BAT-12,0,nope")
	if e.p.Text(key, 1) != "aHello" {
		t.Error("BAT on another port touched the button")
	}
}

func TestDispatch_ButtonCommands(t *testing.T) {
	e := newTestDispatcher(t)
	e.send(t, "PAGE-Home")
	doc := e.p.Engine().Document()

	e.send(t, "1|^BMP-12&13,1,pic.png")
	if src, _ := doc.Attr("b1_1_1_img", "src"); src != "images/pic.png" {
		t.Errorf("BMP src = %q", src)
	}
	e.send(t, "1|^BSP-12,10,10,60,30")
	if w, _ := doc.Style("b1_1", "width"); w != "50px" {
		t.Errorf("BSP width = %q", w)
	}
	e.send(t, "1|^SHO-12,0")
	if d, _ := doc.Style("b1_1", "display"); d != "none" {
		t.Errorf("SHO display = %q", d)
	}
	e.send(t, "1|^ENA-12,1")
	if d, _ := doc.Style("b1_1", "display"); d != "" {
		t.Errorf("ENA display = %q", d)
	}
	if res := e.send(t, "1|^ENA-12,maybe"); !errors.Is(res.Err, ErrBadArgs) {
		t.Errorf("ENA bad flag err = %v", res.Err)
	}
	e.send(t, "1|^CPF-12")
	if !e.p.FlipsCleared(display.ButtonKey{Page: 1, Index: 1}) {
		t.Error("CPF not applied")
	}
	if res := e.send(t, "1|^BSP-12,a,1,2,3"); !errors.Is(res.Err, ErrBadArgs) {
		t.Errorf("BSP bad geometry err = %v", res.Err)
	}
}

func TestDispatch_ChannelAndLevel(t *testing.T) {
	e := newTestDispatcher(t)
	e.send(t, "PAGE-Home")
	e.send(t, "1|ON-12")
	sel, ok := e.p.Selection(model.Address{Port: 1, Channel: 12})
	if !ok || sel.Ion != 2 {
		t.Errorf("ON selection = %+v, %v", sel, ok)
	}
	e.send(t, "OFF-1,12")
	if sel, _ := e.p.Selection(model.Address{Port: 1, Channel: 12}); sel.Ion != 1 {
		t.Errorf("OFF selection = %+v", sel)
	}
	e.send(t, "LEVEL-2,1,42")
	if ov := e.p.Overrides(display.ButtonKey{Page: 1, Index: 3}); ov == nil || ov.Level != 42 {
		t.Error("LEVEL not stored")
	}
}

func TestDispatch_Resources(t *testing.T) {
	e := newTestDispatcher(t)
	e.send(t, "^RAF-cam,%P0%Hcam.local%Asnap%Fimg.jpg")
	r, ok := e.res.Find("cam")
	if !ok || r.Host != "cam.local" || r.Protocol != "http" {
		t.Fatalf("resource = %+v, %v", r, ok)
	}
	e.send(t, "^RAF-cam,%Hother")
	if r, _ := e.res.Find("cam"); r.Host != "cam.local" {
		t.Error("second RAF replaced the resource")
	}
	e.send(t, "^RMF-cam,%Fnew.jpg")
	if r, _ := e.res.Find("cam"); r.File != "new.jpg" || r.Host != "cam.local" {
		t.Errorf("RMF merge = %+v", r)
	}

	if res := e.send(t, "^RFR-cam"); res.Err == nil {
		t.Error("RFR with nothing drawn should fail")
	}
	e.send(t, "PAGE-Home")
	if res := e.send(t, "^RFR-cam"); res.Err != nil {
		t.Fatalf("RFR: %v", res.Err)
	}
	src, _ := e.p.Engine().Document().Attr("b1_2_1_img", "src")
	if src != "http://cam.local/snap/new.jpg?r=2" {
		t.Errorf("src = %q", src)
	}
	if res := e.send(t, "^RFR-ghost"); !errors.Is(res.Err, resource.ErrResourceNotFound) {
		t.Errorf("err = %v", res.Err)
	}
}

func TestDispatch_RemoveResourceStopsRefresh(t *testing.T) {
	e := newTestDispatcher(t)
	e.send(t, "PAGE-Home")
	e.send(t, "^RAF-cam,%Hcam.local%Fimg.jpg%R60")
	if res := e.send(t, "^RFR-cam"); res.Err != nil {
		t.Fatalf("RFR: %v", res.Err)
	}
	if !e.ref.Active("cam") {
		t.Fatal("periodic refresh not scheduled")
	}
	if res := e.send(t, "^RDF-cam"); res.Err != nil {
		t.Fatalf("RDF: %v", res.Err)
	}
	if _, ok := e.res.Find("cam"); ok {
		t.Error("resource still present")
	}
	if e.ref.Active("cam") {
		t.Error("refresh still scheduled after removal")
	}
	if res := e.send(t, "^RDF-cam"); !errors.Is(res.Err, resource.ErrResourceNotFound) {
		t.Errorf("second RDF err = %v", res.Err)
	}
}

func TestDispatch_UnsupportedAndUnknown(t *testing.T) {
	e := newTestDispatcher(t)
	res := e.send(t, "1|^ANI-12,1,2,0")
	if !errors.Is(res.Err, ErrUnsupported) || res.Position < 0 {
		t.Errorf("ANI result = %+v", res)
	}
	res = e.send(t, "1|?XYZ-1")
	if !errors.Is(res.Err, ErrUnsupported) || res.Position != -1 {
		t.Errorf("unknown result = %+v", res)
	}
	if e.metrics.Counter(observability.CounterUnsupported) != 2 {
		t.Errorf("unsupported = %d", e.metrics.Counter(observability.CounterUnsupported))
	}
	if e.metrics.Counter(observability.CounterHandlerErrs) != 0 {
		t.Error("unsupported counted as handler error")
	}
}

func TestDispatch_RecoversFromPanic(t *testing.T) {
	e := newTestDispatcher(t)
	e.d.Register("!BOOM", func(context.Context, int, string) error {
		panic("kaboom")
	})
	res := e.send(t, "!BOOM")
	if !errors.Is(res.Err, ErrPanic) || !strings.Contains(res.Err.Error(), "kaboom") {
		t.Fatalf("err = %v", res.Err)
	}
	e.send(t, "PAGE-Home")
	if e.p.CurrentPage() != "Home" {
		t.Error("dispatcher unusable after panic")
	}
	if e.metrics.Counter(observability.CounterHandlerErrs) != 1 {
		t.Errorf("handler errors = %d", e.metrics.Counter(observability.CounterHandlerErrs))
	}
}

func TestDispatch_UnknownPopupCounted(t *testing.T) {
	e := newTestDispatcher(t)
	res := e.send(t, "@PPN-Ghost")
	if !errors.Is(res.Err, panel.ErrUnknownPopup) {
		t.Errorf("err = %v", res.Err)
	}
	if e.metrics.Counter(observability.CounterMessages) != 1 {
		t.Errorf("messages = %d", e.metrics.Counter(observability.CounterMessages))
	}
}

func TestDispatch_TableOrder(t *testing.T) {
	e := newTestDispatcher(t)
	pos := make(map[string]int)
	for i, p := range e.d.Prefixes() {
		pos[p] = i
	}
	if pos["PPON-"] > pos["ON-"] || pos["PPOF-"] > pos["OFF-"] {
		t.Error("channel feedback prefixes shadow popup prefixes")
	}
	if res := e.send(t, "1|^BAT-12,0,@PPN-Menu"); res.Prefix != "^BAT-" {
		t.Errorf("prefix = %q, want ^BAT-", res.Prefix)
	}
}
