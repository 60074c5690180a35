package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/amxpanel/amxpanel/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testProject() *model.Project {
	return &model.Project{
		PanelID: 10001,
		Start:   "Main",
		Pages: []model.PageDefinition{
			{
				ID:   1,
				Name: "Main",
				Kind: model.KindPage,
				Buttons: []model.ButtonDefinition{
					{
						Index:   1,
						Name:    "Lights",
						Port:    1,
						Channel: 10,
						States:  []model.StateRecord{{Text: "Living room"}},
					},
				},
			},
			{ID: 2, Name: "Volume", Kind: model.KindPopup},
			{ID: 3, Name: "Transport", Kind: model.KindPopup},
		},
		Groups: map[string][]string{"av": {"Volume", "Transport"}},
	}
}

func TestNewSQLiteStore(t *testing.T) {
	s := newTestStore(t)
	if s == nil {
		t.Fatal("store is nil")
	}
}

func TestSQLiteStore_SaveLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "lobby", testProject()); err != nil {
		t.Fatal(err)
	}
	p, err := s.Load(ctx, "lobby")
	if err != nil {
		t.Fatal(err)
	}
	if p.PanelID != 10001 || p.Start != "Main" {
		t.Errorf("project = %+v", p)
	}
	if len(p.Pages) != 3 {
		t.Fatalf("pages = %d, want 3", len(p.Pages))
	}
	if p.Pages[0].Buttons[0].States[0].Text != "Living room" {
		t.Errorf("button text lost: %+v", p.Pages[0].Buttons[0])
	}
	if got := p.Groups["av"]; len(got) != 2 {
		t.Errorf("groups = %v", p.Groups)
	}
}

func TestSQLiteStore_Load_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Load(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_Save_Invalid(t *testing.T) {
	s := newTestStore(t)
	p := testProject()
	p.Pages = append(p.Pages, model.PageDefinition{ID: 1, Name: "Dup"})
	if err := s.Save(context.Background(), "bad", p); !errors.Is(err, model.ErrDuplicateID) {
		t.Errorf("err = %v, want ErrDuplicateID", err)
	}
	if err := s.Save(context.Background(), "", testProject()); err == nil {
		t.Error("empty name accepted")
	}
}

func TestSQLiteStore_Save_Replaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Save(ctx, "lobby", testProject())

	p := testProject()
	p.Pages = p.Pages[:1]
	p.Groups = nil
	if err := s.Save(ctx, "lobby", p); err != nil {
		t.Fatal(err)
	}
	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Pages != 1 || list[0].Popups != 0 {
		t.Errorf("list = %+v", list)
	}
	hits, _ := s.Search(ctx, "Volume", 10)
	if len(hits) != 0 {
		t.Errorf("stale page still indexed: %+v", hits)
	}
}

func TestSQLiteStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Save(ctx, "lobby", testProject())

	if err := s.Delete(ctx, "lobby"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(ctx, "lobby"); !errors.Is(err, ErrNotFound) {
		t.Errorf("load after delete: %v", err)
	}
	if err := s.Delete(ctx, "lobby"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestSQLiteStore_List(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Save(ctx, "b", testProject())
	s.Save(ctx, "a", testProject())

	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Name != "a" || list[1].Name != "b" {
		t.Fatalf("list = %+v", list)
	}
	if list[0].Pages != 1 || list[0].Popups != 2 {
		t.Errorf("counts = %d pages, %d popups", list[0].Pages, list[0].Popups)
	}
	if list[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestSQLiteStore_List_Empty(t *testing.T) {
	s := newTestStore(t)
	list, err := s.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("list = %+v", list)
	}
}

func TestSQLiteStore_Search(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Save(ctx, "lobby", testProject())

	hits, err := s.Search(ctx, "living", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Name != "Main" || hits[0].Project != "lobby" {
		t.Errorf("hits = %+v", hits)
	}

	hits, err = s.Search(ctx, "transport", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Kind != model.KindPopup {
		t.Errorf("hits = %+v", hits)
	}
}

func TestSQLiteStore_Search_Empty(t *testing.T) {
	s := newTestStore(t)
	hits, err := s.Search(context.Background(), "   ", 10)
	if err != nil {
		t.Fatal(err)
	}
	if hits != nil {
		t.Errorf("hits = %+v", hits)
	}
}

func TestSQLiteStore_Search_Operators(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.Save(ctx, "lobby", testProject())
	if _, err := s.Search(ctx, `AND "OR NEAR(`, 10); err != nil {
		t.Errorf("operator input not quoted: %v", err)
	}
}

func TestSQLiteStore_ImplementsStore(t *testing.T) {
	var _ Store = (*SQLiteStore)(nil)
}
