package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const sampleProject = `{
  "panel_id": 10001,
  "start": "Home",
  "pages": [
    {"id": 1, "name": "Home", "kind": "page", "box": {"width": 800, "height": 480}},
    {"id": 500, "name": "Lights", "kind": "popup", "box": {"left": 10, "top": 10, "width": 200, "height": 100},
     "buttons": [
       {"index": 1, "cp": 1, "ch": 12, "feedback": "momentary", "box": {"width": 50, "height": 20},
        "sr": [{"text": "Off"}, {"text": "On"}]}
     ]}
  ],
  "groups": {"menu": ["Lights"]},
  "icons": {"3": {"file": "icon3.png", "width": 16, "height": 16}}
}`

func TestLoadProject(t *testing.T) {
	p, err := LoadProject(strings.NewReader(sampleProject))
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}
	if len(p.Pages) != 2 {
		t.Fatalf("pages = %d", len(p.Pages))
	}
	if p.Pages[1].Buttons[0].Feedback != FeedbackMomentary {
		t.Errorf("feedback = %v", p.Pages[1].Buttons[0].Feedback)
	}

	idx := NewIndex(p)
	if pg, ok := idx.ByName("Lights"); !ok || pg.ID != 500 {
		t.Errorf("ByName(Lights) = %+v, %v", pg, ok)
	}
	if pg, ok := idx.ByID(1); !ok || pg.Name != "Home" {
		t.Errorf("ByID(1) = %+v, %v", pg, ok)
	}
	if ic, ok := idx.Icon(3); !ok || ic.File != "icon3.png" {
		t.Errorf("Icon(3) = %+v, %v", ic, ok)
	}
	if len(idx.Popups()) != 1 || len(idx.Pages()) != 1 {
		t.Errorf("Popups=%d Pages=%d", len(idx.Popups()), len(idx.Pages()))
	}
}

func TestValidate_MomentaryNeedsTwoStates(t *testing.T) {
	p := &Project{Pages: []PageDefinition{{
		ID: 1, Name: "P",
		Buttons: []ButtonDefinition{{Index: 1, Feedback: FeedbackMomentary, States: []StateRecord{{}}}},
	}}}
	if err := p.Validate(); !errors.Is(err, ErrMomentaryStates) {
		t.Errorf("err = %v, want ErrMomentaryStates", err)
	}
}

func TestValidate_Duplicates(t *testing.T) {
	p := &Project{Pages: []PageDefinition{{ID: 1, Name: "A"}, {ID: 1, Name: "B"}}}
	if err := p.Validate(); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("err = %v, want ErrDuplicateID", err)
	}
	p = &Project{Pages: []PageDefinition{{ID: 1, Name: "A"}, {ID: 2, Name: "A"}}}
	if err := p.Validate(); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("err = %v, want ErrDuplicateName", err)
	}
}

func TestValidate_GroupMemberMustBePopup(t *testing.T) {
	p := &Project{
		Pages:  []PageDefinition{{ID: 1, Name: "Home", Kind: KindPage}},
		Groups: map[string][]string{"g": {"Home"}},
	}
	if err := p.Validate(); !errors.Is(err, ErrUnknownGroupPopup) {
		t.Errorf("err = %v", err)
	}
}

func TestValidate_DefaultsKind(t *testing.T) {
	p := &Project{Pages: []PageDefinition{{ID: 1, Name: "A"}}}
	if err := p.Validate(); err != nil {
		t.Fatal(err)
	}
	if p.Pages[0].Kind != KindPage {
		t.Errorf("Kind = %q", p.Pages[0].Kind)
	}
}

func TestFeedbackMode_JSON(t *testing.T) {
	var f FeedbackMode
	if err := json.Unmarshal([]byte(`"inverted"`), &f); err != nil || f != FeedbackInverted {
		t.Errorf("unmarshal name: %v %v", f, err)
	}
	if err := json.Unmarshal([]byte(`3`), &f); err != nil || f != FeedbackAlwaysOn {
		t.Errorf("unmarshal number: %v %v", f, err)
	}
	if err := json.Unmarshal([]byte(`"sideways"`), &f); err == nil {
		t.Error("expected error for unknown mode")
	}
	data, _ := json.Marshal(FeedbackChannel)
	if string(data) != `"channel"` {
		t.Errorf("marshal = %s", data)
	}
}

func TestFeedbackMode_DefaultState(t *testing.T) {
	if FeedbackInverted.DefaultState() != 2 || FeedbackAlwaysOn.DefaultState() != 2 {
		t.Error("inverted/always-on should default to state 2")
	}
	if FeedbackChannel.DefaultState() != 1 || FeedbackMomentary.DefaultState() != 1 {
		t.Error("channel/momentary should default to state 1")
	}
}
