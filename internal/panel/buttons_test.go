package panel

import (
	"context"
	"reflect"
	"testing"

	"github.com/amxpanel/amxpanel/internal/display"
	"github.com/amxpanel/amxpanel/internal/model"
	"github.com/amxpanel/amxpanel/internal/protocol"
)

func TestAppendText_AllInstances(t *testing.T) {
	p, _ := newTestPanel(t)
	p.ShowPage(context.Background(), "A")

	n := p.AppendText(1, []int{12}, []int{0}, "Hello")
	if n != 2 {
		t.Fatalf("touched %d buttons, want 2 (page A and popup Keys)", n)
	}
	key := display.ButtonKey{Page: 1, Index: 1}
	if p.Text(key, 1) != "oneHello" || p.Text(key, 2) != "twoHello" {
		t.Errorf("texts = %q, %q", p.Text(key, 1), p.Text(key, 2))
	}
	if txt, _ := p.Engine().Document().Text("b1_1_2_txt"); txt != "twoHello" {
		t.Errorf("drawn text = %q", txt)
	}

	p.AppendText(1, []int{12}, []int{1}, "!")
	if p.Text(key, 1) != "oneHello!" || p.Text(key, 2) != "twoHello" {
		t.Error("single instance append touched other instance")
	}

	// Keys is not drawn yet; it gets the text when it is.
	p.ShowPopup(context.Background(), "Keys", "")
	if txt, _ := p.Engine().Document().Text("b16_1_1_txt"); txt != "kHello!" {
		t.Errorf("popup text = %q", txt)
	}
}

func TestButtons_InvalidChannelMatchesNothing(t *testing.T) {
	p, _ := newTestPanel(t)
	if got := p.Buttons(1, []int{protocol.InvalidChannel}); len(got) != 0 {
		t.Errorf("got %v", got)
	}
	if got := p.Buttons(2, []int{12}); len(got) != 0 {
		t.Errorf("wrong port matched: %v", got)
	}
}

func TestInstances(t *testing.T) {
	tests := []struct {
		list  []int
		count int
		want  []int
	}{
		{[]int{0}, 3, []int{1, 2, 3}},
		{[]int{2, 2, 9}, 3, []int{2}},
		{[]int{1, 0}, 2, []int{1, 2}},
		{nil, 2, nil},
	}
	for _, tt := range tests {
		if got := instances(tt.list, tt.count); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("instances(%v, %d) = %v, want %v", tt.list, tt.count, got, tt.want)
		}
	}
}

func TestSetGeometryAndShown(t *testing.T) {
	p, _ := newTestPanel(t)
	p.ShowPage(context.Background(), "A")
	p.SetGeometry(1, []int{12}, 10, 20, 110, 70)
	doc := p.Engine().Document()
	if w, _ := doc.Style("b1_1", "width"); w != "100px" {
		t.Errorf("width = %q", w)
	}
	p.SetShown(1, []int{12}, false)
	if d, _ := doc.Style("b1_1", "display"); d != "none" {
		t.Errorf("display = %q", d)
	}
	key := display.ButtonKey{Page: 1, Index: 1}
	if !p.Disabled(key) {
		t.Error("hidden button accepts presses")
	}
	p.SetEnabled(1, []int{12}, true)
	if p.Disabled(key) {
		t.Error("enabled button still disabled")
	}
}

func TestSetChannel(t *testing.T) {
	p, _ := newTestPanel(t)
	p.ShowPage(context.Background(), "A")
	addr := model.Address{Port: 1, Channel: 12}
	p.SetChannel(addr, true)
	doc := p.Engine().Document()
	if d, _ := doc.Style("b1_1_2", "display"); d != "block" {
		t.Errorf("ON did not select state 2: %q", d)
	}
	p.SetChannel(addr, false)
	if d, _ := doc.Style("b1_1_1", "display"); d != "block" {
		t.Errorf("OFF did not select state 1: %q", d)
	}
}

func TestClearPageFlipsAndLevel(t *testing.T) {
	p, _ := newTestPanel(t)
	key := display.ButtonKey{Page: 1, Index: 1}
	if p.FlipsCleared(key) {
		t.Fatal("flips cleared before CPF")
	}
	p.ClearPageFlips(1, []int{12})
	if !p.FlipsCleared(key) {
		t.Error("flips not cleared")
	}
	if n := p.SetLevel(1, 3, 200); n != 1 {
		t.Errorf("level buttons = %d", n)
	}
	if p.Overrides(display.ButtonKey{Page: 1, Index: 2}).Level != 200 {
		t.Error("level not stored")
	}
}
