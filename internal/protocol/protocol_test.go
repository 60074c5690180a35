package protocol

import (
	"reflect"
	"testing"
)

func TestGetField(t *testing.T) {
	if got := GetField("CMD-a,b,c", 1, ","); got != "b" {
		t.Errorf("GetField index 1 = %q, want b", got)
	}
	if got := GetField("CMD-a", 5, ","); got != "" {
		t.Errorf("GetField out of range = %q, want empty", got)
	}
	if got := GetField("CMD-a", -1, ","); got != "" {
		t.Errorf("GetField negative = %q, want empty", got)
	}
}

func TestGetField_NoCommandDash(t *testing.T) {
	if got := GetField("x,y", 1, ","); got != "y" {
		t.Errorf("GetField without dash = %q, want y", got)
	}
}

func TestGetField_PopupWithPage(t *testing.T) {
	cmd := "@PPN-myPopup;myPage"
	if got := GetField(cmd, 0, ";"); got != "myPopup" {
		t.Errorf("popup = %q", got)
	}
	if got := GetField(cmd, 1, ";"); got != "myPage" {
		t.Errorf("page = %q", got)
	}
}

func TestGetField_OnlyFirstDashStripped(t *testing.T) {
	if got := GetField("^TXT-1,0,a-b", 2, ","); got != "a-b" {
		t.Errorf("GetField = %q, want a-b", got)
	}
}

func TestGetTail(t *testing.T) {
	if got := GetTail("^BAT-12,0,Hello, world", 2, ","); got != "Hello, world" {
		t.Errorf("GetTail = %q", got)
	}
	if got := GetTail("^BAT-12", 2, ","); got != "" {
		t.Errorf("GetTail out of range = %q", got)
	}
}

func TestGetRange(t *testing.T) {
	cases := []struct {
		in   string
		want []int
	}{
		{"5", []int{5}},
		{"1.4", []int{1, 2, 3}},
		{"3&7.9", []int{3, 7, 8}},
		{"3&7&9", []int{3, 7, 9}},
		{"9&1", []int{9, 1}},
		{"5.5", nil},
	}
	for _, c := range cases {
		got := GetRange(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("GetRange(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestGetRange_UpperBoundExclusive(t *testing.T) {
	got := GetRange("10.12")
	for _, n := range got {
		if n == 12 {
			t.Fatalf("interval upper bound included: %v", got)
		}
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestGetRange_Malformed(t *testing.T) {
	got := GetRange("abc&4")
	if len(got) != 2 || got[0] != InvalidChannel || got[1] != 4 {
		t.Errorf("GetRange malformed = %v", got)
	}
	if got := GetRange("a.4"); len(got) != 0 {
		t.Errorf("bad interval bound should contribute nothing, got %v", got)
	}
}

func TestSplitPort(t *testing.T) {
	port, cmd := SplitPort("1|@PPN-myPopup;myPage")
	if port != 1 || cmd != "@PPN-myPopup;myPage" {
		t.Errorf("SplitPort = %d %q", port, cmd)
	}
	port, cmd = SplitPort("@PPX")
	if port != 0 || cmd != "@PPX" {
		t.Errorf("SplitPort without port = %d %q", port, cmd)
	}
}

func TestCommandToken(t *testing.T) {
	if got := CommandToken("^BAT-1,2,x"); got != "^BAT" {
		t.Errorf("CommandToken = %q", got)
	}
	if got := CommandToken("@PPX"); got != "@PPX" {
		t.Errorf("CommandToken = %q", got)
	}
}

func TestOutbound(t *testing.T) {
	if got := Push(1, 12, true); got != "PUSH:1:12:1;" {
		t.Errorf("Push on = %q", got)
	}
	if got := Push(2, 7, false); got != "PUSH:2:7:0;" {
		t.Errorf("Push off = %q", got)
	}
	if got := KeyboardText(10001, "hi"); got != "KEY:10001:1:1:KEYB-hi" {
		t.Errorf("KeyboardText = %q", got)
	}
	if got := KeypadText(10001, "42"); got != "KEY:10001:1:1:KEYP-42" {
		t.Errorf("KeypadText = %q", got)
	}
}

func TestParseResourceData(t *testing.T) {
	rf := ParseResourceData("%P0%Hcam.local%Asnap%Fimage.jpg%Uadmin%Ssecret%R5")
	want := ResourceFields{
		Protocol: "http",
		Host:     "cam.local",
		Path:     "snap",
		File:     "image.jpg",
		User:     "admin",
		Password: "secret",
		Refresh:  5,
	}
	if rf != want {
		t.Errorf("ParseResourceData = %+v, want %+v", rf, want)
	}
}

func TestParseResourceData_Partial(t *testing.T) {
	rf := ParseResourceData("%Hother.host%Rx")
	if rf.Host != "other.host" {
		t.Errorf("Host = %q", rf.Host)
	}
	if rf.Protocol != "" || rf.Refresh != 0 {
		t.Errorf("unexpected fields: %+v", rf)
	}
}
