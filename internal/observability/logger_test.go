package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("test-panel", &buf)
	if l == nil {
		t.Fatal("NewLogger returned nil")
	}
	if l.PanelName() != "test-panel" {
		t.Errorf("AgentName = %q", l.PanelName())
	}
}

func TestNewLogger_NilWriter(t *testing.T) {
	l := NewLogger("test", nil)
	if l == nil {
		t.Fatal("NewLogger with nil writer returned nil")
	}
	// Should not panic on log call.
	l.Info("test message")
}

func TestLogger_Info(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("mypanel", &buf)
	l.Info("hello world", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "hello world") {
		t.Errorf("output missing message: %s", output)
	}
	if !strings.Contains(output, `"panel":"mypanel"`) {
		t.Errorf("output missing panel: %s", output)
	}

	// Should be valid JSON.
	var m map[string]any
	if err := json.Unmarshal([]byte(output), &m); err != nil {
		t.Errorf("invalid JSON: %v", err)
	}
}

func TestLogger_Debug(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("panel1", &buf)
	l.Debug("debug msg")

	if !strings.Contains(buf.String(), "debug msg") {
		t.Error("debug message not found")
	}
}

func TestLogger_Warn(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("panel1", &buf)
	l.Warn("warning msg")

	if !strings.Contains(buf.String(), "warning msg") {
		t.Error("warn message not found")
	}
}

func TestLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("panel1", &buf)
	l.Error("error msg", "code", 500)

	output := buf.String()
	if !strings.Contains(output, "error msg") {
		t.Error("error message not found")
	}
	if !strings.Contains(output, "ERROR") {
		t.Error("expected ERROR level")
	}
}

func TestLogger_Dispatch(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("panel1", &buf)
	l.Dispatch(1, "@PPN", "args", "Lights")

	output := buf.String()
	if !strings.Contains(output, `"port":1`) {
		t.Errorf("port not found: %s", output)
	}
	if !strings.Contains(output, `"command":"@PPN"`) {
		t.Errorf("command not found: %s", output)
	}
}

func TestLogger_PopupEvent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("panel1", &buf)
	l.PopupEvent("show", "Lights", "z", 3)

	output := buf.String()
	if !strings.Contains(output, `"event":"show"`) {
		t.Errorf("event not found: %s", output)
	}
	if !strings.Contains(output, `"popup":"Lights"`) {
		t.Errorf("popup not found: %s", output)
	}
}

func TestLogger_TransportEvent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("panel1", &buf)
	l.TransportEvent("connected", "ws://ctl:8000/panel")

	if !strings.Contains(buf.String(), `"addr":"ws://ctl:8000/panel"`) {
		t.Errorf("addr not found: %s", buf.String())
	}
}

func TestNewTextLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l := NewTextLogger("panel1", &buf, ParseLevel("warn"))
	l.Info("hidden")
	l.Warn("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("info logged at warn level: %s", output)
	}
	if !strings.Contains(output, "shown") {
		t.Errorf("warn missing: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG").String() != "DEBUG" {
		t.Error("debug not parsed")
	}
	if ParseLevel("bogus").String() != "INFO" {
		t.Error("unknown level should be INFO")
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("nothing", "k", "v")
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("panel1", &buf)
	l2 := l.With("page", "Home")

	l2.Info("with context")

	output := buf.String()
	if !strings.Contains(output, `"page":"Home"`) {
		t.Errorf("With context not found: %s", output)
	}
	// Original logger should not have the context field.
	if l2.PanelName() != "panel1" {
		t.Errorf("AgentName = %q", l2.PanelName())
	}
}
