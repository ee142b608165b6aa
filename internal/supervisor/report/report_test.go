package report

import (
	"bytes"
	"encoding/json"
	"syscall"
	"testing"

	"github.com/go-procwatch/procwatch/internal/supervisor/childstatus"
	"github.com/go-procwatch/procwatch/internal/supervisor/outcome"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, buf.String())
	}
	return m
}

func TestRenderCompleted(t *testing.T) {
	st := childstatus.FromRaw(0)
	var buf bytes.Buffer
	if err := Render(&buf, outcome.Outcome{Status: outcome.StatusCompleted, ChildStatus: &st}, 12, 0, nil); err != nil {
		t.Fatal(err)
	}
	m := decode(t, &buf)
	if m["schema_version"].(float64) != 2 {
		t.Errorf("schema_version = %v", m["schema_version"])
	}
	if m["status"] != "completed" {
		t.Errorf("status = %v", m["status"])
	}
}

func TestRenderTimedOut(t *testing.T) {
	var buf bytes.Buffer
	o := outcome.Outcome{
		Status: outcome.StatusTimedOut,
		Signal: syscall.SIGTERM,
		Killed: true,
		Hook:   &outcome.HookResult{Ran: true, TimedOut: false},
	}
	if err := Render(&buf, o, 500, 137, nil); err != nil {
		t.Fatal(err)
	}
	m := decode(t, &buf)
	if m["status"] != "timeout" {
		t.Errorf("status = %v", m["status"])
	}
	if m["signal"] != "SIGTERM" {
		t.Errorf("signal = %v", m["signal"])
	}
	if _, ok := m["hook_exit_code"]; !ok {
		t.Error("expected hook_exit_code key to be present (possibly null)")
	}
}

func TestRenderErrorDoc(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderError(&buf, errExample{}, 127, 3); err != nil {
		t.Fatal(err)
	}
	m := decode(t, &buf)
	if m["status"] != "error" {
		t.Errorf("status = %v", m["status"])
	}
	if m["error"] != "boom" {
		t.Errorf("error = %v", m["error"])
	}
}

type errExample struct{}

func (errExample) Error() string { return "boom" }
