package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/V4T54L/tctk/internal/adapter/repository/activitylog"
)

func TestActivityCommands(t *testing.T) {
	dir := t.TempDir()
	content := `{"start_time":10,"last_updated_time":10,"update_reason":"INIT_FILE","activity":[]}
{"start_time":10,"last_updated_time":70,"update_reason":"REGULAR_UPDATE","activity":[["message",42.5,{"text":"hi"}]]}
`
	if err := os.WriteFile(filepath.Join(dir, activitylog.FileName(10)), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "errors.log"), []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := listActivity(&out, dir); err != nil {
		t.Fatalf("ls: %v", err)
	}
	if !strings.Contains(out.String(), "activity_10.json") || strings.Contains(out.String(), "errors.log") {
		t.Errorf("unexpected listing:\n%s", out.String())
	}

	out.Reset()
	if err := catActivity(&out, dir, 10, false); err != nil {
		t.Fatalf("cat: %v", err)
	}
	if lines := strings.Count(out.String(), "\n"); lines != 2 {
		t.Errorf("expected 2 snapshots, got %d:\n%s", lines, out.String())
	}

	out.Reset()
	if err := catActivity(&out, dir, 10, true); err != nil {
		t.Fatalf("cat records: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != `["message",42.5,{"text":"hi"}]` {
		t.Errorf("unexpected records %q", got)
	}

	if err := catActivity(&out, dir, 99, false); err == nil {
		t.Error("expected an error for a missing file")
	}
}
