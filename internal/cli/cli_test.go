package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fpang/dalle-mcp-server/internal/auth"
	"github.com/fpang/dalle-mcp-server/internal/params"
	"github.com/fpang/dalle-mcp-server/internal/retention"
)

func TestResolveDirectory(t *testing.T) {
	dir := t.TempDir()

	got, err := ResolveDirectory(dir)
	if err != nil || got != dir {
		t.Errorf("existing dir: got %q, %v", got, err)
	}

	missing := filepath.Join(dir, "later")
	if got, err := ResolveDirectory(missing); err != nil || got != missing {
		t.Errorf("missing dir should resolve: got %q, %v", got, err)
	}

	file := filepath.Join(dir, "file.png")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ResolveDirectory(file); err == nil {
		t.Error("a regular file should be rejected")
	}

	if _, err := ResolveDirectory(""); err == nil {
		t.Error("empty path should be rejected")
	}
}

func TestValidationHint(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&auth.ValidationError{Type: auth.ErrTypeNoKey}, "No API key configured"},
		{&auth.ValidationError{Type: auth.ErrTypeInvalidKey}, "Invalid API key"},
		{&auth.ValidationError{Type: auth.ErrTypeNetworkError}, "Network error"},
		{&auth.ValidationError{Type: auth.ErrTypeQuotaExceeded}, "quota exceeded"},
		{&auth.ValidationError{Type: auth.ErrTypeUnknown}, "validation failed"},
		{errors.New("boom"), "Unexpected error"},
	}
	for _, tt := range tests {
		if got := ValidationHint(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("ValidationHint(%v) = %q, want it to contain %q", tt.err, got, tt.want)
		}
	}
}

func TestConfirm(t *testing.T) {
	tests := map[string]bool{
		"y\n":   true,
		"YES\n": true,
		" yes ": true,
		"n\n":   false,
		"\n":    false,
		"":      false,
	}
	for input, want := range tests {
		var out bytes.Buffer
		if got := Confirm(strings.NewReader(input), &out, "Delete 3 files?"); got != want {
			t.Errorf("Confirm(%q) = %v, want %v", input, got, want)
		}
		if !strings.Contains(out.String(), "Delete 3 files? [y/N]") {
			t.Errorf("question not printed: %q", out.String())
		}
	}
}

func TestRenderCleanup(t *testing.T) {
	var buf bytes.Buffer
	RenderCleanup(&buf, "/tmp/images", &retention.Result{
		FilesScanned:    4,
		FilesDeleted:    2,
		SpaceFreedBytes: 2048,
		DryRun:          true,
		DurationMs:      1250,
		Deleted:         []string{"a.png", "b.png"},
		Errors:          []retention.FileError{{File: "c.png", Error: "permission denied"}},
	})

	out := buf.String()
	for _, want := range []string{"DRY RUN", "Would delete: 2 files (2.0 KB)", "Duration:    0:01", "  - a.png", "c.png: permission denied"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderStats(t *testing.T) {
	var buf bytes.Buffer
	RenderStats(&buf, "/tmp/images", &retention.Stats{})
	if !strings.Contains(buf.String(), "No images found.") {
		t.Errorf("empty stats: %s", buf.String())
	}

	buf.Reset()
	RenderStats(&buf, "/tmp/images", &retention.Stats{
		Count:       2,
		TotalSize:   3000,
		AverageSize: 1500,
		AverageAge:  26 * time.Hour,
		OldestFile:  &retention.FileRecord{Name: "old.png", Age: 50 * time.Hour},
		NewestFile:  &retention.FileRecord{Name: "new.png", Age: 2 * time.Hour},
	})
	out := buf.String()
	for _, want := range []string{"Images:       2", "2.9 KB", "1d 2h", "old.png (2d 2h)", "new.png (2h)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderModels(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderModels(&buf, params.Models()); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got:\n%s", buf.String())
	}
	if !strings.HasPrefix(lines[1], "dall-e-2") || !strings.Contains(lines[1], "1-10") {
		t.Errorf("dall-e-2 row: %q", lines[1])
	}
	if !strings.Contains(lines[1], " - ") {
		t.Errorf("dall-e-2 has no styles and should show a dash: %q", lines[1])
	}
	if !strings.Contains(lines[2], "vivid, natural") {
		t.Errorf("dall-e-3 row: %q", lines[2])
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSON(&buf, map[string]int{"count": 1}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "{\n  \"count\": 1\n}\n" {
		t.Errorf("unexpected JSON: %q", buf.String())
	}
}
