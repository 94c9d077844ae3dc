package logging

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestConsoleSinksColourOnlyTerminals(t *testing.T) {
	var plain bytes.Buffer
	file, err := os.Create(filepath.Join(t.TempDir(), "run.log"))
	if err != nil {
		t.Fatalf("create log file: %v", err)
	}
	defer file.Close()

	level := new(slog.LevelVar)
	handler := newPrettyHandler([]io.Writer{&plain, file}, level, false).(*prettyHandler)
	for _, s := range handler.sinks {
		if s.color {
			t.Fatalf("expected no colour for buffers or regular files, got %+v", handler.sinks)
		}
	}

	slog.New(handler).Warn("disk nearly full")
	if strings.Contains(plain.String(), "\x1b[") {
		t.Fatalf("expected plain output, got %q", plain.String())
	}
	data, err := os.ReadFile(file.Name())
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if string(data) != plain.String() {
		t.Fatalf("expected identical lines, got %q and %q", data, plain.String())
	}
}

func TestColouredSinkWrapsLevelLabel(t *testing.T) {
	var colored, plain bytes.Buffer
	handler := &prettyHandler{
		mu:    new(sync.Mutex),
		sinks: []sink{{w: &colored, color: true}, {w: &plain}},
		level: new(slog.LevelVar),
	}
	slog.New(handler).Error("extraction failed")

	if !strings.Contains(colored.String(), "\x1b[31mERROR\x1b[0m – extraction failed") {
		t.Fatalf("expected red level label, got %q", colored.String())
	}
	if !strings.Contains(plain.String(), " ERROR – extraction failed") || strings.Contains(plain.String(), "\x1b[") {
		t.Fatalf("expected uncoloured copy, got %q", plain.String())
	}
	stripped := strings.NewReplacer("\x1b[31m", "", ansiReset, "").Replace(colored.String())
	if stripped != plain.String() {
		t.Fatalf("expected colour to be the only difference, got %q and %q", stripped, plain.String())
	}
}
