package logx

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestApplyChangesLevel(t *testing.T) {
	var buf bytes.Buffer
	svc, log := NewWithWriter(Config{Level: "warn", Console: true}, &buf)
	t.Cleanup(func() { _ = svc.Close() })

	log.Info("hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}

	svc.Apply(Config{Level: "debug", Console: true})
	log.With(String("comp", "test")).Debug("visible")
	out := buf.String()
	if !strings.Contains(out, "visible") || !strings.Contains(out, "comp=test") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestConsoleWithoutTerminalIsPlain(t *testing.T) {
	var buf bytes.Buffer
	svc, log := NewWithWriter(Config{Level: "info", Console: true}, &buf)
	t.Cleanup(func() { _ = svc.Close() })

	log.Warn("plain", String("task", "task_1"), Err(errors.New("boom")))
	out := buf.String()
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("escape codes written to non-terminal: %q", out)
	}
	for _, want := range []string{"WRN", "plain", "task=task_1", "err=boom", "logx_test.go:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestFileSinkWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	var buf bytes.Buffer
	svc, log := NewWithWriter(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}}, &buf)

	log.Info("sent", String("recipient", "a@b.co"))
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := strings.TrimSpace(string(b))
	if !strings.HasPrefix(line, "{") || !strings.Contains(line, `"recipient":"a@b.co"`) {
		t.Fatalf("expected JSON line, got %q", line)
	}
	if buf.Len() != 0 {
		t.Fatalf("console disabled but got %q", buf.String())
	}
}

func TestUnopenableFileFallsBackToConsole(t *testing.T) {
	var buf bytes.Buffer
	dir := t.TempDir()
	svc, log := NewWithWriter(Config{Level: "info", File: FileConfig{Enabled: true, Path: dir}}, &buf)
	t.Cleanup(func() { _ = svc.Close() })

	if !strings.Contains(buf.String(), "file sink disabled") {
		t.Fatalf("expected open failure notice, got %q", buf.String())
	}
	log.Info("still here")
	if !strings.Contains(buf.String(), "still here") {
		t.Fatalf("console fallback missing: %q", buf.String())
	}
}

func TestZeroAndNopLoggers(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatalf("zero logger should report IsZero")
	}
	l.Error("nothing")
	if Nop().IsZero() {
		t.Fatalf("Nop should not be zero")
	}
	if l.With(String("k", "v")).IsZero() {
		t.Fatalf("logger with fields should not be zero")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"WARNING": zerolog.WarnLevel,
		" debug ": zerolog.DebugLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
