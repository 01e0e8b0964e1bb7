package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recordingSender struct {
	mu    sync.Mutex
	lines []string
	sent  chan struct{}
}

func (r *recordingSender) SendText(_ context.Context, chatID int64, threadID int, text string) error {
	r.mu.Lock()
	r.lines = append(r.lines, text)
	r.mu.Unlock()
	select {
	case r.sent <- struct{}{}:
	default:
	}
	return nil
}

func TestFormatChatLineSortsFields(t *testing.T) {
	got := formatChatLine([]byte(`{"level":"warn","message":"poll failed","time":"x","venue":"Stage A","attempt":2}`))
	want := "[WARN] poll failed\n- attempt=2\n- venue=Stage A"
	if got != want {
		t.Fatalf("formatChatLine() = %q, want %q", got, want)
	}
}

func TestFormatChatLineNotJSON(t *testing.T) {
	if got := formatChatLine([]byte("  plain text \n")); got != "plain text" {
		t.Fatalf("formatChatLine() = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefghijklmnop", 12); got != "abcdefghi..." {
		t.Fatalf("truncate() = %q", got)
	}
	if got := truncate("short", 12); got != "short" {
		t.Fatalf("truncate() = %q", got)
	}
}

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "test"))
	log.Info("hello", Int("n", 3))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal: %v (%q)", err, buf.String())
	}
	if m["comp"] != "test" || m["message"] != "hello" || m["n"] != float64(3) {
		t.Fatalf("unexpected fields: %v", m)
	}
	if c, _ := m["caller"].(string); !strings.HasPrefix(c, "logging_test.go:") {
		t.Fatalf("caller = %v", m["caller"])
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	var log Logger
	if !log.IsZero() {
		t.Fatal("expected zero logger")
	}
	log.Error("ignored")
	if Nop().IsZero() {
		t.Fatal("Nop() should not be zero")
	}
}

func TestChatSinkMirrorsWarnings(t *testing.T) {
	rs := &recordingSender{sent: make(chan struct{}, 1)}
	svc, log := New(Config{
		Level: "debug",
		File:  FileConfig{Enabled: true, Path: t.TempDir() + "/test.log"},
		Chat:  ChatConfig{Enabled: true, ChatID: 42, MinLevel: "warn", RatePerSec: 5},
	}, rs)
	t.Cleanup(func() { _ = svc.Close() })

	log.Info("not mirrored")
	log.Warn("mirrored", String("k", "v"))

	select {
	case <-rs.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("chat sink did not receive the warning")
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.lines) != 1 || !strings.HasPrefix(rs.lines[0], "[WARN] mirrored") {
		t.Fatalf("unexpected chat lines: %q", rs.lines)
	}
}

func TestApplySwitchesLogFileWithoutLosingLines(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: first}}, nil)
	t.Cleanup(func() { _ = svc.Close() })

	log.Info("before reload")
	// A writer that picked up the root logger just before the reload.
	stale := svc.current()
	svc.Apply(Config{Level: "info", File: FileConfig{Enabled: true, Path: second}})
	stale.Info().Msg("in flight")
	log.Info("after reload")

	a, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read first: %v", err)
	}
	b, err := os.ReadFile(second)
	if err != nil {
		t.Fatalf("read second: %v", err)
	}
	if !strings.Contains(string(a), "before reload") || strings.Contains(string(a), "after reload") {
		t.Fatalf("first log = %q", a)
	}
	for _, want := range []string{"in flight", "after reload"} {
		if !strings.Contains(string(b), want) {
			t.Fatalf("second log missing %q: %q", want, b)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("warning", zerolog.InfoLevel) != zerolog.WarnLevel {
		t.Fatal("warning should map to warn")
	}
	if parseLevel("nope", zerolog.InfoLevel) != zerolog.InfoLevel {
		t.Fatal("unknown level should use default")
	}
	if ValidLevel("loud") || !ValidLevel("Debug") {
		t.Fatal("ValidLevel mismatch")
	}
}
