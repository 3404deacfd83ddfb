package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wikibridge/pkg/config"
)

func TestInit(t *testing.T) {
	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "server.log")
	requestLog := filepath.Join(tempDir, "requests.log")

	// A previous run leaves a log behind; Init must rotate it.
	if err := os.WriteFile(serverLog, []byte("previous run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.LogConfig{
		Server:   config.LogSettings{Path: serverLog, Level: "DEBUG"},
		Requests: config.LogSettings{Path: requestLog, Level: "INFO"},
	}

	prevDefault := slog.Default()
	prevRequest := RequestLogger
	t.Cleanup(func() {
		slog.SetDefault(prevDefault)
		RequestLogger = prevRequest
	})

	cleanup, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	RequestLogger.Info("Request", "url", "https://example.org")
	cleanup()

	if _, err := os.Stat(serverLog + ".old"); err != nil {
		t.Errorf("Previous server log not rotated: %v", err)
	}
	data, err := os.ReadFile(requestLog)
	if err != nil {
		t.Fatalf("Request log file not created: %v", err)
	}
	if !strings.Contains(string(data), "url=https://example.org") {
		t.Errorf("Request log missing entry, got %q", string(data))
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"trace", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTrace(t *testing.T) {
	var sb strings.Builder
	logger := slog.New(slog.NewTextHandler(&sb, &slog.HandlerOptions{Level: slog.LevelDebug}))

	prev := EnableTrace
	t.Cleanup(func() { EnableTrace = prev })

	EnableTrace = false
	Trace(logger, "hidden")
	if sb.Len() != 0 {
		t.Errorf("Trace wrote while disabled: %q", sb.String())
	}

	EnableTrace = true
	Trace(logger, "shown", "k", "v")
	if !strings.Contains(sb.String(), "msg=shown") {
		t.Errorf("Trace did not write while enabled: %q", sb.String())
	}
}
