package logging_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vsariola/lumix/logging"
	"go.uber.org/zap"
)

func TestFileLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "lumix.log")
	cfg := logging.DefaultConfig()
	cfg.Console = false
	cfg.OutputPath = path
	logger, err := logging.New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("track added", zap.String("track", "drums"))
	logger.Sync()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("cannot read the log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line above the info level, got %d", len(lines))
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("the log line is not JSON: %v", err)
	}
	if entry["msg"] != "track added" || entry["track"] != "drums" || entry["level"] != "info" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestConsoleLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := logging.Config{Level: "warn", Console: true}
	logger, err := logging.NewWithConsole(cfg, &buf)
	if err != nil {
		t.Fatalf("NewWithConsole failed: %v", err)
	}
	logger.Info("quiet")
	logger.Warn("loud")
	if out := buf.String(); strings.Contains(out, "quiet") || !strings.Contains(out, "WARN") {
		t.Fatalf("unexpected console output %q", out)
	}
	if _, err := logging.New(logging.Config{Level: "chatty"}); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}
