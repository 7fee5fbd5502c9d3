package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open log file: %v", err)
	}
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", sc.Text(), err)
		}
		lines = append(lines, m)
	}
	return lines
}

func TestLogLevels(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		level    string
		expected []string
	}{
		{level: "error", expected: []string{"error"}},
		{level: "warn", expected: []string{"warn", "error"}},
		{level: "info", expected: []string{"info", "warn", "error"}},
		{level: "debug", expected: []string{"debug", "info", "warn", "error"}},
		{level: "bogus", expected: []string{"info", "warn", "error"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logFile := filepath.Join(tempDir, tt.level+".log")

			cfg := FileConfig{Path: logFile, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1}
			if err := InitWithFileConfig(tt.level, cfg, false); err != nil {
				t.Fatalf("failed to init logger: %v", err)
			}

			Debug("debug message")
			Info("info message")
			Warn("warn message")
			Error("error message")
			Sync()

			lines := readLines(t, logFile)
			if len(lines) != len(tt.expected) {
				t.Fatalf("expected %d lines, got %d", len(tt.expected), len(lines))
			}
			for i, want := range tt.expected {
				if got := lines[i]["level"]; got != want {
					t.Errorf("line %d: level = %v, want %s", i, got, want)
				}
			}
		})
	}
}

func TestStructuredFields(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "fields.log")
	if err := InitWithFileConfig("debug", DefaultFileConfig(logFile), false); err != nil {
		t.Fatalf("failed to init logger: %v", err)
	}

	Named("stage").Warn("skipping file",
		zap.String("path", "Stage/F000/r00.kcl"),
		zap.Int("index", 12),
	)
	Sync()

	lines := readLines(t, logFile)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	line := lines[0]
	if line["msg"] != "skipping file" {
		t.Errorf("msg = %v", line["msg"])
	}
	if line["logger"] != nil && line["logger"] != "stage" {
		t.Errorf("logger = %v, want stage", line["logger"])
	}
	if line["path"] != "Stage/F000/r00.kcl" {
		t.Errorf("path = %v", line["path"])
	}
	if line["index"] != float64(12) {
		t.Errorf("index = %v", line["index"])
	}
	if caller, _ := line["caller"].(string); !strings.Contains(caller, "logger_test.go") {
		t.Errorf("caller = %q, want logger_test.go", caller)
	}
}

func TestNopBeforeInit(t *testing.T) {
	// The zero-configuration logger must accept writes without panicking.
	Log = zap.NewNop()
	Sugar = Log.Sugar()
	Info("dropped")
	Sugar.Infof("dropped %d", 1)
	Sync()
}

func TestDefaultFileConfig(t *testing.T) {
	cfg := DefaultFileConfig("/tmp/colltool.log")

	if cfg.Path != "/tmp/colltool.log" {
		t.Errorf("expected path /tmp/colltool.log, got %s", cfg.Path)
	}
	if cfg.MaxSizeMB != 10 {
		t.Errorf("expected MaxSizeMB 10, got %d", cfg.MaxSizeMB)
	}
	if cfg.MaxBackups != 3 {
		t.Errorf("expected MaxBackups 3, got %d", cfg.MaxBackups)
	}
	if cfg.MaxAgeDays != 7 {
		t.Errorf("expected MaxAgeDays 7, got %d", cfg.MaxAgeDays)
	}
	if !cfg.Compress {
		t.Error("expected Compress to be true")
	}
}
