package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "defaults filled in",
			cfg:  Config{},
		},
		{
			name: "explicit json config",
			cfg:  Config{Level: "debug", Format: "json"},
		},
		{
			name: "text format",
			cfg:  Config{Level: "info", Format: "text"},
		},
		{
			name:    "bad level",
			cfg:     Config{Level: "loud"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if logger == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestNewCreatesDatedLogFile(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := New(Config{Level: "debug", Path: tmpDir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer logger.Close()

	logger.Info("hello")

	logFile := filepath.Join(tmpDir, "factory-"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file missing message, got: %s", data)
	}
}

func TestLoggerMethods(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := New(Config{Level: "debug", Path: tmpDir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer logger.Close()

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
	logger.Debugf("formatted %s", "debug")
	logger.Infof("formatted %s", "info")
	logger.Warnf("formatted %s", "warn")
	logger.Errorf("formatted %s", "error")
	logger.Err(os.ErrNotExist).Msg("wrapped error")

	logFile := filepath.Join(tmpDir, "factory-"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)

	for _, want := range []string{
		"debug message", "info message", "warn message", "error message",
		"formatted debug", "formatted info", "formatted warn", "formatted error",
		"wrapped error",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("log file missing %q", want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := New(Config{Level: "warn", Path: tmpDir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer logger.Close()

	logger.Debug("too quiet")
	logger.Info("still too quiet")
	logger.Warn("loud enough")

	logFile := filepath.Join(tmpDir, "factory-"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)

	if strings.Contains(content, "too quiet") {
		t.Error("debug/info messages should be filtered at warn level")
	}
	if !strings.Contains(content, "loud enough") {
		t.Error("warn message missing from log file")
	}
}

func TestWithComponent(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := New(Config{Level: "debug", Path: tmpDir})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer logger.Close()

	logger.WithComponent("sweeper").Info("component message")

	logFile := filepath.Join(tmpDir, "factory-"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, `"component":"sweeper"`) {
		t.Errorf("log entry missing component field, got: %s", content)
	}
}

func TestCleanOldLogs(t *testing.T) {
	tmpDir := t.TempDir()

	oldDate := time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	oldFile := filepath.Join(tmpDir, "factory-"+oldDate+".log")
	if err := os.WriteFile(oldFile, []byte("old"), 0644); err != nil {
		t.Fatalf("writing old log: %v", err)
	}

	recentDate := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	recentFile := filepath.Join(tmpDir, "factory-"+recentDate+".log")
	if err := os.WriteFile(recentFile, []byte("recent"), 0644); err != nil {
		t.Fatalf("writing recent log: %v", err)
	}

	unrelated := filepath.Join(tmpDir, "notes.txt")
	if err := os.WriteFile(unrelated, []byte("keep"), 0644); err != nil {
		t.Fatalf("writing unrelated file: %v", err)
	}

	logger := &Logger{logDir: tmpDir}
	logger.cleanOldLogs(7)

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("old log file should have been removed")
	}
	if _, err := os.Stat(recentFile); err != nil {
		t.Error("recent log file should have been kept")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Error("unrelated file should have been kept")
	}
}

func TestGlobalLogger(t *testing.T) {
	tmpDir := t.TempDir()

	if err := Init(Config{Level: "debug", Path: tmpDir}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	Get().Info("global message")
	Component("queue").Info("component via global")

	logFile := filepath.Join(tmpDir, "factory-"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "global message") {
		t.Error("log file missing global message")
	}
	if !strings.Contains(content, `"component":"queue"`) {
		t.Error("log file missing component field from Component()")
	}
}

func TestGetWithoutInit(t *testing.T) {
	globalMu.Lock()
	saved := globalLogger
	globalLogger = nil
	globalMu.Unlock()
	defer func() {
		globalMu.Lock()
		globalLogger = saved
		globalMu.Unlock()
	}()

	logger := Get()
	if logger == nil {
		t.Fatal("Get() should return a fallback logger")
	}
	logger.Info("does not panic")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Format)
	}
	if cfg.RetentionDays != 7 {
		t.Errorf("RetentionDays = %d, want 7", cfg.RetentionDays)
	}
	if !strings.Contains(cfg.Path, filepath.Join("factory", "logs")) {
		t.Errorf("Path = %q, want it under factory/logs", cfg.Path)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"WARN", zerolog.WarnLevel, false},
		{"verbose", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := parseLevel(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseLevel(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseLevel(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
