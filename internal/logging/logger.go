// Package logging provides config-driven categorized file-based logging.
// Logs are written to the configured directory with separate files per
// category. Logging is controlled by debug_mode in the config; when
// false, no logs are written.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // startup and wiring
	CategorySession  Category = "session"  // turn handling, session state
	CategoryDataset  Category = "dataset"  // dataset loading and coercion
	CategoryGateway  Category = "gateway"  // model API calls, retries
	CategoryRouter   Category = "router"   // intent classification
	CategorySynth    Category = "synth"    // plan and code synthesis
	CategorySandbox  Category = "sandbox"  // generated-code execution
	CategoryAnalysis Category = "analysis" // multi-angle orchestration
	CategoryAPI      Category = "api"      // HTTP surface
)

// Options control logging at initialization time.
type Options struct {
	Dir        string
	DebugMode  bool
	Level      string // debug/info/warn/error
	Categories map[string]bool
}

// Logger wraps a standard logger with category and file output
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

// Log levels
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	optsMu    sync.RWMutex
	opts      Options
	logLevel  = LevelInfo
)

// Initialize sets up the logging directory. Should be called once at
// startup; with DebugMode false it is a no-op and every log call stays
// silent.
func Initialize(o Options) error {
	optsMu.Lock()
	opts = o
	switch o.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	optsMu.Unlock()

	if !o.DebugMode {
		return nil
	}
	if o.Dir == "" {
		return fmt.Errorf("log directory required in debug mode")
	}
	if err := os.MkdirAll(o.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	Boot("=== logging initialized (level=%s) ===", o.Level)
	return nil
}

// categoryEnabled checks if a category is enabled. Unknown categories
// default to on so a new category never disappears silently.
func categoryEnabled(category Category) bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category, or a no-op
// logger when the category is disabled.
func Get(category Category) *Logger {
	if !categoryEnabled(category) {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	optsMu.RLock()
	dir := opts.Dir
	optsMu.RUnlock()

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, category))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}
	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	l.logger.Printf("[DEBUG] %s", fmt.Sprintf(format, args...))
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	l.logger.Printf("[INFO] %s", fmt.Sprintf(format, args...))
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	l.logger.Printf("[WARN] %s", fmt.Sprintf(format, args...))
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] %s", fmt.Sprintf(format, args...))
}

// CloseAll closes all open log files (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Convenience functions per category. All are silent no-ops when the
// category (or debug mode) is off.

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootError(format string, args ...interface{}) { Get(CategoryBoot).Error(format, args...) }

func Session(format string, args ...interface{})      { Get(CategorySession).Info(format, args...) }
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debug(format, args...) }
func SessionError(format string, args ...interface{}) { Get(CategorySession).Error(format, args...) }

func Dataset(format string, args ...interface{}) { Get(CategoryDataset).Info(format, args...) }

func Gateway(format string, args ...interface{})      { Get(CategoryGateway).Info(format, args...) }
func GatewayWarn(format string, args ...interface{})  { Get(CategoryGateway).Warn(format, args...) }
func GatewayError(format string, args ...interface{}) { Get(CategoryGateway).Error(format, args...) }

func Router(format string, args ...interface{})     { Get(CategoryRouter).Info(format, args...) }
func RouterWarn(format string, args ...interface{}) { Get(CategoryRouter).Warn(format, args...) }

func Synth(format string, args ...interface{})      { Get(CategorySynth).Info(format, args...) }
func SynthError(format string, args ...interface{}) { Get(CategorySynth).Error(format, args...) }

func Sandbox(format string, args ...interface{})      { Get(CategorySandbox).Info(format, args...) }
func SandboxDebug(format string, args ...interface{}) { Get(CategorySandbox).Debug(format, args...) }
func SandboxError(format string, args ...interface{}) { Get(CategorySandbox).Error(format, args...) }

func Analysis(format string, args ...interface{})     { Get(CategoryAnalysis).Info(format, args...) }
func AnalysisWarn(format string, args ...interface{}) { Get(CategoryAnalysis).Warn(format, args...) }

func API(format string, args ...interface{})      { Get(CategoryAPI).Info(format, args...) }
func APIError(format string, args ...interface{}) { Get(CategoryAPI).Error(format, args...) }
