// Package logx provides structured logging with component prefixes and
// env-controlled debug domains.
package logx

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

type Logger struct {
	component string
	logger    *log.Logger
}

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// DebugConfig controls debug logging behavior.
type DebugConfig struct {
	Enabled bool
	Domains map[string]bool // Which domains to enable debug for (nil = all)
}

// LogEntry represents a structured log entry kept for the dashboard.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Component string `json:"component"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// InMemoryLogBuffer stores recent log entries for the dashboard.
type InMemoryLogBuffer struct {
	entries []LogEntry
	mutex   sync.RWMutex
	maxSize int
}

//nolint:gochecknoglobals // Package-level debug state mirrors env configuration
var (
	debugConfig = &DebugConfig{}
	debugMutex  sync.RWMutex

	logBuffer = &InMemoryLogBuffer{
		entries: make([]LogEntry, 0),
		maxSize: 1000,
	}
)

// Debug configuration comes from environment variables:
//
//	DEBUG=1                             # Enable debug for all domains
//	DEBUG=1 DEBUG_DOMAINS=engine,intent # Enable debug only for listed domains
func init() { //nolint:gochecknoinits // Required for env var initialization
	if debug := os.Getenv("DEBUG"); debug == "1" || strings.EqualFold(debug, "true") {
		debugConfig.Enabled = true
	}
	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugConfig.Domains = make(map[string]bool)
		for _, domain := range strings.Split(domains, ",") {
			debugConfig.Domains[strings.TrimSpace(domain)] = true
		}
	}
}

func NewLogger(component string) *Logger {
	return &Logger{
		component: component,
		logger:    log.New(os.Stderr, "", 0), // stderr keeps stdout clean for CLI output
	}
}

// SetDebug overrides the env-derived debug configuration.
func SetDebug(enabled bool, domains []string) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	debugConfig.Enabled = enabled
	if len(domains) == 0 {
		debugConfig.Domains = nil
		return
	}
	debugConfig.Domains = make(map[string]bool)
	for _, domain := range domains {
		debugConfig.Domains[strings.TrimSpace(domain)] = true
	}
}

// IsDebugEnabledForDomain reports whether debug logging is on for a domain.
func IsDebugEnabledForDomain(domain string) bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()

	if !debugConfig.Enabled {
		return false
	}
	if debugConfig.Domains == nil {
		return true
	}
	return debugConfig.Domains[domain]
}

// AddLogEntry appends a log entry, evicting the oldest past maxSize.
func (b *InMemoryLogBuffer) AddLogEntry(entry *LogEntry) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.entries = append(b.entries, *entry)
	if len(b.entries) > b.maxSize {
		b.entries = b.entries[len(b.entries)-b.maxSize:]
	}
}

// GetLogEntries returns a copy of current entries, optionally filtered by component.
func (b *InMemoryLogBuffer) GetLogEntries(component string, since time.Time) []LogEntry {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	filtered := make([]LogEntry, 0, len(b.entries))
	for i := range b.entries {
		entry := &b.entries[i]
		if component != "" && !strings.EqualFold(entry.Component, component) {
			continue
		}
		if !since.IsZero() {
			entryTime, err := time.Parse("2006-01-02T15:04:05.000Z", entry.Timestamp)
			if err != nil || entryTime.Before(since) {
				continue
			}
		}
		filtered = append(filtered, *entry)
	}
	return filtered
}

// GetRecentLogEntries returns recent log entries for the dashboard.
func GetRecentLogEntries(component string, since time.Time) []LogEntry {
	return logBuffer.GetLogEntries(component, since)
}

func (l *Logger) log(level Level, format string, args ...any) {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] [%s] %s: %s", timestamp, l.component, level, message)

	logBuffer.AddLogEntry(&LogEntry{
		Timestamp: timestamp,
		Component: l.component,
		Level:     string(level),
		Message:   message,
	})
}

func (l *Logger) Debug(format string, args ...any) {
	debugMutex.RLock()
	enabled := debugConfig.Enabled
	debugMutex.RUnlock()

	if !enabled {
		return
	}
	l.log(LevelDebug, format, args...)
}

// DebugDomain logs a debug message gated on a specific domain.
//
//	logger.DebugDomain("intent", "classified %q as %s", text, label)
func (l *Logger) DebugDomain(domain, format string, args ...any) {
	if !IsDebugEnabledForDomain(domain) {
		return
	}
	l.log(LevelDebug, "[%s] %s", domain, fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

func (l *Logger) GetComponent() string {
	return l.component
}

// Global logging functions for convenience.
var defaultLogger = NewLogger("system") //nolint:gochecknoglobals

func Debugf(format string, args ...any) {
	defaultLogger.Debug(format, args...)
}

func Infof(format string, args ...any) {
	defaultLogger.Info(format, args...)
}

func Warnf(format string, args ...any) {
	defaultLogger.Warn(format, args...)
}

// Errorf logs and returns the formatted error.
// Use this when you need both logging and error returning:
//
//	err := logx.Errorf("order lookup failed: %w", err)
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	defaultLogger.Error("%s", err.Error())
	return err
}

// Wrap logs msg + ": " + err.Error() and returns fmt.Errorf("%s: %w", msg, err).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrappedErr := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrappedErr.Error())
	return wrappedErr
}
