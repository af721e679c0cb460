package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RunLogger manages logging for a single generation run. Every run gets
// its own log file under generation_logs/ capturing the full pipeline
// trace (extraction, ranking, every adaptation attempt, every model
// exchange), and mirrors messages to a zerolog console writer.
type RunLogger struct {
	runID     string
	logFile   *os.File
	console   zerolog.Logger
	mutex     sync.Mutex
	startTime time.Time
}

var (
	registry      = make(map[string]*RunLogger)
	registryMutex sync.Mutex
)

// LogDir is where run logs are written. Overridable for tests.
var LogDir = "generation_logs"

// StartRunLogging opens a log file for a new generation run and registers
// the logger under its run ID.
func StartRunLogging(runID string) (*RunLogger, error) {
	return StartRunLoggingTo(runID, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}

// StartRunLoggingTo is StartRunLogging with an explicit console writer,
// used by tests and by the API server (which routes through its own
// zerolog instance).
func StartRunLoggingTo(runID string, console io.Writer) (*RunLogger, error) {
	if err := os.MkdirAll(LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	logPath := filepath.Join(LogDir, fmt.Sprintf("run_%s_%s.log", runID, timestamp))
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger := &RunLogger{
		runID:     runID,
		logFile:   logFile,
		console:   zerolog.New(console).With().Timestamp().Str("run_id", runID).Logger(),
		startTime: time.Now(),
	}

	registryMutex.Lock()
	registry[runID] = logger
	registryMutex.Unlock()

	logger.Log("Generation run %s started", runID)
	return logger, nil
}

// GetLoggerByRunID returns the logger for a run, or nil if none is
// registered. All RunLogger methods are nil-safe.
func GetLoggerByRunID(runID string) *RunLogger {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	return registry[runID]
}

// Log writes a formatted message to the run log and the console.
func (r *RunLogger) Log(format string, args ...interface{}) {
	if r == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	elapsed := time.Since(r.startTime).Round(time.Millisecond)
	message := fmt.Sprintf(format, args...)
	if r.logFile != nil {
		fmt.Fprintf(r.logFile, "[%s] [+%v] %s\n", time.Now().Format("15:04:05.000"), elapsed, message)
	}

	r.console.Info().Msg(message)
}

// LogError writes an error-level message.
func (r *RunLogger) LogError(format string, args ...interface{}) {
	if r == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	elapsed := time.Since(r.startTime).Round(time.Millisecond)
	message := fmt.Sprintf(format, args...)
	if r.logFile != nil {
		fmt.Fprintf(r.logFile, "[%s] [+%v] ERROR: %s\n", time.Now().Format("15:04:05.000"), elapsed, message)
	}

	r.console.Error().Msg(message)
}

// LogSection writes a section header to the run log.
func (r *RunLogger) LogSection(title string) {
	if r == nil {
		return
	}
	sep := strings.Repeat("=", 72)
	r.Log("%s", sep)
	r.Log("= %s", title)
	r.Log("%s", sep)
}

// LogModelExchange records a full prompt/response pair with the model.
// Raw texts go to the file only; the console gets a one-line summary.
func (r *RunLogger) LogModelExchange(purpose, prompt, response string) {
	if r == nil {
		return
	}

	r.mutex.Lock()
	if r.logFile != nil {
		fmt.Fprintf(r.logFile, "--- MODEL %s PROMPT (%d chars) ---\n%s\n--- MODEL %s RESPONSE (%d chars) ---\n%s\n--- END ---\n",
			purpose, len(prompt), prompt, purpose, len(response), response)
	}
	r.mutex.Unlock()

	r.console.Debug().
		Str("purpose", purpose).
		Int("prompt_chars", len(prompt)).
		Int("response_chars", len(response)).
		Msg("model exchange")
}

// RunID returns the run identifier this logger is bound to.
func (r *RunLogger) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

// Close finishes the run log and removes the logger from the registry.
func (r *RunLogger) Close() {
	if r == nil {
		return
	}

	r.Log("Generation run %s finished after %v", r.runID, time.Since(r.startTime).Round(time.Millisecond))

	r.mutex.Lock()
	if r.logFile != nil {
		r.logFile.Close()
		r.logFile = nil
	}
	r.mutex.Unlock()

	registryMutex.Lock()
	delete(registry, r.runID)
	registryMutex.Unlock()
}
