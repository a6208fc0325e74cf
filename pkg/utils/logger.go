package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerOptions controls where and how the service logs.
type LoggerOptions struct {
	// File is the rotated log file. Empty disables file logging.
	File     string
	JSON     bool
	ToStderr bool
}

// Logger represents the service logger.
type Logger struct {
	logger        *log.Logger
	closer        io.Closer
	jsonMode      bool
	correlationID string
}

// NewLogger builds a logger writing to a lumberjack-rotated file and,
// optionally, stderr.
func NewLogger(opts LoggerOptions) *Logger {
	var writers []io.Writer
	var closer io.Closer
	if opts.File != "" {
		logFile := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    15, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		writers = append(writers, logFile)
		closer = logFile
	}
	if opts.ToStderr {
		writers = append(writers, os.Stderr)
	}
	var out io.Writer = io.Discard
	if len(writers) == 1 {
		out = writers[0]
	} else if len(writers) > 1 {
		out = io.MultiWriter(writers...)
	}
	if os.Getenv("REFACTORD_JSON_LOGS") == "1" {
		opts.JSON = true
	}
	flags := log.LstdFlags
	if opts.JSON {
		flags = 0
	}
	return &Logger{
		logger:   log.New(out, "", flags),
		closer:   closer,
		jsonMode: opts.JSON,
	}
}

// NewWriterLogger logs to w. Used by tests and the CLI.
func NewWriterLogger(w io.Writer, jsonMode bool) *Logger {
	flags := log.LstdFlags
	if jsonMode {
		flags = 0
	}
	return &Logger{logger: log.New(w, "", flags), jsonMode: jsonMode}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWriterLogger(io.Discard, false)
}

// With returns a logger that tags every entry with the given correlation id.
// The returned logger shares the underlying writer.
func (w *Logger) With(correlationID string) *Logger {
	clone := *w
	clone.correlationID = correlationID
	clone.closer = nil
	return &clone
}

// Close closes the logger resources.
func (w *Logger) Close() error {
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// Log logs a general message.
func (w *Logger) Log(message string) {
	if w.jsonMode {
		w.encode(map[string]any{"level": "info", "msg": message})
		return
	}
	w.logger.Print(w.prefix() + message)
}

// Logf logs a formatted general message.
func (w *Logger) Logf(format string, v ...interface{}) {
	w.Log(fmt.Sprintf(format, v...))
}

func (w *Logger) LogError(err error) {
	if err == nil {
		return
	}
	if w.jsonMode {
		w.encode(map[string]any{"level": "error", "error": err.Error(), "code": CodeOf(err)})
		return
	}
	w.logger.Printf("%sError: %s", w.prefix(), err)
}

// LogEvent logs a named event with structured fields. In text mode the fields
// are rendered as sorted key=value pairs.
func (w *Logger) LogEvent(event string, fields map[string]any) {
	if w.jsonMode {
		entry := make(map[string]any, len(fields)+2)
		for k, v := range fields {
			entry[k] = v
		}
		entry["level"] = "info"
		entry["event"] = event
		w.encode(entry)
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(event)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf(" %s=%v", k, fields[k]))
	}
	w.logger.Print(w.prefix() + sb.String())
}

func (w *Logger) prefix() string {
	if w.correlationID == "" {
		return ""
	}
	return "[" + w.correlationID + "] "
}

func (w *Logger) encode(entry map[string]any) {
	if w.correlationID != "" {
		entry["cid"] = w.correlationID
	}
	data, err := json.Marshal(entry)
	if err != nil {
		w.logger.Printf("log encode failed: %v", err)
		return
	}
	w.logger.Print(string(data))
}
