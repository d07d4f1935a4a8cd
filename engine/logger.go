package engine

import (
	"fmt"
	"log"
	"os"
)

// LogLevel represents the engine's logging verbosity.
type LogLevel int

const (
	// LogLevelNone disables all logging.
	LogLevelNone LogLevel = iota
	// LogLevelError enables error logging.
	LogLevelError
	// LogLevelInfo enables info and error logging.
	LogLevelInfo
	// LogLevelDebug enables all logging, including per-block tracing.
	LogLevelDebug
)

var currentLogLevel = LogLevelError

var (
	debugLogger *log.Logger
	infoLogger  *log.Logger
	errorLogger *log.Logger
)

func init() {
	debugLogger = log.New(os.Stdout, "[DEBUG] ", log.Ldate|log.Ltime|log.Lshortfile)
	infoLogger = log.New(os.Stdout, "[INFO] ", log.Ldate|log.Ltime|log.Lshortfile)
	errorLogger = log.New(os.Stderr, "[ERROR] ", log.Ldate|log.Ltime|log.Lshortfile)
}

// SetLogLevel changes the package-wide verbosity. Intended for tests and
// cmd/buddybench; not safe to call concurrently with allocator traffic.
func SetLogLevel(l LogLevel) {
	currentLogLevel = l
}

// Debug logs block-level tracing: splits, joins, growth decisions.
func Debug(format string, v ...interface{}) {
	if currentLogLevel >= LogLevelDebug {
		debugLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

// Info logs coarse lifecycle events: region init, growth.
func Info(format string, v ...interface{}) {
	if currentLogLevel >= LogLevelInfo {
		infoLogger.Output(2, fmt.Sprintf(format, v...))
	}
}

// Error logs recoverable failures: growth refusal.
func Error(format string, v ...interface{}) {
	if currentLogLevel >= LogLevelError {
		errorLogger.Output(2, fmt.Sprintf(format, v...))
	}
}
