package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// InfoLogger logs informational messages
	InfoLogger *zap.SugaredLogger
	// ErrorLogger logs error messages
	ErrorLogger *zap.SugaredLogger
	// DebugLogger logs debug messages
	DebugLogger *zap.SugaredLogger
)

// InitLogger initializes the loggers. Each level gets its own daily file under
// logsDir; errors are mirrored to stderr.
func InitLogger(logsDir string) error {
	if logsDir == "" {
		logsDir = "logs"
	}
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %v", err)
	}

	timestamp := time.Now().Format("2006-01-02")
	open := func(prefix string) (*os.File, error) {
		return os.OpenFile(
			filepath.Join(logsDir, fmt.Sprintf("%s-%s.log", prefix, timestamp)),
			os.O_APPEND|os.O_CREATE|os.O_WRONLY,
			0644,
		)
	}

	infoFile, err := open("info")
	if err != nil {
		return fmt.Errorf("failed to open info log file: %v", err)
	}
	errorFile, err := open("error")
	if err != nil {
		return fmt.Errorf("failed to open error log file: %v", err)
	}
	debugFile, err := open("debug")
	if err != nil {
		return fmt.Errorf("failed to open debug log file: %v", err)
	}

	InfoLogger = newFileLogger(zapcore.AddSync(infoFile), zapcore.InfoLevel, "INFO")
	ErrorLogger = newFileLogger(zapcore.NewMultiWriteSyncer(zapcore.AddSync(errorFile), zapcore.Lock(os.Stderr)), zapcore.ErrorLevel, "ERROR")
	DebugLogger = newFileLogger(zapcore.AddSync(debugFile), zapcore.DebugLevel, "DEBUG")

	return nil
}

func newFileLogger(ws zapcore.WriteSyncer, level zapcore.Level, name string) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), ws, level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Named(name).Sugar()
}

// SyncLoggers flushes buffered log entries.
func SyncLoggers() {
	for _, l := range []*zap.SugaredLogger{InfoLogger, ErrorLogger, DebugLogger} {
		if l != nil {
			_ = l.Sync()
		}
	}
}

// LogInfo logs an informational message
func LogInfo(format string, v ...interface{}) {
	if InfoLogger != nil {
		InfoLogger.Infof(format, v...)
	}
}

// LogError logs an error message
func LogError(format string, v ...interface{}) {
	if ErrorLogger != nil {
		ErrorLogger.Errorf(format, v...)
	}
}

// LogDebug logs a debug message
func LogDebug(format string, v ...interface{}) {
	if DebugLogger != nil {
		DebugLogger.Debugf(format, v...)
	}
}

// LogRequest logs HTTP request details
func LogRequest(method, path, ip string, status int, duration time.Duration) {
	LogInfo("Request: %s %s from %s - Status: %d - Duration: %v", method, path, ip, status, duration)
}

// LogErrorWithStack logs an error with stack trace
func LogErrorWithStack(err error, stack []byte) {
	if ErrorLogger != nil {
		ErrorLogger.Errorf("Error: %v\nStack Trace:\n%s", err, stack)
	}
}
