// Package logging provides structured logging for the sync engine.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Fields carries structured context attached to a log line.
type Fields = logrus.Fields

var (
	logger *logrus.Logger
	once   sync.Once
)

// Init initializes the global logger writing JSON lines to out.
func Init(out io.Writer, level string) {
	once.Do(func() {
		logger = newLogger(out, level)
	})
}

// InitFile initializes the global logger writing to a size-rotated file.
func InitFile(path, level string) {
	Init(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    20, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}, level)
}

func newLogger(out io.Writer, level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// Get returns the global logger instance.
func Get() *logrus.Logger {
	if logger == nil {
		Init(os.Stdout, "info")
	}
	return logger
}

// Debug logs a debug message with optional structured context.
func Debug(message string, fields ...Fields) {
	Get().WithFields(merge(fields...)).Debug(message)
}

// Info logs an info message with optional structured context.
func Info(message string, fields ...Fields) {
	Get().WithFields(merge(fields...)).Info(message)
}

// Warn logs a warning message with optional structured context.
func Warn(message string, fields ...Fields) {
	Get().WithFields(merge(fields...)).Warn(message)
}

// Error logs an error message with optional structured context.
func Error(message string, err error, fields ...Fields) {
	entry := Get().WithFields(merge(fields...))
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(message)
}

// merge combines multiple field maps into one.
func merge(fields ...Fields) Fields {
	if len(fields) == 0 {
		return nil
	}
	if len(fields) == 1 {
		return fields[0]
	}
	merged := make(Fields)
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	return merged
}
