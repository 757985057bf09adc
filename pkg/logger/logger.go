package logger

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	info  *log.Logger
	error *log.Logger
	warn  *log.Logger
}

func New() *Logger {
	return newWithWriter(os.Stdout, os.Stderr)
}

// NewWithFile mirrors every line into a size-rotated file next to the console output.
func NewWithFile(path string) *Logger {
	if path == "" {
		return New()
	}
	rotated := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	return newWithWriter(io.MultiWriter(os.Stdout, rotated), io.MultiWriter(os.Stderr, rotated))
}

func newWithWriter(out, errOut io.Writer) *Logger {
	flags := log.Ldate | log.Ltime | log.Lmicroseconds
	return &Logger{
		info:  log.New(out, "[INFO] ", flags),
		error: log.New(errOut, "[ERROR] ", flags),
		warn:  log.New(out, "[WARN] ", flags),
	}
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.info.Printf(format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.error.Printf(format, v...)
}

func (l *Logger) Warn(format string, v ...interface{}) {
	l.warn.Printf(format, v...)
}
