package logger

import (
	"fmt"
	"io"
	"log"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	e *logrus.Entry
}

func New(l *logrus.Logger) *Logger {
	return &Logger{e: logrus.NewEntry(l)}
}

func NewWithLevel(w io.Writer, level string) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	l.SetLevel(lvl)

	return New(l)
}

func Discard() *Logger {
	return NewWithLevel(io.Discard, "panic")
}

func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{e: l.e.WithFields(fields)}
}

func (l *Logger) LogErrorf(format string, v ...any) {
	l.e.Error(fmt.Sprintf(format, v...))
}

func (l *Logger) LogWarnf(format string, v ...any) {
	l.e.Warn(fmt.Sprintf(format, v...))
}

func (l *Logger) LogInfo(format string, v ...any) {
	l.e.Info(fmt.Sprintf(format, v...))
}

func (l *Logger) LogDebugf(format string, v ...any) {
	l.e.Debug(fmt.Sprintf(format, v...))
}

func (l *Logger) StdLogger() *log.Logger {
	return log.New(l.e.WriterLevel(logrus.ErrorLevel), "", 0)
}
