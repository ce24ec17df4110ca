package main

import (
	"time"

	"github.com/sirupsen/logrus"
)

// logrusLogger adapts a *logrus.Logger to httpcore.Logger, demonstrating
// that the narrow logging interface is backend-agnostic.
type logrusLogger struct {
	entry *logrus.Entry
}

func newLogrusLogger() *logrusLogger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) Log(err error, context string) {
	l.entry.WithField("context", context).WithError(err).Warn("httpcore error")
}

func (l *logrusLogger) Logf(format string, args ...any) {
	l.entry.Infof(format, args...)
}

func (l *logrusLogger) LogRequest(t time.Time, line string) {
	l.entry.WithField("at", t.Format(time.RFC3339)).Info(line)
}
