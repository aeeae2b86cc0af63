// Package klog wraps zap the way a hosted kernel's console logging would:
// one process-wide sugared logger, structured fields for the identifiers
// subsystems actually care about (pid, dev, req), and a Fatal path that
// stands in for PANIC()'s "disable interrupts and halt."
package klog

import (
	"go.uber.org/zap"
)

// Logger is the kernel-wide structured logger. It is a thin wrapper so that
// call sites read like the teacher's fmt.Printf calls ("Blockdev driver %s
// added") but carry fields instead of interpolated strings where it helps
// post-hoc debugging (pid, dev, req).
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a production logger at the given level name ("debug", "info",
// "warn", "error"). An unrecognized level falls back to "info".
func New(level string) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{s: l.Sugar()}, nil
}

// Nop returns a logger that discards everything, for tests.
func Nop() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

func (l *Logger) Infof(format string, args ...interface{})  { l.s.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.s.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.s.Errorf(format, args...) }
func (l *Logger) Fatalf(format string, args ...interface{}) { l.s.Fatalf(format, args...) }

// With returns a child logger with the given structured fields attached,
// e.g. klog.With("pid", p.Pid).Infof("forked").
func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{s: l.s.With(kv...)}
}

func (l *Logger) Sync() error { return l.s.Sync() }
