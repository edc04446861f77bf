package logger

import (
	"context"
	"sync"
)

type contextKey struct{}

var (
	defaultLogger   *Logger
	defaultLoggerMu sync.RWMutex
)

func init() {
	defaultLogger = New(nil)
}

// GetDefault returns the process-wide logger.
func GetDefault() *Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger replaces the logger used when a context carries none.
func SetDefaultLogger(l *Logger) {
	if l == nil {
		return
	}
	defaultLoggerMu.Lock()
	defaultLogger = l
	defaultLoggerMu.Unlock()
}

// WithContext returns ctx carrying l.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the logger carried by ctx, or the default one.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(*Logger); ok {
			return l
		}
	}
	return GetDefault()
}

// WithFields returns ctx whose logger carries fields in addition to its own.
func WithFields(ctx context.Context, fields Fields) context.Context {
	return FromContext(ctx).WithFields(fields).WithContext(ctx)
}

// ForJob scopes the context logger to one job.
func ForJob(ctx context.Context, jobID, component string) context.Context {
	return WithFields(ctx, Fields{FieldJobID: jobID, FieldComponent: component})
}

// ForTask scopes the context logger to one task of the current job.
func ForTask(ctx context.Context, taskID string, order int, step string) context.Context {
	return WithFields(ctx, Fields{FieldTaskID: taskID, FieldTaskOrder: order, FieldStep: step})
}
