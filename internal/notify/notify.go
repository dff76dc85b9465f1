package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a transient user-facing message. Key groups repeats of
// the same notice (e.g. "orders_loaded").
type Notification struct {
	ID      uuid.UUID
	Key     string
	Level   Level
	Message string
	Time    time.Time
}

func New(level Level, format string, args ...any) Notification {
	return Notification{
		ID:      uuid.New(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
		Time:    time.Now().UTC(),
	}
}

func (n Notification) WithKey(key string) Notification {
	n.Key = key
	return n
}

type Notifier interface {
	Notify(n Notification)
}

type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(n Notification) {
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelError
	}
	l.logger.Log(context.Background(), level, n.Message, "notification_id", n.ID, "kind", n.Level, "key", n.Key)
}

// Printer writes one line per notification, for terminals.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Notify(n Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s [%s] %s\n", n.Time.Local().Format("15:04:05"), n.Level, n.Message)
}

type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.items {
		if item.Level == level {
			n++
		}
	}
	return n
}

type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, target := range m {
		target.Notify(n)
	}
}
