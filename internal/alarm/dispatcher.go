// Package alarm fires the drowsiness alarm side effects.
//
// Raise never blocks the caller: each notifier runs on its own goroutine
// with a timeout, and its errors and panics are logged and counted.
package alarm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"EYE_MONITOR/go-backend/internal/models"
	"EYE_MONITOR/go-backend/internal/services"
)

const DefaultTimeout = 15 * time.Second

// Notifier performs one alarm side effect.
type Notifier interface {
	Notify(ctx context.Context, ev models.AlarmEvent) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev models.AlarmEvent) error

func (f NotifierFunc) Notify(ctx context.Context, ev models.AlarmEvent) error {
	return f(ctx, ev)
}

type namedNotifier struct {
	name string
	n    Notifier
}

type Dispatcher struct {
	mu        sync.RWMutex
	notifiers []namedNotifier
	timeout   time.Duration
	metrics   *services.Metrics

	wg sync.WaitGroup
}

func NewDispatcher(timeout time.Duration, metrics *services.Metrics) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if metrics == nil {
		metrics = services.GetMetrics()
	}
	return &Dispatcher{timeout: timeout, metrics: metrics}
}

// Add registers a notifier under name.
func (d *Dispatcher) Add(name string, n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers = append(d.notifiers, namedNotifier{name: name, n: n})
}

func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.notifiers)
}

// Raise starts every notifier for ev and returns immediately.
func (d *Dispatcher) Raise(ev models.AlarmEvent) {
	d.metrics.IncrementAlarms()

	d.mu.RLock()
	notifiers := make([]namedNotifier, len(d.notifiers))
	copy(notifiers, d.notifiers)
	d.mu.RUnlock()

	slog.Warn("drowsiness alarm raised",
		"session_id", ev.SessionID,
		"seq", ev.Seq,
		"closed_frames", ev.ClosedFrames,
		"blinks", ev.BlinkCount,
		"notifiers", len(notifiers),
	)

	for _, nn := range notifiers {
		d.wg.Add(1)
		go d.run(nn, ev)
	}
}

func (d *Dispatcher) run(nn namedNotifier, ev models.AlarmEvent) {
	defer d.wg.Done()

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			d.metrics.IncrementAlarmFailures()
			slog.Error("alarm notifier failed",
				"notifier", nn.name,
				"session_id", ev.SessionID,
				"seq", ev.Seq,
				"error", err,
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	err = nn.n.Notify(ctx, ev)
}

// Wait blocks until in-flight notifiers finish or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
