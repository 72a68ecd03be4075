package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"shortlink/pkg/cache"
	"shortlink/pkg/logging"
	"shortlink/pkg/storage"
)

// ClickRecorder receives click events from the resolver. Record must return
// without waiting for any I/O and never reports failure to the caller.
type ClickRecorder interface {
	Record(ctx context.Context, event storage.ClickEvent)
	Close(ctx context.Context) error
}

type Deduper interface {
	FirstSeen(ctx context.Context, fingerprint string) (bool, error)
}

// ClickWriter performs the two writes behind one resolution: the clicks
// increment and the ClickEvent insert. Both are attempted independently.
type ClickWriter struct {
	links  storage.LinkStorage
	events storage.ClickEventStorage
	dedup  Deduper
	logger *logging.Logger
}

// NewClickWriter builds a writer; dedup may be nil.
func NewClickWriter(links storage.LinkStorage, events storage.ClickEventStorage, dedup Deduper, logger *logging.Logger) *ClickWriter {
	return &ClickWriter{links: links, events: events, dedup: dedup, logger: logger}
}

func (w *ClickWriter) Write(ctx context.Context, event storage.ClickEvent) error {
	var errs []error
	if err := w.links.IncrementClicks(ctx, event.ShortCode); err != nil {
		errs = append(errs, fmt.Errorf("increment clicks: %w", err))
	}
	if w.isFirstSeen(ctx, event) {
		if err := w.events.InsertClickEvent(ctx, &event); err != nil {
			errs = append(errs, fmt.Errorf("insert click event: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (w *ClickWriter) isFirstSeen(ctx context.Context, event storage.ClickEvent) bool {
	if w.dedup == nil {
		return true
	}
	fp := cache.Fingerprint(event.ShortCode, deref(event.UserAgent), deref(event.Referrer), event.IsQR)
	first, err := w.dedup.FirstSeen(ctx, fp)
	if err != nil {
		w.logger.Warn(ctx, "click dedup unavailable", "code", event.ShortCode, "error", err)
		return true
	}
	if !first {
		w.logger.Debug(ctx, "duplicate click event suppressed", "code", event.ShortCode)
	}
	return first
}

// AsyncRecorder writes each click from its own goroutine with a context
// detached from the request, so a finished response does not cancel it.
// At most maxInFlight writes run at once; clicks beyond that are dropped.
type AsyncRecorder struct {
	writer  *ClickWriter
	timeout time.Duration
	slots   chan struct{}
	logger  *logging.Logger
	wg      sync.WaitGroup
}

func NewAsyncRecorder(writer *ClickWriter, timeout time.Duration, maxInFlight int, logger *logging.Logger) *AsyncRecorder {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &AsyncRecorder{
		writer:  writer,
		timeout: timeout,
		slots:   make(chan struct{}, maxInFlight),
		logger:  logger,
	}
}

func (r *AsyncRecorder) Record(ctx context.Context, event storage.ClickEvent) {
	select {
	case r.slots <- struct{}{}:
	default:
		r.logger.Warn(ctx, "click recorder saturated, dropping click", "code", event.ShortCode, "max_in_flight", cap(r.slots))
		return
	}
	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer func() {
			<-r.slots
			r.wg.Done()
		}()
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		if err := r.writer.Write(ctx, event); err != nil {
			r.logger.Warn(ctx, "click recording failed", "code", event.ShortCode, "error", err)
		}
	}()
}

// Close waits for in-flight writes. Callers stop routing requests first.
func (r *AsyncRecorder) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for click writes: %w", ctx.Err())
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
