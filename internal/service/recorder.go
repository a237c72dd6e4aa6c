package service

import (
	"context"
	"time"

	"cooling_control/internal/logger"
	"cooling_control/internal/models"
	"cooling_control/internal/repository"
)

const (
	recorderBuffer  = 64
	recorderTimeout = 2 * time.Second
)

// EventRecorder journals loop events. It is a loop observer: ObserveEvent
// never blocks the worker and a full buffer drops the event with a warning.
type EventRecorder struct {
	repo   repository.EventRepo
	log    *logger.Logger
	events chan models.ControlEvent

	retention  time.Duration
	pruneEvery time.Duration
	now        func() time.Time
}

type RecorderOption func(*EventRecorder)

// WithRetention deletes events older than retention when Run starts and then
// every interval. A zero retention keeps the journal forever.
func WithRetention(retention, every time.Duration) RecorderOption {
	return func(r *EventRecorder) {
		r.retention = retention
		r.pruneEvery = every
	}
}

func NewEventRecorder(repo repository.EventRepo, log *logger.Logger, opts ...RecorderOption) *EventRecorder {
	if log == nil {
		log = logger.NewNop()
	}
	r := &EventRecorder{
		repo:   repo,
		log:    log,
		events: make(chan models.ControlEvent, recorderBuffer),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *EventRecorder) ObserveTick(models.Snapshot) {}

func (r *EventRecorder) ObserveEvent(e models.ControlEvent) {
	select {
	case r.events <- e:
	default:
		r.log.Warnw("event_dropped", "type", e.Type, "event_id", e.EventID)
	}
}

// Run writes buffered events until ctx is canceled, then drains what is left.
// Pruning shares the goroutine so the journal has a single writer.
func (r *EventRecorder) Run(ctx context.Context) {
	var prune <-chan time.Time
	if r.retention > 0 && r.pruneEvery > 0 {
		r.prune()
		t := time.NewTicker(r.pruneEvery)
		defer t.Stop()
		prune = t.C
	}
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return
		case e := <-r.events:
			r.write(e)
		case <-prune:
			r.prune()
		}
	}
}

func (r *EventRecorder) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), recorderTimeout)
	defer cancel()
	cutoff := r.now().Add(-r.retention)
	n, err := r.repo.Prune(ctx, cutoff)
	if err != nil {
		r.log.Errorw("journal_prune_failed", "before", cutoff, "err", err)
		return
	}
	if n > 0 {
		r.log.Infow("journal_pruned", "removed", n, "before", cutoff)
	}
}

func (r *EventRecorder) drain() {
	for {
		select {
		case e := <-r.events:
			r.write(e)
		default:
			return
		}
	}
}

func (r *EventRecorder) write(e models.ControlEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), recorderTimeout)
	defer cancel()
	if err := r.repo.Append(ctx, e); err != nil {
		r.log.Errorw("event_append_failed", "type", e.Type, "event_id", e.EventID, "err", err)
	}
}
