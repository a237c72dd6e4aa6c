package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cooling_control/internal/models"
	"cooling_control/internal/repository"
)

// maxLogLimit caps a single listing.
const maxLogLimit = 1000

// ErrInvalidLogFilter wraps every rejection of a journal query.
var ErrInvalidLogFilter = errors.New("invalid log filter")

var (
	errInvalidTimeRange = fmt.Errorf("%w: From must be <= To", ErrInvalidLogFilter)
	errInvalidLimit     = fmt.Errorf("%w: limit must be >= 0", ErrInvalidLogFilter)
	errUnknownEventType = fmt.Errorf("%w: unknown event type", ErrInvalidLogFilter)
)

// EventLogService reads the control journal.
type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.ControlEvent, error) {
	rf, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, rf)
}

func normalizeAndValidateFilter(f LogFilter) (repository.EventFilter, error) {
	rf := repository.EventFilter{
		From:  normalizeToUTC(f.From),
		To:    normalizeToUTC(f.To),
		Type:  normalizeEventType(f.Type),
		Limit: min(f.Limit, maxLogLimit),
	}
	switch {
	case !rf.From.IsZero() && !rf.To.IsZero() && rf.From.After(rf.To):
		return repository.EventFilter{}, errInvalidTimeRange
	case f.Limit < 0:
		return repository.EventFilter{}, errInvalidLimit
	case rf.Type != "" && !models.IsEventType(rf.Type):
		return repository.EventFilter{}, fmt.Errorf("%w %q", errUnknownEventType, rf.Type)
	}
	return rf, nil
}

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func normalizeEventType(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
