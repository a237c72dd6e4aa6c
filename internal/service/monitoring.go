package service

import (
	"context"
	"time"

	"cooling_control"
	"cooling_control/internal/models"
)

// SnapshotSource publishes the latest loop snapshot.
type SnapshotSource interface {
	Snapshot() models.Snapshot
}

type MonitoringService struct {
	source SnapshotSource
	now    func() time.Time
}

func NewMonitoringService(source SnapshotSource) *MonitoringService {
	return &MonitoringService{source: source, now: time.Now}
}

// GetState returns the latest snapshot with the postrun countdown derived at
// request time. Before the first tick the snapshot is the initial one built
// from the loaded settings.
func (s *MonitoringService) GetState(ctx context.Context) (cooling_control.StateResponse, error) {
	if err := ctx.Err(); err != nil {
		return cooling_control.StateResponse{}, err
	}
	snap := s.source.Snapshot()
	snap.UpdatedAt = toUTC(snap.UpdatedAt)
	return cooling_control.NewStateResponse(snap, s.now()), nil
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
