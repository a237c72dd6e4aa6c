package service

import (
	"context"

	"cooling_control"
)

// DiagnosticsSource performs the blocking bus work.
type DiagnosticsSource interface {
	Scan() (cooling_control.ScanResponse, error)
	RawRead() cooling_control.RawReadResponse
}

type DiagnosticsService struct {
	source DiagnosticsSource
}

func NewDiagnosticsService(source DiagnosticsSource) *DiagnosticsService {
	return &DiagnosticsService{source: source}
}

// Scan probes the buses. The bus lock is shared with the control loop, so a
// scan may wait behind a tick; the caller's context bounds that wait.
func (s *DiagnosticsService) Scan(ctx context.Context) (cooling_control.ScanResponse, error) {
	type result struct {
		resp cooling_control.ScanResponse
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := s.source.Scan()
		ch <- result{resp, err}
	}()
	select {
	case <-ctx.Done():
		return cooling_control.ScanResponse{}, ctx.Err()
	case r := <-ch:
		return r.resp, r.err
	}
}

// RawRead samples every configured channel once without touching the loop.
func (s *DiagnosticsService) RawRead(ctx context.Context) (cooling_control.RawReadResponse, error) {
	ch := make(chan cooling_control.RawReadResponse, 1)
	go func() { ch <- s.source.RawRead() }()
	select {
	case <-ctx.Done():
		return cooling_control.RawReadResponse{}, ctx.Err()
	case r := <-ch:
		return r, nil
	}
}
