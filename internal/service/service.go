package service

import (
	"context"
	"time"

	"cooling_control"
	"cooling_control/internal/logger"
	"cooling_control/internal/models"
	"cooling_control/internal/repository"
)

// Authorization manages operator accounts and bearer tokens.
type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (models.Operator, error)
}

// Control exposes operator commands. Every accepted command is persisted
// and journaled; the loop applies it at the start of its next tick.
type Control interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	SetSetpoint(ctx context.Context, v float64) error
	SetMode(ctx context.Context, mode string) error
	SetManualPercent(ctx context.Context, p float64) error
	SetAlarm(ctx context.Context, p AlarmParams) error
	SetGains(ctx context.Context, p GainsParams) error
	SetSwapSensors(ctx context.Context, swap bool) error
	SetPostrunSeconds(ctx context.Context, sec float64) error
	SetActuatorMin(ctx context.Context, min *int) error
	SetSmoothing(ctx context.Context, p SmoothingParams) error
	SetThermocoupleType(ctx context.Context, tc string) error
	ApplySettings(ctx context.Context, s models.Settings) error
}

// Monitoring exposes the latest published snapshot.
type Monitoring interface {
	GetState(ctx context.Context) (cooling_control.StateResponse, error)
}

// EventLog exposes the control-event journal with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.ControlEvent, error)
}

// Diagnostics exposes on-demand bus scans and raw sensor reads.
type Diagnostics interface {
	Scan(ctx context.Context) (cooling_control.ScanResponse, error)
	RawRead(ctx context.Context) (cooling_control.RawReadResponse, error)
}

// Service aggregates all sub-services.
type Service struct {
	Control
	Monitoring
	EventLog
	Diagnostics
	Authorization
}

// Deps carries what NewService wires besides the repositories.
type Deps struct {
	Loop        ControlLoop
	Diagnostics DiagnosticsSource
	SigningKey  string
	TokenTTL    time.Duration
	Log         *logger.Logger
}

func NewService(repos *repository.Repository, d Deps) *Service {
	return &Service{
		Control:       NewControlService(d.Loop, repos.SettingsRepo, repos.EventRepo, d.Log),
		Monitoring:    NewMonitoringService(d.Loop),
		EventLog:      NewEventLogService(repos.EventRepo),
		Diagnostics:   NewDiagnosticsService(d.Diagnostics),
		Authorization: NewAuthService(repos.Auth, d.SigningKey, d.TokenTTL),
	}
}
