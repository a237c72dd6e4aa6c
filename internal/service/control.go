package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"cooling_control/internal/logger"
	"cooling_control/internal/models"
	"cooling_control/internal/repository"
	"cooling_control/internal/sensor"

	"github.com/google/uuid"
)

// ControlLoop is the part of the control loop the service drives.
type ControlLoop interface {
	Start()
	Stop()
	Running() bool
	Snapshot() models.Snapshot
	Settings() models.Settings

	SetSetpoint(v float64)
	SetMode(m models.Mode)
	SetManualPercent(p float64)
	SetAlarmPercent(p float64)
	SetAlarmThreshold(t float64)
	SetGains(kp, ki, kd float64)
	SetSwapSensors(swap bool)
	SetPostrunSeconds(sec float64)
	SetActuatorMinOverride(min *int)
	SetSmoothing(enabled bool, alpha float64)
	SetThermocoupleType(tc string)
	ApplySettings(s models.Settings)
}

var (
	ErrPercentOutOfRange = errors.New("percent must be within [0,100]")
	ErrNotFinite         = errors.New("value must be a finite number")
	ErrNegativeGain      = errors.New("gains must be >= 0")
	ErrNegativePostrun   = errors.New("postrun seconds must be >= 0")
	ErrAlphaOutOfRange   = errors.New("smoothing alpha must be within (0,1]")
	ErrNegativeMin       = errors.New("actuator minimum must be >= 0")
	ErrEmptyAlarm        = errors.New("alarm threshold or percent is required")

	// ErrStorage marks a command the loop accepted but that could not be
	// persisted or journaled.
	ErrStorage = errors.New("storage failure")
)

type ControlService struct {
	loop         ControlLoop
	settingsRepo repository.SettingsRepo
	eventRepo    repository.EventRepo
	log          *logger.Logger
	now          func() time.Time
}

func NewControlService(loop ControlLoop, settingsRepo repository.SettingsRepo,
	eventRepo repository.EventRepo, log *logger.Logger) *ControlService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ControlService{
		loop:         loop,
		settingsRepo: settingsRepo,
		eventRepo:    eventRepo,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Start runs the loop. The loop journals START itself through the recorder.
func (s *ControlService) Start(ctx context.Context) error {
	s.loop.Start()
	return nil
}

// Stop halts the loop and drives the actuator to 0.
func (s *ControlService) Stop(ctx context.Context) error {
	s.loop.Stop()
	return nil
}

func (s *ControlService) SetSetpoint(ctx context.Context, v float64) error {
	if !finite(v) {
		return ErrNotFinite
	}
	s.loop.SetSetpoint(v)
	return s.commit(ctx, models.EventSettingChange, "setpoint", v)
}

func (s *ControlService) SetMode(ctx context.Context, mode string) error {
	m, err := models.ParseMode(mode)
	if err != nil {
		return err
	}
	s.loop.SetMode(m)
	return s.commit(ctx, models.EventModeChange, "mode", string(m))
}

func (s *ControlService) SetManualPercent(ctx context.Context, p float64) error {
	if err := checkPercent(p); err != nil {
		return err
	}
	s.loop.SetManualPercent(p)
	return s.commit(ctx, models.EventSettingChange, "manual_percent", p)
}

// SetAlarm changes the alarm threshold and/or the alarm output percent.
func (s *ControlService) SetAlarm(ctx context.Context, p AlarmParams) error {
	if p.Threshold == nil && p.Percent == nil {
		return ErrEmptyAlarm
	}
	if p.Threshold != nil && !finite(*p.Threshold) {
		return ErrNotFinite
	}
	if p.Percent != nil {
		if err := checkPercent(*p.Percent); err != nil {
			return err
		}
	}

	meta := map[string]any{}
	if p.Threshold != nil {
		s.loop.SetAlarmThreshold(*p.Threshold)
		meta["alarm_threshold"] = *p.Threshold
	}
	if p.Percent != nil {
		s.loop.SetAlarmPercent(*p.Percent)
		meta["alarm_percent"] = *p.Percent
	}
	return s.commitMeta(ctx, models.EventSettingChange, "alarm settings changed", meta)
}

func (s *ControlService) SetGains(ctx context.Context, p GainsParams) error {
	if !finite(p.Kp) || !finite(p.Ki) || !finite(p.Kd) {
		return ErrNotFinite
	}
	if p.Kp < 0 || p.Ki < 0 || p.Kd < 0 {
		return ErrNegativeGain
	}
	s.loop.SetGains(p.Kp, p.Ki, p.Kd)
	return s.commitMeta(ctx, models.EventSettingChange, "gains changed", map[string]any{
		"kp": p.Kp, "ki": p.Ki, "kd": p.Kd,
	})
}

func (s *ControlService) SetSwapSensors(ctx context.Context, swap bool) error {
	s.loop.SetSwapSensors(swap)
	return s.commit(ctx, models.EventSettingChange, "swap_sensors", swap)
}

func (s *ControlService) SetPostrunSeconds(ctx context.Context, sec float64) error {
	if !finite(sec) {
		return ErrNotFinite
	}
	if sec < 0 {
		return ErrNegativePostrun
	}
	s.loop.SetPostrunSeconds(sec)
	return s.commit(ctx, models.EventSettingChange, "postrun_seconds", sec)
}

// SetActuatorMin overrides the lower end of the actuator range; nil restores
// the configured minimum.
func (s *ControlService) SetActuatorMin(ctx context.Context, min *int) error {
	if min != nil && *min < 0 {
		return ErrNegativeMin
	}
	s.loop.SetActuatorMinOverride(min)
	var v any
	if min != nil {
		v = *min
	}
	return s.commit(ctx, models.EventSettingChange, "actuator_min_override", v)
}

func (s *ControlService) SetSmoothing(ctx context.Context, p SmoothingParams) error {
	if !finite(p.Alpha) || p.Alpha < 0 || p.Alpha > 1 {
		return ErrAlphaOutOfRange
	}
	s.loop.SetSmoothing(p.Enabled, p.Alpha)
	cur := s.loop.Settings()
	return s.commitMeta(ctx, models.EventSettingChange, "smoothing changed", map[string]any{
		"enabled": cur.SmoothingEnabled, "alpha": cur.SmoothingAlpha,
	})
}

func (s *ControlService) SetThermocoupleType(ctx context.Context, tc string) error {
	t, err := sensor.ParseThermocoupleType(tc)
	if err != nil {
		return err
	}
	s.loop.SetThermocoupleType(t.String())
	return s.commit(ctx, models.EventSettingChange, "thermocouple_type", t.String())
}

// ApplySettings replaces every operator setting at once, e.g. after a config
// reload. Values are validated as a whole before anything is forwarded.
func (s *ControlService) ApplySettings(ctx context.Context, next models.Settings) error {
	if err := validateSettings(next); err != nil {
		return err
	}
	s.loop.ApplySettings(next)
	return s.commitMeta(ctx, models.EventSettingChange, "settings reloaded", nil)
}

func (s *ControlService) commit(ctx context.Context, typ, name string, value any) error {
	desc := fmt.Sprintf("%s set to %v", name, value)
	if value == nil {
		desc = name + " cleared"
	}
	return s.commitMeta(ctx, typ, desc, map[string]any{"setting": name, "value": value})
}

// commitMeta persists the loop's pending settings and journals the change.
// The loop has already accepted the command; a storage failure is returned
// but does not roll it back.
func (s *ControlService) commitMeta(ctx context.Context, typ, desc string, meta map[string]any) error {
	now := s.now()
	st := s.loop.Settings()
	st.ID = 1
	st.UpdatedAt = now
	if err := s.settingsRepo.Save(ctx, st); err != nil {
		s.log.Errorw("settings_save_failed", "err", err)
		return fmt.Errorf("%w: save settings: %w", ErrStorage, err)
	}

	ev := models.ControlEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  now,
		Type:        typ,
		Description: desc,
	}
	if op, ok := OperatorFrom(ctx); ok {
		if meta == nil {
			meta = map[string]any{}
		}
		meta["operator"] = op.Username
	}
	if meta != nil {
		ev.Metadata = meta
	}
	if err := s.eventRepo.Append(ctx, ev); err != nil {
		s.log.Errorw("event_append_failed", "type", typ, "err", err)
		return fmt.Errorf("%w: append event: %w", ErrStorage, err)
	}
	s.log.Infow("setting_changed", "type", typ, "description", desc, "operator", meta["operator"])
	return nil
}

func validateSettings(st models.Settings) error {
	if _, err := models.ParseMode(string(st.Mode)); err != nil {
		return err
	}
	for _, v := range []float64{st.Setpoint, st.AlarmThreshold, st.Kp, st.Ki, st.Kd, st.PostrunSeconds} {
		if !finite(v) {
			return ErrNotFinite
		}
	}
	if err := checkPercent(st.ManualPercent); err != nil {
		return err
	}
	if err := checkPercent(st.AlarmPercent); err != nil {
		return err
	}
	if st.Kp < 0 || st.Ki < 0 || st.Kd < 0 {
		return ErrNegativeGain
	}
	if st.PostrunSeconds < 0 {
		return ErrNegativePostrun
	}
	if st.SmoothingAlpha <= 0 || st.SmoothingAlpha > 1 {
		return ErrAlphaOutOfRange
	}
	if st.ActuatorMinOverride != nil && *st.ActuatorMinOverride < 0 {
		return ErrNegativeMin
	}
	if st.ThermocoupleType != "" {
		if _, err := sensor.ParseThermocoupleType(st.ThermocoupleType); err != nil {
			return err
		}
	}
	return nil
}

func checkPercent(p float64) error {
	if !finite(p) || p < 0 || p > 100 {
		return ErrPercentOutOfRange
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
