package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cooling_control/internal/models"
)

type SettingsSQLite struct {
	db *sql.DB
}

func NewSettingsSQLite(db *sql.DB) *SettingsSQLite {
	return &SettingsSQLite{db: db}
}

const (
	settingsRowID = 1

	upsertSettingsSQL = `
		INSERT INTO settings (id, setpoint, mode, alarm_threshold, manual_percent, alarm_percent,
			kp, ki, kd, postrun_seconds, swap_sensors, smoothing_enabled, smoothing_alpha,
			actuator_min_override, thermocouple_type, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			setpoint=excluded.setpoint,
			mode=excluded.mode,
			alarm_threshold=excluded.alarm_threshold,
			manual_percent=excluded.manual_percent,
			alarm_percent=excluded.alarm_percent,
			kp=excluded.kp,
			ki=excluded.ki,
			kd=excluded.kd,
			postrun_seconds=excluded.postrun_seconds,
			swap_sensors=excluded.swap_sensors,
			smoothing_enabled=excluded.smoothing_enabled,
			smoothing_alpha=excluded.smoothing_alpha,
			actuator_min_override=excluded.actuator_min_override,
			thermocouple_type=excluded.thermocouple_type,
			updated_at=excluded.updated_at
	`

	selectSettingsSQL = `
		SELECT id, setpoint, mode, alarm_threshold, manual_percent, alarm_percent,
			kp, ki, kd, postrun_seconds, swap_sensors, smoothing_enabled, smoothing_alpha,
			actuator_min_override, thermocouple_type, updated_at
		FROM settings WHERE id=?
	`
)

// Save upserts the settings row (id always 1).
func (r *SettingsSQLite) Save(ctx context.Context, s models.Settings) error {
	ts := s.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	var minOverride sql.NullInt64
	if s.ActuatorMinOverride != nil {
		minOverride = sql.NullInt64{Int64: int64(*s.ActuatorMinOverride), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, upsertSettingsSQL,
		settingsRowID,
		s.Setpoint,
		string(s.Mode),
		s.AlarmThreshold,
		s.ManualPercent,
		s.AlarmPercent,
		s.Kp,
		s.Ki,
		s.Kd,
		s.PostrunSeconds,
		s.SwapSensors,
		s.SmoothingEnabled,
		s.SmoothingAlpha,
		minOverride,
		s.ThermocoupleType,
		ts,
	)
	return err
}

// Load fetches the settings row. Returns (nil, nil) when none was saved.
func (r *SettingsSQLite) Load(ctx context.Context) (*models.Settings, error) {
	row := r.db.QueryRowContext(ctx, selectSettingsSQL, settingsRowID)

	var (
		s           models.Settings
		mode        string
		minOverride sql.NullInt64
	)
	if err := row.Scan(
		&s.ID,
		&s.Setpoint,
		&mode,
		&s.AlarmThreshold,
		&s.ManualPercent,
		&s.AlarmPercent,
		&s.Kp,
		&s.Ki,
		&s.Kd,
		&s.PostrunSeconds,
		&s.SwapSensors,
		&s.SmoothingEnabled,
		&s.SmoothingAlpha,
		&minOverride,
		&s.ThermocoupleType,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	m, err := models.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	s.Mode = m
	if minOverride.Valid {
		v := int(minOverride.Int64)
		s.ActuatorMinOverride = &v
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}
