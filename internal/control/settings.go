package control

import (
	"cooling_control/internal/models"
)

// Setters record the value in the pending settings; the worker applies them
// at the start of the next tick.

func (l *Loop) SetSetpoint(v float64) {
	l.update(func(s *models.Settings) { s.Setpoint = v })
}

func (l *Loop) SetMode(m models.Mode) {
	l.update(func(s *models.Settings) { s.Mode = m })
}

func (l *Loop) SetManualPercent(p float64) {
	l.update(func(s *models.Settings) { s.ManualPercent = p })
}

func (l *Loop) SetAlarmPercent(p float64) {
	l.update(func(s *models.Settings) { s.AlarmPercent = p })
}

func (l *Loop) SetAlarmThreshold(t float64) {
	l.update(func(s *models.Settings) { s.AlarmThreshold = t })
}

func (l *Loop) SetGains(kp, ki, kd float64) {
	l.update(func(s *models.Settings) { s.Kp, s.Ki, s.Kd = kp, ki, kd })
}

func (l *Loop) SetSwapSensors(swap bool) {
	l.update(func(s *models.Settings) { s.SwapSensors = swap })
}

func (l *Loop) SetPostrunSeconds(sec float64) {
	l.update(func(s *models.Settings) { s.PostrunSeconds = sec })
}

// SetActuatorMinOverride replaces the actuator's configured minimum; nil clears it.
func (l *Loop) SetActuatorMinOverride(min *int) {
	var v *int
	if min != nil {
		m := *min
		v = &m
	}
	l.update(func(s *models.Settings) { s.ActuatorMinOverride = v })
}

func (l *Loop) SetSmoothing(enabled bool, alpha float64) {
	l.update(func(s *models.Settings) {
		s.SmoothingEnabled = enabled
		if alpha > 0 {
			s.SmoothingAlpha = alpha
		}
	})
}

func (l *Loop) SetThermocoupleType(tc string) {
	l.update(func(s *models.Settings) { s.ThermocoupleType = tc })
}

// ApplySettings replaces all pending settings at once.
func (l *Loop) ApplySettings(next models.Settings) {
	l.update(func(s *models.Settings) { *s = cloneSettings(next) })
}

// Settings returns the pending settings, i.e. what the next tick will use.
func (l *Loop) Settings() models.Settings {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneSettings(l.pending)
}

func (l *Loop) update(fn func(s *models.Settings)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&l.pending)
}

func cloneSettings(s models.Settings) models.Settings {
	if s.ActuatorMinOverride != nil {
		v := *s.ActuatorMinOverride
		s.ActuatorMinOverride = &v
	}
	return s
}

func sameIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
