package control

import (
	"time"

	"cooling_control/internal/models"
)

// alarmMachine tracks Normal -> Alarm -> Postrun -> Normal, with
// Postrun -> Alarm when the protected temperature rises again.
type alarmMachine struct {
	state  models.AlarmState
	expiry time.Time
}

func newAlarmMachine() alarmMachine {
	return alarmMachine{state: models.AlarmNormal}
}

// update advances the machine by one tick. A nil temperature leaves the
// alarm decision untouched, but a pending postrun still expires.
// Postrun -> Normal is only taken from a tick that began in Postrun, so
// Alarm never reaches Normal within one tick even with a zero postrun.
func (a *alarmMachine) update(t *float64, threshold, postrunSeconds float64, now time.Time) (from, to models.AlarmState) {
	from = a.state

	if t != nil {
		switch {
		case *t > threshold:
			a.state = models.AlarmActive
			a.expiry = time.Time{}
		case a.state == models.AlarmActive:
			a.state = models.AlarmPostrun
			a.expiry = now.Add(time.Duration(postrunSeconds * float64(time.Second)))
		}
	}

	if from == models.AlarmPostrun && a.state == models.AlarmPostrun && !now.Before(a.expiry) {
		a.state = models.AlarmNormal
		a.expiry = time.Time{}
	}
	return from, a.state
}

// forcing reports whether the alarm output overrides the regulator.
func (a *alarmMachine) forcing() bool {
	return a.state == models.AlarmActive || a.state == models.AlarmPostrun
}

func (a *alarmMachine) postrunExpiry() *time.Time {
	if a.state != models.AlarmPostrun {
		return nil
	}
	t := a.expiry
	return &t
}
