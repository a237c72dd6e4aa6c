// Package control runs the cooling control loop: sensor acquisition,
// smoothing, the alarm/postrun machine, regulation and actuation, one tick
// at a time on a single worker goroutine.
package control

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cooling_control/internal/actuator"
	"cooling_control/internal/logger"
	"cooling_control/internal/models"
	"cooling_control/internal/sensor"

	"github.com/google/uuid"
)

const (
	regulated = 0
	protected = 1
)

// Channel is one physical temperature sensor.
type Channel interface {
	Read() sensor.Reading
	Label() string
	Address() string
}

// Regulator produces the Auto-mode output from a measurement.
type Regulator interface {
	Compute(measured float64) float64
	UpdateSetpoint(v float64)
	SetGains(kp, ki, kd float64)
	Reset()
}

// Observer receives every published snapshot and every event, on the
// worker goroutine after the snapshot is visible to readers. Observers
// must not block.
type Observer interface {
	ObserveTick(s models.Snapshot)
	ObserveEvent(e models.ControlEvent)
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observers = append(l.observers, o) }
}

// WithThermocoupleSetter is called when the thermocouple type setting changes.
func WithThermocoupleSetter(fn func(tc string) error) Option {
	return func(l *Loop) { l.setThermocouple = fn }
}

// Loop owns the control state. Readers get immutable snapshots through
// Snapshot; writers go through the setters, which take effect on the next tick.
type Loop struct {
	sensors   [2]Channel
	reg       Regulator
	act       actuator.Actuator
	interval  time.Duration
	now       func() time.Time
	log       *logger.Logger
	observers []Observer

	setThermocouple func(tc string) error

	mu      sync.Mutex
	pending models.Settings

	lifecycle sync.Mutex
	running   bool
	stop      chan struct{}
	done      chan struct{}

	// worker state
	applied    models.Settings
	smooth     [2]ema
	alarm      alarmMachine
	output     float64
	last       [2]sensor.Reading
	lastStatus [2]models.ChannelStatus
	lastFault  models.ActuatorFault
	ticks      uint64

	snap atomic.Pointer[models.Snapshot]
}

// New builds a stopped loop. sensors[0] is the regulated channel and
// sensors[1] the protected one unless SwapSensors is set.
func New(sensors [2]Channel, reg Regulator, act actuator.Actuator, interval time.Duration,
	initial models.Settings, log *logger.Logger, opts ...Option) *Loop {
	if log == nil {
		log = logger.NewNop()
	}
	l := &Loop{
		sensors:  sensors,
		reg:      reg,
		act:      act,
		interval: interval,
		now:      time.Now,
		log:      log,
		alarm:    newAlarmMachine(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if initial.Mode == "" {
		initial.Mode = models.ModeAuto
	}
	l.pending = cloneSettings(initial)
	l.applied = cloneSettings(initial)
	l.reg.UpdateSetpoint(initial.Setpoint)
	l.reg.SetGains(initial.Kp, initial.Ki, initial.Kd)
	l.reg.Reset()
	if initial.ActuatorMinOverride != nil {
		l.act.SetMinOverride(initial.ActuatorMinOverride)
	}
	for i := range l.lastStatus {
		l.lastStatus[i] = models.StatusOK
	}
	l.lastFault = act.Status().Fault
	l.output = act.Status().Percent
	l.publish(l.buildSnapshot(l.now(), false))
	return l
}

// Start spawns the worker. It is a no-op when already running.
func (l *Loop) Start() {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	l.log.Infow("control_loop_started", "interval_ms", l.interval.Milliseconds())
	l.emit(models.EventStart, "Control loop started", nil)
	go l.run(l.stop, l.done)
}

// Stop lets the current tick finish, joins the worker and forces the
// actuator to 0. Calling it again only repeats the actuator stop.
func (l *Loop) Stop() {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	wasRunning := l.running
	if l.running {
		close(l.stop)
		<-l.done
		l.running = false
	}
	l.act.Stop()
	l.output = 0

	l.publishTick(false, 0)
	if wasRunning {
		l.log.Infow("control_loop_stopped", "ticks", l.ticks)
		l.emit(models.EventStop, "Control loop stopped", nil)
	}
}

// Running reports whether the worker is active.
func (l *Loop) Running() bool {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()
	return l.running
}

// Snapshot returns the last published state.
func (l *Loop) Snapshot() models.Snapshot {
	return *l.snap.Load()
}

// The delay to the next tick is measured from the end of the previous one.
func (l *Loop) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-stop:
			return
		case <-timer.C:
		}
		select {
		case <-stop:
			return
		default:
		}
		l.tick(true)
		timer.Reset(l.interval)
	}
}

// Tick runs one iteration synchronously. It reports false and does nothing
// while the worker is running.
func (l *Loop) Tick() bool {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()
	if l.running {
		return false
	}
	l.tick(false)
	return true
}

func (l *Loop) tick(running bool) {
	started := l.now()
	l.applyPending()
	s := l.applied

	readings := [2]sensor.Reading{l.sensors[0].Read(), l.sensors[1].Read()}
	var temps [2]*float64
	for i, r := range readings {
		if !r.Usable() {
			continue
		}
		v := *r.Temperature
		if s.SmoothingEnabled {
			v = l.smooth[i].next(v, s.SmoothingAlpha)
		}
		temps[i] = &v
		l.last[i] = sensor.Reading{Temperature: &v, Ambient: r.Ambient, Delta: r.Delta}
	}
	l.checkSensorStatus(readings)

	regIdx, protIdx := l.roles(s)
	now := l.now()
	from, to := l.alarm.update(temps[protIdx], s.AlarmThreshold, s.PostrunSeconds, now)
	if from != to {
		l.alarmTransition(from, to, temps[protIdx], s)
	}

	out := l.computeOutput(s, temps[regIdx], temps[protIdx])
	l.act.SetOutput(out)
	l.output = out
	l.ticks++
	l.checkActuator()

	took := l.now().Sub(started)
	l.publishTick(running, took)
	l.log.Debugw("control_tick", "tick", l.ticks, "mode", s.Mode, "alarm_state", to,
		"output", out, "dt_ms", took.Milliseconds())
}

// computeOutput dispatches on mode. Manual always wins; Auto is forced by
// alarm or postrun, regulated when both roles have a usable temperature,
// and otherwise holds the last command.
func (l *Loop) computeOutput(s models.Settings, regT, protT *float64) float64 {
	switch s.Mode {
	case models.ModeManual:
		return s.ManualPercent
	case models.ModeAuto:
		if l.alarm.forcing() {
			return s.AlarmPercent
		}
		if regT == nil || protT == nil {
			return l.output
		}
		return l.act.Orient(l.reg.Compute(*regT))
	default:
		return l.output
	}
}

func (l *Loop) roles(s models.Settings) (reg, prot int) {
	if s.SwapSensors {
		return protected, regulated
	}
	return regulated, protected
}

func (l *Loop) applyPending() {
	l.mu.Lock()
	next := cloneSettings(l.pending)
	l.mu.Unlock()
	prev := l.applied

	if next.Setpoint != prev.Setpoint {
		l.reg.UpdateSetpoint(next.Setpoint)
		l.reg.Reset()
		l.log.Infow("setpoint_changed", "from", prev.Setpoint, "to", next.Setpoint)
	}
	if next.Kp != prev.Kp || next.Ki != prev.Ki || next.Kd != prev.Kd {
		l.reg.SetGains(next.Kp, next.Ki, next.Kd)
		l.log.Infow("gains_changed", "kp", next.Kp, "ki", next.Ki, "kd", next.Kd)
	}
	if prev.SmoothingEnabled && !next.SmoothingEnabled {
		for i := range l.smooth {
			l.smooth[i].reset()
		}
	}
	if !sameIntPtr(prev.ActuatorMinOverride, next.ActuatorMinOverride) {
		l.act.SetMinOverride(next.ActuatorMinOverride)
	}
	if next.ThermocoupleType != prev.ThermocoupleType && l.setThermocouple != nil {
		if err := l.setThermocouple(next.ThermocoupleType); err != nil {
			l.log.Errorw("thermocouple_type_failed", "type", next.ThermocoupleType, "err", err)
			next.ThermocoupleType = prev.ThermocoupleType
		}
	}
	if next.Mode != prev.Mode {
		l.log.Infow("mode_changed", "from", prev.Mode, "to", next.Mode)
	}
	l.applied = next
}

func (l *Loop) alarmTransition(from, to models.AlarmState, t *float64, s models.Settings) {
	meta := map[string]any{"from": from, "to": to, "threshold": s.AlarmThreshold}
	if t != nil {
		meta["temperature"] = *t
	}
	switch to {
	case models.AlarmActive:
		l.log.Warnw("alarm_raised", "temperature", meta["temperature"], "threshold", s.AlarmThreshold)
		l.emit(models.EventAlarm, "Protected temperature above alarm threshold", meta)
	case models.AlarmPostrun:
		l.log.Infow("alarm_cleared_postrun", "postrun_seconds", s.PostrunSeconds)
		meta["postrun_seconds"] = s.PostrunSeconds
		l.emit(models.EventPostrun, "Alarm cleared; postrun started", meta)
	case models.AlarmNormal:
		l.log.Infow("postrun_expired")
		l.emit(models.EventNormal, "Postrun expired; regulation resumed", meta)
	}
}

func (l *Loop) checkSensorStatus(readings [2]sensor.Reading) {
	for i, r := range readings {
		prev := l.lastStatus[i]
		l.lastStatus[i] = r.Status
		if r.Status == prev || r.Status.Usable() {
			continue
		}
		l.emit(models.EventSensorFault, fmt.Sprintf("Sensor %s: %s", l.sensors[i].Label(), r.Status), map[string]any{
			"address": l.sensors[i].Address(),
			"label":   l.sensors[i].Label(),
			"status":  r.Status,
			"from":    prev,
		})
	}
}

func (l *Loop) checkActuator() {
	fault := l.act.Status().Fault
	if fault == l.lastFault {
		return
	}
	l.lastFault = fault
	if fault != models.ActuatorOK {
		l.emit(models.EventActuatorFault, "Actuator fault: "+string(fault), map[string]any{"fault": fault})
	}
}

func (l *Loop) publishTick(running bool, took time.Duration) {
	snap := l.buildSnapshot(l.now(), running)
	snap.TickDuration = took
	l.publish(snap)
	for _, o := range l.observers {
		o.ObserveTick(snap)
	}
}

func (l *Loop) buildSnapshot(now time.Time, running bool) models.Snapshot {
	s := l.applied
	regIdx, protIdx := l.roles(s)
	st := l.act.Status()

	snap := models.Snapshot{
		Label1:  l.sensors[regIdx].Label(),
		Label2:  l.sensors[protIdx].Label(),
		Status1: l.lastStatus[regIdx],
		Status2: l.lastStatus[protIdx],

		OutputPct:      l.output,
		Setpoint:       s.Setpoint,
		Mode:           s.Mode,
		AlarmThreshold: s.AlarmThreshold,
		ManualPercent:  s.ManualPercent,
		AlarmPercent:   s.AlarmPercent,
		PostrunSeconds: s.PostrunSeconds,
		PostrunExpiry:  l.alarm.postrunExpiry(),
		AlarmActive:    l.alarm.state == models.AlarmActive,
		AlarmState:     l.alarm.state,

		Kp:               s.Kp,
		Ki:               s.Ki,
		Kd:               s.Kd,
		SwapSensors:      s.SwapSensors,
		SmoothingEnabled: s.SmoothingEnabled,
		SmoothingAlpha:   s.SmoothingAlpha,
		ThermocoupleType: s.ThermocoupleType,

		ActuatorMinOverride: st.MinOverride,
		ActuatorFault:       st.Fault,
		ActuatorAvailable:   st.Available,

		Running:   running,
		Tick:      l.ticks,
		UpdatedAt: now.UTC(),
	}
	snap.Temperature1, snap.Ambient1, snap.Delta1 = lastKnown(l.last[regIdx])
	snap.Temperature2, snap.Ambient2, snap.Delta2 = lastKnown(l.last[protIdx])
	return snap
}

func (l *Loop) publish(s models.Snapshot) {
	l.snap.Store(&s)
}

func (l *Loop) emit(typ, desc string, meta map[string]any) {
	e := models.ControlEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  l.now().UTC(),
		Type:        typ,
		Description: desc,
	}
	if meta != nil {
		e.Metadata = meta
	}
	for _, o := range l.observers {
		o.ObserveEvent(e)
	}
}

func lastKnown(r sensor.Reading) (temp, ambient, delta float64) {
	if r.Temperature != nil {
		temp = *r.Temperature
	}
	if r.Ambient != nil {
		ambient = *r.Ambient
	}
	if r.Delta != nil {
		delta = *r.Delta
	}
	return temp, ambient, delta
}
