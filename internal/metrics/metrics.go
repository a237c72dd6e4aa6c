// Package metrics exports the control loop state in Prometheus format.
package metrics

import (
	"net/http"

	"cooling_control/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cooling"

var allStatuses = []models.ChannelStatus{
	models.StatusOK, models.StatusStale, models.StatusNotFound, models.StatusError,
	models.StatusOpenCircuit, models.StatusShortToGround, models.StatusShortToSupply,
}

// Metrics is a control loop observer backed by its own registry.
type Metrics struct {
	registry *prometheus.Registry

	temperature      *prometheus.GaugeVec
	ambient          *prometheus.GaugeVec
	channelStatus    *prometheus.GaugeVec
	output           prometheus.Gauge
	setpoint         prometheus.Gauge
	alarmActive      prometheus.Gauge
	postrunRemaining prometheus.Gauge
	running          prometheus.Gauge
	tickDuration     prometheus.Histogram
	events           *prometheus.CounterVec
	actuatorFaults   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "temperature_celsius",
			Help: "Last known thermocouple temperature per channel.",
		}, []string{"channel", "label"}),
		ambient: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "ambient_celsius",
			Help: "Cold junction temperature per channel.",
		}, []string{"channel", "label"}),
		channelStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "channel_status",
			Help: "1 for the channel's current status, 0 otherwise.",
		}, []string{"channel", "status"}),
		output: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "output_percent",
			Help: "Commanded actuator output.",
		}),
		setpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "setpoint_celsius",
			Help: "Regulator setpoint.",
		}),
		alarmActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "alarm_active",
			Help: "1 while the protected channel is above the alarm threshold.",
		}),
		postrunRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "postrun_remaining_seconds",
			Help: "Seconds until postrun ends, 0 when none is pending.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "loop_running",
			Help: "1 while the control loop worker runs.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "tick_duration_seconds",
			Help:    "Time spent in one control tick, sensor reads and actuator write included.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_total",
			Help: "Control events by type.",
		}, []string{"type"}),
		actuatorFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "actuator_faults_total",
			Help: "Actuator fault transitions by fault.",
		}, []string{"fault"}),
	}
	m.registry.MustRegister(
		m.temperature, m.ambient, m.channelStatus, m.output, m.setpoint,
		m.alarmActive, m.postrunRemaining, m.running, m.tickDuration,
		m.events, m.actuatorFaults,
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveTick(s models.Snapshot) {
	m.setChannel("1", s.Label1, s.Temperature1, s.Ambient1, s.Status1)
	m.setChannel("2", s.Label2, s.Temperature2, s.Ambient2, s.Status2)
	m.output.Set(s.OutputPct)
	m.setpoint.Set(s.Setpoint)
	m.alarmActive.Set(boolToFloat(s.AlarmActive))
	m.postrunRemaining.Set(s.PostrunRemaining(s.UpdatedAt))
	m.running.Set(boolToFloat(s.Running))

	if s.TickDuration > 0 {
		m.tickDuration.Observe(s.TickDuration.Seconds())
	}
}

func (m *Metrics) ObserveEvent(e models.ControlEvent) {
	m.events.WithLabelValues(e.Type).Inc()
	if e.Type != models.EventActuatorFault {
		return
	}
	fault := "unknown"
	if meta, ok := e.Metadata.(map[string]any); ok {
		if f, ok := meta["fault"].(models.ActuatorFault); ok {
			fault = string(f)
		}
	}
	m.actuatorFaults.WithLabelValues(fault).Inc()
}

func (m *Metrics) setChannel(ch, label string, temp, ambient float64, status models.ChannelStatus) {
	m.temperature.WithLabelValues(ch, label).Set(temp)
	m.ambient.WithLabelValues(ch, label).Set(ambient)
	for _, st := range allStatuses {
		m.channelStatus.WithLabelValues(ch, string(st)).Set(boolToFloat(st == status))
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
