// Package config loads configs/config.yml through viper and validates it.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cooling_control/internal/models"

	"github.com/spf13/viper"
)

// Validation errors.
var (
	ErrDoubleInversion     = errors.New("actuator.invert and actuator.reverse_acting both reverse direction; enable only one")
	ErrPercentOutOfRange   = errors.New("percentage must be within 0..100")
	ErrAlphaOutOfRange     = errors.New("control.smoothing_alpha must be within (0, 1]")
	ErrActuatorRange       = errors.New("actuator.min must be below actuator.max")
	ErrTooFewSensors       = errors.New("at least two sensor channels are required")
	ErrUnknownSensorKind   = errors.New("sensors.kind must be mcp9600 or max31850")
	ErrUnknownActuatorKind = errors.New("actuator.kind must be ds3502 or pwm")
	ErrNonPositiveTick     = errors.New("control.tick must be positive")
	ErrRetention           = errors.New("db.retention must not be negative and needs a positive db.prune_interval")
)

// Sensor and actuator kinds.
const (
	SensorMCP9600   = "mcp9600"
	SensorMAX31850  = "max31850"
	ActuatorDS3502  = "ds3502"
	ActuatorPWM     = "pwm"
	defaultFileName = "config"
)

type Config struct {
	Port     string         `mapstructure:"port"`
	DB       DBConfig       `mapstructure:"db"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Control  ControlConfig  `mapstructure:"control"`
	Sensors  SensorsConfig  `mapstructure:"sensors"`
	Actuator ActuatorConfig `mapstructure:"actuator"`
	Hardware HardwareConfig `mapstructure:"hardware"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
}

// DBConfig locates the SQLite file. A positive Retention prunes journal
// events older than it every PruneInterval.
type DBConfig struct {
	Path          string        `mapstructure:"path"`
	Retention     time.Duration `mapstructure:"retention"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

// ControlConfig holds the operator settings the loop starts with.
type ControlConfig struct {
	Mode             string        `mapstructure:"mode"`
	Setpoint         float64       `mapstructure:"setpoint"`
	AlarmThreshold   float64       `mapstructure:"alarm_threshold"`
	ManualPercent    float64       `mapstructure:"manual_percent"`
	AlarmPercent     float64       `mapstructure:"alarm_percent"`
	Kp               float64       `mapstructure:"kp"`
	Ki               float64       `mapstructure:"ki"`
	Kd               float64       `mapstructure:"kd"`
	SampleTime       time.Duration `mapstructure:"sample_time"`
	PostrunSeconds   float64       `mapstructure:"postrun_seconds"`
	SwapSensors      bool          `mapstructure:"swap_sensors"`
	SmoothingEnabled bool          `mapstructure:"smoothing_enabled"`
	SmoothingAlpha   float64       `mapstructure:"smoothing_alpha"`
	Tick             time.Duration `mapstructure:"tick"`
	AutoStart        bool          `mapstructure:"auto_start"`
}

// SensorDescriptor names one physical sensor. Address is an I2C address
// ("0x66") for MCP9600 or a 1-Wire ROM id ("3b-0000001a2b3c") for MAX31850.
type SensorDescriptor struct {
	Address string `mapstructure:"address"`
	Label   string `mapstructure:"label"`
}

type SensorsConfig struct {
	Kind             string             `mapstructure:"kind"`
	ThermocoupleType string             `mapstructure:"thermocouple_type"`
	Filter           int                `mapstructure:"filter"`
	Retries          int                `mapstructure:"retries"`
	Backoff          time.Duration      `mapstructure:"backoff"`
	StaleThreshold   int                `mapstructure:"stale_threshold"`
	W1Root           string             `mapstructure:"w1_root"`
	Channels         []SensorDescriptor `mapstructure:"channels"`
}

type ActuatorConfig struct {
	Kind            string        `mapstructure:"kind"`
	Address         string        `mapstructure:"address"`
	Invert          bool          `mapstructure:"invert"`
	ReverseActing   bool          `mapstructure:"reverse_acting"`
	Min             int           `mapstructure:"min"`
	Max             int           `mapstructure:"max"`
	SlewRate        float64       `mapstructure:"slew_rate"`
	StartupPercent  float64       `mapstructure:"startup_percent"`
	FailSafeOnFault bool          `mapstructure:"fail_safe_on_fault"`
	FailSafePercent float64       `mapstructure:"fail_safe_percent"`
	Retries         int           `mapstructure:"retries"`
	Backoff         time.Duration `mapstructure:"backoff"`
	PWMPin          int           `mapstructure:"pwm_pin"`
	PWMFrequency    int           `mapstructure:"pwm_frequency"`
	PWMCycle        uint32        `mapstructure:"pwm_cycle"`
}

type HardwareConfig struct {
	Simulate bool `mapstructure:"simulate"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

// Loader owns the viper instance so the same file can be re-read on change.
type Loader struct {
	v *viper.Viper
}

// NewLoader searches configs/ and the working directory for config.yml.
// An explicit path overrides the search.
func NewLoader(path string) *Loader {
	v := viper.New()
	SetDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
		v.SetConfigName(defaultFileName)
	}
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load reads the file and decodes it. A missing file is not an error:
// the defaults describe a runnable configuration.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return l.decode()
}

// Viper exposes the underlying instance for callers that need raw keys.
func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults registers a value for every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db.path", "app.db")
	v.SetDefault("db.retention", 0)
	v.SetDefault("db.prune_interval", time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("auth.signing_key", "change-me")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("control.mode", "auto")
	v.SetDefault("control.setpoint", 0.0)
	v.SetDefault("control.alarm_threshold", 0.0)
	v.SetDefault("control.manual_percent", 0.0)
	v.SetDefault("control.alarm_percent", 100.0)
	v.SetDefault("control.kp", 1.0)
	v.SetDefault("control.ki", 0.1)
	v.SetDefault("control.kd", 0.0)
	v.SetDefault("control.sample_time", 0)
	v.SetDefault("control.postrun_seconds", 30.0)
	v.SetDefault("control.swap_sensors", false)
	v.SetDefault("control.smoothing_enabled", true)
	v.SetDefault("control.smoothing_alpha", 0.3)
	v.SetDefault("control.tick", 500*time.Millisecond)
	v.SetDefault("control.auto_start", true)

	v.SetDefault("sensors.kind", SensorMCP9600)
	v.SetDefault("sensors.thermocouple_type", "K")
	v.SetDefault("sensors.filter", 0)
	v.SetDefault("sensors.retries", 2)
	v.SetDefault("sensors.backoff", 50*time.Millisecond)
	v.SetDefault("sensors.stale_threshold", 5)
	v.SetDefault("sensors.w1_root", "/sys/bus/w1/devices")
	v.SetDefault("sensors.channels", []map[string]any{
		{"address": "0x66", "label": "regulated"},
		{"address": "0x67", "label": "protected"},
	})

	v.SetDefault("actuator.kind", ActuatorDS3502)
	v.SetDefault("actuator.address", "0x28")
	v.SetDefault("actuator.invert", false)
	v.SetDefault("actuator.reverse_acting", true)
	v.SetDefault("actuator.min", 2)
	v.SetDefault("actuator.max", 125)
	v.SetDefault("actuator.slew_rate", 30.0)
	v.SetDefault("actuator.startup_percent", 0.0)
	v.SetDefault("actuator.fail_safe_on_fault", true)
	v.SetDefault("actuator.fail_safe_percent", 0.0)
	v.SetDefault("actuator.retries", 2)
	v.SetDefault("actuator.backoff", 2*time.Millisecond)
	v.SetDefault("actuator.pwm_pin", 18)
	v.SetDefault("actuator.pwm_frequency", 25000)
	v.SetDefault("actuator.pwm_cycle", 100)

	v.SetDefault("hardware.simulate", false)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "cooling-control")
	v.SetDefault("mqtt.topic_prefix", "cooling")
}

// Validate rejects configurations the control loop cannot run safely.
func (c *Config) Validate() error {
	for name, p := range map[string]float64{
		"control.manual_percent":     c.Control.ManualPercent,
		"control.alarm_percent":      c.Control.AlarmPercent,
		"actuator.startup_percent":   c.Actuator.StartupPercent,
		"actuator.fail_safe_percent": c.Actuator.FailSafePercent,
	} {
		if p < 0 || p > 100 {
			return fmt.Errorf("%s=%v: %w", name, p, ErrPercentOutOfRange)
		}
	}
	if c.Control.SmoothingAlpha <= 0 || c.Control.SmoothingAlpha > 1 {
		return fmt.Errorf("control.smoothing_alpha=%v: %w", c.Control.SmoothingAlpha, ErrAlphaOutOfRange)
	}
	if c.Control.Tick <= 0 {
		return ErrNonPositiveTick
	}
	if c.DB.Retention < 0 || (c.DB.Retention > 0 && c.DB.PruneInterval <= 0) {
		return ErrRetention
	}
	if _, err := models.ParseMode(c.Control.Mode); err != nil {
		return fmt.Errorf("control.mode: %w", err)
	}
	if c.Control.PostrunSeconds < 0 {
		return fmt.Errorf("control.postrun_seconds must not be negative")
	}
	if c.Actuator.Min >= c.Actuator.Max {
		return fmt.Errorf("actuator range %d..%d: %w", c.Actuator.Min, c.Actuator.Max, ErrActuatorRange)
	}
	if c.Actuator.Invert && c.Actuator.ReverseActing {
		return ErrDoubleInversion
	}
	switch c.Actuator.Kind {
	case ActuatorDS3502, ActuatorPWM:
	default:
		return fmt.Errorf("%q: %w", c.Actuator.Kind, ErrUnknownActuatorKind)
	}
	switch c.Sensors.Kind {
	case SensorMCP9600, SensorMAX31850:
	default:
		return fmt.Errorf("%q: %w", c.Sensors.Kind, ErrUnknownSensorKind)
	}
	if len(c.Sensors.Channels) < 2 {
		return ErrTooFewSensors
	}
	if c.Sensors.Retries < 0 || c.Actuator.Retries < 0 {
		return fmt.Errorf("retry counts must not be negative")
	}
	return nil
}

// OperatorSettings is the control section as loop settings. Thermocouple
// type travels with them so a file edit can retune the sensors.
func (c *Config) OperatorSettings() models.Settings {
	mode, err := models.ParseMode(c.Control.Mode)
	if err != nil {
		mode = models.ModeAuto
	}
	return models.Settings{
		ID:               1,
		Setpoint:         c.Control.Setpoint,
		Mode:             mode,
		AlarmThreshold:   c.Control.AlarmThreshold,
		ManualPercent:    c.Control.ManualPercent,
		AlarmPercent:     c.Control.AlarmPercent,
		Kp:               c.Control.Kp,
		Ki:               c.Control.Ki,
		Kd:               c.Control.Kd,
		PostrunSeconds:   c.Control.PostrunSeconds,
		SwapSensors:      c.Control.SwapSensors,
		SmoothingEnabled: c.Control.SmoothingEnabled,
		SmoothingAlpha:   c.Control.SmoothingAlpha,
		ThermocoupleType: c.Sensors.ThermocoupleType,
	}
}
