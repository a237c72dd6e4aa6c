package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cooling_control/internal/actuator"
	"cooling_control/internal/config"
	"cooling_control/internal/control"
	"cooling_control/internal/handlers"
	"cooling_control/internal/hardware"
	"cooling_control/internal/logger"
	"cooling_control/internal/metrics"
	"cooling_control/internal/models"
	"cooling_control/internal/regulator"
	"cooling_control/internal/repository"
	"cooling_control/internal/repository/db"
	"cooling_control/internal/sensor"
	"cooling_control/internal/server"
	"cooling_control/internal/service"
	"cooling_control/internal/simulator"
	"cooling_control/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// @title           Cooling Control API
// @version         1.0
// @description     Two-sensor cooling fan controller with alarm override and postrun.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	configPath := flag.String("config", "", "path to config.yml (default: search configs/ and .)")
	flag.Parse()

	// load config.yml
	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Init(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	// open DB
	sqlDB, err := openDB(cfg.DB.Path, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()
	repos := repository.NewRepository(sqlDB)

	initial := loadSettings(repos.SettingsRepo, cfg, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rig, err := buildRig(ctx, cfg, initial, log)
	if err != nil {
		log.Fatalw("failed to set up hardware", "err", err)
	}
	defer rig.close(log)

	reg := regulator.New(regulator.Config{
		Kp:         initial.Kp,
		Ki:         initial.Ki,
		Kd:         initial.Kd,
		Setpoint:   initial.Setpoint,
		SampleTime: cfg.Control.SampleTime,
	})

	// observers: metrics, journal, websocket fan-out, optional MQTT
	m := metrics.New()
	recorder := service.NewEventRecorder(repos.EventRepo, log.Named("journal"),
		service.WithRetention(cfg.DB.Retention, cfg.DB.PruneInterval))
	hub := handlers.NewStreamHub()
	opts := []control.Option{
		control.WithObserver(m),
		control.WithObserver(recorder),
		control.WithObserver(hub),
		control.WithThermocoupleSetter(rig.setThermocouple),
	}
	var publisher *telemetry.Publisher
	if cfg.MQTT.Enabled {
		publisher = telemetry.Connect(telemetry.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, log.Named("mqtt"))
		opts = append(opts, control.WithObserver(publisher))
	}

	var recorderWG sync.WaitGroup
	recorderWG.Add(1)
	go func() {
		defer recorderWG.Done()
		recorder.Run(ctx)
	}()

	loop := control.New(rig.sensors, reg, rig.act, cfg.Control.Tick, initial, log.Named("loop"), opts...)

	services := service.NewService(repos, service.Deps{
		Loop:        loop,
		Diagnostics: control.NewDiagnostics(rig.bus, rig.oneWire, rig.samplers()),
		SigningKey:  cfg.Auth.SigningKey,
		TokenTTL:    cfg.Auth.TokenTTL,
		Log:         log.Named("control"),
	})

	watchConfig(loader, loop, services.Control, log)

	if cfg.Control.AutoStart {
		loop.Start()
	}

	// start HTTP server
	apiHandler := handlers.NewHandler(services, log,
		handlers.WithMetrics(m.Handler()),
		handlers.WithStreamHub(hub),
	)
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	// graceful shutdown
	waitForShutdown(srv, log)

	loop.Stop()
	cancel()
	recorderWG.Wait()
	if publisher != nil {
		publisher.Close()
	}
}

// openDB initializes the SQLite database using configuration.
func openDB(path string, log *logger.Logger) (*sql.DB, error) {
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", "app.db")
		path = "app.db"
	}
	return db.InitDB(path)
}

// loadSettings prefers the persisted operator settings over the file so
// API changes survive a restart.
func loadSettings(repo repository.SettingsRepo, cfg *config.Config, log *logger.Logger) models.Settings {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stored, err := repo.Load(ctx)
	if err != nil {
		log.Errorw("settings_load_failed", "err", err)
	}
	if stored == nil {
		log.Infow("settings_from_config")
		return cfg.OperatorSettings()
	}
	log.Infow("settings_restored", "updated_at", stored.UpdatedAt, "mode", stored.Mode)
	return *stored
}

// rig is the physical (or simulated) plant the loop drives.
type rig struct {
	sensors [2]control.Channel
	reader  *sensor.Reader
	act     actuator.Actuator
	bus     control.BusScanner
	oneWire control.OneWireScanner
	closers []func() error
}

func buildRig(ctx context.Context, cfg *config.Config, initial models.Settings, log *logger.Logger) (*rig, error) {
	tcName := initial.ThermocoupleType
	if tcName == "" {
		tcName = cfg.Sensors.ThermocoupleType
	}
	tc, err := sensor.ParseThermocoupleType(tcName)
	if err != nil {
		return nil, err
	}

	actCfg := actuator.Config{
		Invert:          cfg.Actuator.Invert,
		ReverseActing:   cfg.Actuator.ReverseActing,
		Min:             cfg.Actuator.Min,
		Max:             cfg.Actuator.Max,
		SlewRate:        cfg.Actuator.SlewRate,
		StartupPercent:  cfg.Actuator.StartupPercent,
		FailSafeOnFault: cfg.Actuator.FailSafeOnFault,
		FailSafePercent: cfg.Actuator.FailSafePercent,
		Retries:         cfg.Actuator.Retries,
		Backoff:         cfg.Actuator.Backoff,
	}
	actLog := log.Named("actuator")

	r := &rig{}
	devices := make([]sensor.Device, len(cfg.Sensors.Channels))

	if cfg.Hardware.Simulate {
		log.Warnw("hardware_simulated")
		plant := simulator.New(simulator.Config{Min: cfg.Actuator.Min, Max: cfg.Actuator.Max})
		go plant.Run(ctx, cfg.Control.Tick)
		for i := range devices {
			devices[i] = plant.Sensor(i % 2)
		}
		actCfg.Name = "simulated"
		r.act = actuator.NewDriver(plant, actCfg, actLog)
	} else {
		bus, err := hardware.OpenI2C()
		if err != nil {
			// unavailable bus: devices report faults, the process keeps serving
			log.Errorw("i2c_open_failed", "err", err)
		}
		r.closers = append(r.closers, bus.Close)

		switch cfg.Sensors.Kind {
		case config.SensorMAX31850:
			w1 := hardware.NewOneWire(cfg.Sensors.W1Root)
			r.oneWire = w1
			for i, d := range cfg.Sensors.Channels {
				devices[i] = sensor.NewMAX31850(w1, d.Address)
			}
		default:
			r.bus = bus
			for i, d := range cfg.Sensors.Channels {
				addr, err := hardware.ParseAddr(d.Address)
				if err != nil {
					return nil, fmt.Errorf("sensor %q: %w", d.Label, err)
				}
				devices[i] = sensor.NewMCP9600(bus, addr, tc, cfg.Sensors.Filter)
			}
		}

		switch cfg.Actuator.Kind {
		case config.ActuatorPWM:
			pin, err := hardware.OpenPWM(cfg.Actuator.PWMPin, cfg.Actuator.PWMFrequency, cfg.Actuator.PWMCycle)
			if err != nil {
				log.Errorw("pwm_open_failed", "pin", cfg.Actuator.PWMPin, "err", err)
				pin = nil
			}
			fan := actuator.NewPWMFan(pin, actCfg, actLog)
			r.closers = append(r.closers, fan.Close)
			r.act = fan
		default:
			addr, err := hardware.ParseAddr(cfg.Actuator.Address)
			if err != nil {
				return nil, fmt.Errorf("actuator: %w", err)
			}
			r.bus = bus
			r.act = actuator.NewDigipot(bus, addr, actCfg, actLog)
		}
	}

	sensorLog := log.Named("sensor")
	channels := make([]*sensor.Channel, 0, len(devices))
	for i, d := range cfg.Sensors.Channels {
		channels = append(channels, sensor.NewChannel(devices[i], sensor.ChannelConfig{
			Address:        d.Address,
			Label:          d.Label,
			Retries:        cfg.Sensors.Retries,
			Backoff:        cfg.Sensors.Backoff,
			StaleThreshold: cfg.Sensors.StaleThreshold,
		}, sensorLog))
	}
	r.reader = sensor.NewReader(channels...)
	r.sensors = [2]control.Channel{channels[0], channels[1]}
	return r, nil
}

func (r *rig) setThermocouple(name string) error {
	tc, err := sensor.ParseThermocoupleType(name)
	if err != nil {
		return err
	}
	return r.reader.SetThermocoupleType(tc)
}

func (r *rig) samplers() []control.Sampler {
	chs := r.reader.Channels()
	out := make([]control.Sampler, 0, len(chs))
	for _, ch := range chs {
		out = append(out, ch)
	}
	return out
}

// close releases actuators before the bus they sit on.
func (r *rig) close(log *logger.Logger) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			log.Errorw("hardware_close_failed", "err", err)
		}
	}
}

// watchConfig applies the log level and operator settings from config.yml
// edits. The minimum override is API-only and survives reloads.
func watchConfig(loader *config.Loader, loop *control.Loop, ctl service.Control, log *logger.Logger) {
	loader.Watch(func(c *config.Config) {
		log.SetLevel(c.Log.Level)

		next := c.OperatorSettings()
		next.ActuatorMinOverride = loop.Settings().ActuatorMinOverride

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ctl.ApplySettings(ctx, next); err != nil {
			log.Errorw("config_reload_failed", "err", err)
			return
		}
		log.Infow("config_reloaded", "mode", next.Mode, "setpoint", next.Setpoint)
	}, func(err error) {
		log.Errorw("config_reload_rejected", "err", err)
	})
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown blocks until SIGINT/SIGTERM and drains in-flight requests.
func waitForShutdown(srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
