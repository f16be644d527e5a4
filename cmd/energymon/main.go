package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"energymon/internal/api"
	"energymon/internal/config"
	"energymon/internal/energy"
	"energymon/internal/events"
	"energymon/internal/mqtt"
	"energymon/internal/storage"
	"energymon/internal/tasks"
	"energymon/internal/telemetry"
)

// Version is set at build time via -ldflags "-X main.Version=vX.Y.Z"
var Version = "dev"

const (
	// mqttLoopInterval is how often the connection manager is polled
	mqttLoopInterval = 100 * time.Millisecond

	// tickInterval is the renderer tick; frames refresh on new data or
	// every energy.RefreshInterval
	tickInterval = 50 * time.Millisecond

	shutdownTimeout = 5 * time.Second
)

func main() {
	configPath := flag.String("config", ".env", "Path to the .env configuration file")
	patchPath := flag.String("settings-patch", "", "JSON file with a partial display settings update to apply at startup")
	resetSettings := flag.Bool("reset-settings", false, "Restore default display settings")
	ov := registerOverrides(flag.CommandLine)
	flag.Parse()
	ov.collect(flag.CommandLine)

	logger := log.Default()

	// Load configuration from .env file
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := ov.apply(cfg); err != nil {
		log.Fatalf("Failed to apply command-line settings: %v", err)
	}
	logger.Printf("[Config] Configuration loaded: %s", cfg)

	st, err := storage.NewBoltStorage(cfg.DBPath())
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer st.Close()

	eventStore := events.NewStore(events.DefaultCapacity)

	settings := energy.NewSettingsStore(st, logger)
	if err := updateSettings(settings, eventStore, *resetSettings, *patchPath); err != nil {
		log.Fatalf("Failed to update display settings: %v", err)
	}

	store := telemetry.NewStore()

	monitor := energy.NewMonitor(store, settings, logger)
	monitor.OnTransition = func(tr energy.Transition) {
		recordTransition(eventStore, tr)
	}

	started := time.Now()
	health := mqtt.NewHealthReporter(store, func() (bool, bool) {
		f := monitor.Latest()
		return f.AlarmActive, f.Warning
	}, started)

	manager := mqtt.NewManager(mqtt.Options{
		Session: mqtt.NewClient(logger),
		Settings: func() mqtt.Settings {
			return brokerSettings(cfg)
		},
		Store:  store,
		Health: health,
		Events: eventStore,
		Logger: logger,
	})

	server := api.NewServer(api.Options{
		Frames:   monitor,
		Settings: settings,
		MQTT:     manager,
		Events:   eventStore,
		Logger:   logger,
		Version:  Version,
	})
	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Consumer: renderer tick
	g.Go(func() error {
		tasks.RunPeriodic(ctx, tickInterval, logger, "Energy", func(context.Context) error {
			monitor.Tick(time.Now())
			return nil
		})
		return nil
	})

	// Producer: broker session
	g.Go(func() error {
		tasks.RunPeriodic(ctx, mqttLoopInterval, logger, "MQTT", func(context.Context) error {
			manager.Loop(time.Now())
			return nil
		})
		return nil
	})

	// SIGHUP reloads the .env file and reconnects when broker settings changed
	g.Go(func() error {
		watchReload(ctx, cfg, ov, manager, logger)
		return nil
	})

	g.Go(func() error {
		logger.Printf("[API] Energy monitor %s listening on %s", Version, httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("[API] Shutdown error: %v", err)
		}
		return nil
	})

	err = g.Wait()
	manager.Shutdown()
	if err != nil {
		logger.Printf("Stopped with error: %v", err)
		st.Close()
		os.Exit(1)
	}
	logger.Printf("Stopped")
}

// brokerSettings maps the .env snapshot onto the connection manager's view
func brokerSettings(cfg *config.Config) mqtt.Settings {
	m := cfg.MQTTSettings()
	return mqtt.Settings{
		Host:            m.Host,
		Port:            m.Port,
		Username:        m.Username,
		Password:        m.Password,
		UseTLS:          m.UseTLS,
		DeviceName:      cfg.DeviceName(),
		IntervalSeconds: m.IntervalSeconds,
		SolarTopic:      m.TopicSolar,
		GridTopic:       m.TopicGrid,
		SolarPath:       m.SolarValuePath,
		GridPath:        m.GridValuePath,
	}
}

// recordTransition logs an alarm state change to the event store
func recordTransition(store *events.Store, tr energy.Transition) {
	var t events.EventType
	switch tr.To {
	case energy.AlarmActive:
		t = events.EventAlarmEngaged
	case energy.AlarmExiting:
		t = events.EventAlarmExiting
	case energy.AlarmOff:
		t = events.EventAlarmCleared
	default:
		return
	}
	store.Add(t, tr.Category.String(), true, fmt.Sprintf("%s -> %s at %s kW", tr.From, tr.To, energy.FormatKW(tr.Value)))
}

// updateSettings applies the startup reset and patch flags
func updateSettings(settings *energy.SettingsStore, store *events.Store, reset bool, patchPath string) error {
	if reset {
		if _, err := settings.Reset(); err != nil {
			return err
		}
		store.Add(events.EventSettingsUpdated, "", true, "defaults restored")
	}
	if patchPath == "" {
		return nil
	}

	patch, err := readPatch(patchPath)
	if err != nil {
		return err
	}
	if _, err := settings.Apply(patch); err != nil {
		return err
	}
	store.Add(events.EventSettingsUpdated, "", true, "patch "+patchPath)
	return nil
}

func readPatch(path string) (energy.SettingsPatch, error) {
	var patch energy.SettingsPatch

	data, err := os.ReadFile(path)
	if err != nil {
		return patch, fmt.Errorf("failed to read settings patch: %w", err)
	}
	if err := json.Unmarshal(data, &patch); err != nil {
		return patch, fmt.Errorf("failed to parse settings patch: %w", err)
	}
	return patch, nil
}

func watchReload(ctx context.Context, cfg *config.Config, ov *overrides, manager *mqtt.Manager, logger *log.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if reloadConfig(cfg, ov, logger) {
				manager.RequestReconnect()
			}
		}
	}
}

// reloadConfig re-reads the .env file and applies the command-line
// overrides on top. It reports whether the broker session must reconnect.
func reloadConfig(cfg *config.Config, ov *overrides, logger *log.Logger) bool {
	before := brokerSettings(cfg)
	if err := cfg.Reload(); err != nil {
		logger.Printf("[Config] Reload failed: %v", err)
		return false
	}
	if err := ov.apply(cfg); err != nil {
		logger.Printf("[Config] Failed to apply command-line settings: %v", err)
	}
	logger.Printf("[Config] Reloaded: %s", cfg)

	// The interval is read every loop and needs no new session
	after := brokerSettings(cfg)
	after.IntervalSeconds = before.IntervalSeconds
	return after != before
}
