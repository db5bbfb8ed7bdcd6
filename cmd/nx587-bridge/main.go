// NX-587E MQTT Bridge
//
// This is the main entry point for the bridge daemon. It drives a
// Caddx/Interlogix NX-587E virtual keypad module over a serial link and
// exposes the panel on MQTT:
//   - Zone and partition status flags as retained state topics
//   - Keypad commands via a command/acknowledge topic pair
//   - Event history in SQLite, optionally mirrored to InfluxDB
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openkeypad/nx587-bridge/internal/bridge"
	"github.com/openkeypad/nx587-bridge/internal/history"
	"github.com/openkeypad/nx587-bridge/internal/infrastructure/config"
	"github.com/openkeypad/nx587-bridge/internal/infrastructure/database"
	"github.com/openkeypad/nx587-bridge/internal/infrastructure/logging"
	"github.com/openkeypad/nx587-bridge/internal/infrastructure/mqtt"
	"github.com/openkeypad/nx587-bridge/internal/panel"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// pruneInterval is how often expired history rows are deleted.
const pruneInterval = time.Hour

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting NX-587E bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Event history store
	store, err := history.NewStore(ctx, db)
	if err != nil {
		return fmt.Errorf("creating event history store: %w", err)
	}

	// Connect to InfluxDB (optional)
	var influx *history.InfluxWriter
	if cfg.InfluxDB.Enabled {
		influx, err = history.NewInfluxWriter(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influx.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influx.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	recorder := history.NewRecorder(store, influx, log)
	go recorder.PruneLoop(ctx, cfg.GetRetention(), pruneInterval)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Panel driver and bridge reference each other through callbacks:
	// declare the bridge first, wire the driver's callbacks as closures,
	// then construct the bridge once the driver exists. The callbacks
	// cannot fire before Connect.
	var br *bridge.Bridge

	model, err := panel.NewModel(cfg.Panel.MaxZones, cfg.Panel.MaxPartitions)
	if err != nil {
		return fmt.Errorf("building device model: %w", err)
	}

	ctrl, err := panel.New(panel.Options{
		Transport:     panel.NewSerialTransport(cfg.Panel.Port),
		Keymap:        cfg.Panel.Keymap,
		Model:         model,
		SetupOptions:  cfg.Panel.SetupString,
		ProbeInterval: cfg.GetProbeInterval(),
		OnEvent:       func(n panel.ChangeNotification) { br.HandleEvent(n) },
		OnConnect: func() {
			log.Info("panel link established")
			br.PublishPanelStatus(true)
		},
		OnDisconnect: func() {
			log.Warn("panel link lost")
			br.PublishPanelStatus(false)
		},
		Logger: log,
	})
	if err != nil {
		return fmt.Errorf("creating panel driver: %w", err)
	}

	br = bridge.New(bridge.Config{
		QoS:     byte(cfg.MQTT.QoS),
		Version: version,
	}, mqttClient, ctrl, recorder, store, log)

	if err := br.Start(); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	log.Info("command subscription active")

	if err := ctrl.Connect(); err != nil {
		return fmt.Errorf("starting panel driver: %w", err)
	}
	defer func() {
		log.Info("stopping panel driver")
		if discErr := ctrl.Disconnect(); discErr != nil {
			log.Error("error stopping panel driver", "error", discErr)
		}
	}()
	log.Info("panel driver started",
		"port", cfg.Panel.Port,
		"keymap", cfg.Panel.Keymap,
		"zones", cfg.Panel.MaxZones,
		"partitions", cfg.Panel.MaxPartitions,
	)

	// Periodic health reporting
	reporter := bridge.NewHealthReporter(bridge.HealthReporterConfig{
		BridgeID:  cfg.MQTT.Broker.ClientID,
		Version:   version,
		Publisher: mqttClient,
		Panel:     ctrl,
	})
	reporter.SetLogger(log)
	reporter.Start(ctx)
	defer func() {
		log.Info("stopping health reporter")
		reporter.Stop()
	}()

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. Health reporter
	// 2. Panel driver
	// 3. MQTT
	// 4. InfluxDB (if enabled)
	// 5. Database

	log.Info("NX-587E bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses NX587_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("NX587_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influx: InfluxDB writer to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influx *history.InfluxWriter) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influx != nil {
		if err := influx.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// Panel link health is not checked here: the driver establishes its
	// session asynchronously and recovers on its own.

	return nil
}
