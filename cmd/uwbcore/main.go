// UWB Ranging Core - control-plane coordinator for UWB radio hardware.
//
// This is the main entry point for the coordinator daemon. It owns the
// adapter lifecycle, the session registry and the notification correlator,
// and publishes ranging activity onto MQTT and InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/uwb-ranging-core/migrations"

	"github.com/nerrad567/uwb-ranging-core/internal/adapter"
	"github.com/nerrad567/uwb-ranging-core/internal/events"
	"github.com/nerrad567/uwb-ranging-core/internal/infrastructure/config"
	"github.com/nerrad567/uwb-ranging-core/internal/infrastructure/database"
	"github.com/nerrad567/uwb-ranging-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/uwb-ranging-core/internal/infrastructure/logging"
	"github.com/nerrad567/uwb-ranging-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/uwb-ranging-core/internal/session"
	"github.com/nerrad567/uwb-ranging-core/internal/uci"
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

// enablePollInterval is how often startup polls for the adapter to come up.
const enablePollInterval = 50 * time.Millisecond

// enableWaitTimeout bounds how long startup waits for the adapter.
const enableWaitTimeout = 15 * time.Second

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
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting UWB ranging core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
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
	log.ForComponent(logging.ComponentStorage).Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Transition history store
	history := session.NewSQLiteTransitionStore(db.DB)
	if pruned, pruneErr := history.PruneTransitions(ctx, cfg.GetHistoryRetention()); pruneErr != nil {
		log.Warn("pruning session history failed", "error", pruneErr)
	} else if pruned > 0 {
		log.Info("pruned session history", "rows", pruned)
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
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
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Event publisher fans callbacks out to MQTT and InfluxDB.
	var bus events.MessagePublisher
	if mqttClient != nil {
		bus = mqttClient
	}
	var metrics events.MetricWriter
	if influxClient != nil {
		metrics = influxClient
	}
	publisher := events.NewPublisher(bus, metrics, byte(cfg.MQTT.QoS), log.ForComponent(logging.ComponentEvents))

	// Radio transport
	transport := uci.NewLoopback(uci.LoopbackConfig{
		ChipIDs:         cfg.Transport.Loopback.ChipIDs,
		MaxSessions:     cfg.Transport.Loopback.MaxSessions,
		NotifyDelay:     time.Duration(cfg.Transport.Loopback.NotifyDelay) * time.Millisecond,
		RangingInterval: time.Duration(cfg.Transport.Loopback.RangingInterval) * time.Millisecond,
	})
	defer transport.Close()
	log.ForComponent(logging.ComponentTransport).Info("transport initialised", "driver", cfg.Transport.Driver, "chips", transport.ChipIDs())

	// Session registry
	open, start, stop, closeT, reconfigure := cfg.CommandTimeouts()
	registry, err := session.NewRegistry(session.Options{
		Transport: transport,
		History:   history,
		Logger:    log.ForComponent(logging.ComponentSession),
		Timeouts: session.Timeouts{
			Open:        open,
			Start:       start,
			Stop:        stop,
			Close:       closeT,
			Reconfigure: reconfigure,
		},
		MaxSessions: cfg.Coordinator.MaxSessions,
	})
	if err != nil {
		return fmt.Errorf("creating session registry: %w", err)
	}
	defer registry.Close()

	// Adapter controller
	country := adapter.NewStaticCountryCodeSource(adapter.CountryCode(cfg.Coordinator.CountryCode))
	controller, err := adapter.NewController(adapter.Options{
		Transport:              transport,
		Sessions:               registry,
		Country:                country,
		Logger:                 log.ForComponent(logging.ComponentAdapter),
		WatchdogTimeout:        cfg.GetWatchdogTimeout(),
		RestartMaxElapsed:      cfg.GetRestartMaxElapsed(),
		DiagnosticsEnabled:     true,
		DiagnosticsMinInterval: cfg.GetDiagnosticsMinInterval(),
		DiagnosticsCapture: func(chipID string, status uci.Status) {
			log.Error("chip error diagnostics", "chip_id", chipID, "status", status)
		},
	})
	if err != nil {
		return fmt.Errorf("creating adapter controller: %w", err)
	}
	controller.RegisterListener(publisher)

	// The correlator is the single notification consumer; it must be
	// registered before the first hardware initialize.
	correlator := session.NewCorrelator(registry, controller, log.ForComponent(logging.ComponentCorrelator))
	transport.SetNotificationHandler(correlator)

	controller.Start(ctx)
	defer controller.Stop()
	controller.Enable()

	if err := waitForAdapter(ctx, controller); err != nil {
		return fmt.Errorf("enabling adapter: %w", err)
	}
	log.Info("adapter enabled", "state", controller.State().State)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// With the loopback driver, drive one simulated session end to end so
	// the pipeline produces reports without external callers.
	if cfg.Transport.Driver == "loopback" {
		if err := startDemoSession(registry, publisher, log); err != nil {
			log.Warn("demo session failed to start", "error", err)
		}
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Tear sessions down before the radio goes away.
	deinitCtx, deinitCancel := context.WithTimeout(context.Background(), enableWaitTimeout)
	registry.DeinitAll(deinitCtx)
	deinitCancel()

	log.Info("UWB ranging core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses UWBCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("UWBCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// waitForAdapter polls until the adapter leaves the disabled state or the
// wait times out.
func waitForAdapter(ctx context.Context, controller *adapter.Controller) error {
	deadline := time.Now().Add(enableWaitTimeout)
	for time.Now().Before(deadline) {
		if controller.State().State != adapter.StateDisabled {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(enablePollInterval):
		}
	}
	return fmt.Errorf("adapter still disabled after %v", enableWaitTimeout)
}

// startDemoSession opens and starts one generic ranging session against
// the simulated transport.
func startDemoSession(registry *session.Registry, callbacks session.Callbacks, log *logging.Logger) error {
	handle, err := registry.OpenSession(session.OpenRequest{
		SessionID: 1,
		Caller:    "uwbcore",
		Params: uci.FiraParams{
			ChannelNumber:         9,
			RangingInterval:       200 * time.Millisecond,
			AoAResultRequest:      uci.AoAModeAzimuth,
			ResultReportAzimuth:   true,
			ResultReportElevation: false,
			Peers:                 []uci.PeerAddress{"0A1B", "0C2D"},
		},
		Callbacks: callbacks,
	})
	if err != nil {
		return err
	}
	log.ForSession(1, string(handle)).Info("demo session opened")
	return registry.StartRanging(handle)
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check MQTT (if enabled)
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
