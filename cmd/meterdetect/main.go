// meterdetect identifies HAN smart meters and recommends serial presets.
//
// The default "serve" command loads the preset catalog, watches live meter
// frames over MQTT and exposes the detection API. The "detect", "presets"
// and "ports" commands are one-shot tools for installers at the meter.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/meterdetect/migrations"

	"github.com/nerrad567/meterdetect/internal/api"
	"github.com/nerrad567/meterdetect/internal/detection"
	"github.com/nerrad567/meterdetect/internal/infrastructure/config"
	"github.com/nerrad567/meterdetect/internal/infrastructure/database"
	"github.com/nerrad567/meterdetect/internal/infrastructure/influxdb"
	"github.com/nerrad567/meterdetect/internal/infrastructure/logging"
	"github.com/nerrad567/meterdetect/internal/infrastructure/mqtt"
	"github.com/nerrad567/meterdetect/internal/monitor"
	"github.com/nerrad567/meterdetect/internal/preset"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configEnvVar      = "METERDETECT_CONFIG"
	healthTimeout     = 5 * time.Second
)

var errUnknownCommand = errors.New("unknown command")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches to a subcommand, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - args: Command line arguments without the program name
//   - out: Destination for one-shot command output
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, args []string, out io.Writer) error {
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return serve(ctx)
	case "detect":
		return runDetect(args, out)
	case "presets":
		return runPresets(args, out)
	case "ports":
		return runPorts(out)
	case "version":
		_, err := fmt.Fprintf(out, "meterdetect %s (commit %s, built %s)\n", version, commit, date)
		return err
	default:
		return fmt.Errorf("%w %q (want serve, detect, presets, ports or version)", errUnknownCommand, cmd)
	}
}

// serve runs the long-lived service until ctx is cancelled.
func serve(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting meterdetect",
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

	log = logging.New(cfg.Logging, version)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		db.Close() //nolint:errcheck // best-effort cleanup on shutdown
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete")

	catalog, err := loadCatalog(ctx, cfg.Detection, db, log)
	if err != nil {
		return err
	}
	log.Info("preset catalog loaded", "presets", catalog.Len())

	detector := detection.NewDetector(catalog)
	detector.SetLogger(log.Component("detection"))

	checks := map[string]api.HealthChecker{"database": db}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			influxClient.Close() //nolint:errcheck // best-effort cleanup on shutdown
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Optional API dependencies stay nil interfaces when their component is off.
	var (
		events    api.EventSource
		monStats  api.MonitorStats
		mqttState api.ConnectionState
	)
	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.Connect(ctx, cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			mqttClient.Close() //nolint:errcheck // best-effort cleanup on shutdown
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		checks["mqtt"] = mqttClient
		mqttState = mqttClient
		log.Info("MQTT connected",
			"broker", cfg.MQTT.Host,
			"port", cfg.MQTT.Port,
		)

		mon, err := startMonitor(ctx, cfg, detector, mqttClient, influxClient, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("stopping detection monitor")
			mon.Stop()
		}()
		events = mon
		monStats = mon
	} else {
		log.Info("MQTT disabled, live detection off")
	}

	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log.Component("api"),
		Catalog:  catalog,
		Detector: detector,
		Events:   events,
		Checks:   checks,
		Monitor:  monStats,
		MQTT:     mqttState,
		DB:       db,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		server.Close() //nolint:errcheck // best-effort cleanup on shutdown
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// loadCatalog seeds the preset table when enabled and loads it into a catalog.
func loadCatalog(ctx context.Context, cfg config.DetectionConfig, db *database.DB, log *logging.Logger) (*preset.Catalog, error) {
	repo := preset.NewSQLiteRepository(db.DB)
	if cfg.SeedDefaults {
		if _, err := preset.SeedDefaults(ctx, repo, log); err != nil {
			return nil, fmt.Errorf("seeding presets: %w", err)
		}
	}

	catalog := preset.NewCatalog(repo, preset.DefaultPresets())
	catalog.SetLogger(log.Component("preset"))
	if err := catalog.RefreshCache(ctx); err != nil {
		return nil, fmt.Errorf("loading presets: %w", err)
	}
	return catalog, nil
}

// startMonitor subscribes to live frames. Results are published back to
// MQTT when enabled and recorded to InfluxDB when a client is given.
func startMonitor(ctx context.Context, cfg *config.Config, detector *detection.Detector, client *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) (*monitor.Monitor, error) {
	opts := monitor.Options{
		Debounce: cfg.Detection.Debounce,
		QoS:      byte(cfg.MQTT.QoS),
		Logger:   log.Component("monitor"),
	}
	if cfg.Detection.PublishResults {
		opts.Publisher = client
	}
	// A nil *influxdb.Client must not become a non-nil Recorder.
	if influxClient != nil {
		opts.Recorder = influxClient
	}

	mon, err := monitor.New(detector, client, opts)
	if err != nil {
		return nil, fmt.Errorf("creating detection monitor: %w", err)
	}
	if err := mon.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting detection monitor: %w", err)
	}
	log.Info("detection monitor started",
		"topic", mqtt.Topics{}.AllMeterLive(),
		"debounce", opts.Debounce,
		"publish", cfg.Detection.PublishResults,
	)
	return mon, nil
}

// getConfigPath returns the config file path from METERDETECT_CONFIG, or
// the default when unset.
func getConfigPath() string {
	if path := os.Getenv(configEnvVar); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies every connected component responds.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
