// PhaseLink Core - device link and telemetry service for three-phase controllers.
//
// This is the main entry point for the PhaseLink Core application. It holds
// a persistent WebSocket link to every field controller, relays operator
// commands to them, caches their phase status, and serves telemetry and
// analytics from InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/phaselink-core/migrations"

	"github.com/nerrad567/phaselink-core/internal/api"
	"github.com/nerrad567/phaselink-core/internal/audit"
	"github.com/nerrad567/phaselink-core/internal/auth"
	"github.com/nerrad567/phaselink-core/internal/infrastructure/config"
	"github.com/nerrad567/phaselink-core/internal/infrastructure/database"
	"github.com/nerrad567/phaselink-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/phaselink-core/internal/infrastructure/logging"
	"github.com/nerrad567/phaselink-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/phaselink-core/internal/link"
	"github.com/nerrad567/phaselink-core/internal/telemetry"
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

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on a clean shutdown.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting PhaseLink Core",
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
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Accounts and device pairing codes
	db, err := database.Open(cfg.Database)
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	users := auth.NewUserRepository(db.DB)
	keys := auth.NewDeviceKeyRepository(db.DB)
	if _, seedErr := auth.SeedDeviceKeys(ctx, keys, cfg.Security.DeviceKeys, log.Logger); seedErr != nil {
		return fmt.Errorf("provisioning device keys: %w", seedErr)
	}
	auditRepo := audit.NewSQLiteRepository(db.DB)
	authSvc := auth.NewService(users, keys, cfg.Security.JWT.Secret,
		time.Duration(cfg.Security.JWT.AccessTokenTTL)*time.Minute)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var store telemetry.Store
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		store = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled, telemetry endpoints will answer 503")
	}

	telemetrySvc := telemetry.NewService(store, cfg.InfluxDB.Bucket, cfg.Location())
	telemetrySvc.SetLogger(log.Component("telemetry"))

	// Device link core
	linkLog := log.Component("link")
	registry := link.NewRegistry()
	registry.SetLogger(linkLog)
	cache := link.NewStatusCache(cfg.DeviceLink.Channels)
	manager := link.NewManager(registry, cache)
	manager.SetLogger(linkLog)
	relay := link.NewRelay(registry, cfg.DeviceLink.Channels)
	relay.SetLogger(linkLog)
	status := link.NewStatusService(registry, cache)
	status.SetLogger(linkLog)

	var sinks link.MultiSink
	if influxClient != nil {
		sinks = append(sinks, telemetry.NewStatusRecorder(influxClient))
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	var mirror *mqtt.Mirror
	var bridge *mqtt.CommandBridge
	mirrorCtx, stopMirror := context.WithCancel(context.Background())
	defer stopMirror()
	if cfg.MQTT.Enabled {
		mqttClient, mirror, bridge, err = startMQTT(mirrorCtx, cfg, relay, auditRepo, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		sinks = append(sinks, mirror)
	} else {
		log.Info("MQTT disabled")
	}
	if len(sinks) > 0 {
		manager.SetEventSink(sinks)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		DeviceLink: cfg.DeviceLink,
		Logger:     log.Component("api"),
		Auth:       authSvc,
		Manager:    manager,
		Relay:      relay,
		Status:     status,
		Telemetry:  telemetrySvc,
		Audit:      auditRepo,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	if bridge != nil {
		if err := bridge.Stop(mqttClient); err != nil {
			log.Warn("unsubscribing MQTT command bridge", "error", err)
		}
	}

	if closeErr := server.Close(); closeErr != nil {
		log.Error("error closing API server", "error", closeErr)
	}
	if n := manager.CloseAll(); n > 0 {
		log.Info("closed device links", "count", n)
	}
	manager.Wait()
	status.Wait()

	// Disconnect events are queued by now; flush them before the broker goes.
	if mirror != nil {
		stopMirror()
		<-mirror.Done()
	}

	// Deferred Close() calls run in reverse order: MQTT, InfluxDB, database.
	log.Info("PhaseLink Core stopped")
	return nil
}

// startMQTT connects to the broker, starts the presence/status mirror, and
// subscribes the command bridge.
func startMQTT(ctx context.Context, cfg *config.Config, relay *link.Relay, auditRepo *audit.SQLiteRepository, log *logging.Logger) (*mqtt.Client, *mqtt.Mirror, *mqtt.CommandBridge, error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	mqttLog := log.Component("mqtt")
	client.SetLogger(mqttLog)
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mirror := mqtt.NewMirror(client, client.Topics())
	mirror.SetLogger(mqttLog)
	go mirror.Run(ctx)

	bridge := mqtt.NewCommandBridge(relay, client, client.Topics(), client.QoS())
	bridge.SetAudit(auditRepo)
	if err := bridge.Start(client); err != nil {
		_ = client.Close() //nolint:errcheck // startup already failed
		return nil, nil, nil, fmt.Errorf("subscribing MQTT command bridge: %w", err)
	}
	log.Info("MQTT command bridge subscribed", "topic", client.Topics().AllDeviceCommands())

	return client, mirror, bridge, nil
}

// getConfigPath returns the configuration file path.
// Uses PHASELINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PHASELINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient are nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
