// Gray Logic Display Bridge
//
// This is the entry point for the display bridge. It links RoomView-connected
// displays to a join bus carried over MQTT, so a control processor can drive
// power, volume, mute and input selection through fixed join numbers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-display/internal/api"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-display/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-display/internal/joinbus"
	"github.com/nerrad567/gray-logic-display/internal/supervisor"
	"github.com/nerrad567/gray-logic-display/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

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
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic Display Bridge",
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

	db, err := database.Open(ctx, cfg.Database)
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

	if migrateErr := db.Migrate(ctx, migrations.Source()); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	will, err := supervisor.HealthWill(supervisor.DefaultBridgeID)
	if err != nil {
		return err
	}
	mqttClient, err := mqtt.Connect(cfg.MQTT, mqtt.WithWill(will))
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	var influxClient *influxdb.Client
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	store := joinbus.NewSQLiteStore(db)
	store.SetLogger(log.Component("joinbus"))

	bus, err := joinbus.New(joinbus.Options{
		ID:     cfg.Bus.ID,
		MQTT:   mqttClient,
		QoS:    mqttClient.QoS(),
		Store:  store,
		Logger: log.Component("joinbus"),
	})
	if err != nil {
		return fmt.Errorf("creating join bus: %w", err)
	}
	if startErr := bus.Start(); startErr != nil {
		return fmt.Errorf("starting join bus: %w", startErr)
	}
	defer func() {
		log.Info("stopping join bus")
		bus.Stop()
	}()

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		bus.NotifyOnline(true)
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
		bus.NotifyOnline(false)
	})

	sup, err := supervisor.New(supervisor.Options{
		Devices: cfg.Devices,
		Factory: &supervisor.Factory{
			MQTT:   mqttClient,
			Logger: log,
		},
		Bus:       bus,
		Registry:  bus,
		Overrides: joinbus.ChainOverrides{store, joinbus.StaticOverridesFromConfig(cfg.JoinMaps)},
		Logger:    log.Component("supervisor"),
	})
	if err != nil {
		return fmt.Errorf("creating supervisor: %w", err)
	}
	if startErr := sup.Start(ctx); startErr != nil {
		return fmt.Errorf("starting supervisor: %w", startErr)
	}
	defer func() {
		log.Info("stopping displays")
		sup.Stop()
	}()

	health := supervisor.NewHealthReporter(supervisor.HealthReporterConfig{
		Version:   version,
		Interval:  cfg.GetHealthInterval(),
		Publisher: mqttClient,
		Source:    sup,
	})
	health.SetLogger(log)
	if pubErr := health.PublishStarting(); pubErr != nil {
		log.Warn("failed to publish starting health", "error", pubErr)
	}
	health.Start(ctx)
	defer health.Stop()

	if cfg.Telemetry.Enabled && influxClient != nil {
		telemetry := supervisor.NewTelemetry(supervisor.TelemetryConfig{
			Site:     cfg.Site.ID,
			Interval: cfg.GetTelemetryInterval(),
			Writer:   influxClient,
			Source:   sup,
		})
		telemetry.Start(ctx)
		defer telemetry.Stop()
		log.Info("display telemetry enabled", "interval", cfg.GetTelemetryInterval())
	}

	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log.Component("api"),
			Displays: sup,
			Status:   sup,
			MQTT:     mqttClient,
			BusID:    cfg.Bus.ID,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"displays", len(sup.Devices()),
		"bus", cfg.Bus.ID,
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns GRAYLOGIC_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when InfluxDB is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
