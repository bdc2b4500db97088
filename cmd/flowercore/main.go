// Flower Core - Flower Fleet Control Engine
//
// This is the main entry point for the Flower Core application.
// Flower Core drives a fleet of kinetic flower fixtures over serial and
// Modbus-TCP buses:
//   - Command dispatch with per-unit serialization and ack correlation
//   - Connection-state tracking with a hard gate on unreachable units
//   - Drift-free scheduled shows referencing units by priority key
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/flower-core/internal/api"
	"github.com/nerrad567/flower-core/internal/bus"
	"github.com/nerrad567/flower-core/internal/command"
	"github.com/nerrad567/flower-core/internal/dispatch"
	"github.com/nerrad567/flower-core/internal/flower"
	"github.com/nerrad567/flower-core/internal/infrastructure/config"
	"github.com/nerrad567/flower-core/internal/infrastructure/database"
	"github.com/nerrad567/flower-core/internal/infrastructure/logging"
	"github.com/nerrad567/flower-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/flower-core/internal/publish"
	"github.com/nerrad567/flower-core/internal/show"
	"github.com/nerrad567/flower-core/internal/telemetry"
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
	log.Info("starting Flower Core",
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

	// Open database and apply schema
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Load the fleet
	registry := flower.NewRegistry(flower.NewSQLiteRepository(db.DB))
	registry.SetLogger(log)
	if loadErr := registry.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading fleet: %w", loadErr)
	}
	log.Info("fleet loaded", "flowers", registry.Count())

	// Connect buses from their stored configs. A dead gateway is logged
	// and skipped; its units stay disconnected until it is reconnected
	// through the API.
	busRepo := bus.NewSQLiteRepository(db.DB)
	buses := bus.NewDirectory(nil, log)
	defer func() {
		log.Info("closing buses")
		if closeErr := buses.Close(); closeErr != nil {
			log.Error("error closing buses", "error", closeErr)
		}
	}()

	busConfigs, err := busRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading bus configs: %w", err)
	}
	buses.ConnectAll(ctx, busConfigs)
	log.Info("buses connected", "configured", len(busConfigs), "open", len(buses.List()))

	// Command pipeline
	builder := command.NewBuilder(cfg.AckTimeout())
	dispatcher := dispatch.New(registry, buses, log)
	defer func() {
		log.Info("stopping dispatcher")
		dispatcher.Close()
	}()

	// Show playback
	showStore := show.NewSQLiteStore(db.DB)
	player := show.NewPlayer(registry, dispatcher, builder, cfg.ShowTick(), log)
	defer func() {
		if stopErr := player.Stop(); stopErr == nil {
			log.Info("show playback stopped")
		}
	}()

	// Connect to InfluxDB (optional)
	var recorder *telemetry.Recorder
	if cfg.InfluxDB.Enabled {
		recorder, err = telemetry.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := recorder.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		recorder.SetOnError(func(err error) {
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

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	var publisher *publish.Publisher
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
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		publisher = publish.New(mqttClient, byte(cfg.MQTT.QoS), log)
		if subErr := publisher.SubscribeCommands(registry, builder, dispatcher); subErr != nil {
			return fmt.Errorf("subscribing to command topics: %w", subErr)
		}
	} else {
		log.Info("MQTT disabled")
	}

	// Start the API server
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log,
		Registry:   registry,
		Builder:    builder,
		Dispatcher: dispatcher,
		Buses:      buses,
		BusRepo:    busRepo,
		ShowStore:  showStore,
		Player:     player,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Fan engine events out to every observer. Hooks are single-slot,
	// so composition happens here.
	hub := server.Hub()
	registry.SetOnChange(func(u flower.Unit) {
		hub.Broadcast(api.ChannelFlowerState, u)
		if publisher != nil {
			publisher.PublishState(u)
		}
	})
	dispatcher.SetOnSettled(func(s dispatch.Settled) {
		hub.Broadcast(api.ChannelCommandSettled, s)
		if publisher != nil {
			publisher.PublishOutcome(s)
		}
		if recorder != nil {
			recorder.RecordOutcome(s)
		}
	})
	player.SetOnStatus(func(st show.Status) {
		hub.Broadcast(api.ChannelShowStatus, st)
		if publisher != nil {
			publisher.PublishShowStatus(st)
		}
	})
	if recorder != nil {
		player.SetOnDrift(recorder.RecordDrift)
	}

	if err := healthCheck(ctx, db, server, mqttClient, recorder); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, MQTT, InfluxDB, player, dispatcher, buses, database.

	log.Info("Flower Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses FLOWERCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FLOWERCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// The MQTT and InfluxDB clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, server *api.Server, mqttClient *mqtt.Client, recorder *telemetry.Recorder) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if recorder != nil {
		if err := recorder.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
