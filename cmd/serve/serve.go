// Package serve provides the command running the HTTP API.
package serve

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Project-OSmOSE/osmose-app-sub000/internal/api"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/buildinfo"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/campaign"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/conf"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/datastore"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/events"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/logger"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/mqtt"
	"github.com/Project-OSmOSE/osmose-app-sub000/internal/observability"
)

// eventBusShutdownTimeout bounds how long pending events are drained on exit.
const eventBusShutdownTimeout = 5 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the annotation API server",
		Long:  "Serve opens the database, applies the schema and serves the REST API until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Listen, "listen", viper.GetString("webserver.listen"), "Listen address of the API server")
	cmd.Flags().BoolVar(&settings.WebServer.Debug, "webdebug", viper.GetBool("webserver.debug"), "Enable echo debug mode")
	cmd.Flags().BoolVar(&settings.Metrics.Enabled, "metrics", viper.GetBool("metrics.enabled"), "Expose Prometheus metrics on /metrics")
	cmd.Flags().BoolVar(&settings.MQTT.Enabled, "mqtt", viper.GetBool("mqtt.enabled"), "Publish domain events to the MQTT broker")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func runServe(settings *conf.Settings) error {
	log := logger.Global().Module("serve")

	manager, err := datastore.Open(&settings.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := manager.Close(); err != nil {
			log.Error("failed to close database", logger.Error(err))
		}
	}()
	log.Info("database ready", logger.String("dialect", manager.Dialect()), logger.String("path", manager.Path()))

	m, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	bus := events.NewEventBus(nil)
	defer func() {
		if err := bus.Shutdown(eventBusShutdownTimeout); err != nil {
			log.Warn("event bus shutdown incomplete", logger.Error(err))
		}
	}()

	if settings.MQTT.Enabled {
		client, err := connectMQTT(settings, m, bus)
		if err != nil {
			// The API keeps serving without event publishing.
			log.Error("mqtt disabled", logger.Error(err))
		} else {
			defer client.Disconnect()
		}
	}

	files := campaign.NewFileCache(settings.Cache.FileListTTL)
	server, err := api.New(settings,
		api.WithDB(manager.DB()),
		api.WithMetrics(m),
		api.WithPublisher(bus),
		api.WithFileCache(files),
		api.WithBuildInfo(buildinfo.Current()),
	)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}
	return server.StartWithGracefulShutdown()
}

// connectMQTT connects the broker client and subscribes it to the bus.
func connectMQTT(settings *conf.Settings, m *observability.Metrics, bus *events.EventBus) (mqtt.Client, error) {
	config := mqtt.ConfigFromSettings(&settings.MQTT)
	client := mqtt.NewClient(config, m.MQTT)

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to broker %s: %w", config.Broker, err)
	}
	if err := bus.RegisterConsumer(mqtt.NewEventPublisher(client, config)); err != nil {
		client.Disconnect()
		return nil, err
	}
	return client, nil
}
