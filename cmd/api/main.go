package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	adactor "github.com/berfenger/microgrid2mqtt/internal/adapter/actor"
	"github.com/berfenger/microgrid2mqtt/internal/adapter/store/gormstore"
	"github.com/berfenger/microgrid2mqtt/internal/adapter/store/memory"
	"github.com/berfenger/microgrid2mqtt/internal/config"
	"github.com/berfenger/microgrid2mqtt/internal/core/actor"
	"github.com/berfenger/microgrid2mqtt/internal/core/port"
	"github.com/berfenger/microgrid2mqtt/internal/core/service"
	"github.com/berfenger/microgrid2mqtt/internal/server"
	"github.com/berfenger/microgrid2mqtt/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	// persistence gateway
	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("could not open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
		return
	}
	defer closeStore()

	simulator := service.NewSimulator(*cfg, store, logger)

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	var mqttProv actor.MQTTActorProvider
	if cfg.MQTT.Enable {
		mqttProv = mqttActorProvider(cfg, logger)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, simulator, mqttProv, logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, simulator, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => MICROGRID_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("MICROGRID_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("microgrid")
	// nested keys: signal.max_wind_speed => MICROGRID_SIGNAL_MAX_WIND_SPEED
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	cfg := config.Defaults()

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func openStore(cfg *config.Config, logger *zap.Logger) (port.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.STORE_DRIVER_POSTGRES:
		db, err := gormstore.Open(cfg.Store)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Store.AutoMigrate {
			if err := gormstore.AutoMigrate(db); err != nil {
				return nil, nil, err
			}
		}
		logger.Info("using postgres store")
		return gormstore.New(db), func() {
			if err := gormstore.Close(db); err != nil {
				logger.Warn("could not close store", zap.Error(err))
			}
		}, nil
	default:
		logger.Info("using in-memory store")
		return memory.NewStore(), func() {}, nil
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(eventStream *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, eventStream, logger)
	}
}

// setConfigDefaults registers every config key, so AutomaticEnv can
// override any of them.
func setConfigDefaults() {
	d := config.Defaults()

	viper.SetDefault("log_level", "warn")
	viper.SetDefault("port", d.Port)
	viper.SetDefault("http_log", d.HttpLog)

	viper.SetDefault("simulator.tick_interval_millis", d.Simulator.TickIntervalMillis)
	viper.SetDefault("simulator.tick_timeout_millis", d.Simulator.TickTimeoutMillis)
	viper.SetDefault("simulator.write_concurrency", d.Simulator.WriteConcurrency)
	viper.SetDefault("simulator.prosumers", []string{})
	viper.SetDefault("simulator.managers", []string{})

	viper.SetDefault("signal.max_wind_speed", d.Signal.MaxWindSpeed)
	viper.SetDefault("signal.wind_samples", d.Signal.WindSamples)
	viper.SetDefault("signal.wind_std_dev", d.Signal.WindStdDev)
	viper.SetDefault("signal.daily_consumption", d.Signal.DailyConsumption)
	viper.SetDefault("signal.morning_consumption", d.Signal.MorningConsumption)
	viper.SetDefault("signal.morning_peak_seconds", d.Signal.MorningPeakSeconds)
	viper.SetDefault("signal.morning_std_dev_seconds", d.Signal.MorningStdDevSeconds)
	viper.SetDefault("signal.evening_peak_seconds", d.Signal.EveningPeakSeconds)
	viper.SetDefault("signal.evening_std_dev_seconds", d.Signal.EveningStdDevSeconds)
	viper.SetDefault("signal.consumption_scale", d.Signal.ConsumptionScale)
	viper.SetDefault("signal.production_factor", d.Signal.ProductionFactor)

	viper.SetDefault("ramp.duration_seconds", d.Ramp.DurationSeconds)
	viper.SetDefault("settlement.allow_negative_plant_buffer", d.Settlement.AllowNegativePlantBuffer)

	viper.SetDefault("market.min_price", d.Market.MinPrice)
	viper.SetDefault("market.max_price", d.Market.MaxPrice)
	viper.SetDefault("market.consumption_coeff", d.Market.ConsumptionCoeff)
	viper.SetDefault("market.wind_speed_coeff", d.Market.WindSpeedCoeff)
	viper.SetDefault("market.price_decimals", d.Market.PriceDecimals)

	viper.SetDefault("power_plant.buffer_size", d.PowerPlant.BufferSize)
	viper.SetDefault("power_plant.production_ratio_buffer", d.PowerPlant.ProductionRatioBuffer)
	viper.SetDefault("power_plant.production_ratio_market", d.PowerPlant.ProductionRatioMarket)

	viper.SetDefault("prosumer.buffer_size", d.Prosumer.BufferSize)
	viper.SetDefault("prosumer.production_ratio_buffer", d.Prosumer.ProductionRatioBuffer)
	viper.SetDefault("prosumer.production_ratio_market", d.Prosumer.ProductionRatioMarket)
	viper.SetDefault("prosumer.consumption_ratio_buffer", d.Prosumer.ConsumptionRatioBuffer)
	viper.SetDefault("prosumer.consumption_ratio_market", d.Prosumer.ConsumptionRatioMarket)

	viper.SetDefault("store.driver", d.Store.Driver)
	viper.SetDefault("store.dsn", d.Store.DSN)
	viper.SetDefault("store.max_open_conns", d.Store.MaxOpenConns)
	viper.SetDefault("store.max_idle_conns", d.Store.MaxIdleConns)
	viper.SetDefault("store.conn_max_lifetime", d.Store.ConnMaxLifetime)
	viper.SetDefault("store.auto_migrate", true)

	viper.SetDefault("mqtt.enable", d.MQTT.Enable)
	viper.SetDefault("mqtt.host", d.MQTT.Host)
	viper.SetDefault("mqtt.port", d.MQTT.Port)
	viper.SetDefault("mqtt.username", d.MQTT.Username)
	viper.SetDefault("mqtt.password", d.MQTT.Password)
	viper.SetDefault("mqtt.base_topic", d.MQTT.BaseTopic)
	viper.SetDefault("mqtt.ha_discovery_enable", d.MQTT.HADiscoveryEnable)
	viper.SetDefault("mqtt.ha_discovery_topic", d.MQTT.HADiscoveryTopic)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.Store.DSN = "*redacted*"
	slog.Info("Using", "config", cfg)
}
