package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel   zapcore.Level
	Simulator  SimulatorConfig  `mapstructure:"simulator"`
	Signal     SignalConfig     `mapstructure:"signal"`
	Ramp       RampConfig       `mapstructure:"ramp"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Market     MarketConfig     `mapstructure:"market"`
	PowerPlant PowerPlantConfig `mapstructure:"power_plant"`
	Prosumer   ProsumerConfig   `mapstructure:"prosumer"`
	Store      StoreConfig      `mapstructure:"store"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Port       uint             `mapstructure:"port"`
	HttpLog    bool             `mapstructure:"http_log"`
}

type SimulatorConfig struct {
	TickIntervalMillis uint32   `mapstructure:"tick_interval_millis"`
	TickTimeoutMillis  uint32   `mapstructure:"tick_timeout_millis"`
	WriteConcurrency   int      `mapstructure:"write_concurrency"`
	Prosumers          []string `mapstructure:"prosumers"`
	Managers           []string `mapstructure:"managers"`
}

func (c SimulatorConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMillis) * time.Millisecond
}

func (c SimulatorConfig) TickTimeout() time.Duration {
	return time.Duration(c.TickTimeoutMillis) * time.Millisecond
}

// SignalConfig holds the constants of the wind, consumption and production curves.
type SignalConfig struct {
	MaxWindSpeed         float64 `mapstructure:"max_wind_speed"`
	WindSamples          int     `mapstructure:"wind_samples"`
	WindStdDev           float64 `mapstructure:"wind_std_dev"`
	DailyConsumption     float64 `mapstructure:"daily_consumption"`
	MorningConsumption   float64 `mapstructure:"morning_consumption"`
	MorningPeakSeconds   float64 `mapstructure:"morning_peak_seconds"`
	MorningStdDevSeconds float64 `mapstructure:"morning_std_dev_seconds"`
	EveningPeakSeconds   float64 `mapstructure:"evening_peak_seconds"`
	EveningStdDevSeconds float64 `mapstructure:"evening_std_dev_seconds"`
	ConsumptionScale     float64 `mapstructure:"consumption_scale"`
	ProductionFactor     float64 `mapstructure:"production_factor"`
}

type RampConfig struct {
	DurationSeconds float64 `mapstructure:"duration_seconds"`
}

func (c RampConfig) Duration() time.Duration {
	return time.Duration(c.DurationSeconds * float64(time.Second))
}

type SettlementConfig struct {
	AllowNegativePlantBuffer bool `mapstructure:"allow_negative_plant_buffer"`
}

type MarketConfig struct {
	MinPrice         float64 `mapstructure:"min_price"`
	MaxPrice         float64 `mapstructure:"max_price"`
	ConsumptionCoeff float64 `mapstructure:"consumption_coeff"`
	WindSpeedCoeff   float64 `mapstructure:"wind_speed_coeff"`
	PriceDecimals    int32   `mapstructure:"price_decimals"`
}

// PowerPlantConfig is the shape of the plant created by the simulator initialization.
type PowerPlantConfig struct {
	BufferSize            float64 `mapstructure:"buffer_size"`
	ProductionRatioBuffer float64 `mapstructure:"production_ratio_buffer"`
	ProductionRatioMarket float64 `mapstructure:"production_ratio_market"`
}

type ProsumerConfig struct {
	BufferSize             float64 `mapstructure:"buffer_size"`
	ProductionRatioBuffer  float64 `mapstructure:"production_ratio_buffer"`
	ProductionRatioMarket  float64 `mapstructure:"production_ratio_market"`
	ConsumptionRatioBuffer float64 `mapstructure:"consumption_ratio_buffer"`
	ConsumptionRatioMarket float64 `mapstructure:"consumption_ratio_market"`
}

type StoreConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type MQTTConfig struct {
	Enable            bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

const (
	STORE_DRIVER_MEMORY   = "memory"
	STORE_DRIVER_POSTGRES = "postgres"
)

// Defaults returns the reference configuration of the simulator.
func Defaults() Config {
	return Config{
		LogLevel: zapcore.InfoLevel,
		Simulator: SimulatorConfig{
			TickIntervalMillis: 1000,
			TickTimeoutMillis:  900,
			WriteConcurrency:   8,
		},
		Signal: SignalConfig{
			MaxWindSpeed:         2000,
			WindSamples:          1000,
			WindStdDev:           8000,
			DailyConsumption:     2700,
			MorningConsumption:   2100,
			MorningPeakSeconds:   11 * 3600,
			MorningStdDevSeconds: 21600,
			EveningPeakSeconds:   19*3600 + 30*60,
			EveningStdDevSeconds: 5400,
			ConsumptionScale:     100,
			ProductionFactor:     50,
		},
		Ramp: RampConfig{
			DurationSeconds: 30,
		},
		Market: MarketConfig{
			MinPrice:         1,
			MaxPrice:         2,
			ConsumptionCoeff: 500,
			WindSpeedCoeff:   -1,
			PriceDecimals:    4,
		},
		PowerPlant: PowerPlantConfig{
			BufferSize:            79200,
			ProductionRatioBuffer: 0.7,
			ProductionRatioMarket: 0.3,
		},
		Prosumer: ProsumerConfig{
			BufferSize:             1000,
			ProductionRatioBuffer:  0.7,
			ProductionRatioMarket:  0.3,
			ConsumptionRatioBuffer: 0.5,
			ConsumptionRatioMarket: 0.5,
		},
		Store: StoreConfig{
			Driver:       STORE_DRIVER_MEMORY,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		MQTT: MQTTConfig{
			Port:             1883,
			BaseTopic:        "microgrid",
			HADiscoveryTopic: "homeassistant",
		},
		Port: 8080,
	}
}

// Validate checks the bounds of the parameters that would otherwise break a tick.
func (cfg *Config) Validate() error {
	if cfg.Simulator.TickIntervalMillis < 100 {
		return errors.New("config param simulator.tick_interval_millis should be >= 100")
	}
	if cfg.Simulator.TickTimeoutMillis == 0 {
		return errors.New("config param simulator.tick_timeout_millis should be > 0")
	}
	if cfg.Simulator.WriteConcurrency <= 0 {
		return errors.New("config param simulator.write_concurrency should be > 0")
	}
	if cfg.Signal.WindSamples <= 0 {
		return errors.New("config param signal.wind_samples should be > 0")
	}
	if cfg.Signal.WindStdDev <= 0 || cfg.Signal.MorningStdDevSeconds <= 0 || cfg.Signal.EveningStdDevSeconds <= 0 {
		return errors.New("config params signal.*_std_dev should be > 0")
	}
	if cfg.Signal.MorningConsumption > cfg.Signal.DailyConsumption {
		return errors.New("config param signal.morning_consumption must be <= signal.daily_consumption")
	}
	if cfg.Ramp.DurationSeconds <= 0 {
		return errors.New("config param ramp.duration_seconds should be > 0")
	}
	if cfg.Market.MinPrice > cfg.Market.MaxPrice {
		return errors.New("config param market.min_price must be <= market.max_price")
	}
	if cfg.PowerPlant.BufferSize < 0 || cfg.Prosumer.BufferSize < 0 {
		return errors.New("config params *.buffer_size should be >= 0")
	}
	if !isRatio(cfg.PowerPlant.ProductionRatioBuffer) || !isRatio(cfg.PowerPlant.ProductionRatioMarket) {
		return errors.New("config params power_plant.production_ratio_* should be in [0, 1]")
	}
	if !isRatio(cfg.Prosumer.ProductionRatioBuffer) || !isRatio(cfg.Prosumer.ProductionRatioMarket) ||
		!isRatio(cfg.Prosumer.ConsumptionRatioBuffer) || !isRatio(cfg.Prosumer.ConsumptionRatioMarket) {
		return errors.New("config params prosumer.*_ratio_* should be in [0, 1]")
	}
	switch cfg.Store.Driver {
	case STORE_DRIVER_MEMORY:
	case STORE_DRIVER_POSTGRES:
		if cfg.Store.DSN == "" {
			return errors.New("config param store.dsn is required for the postgres driver")
		}
	default:
		return errors.New("config param store.driver should be memory or postgres")
	}
	return nil
}

func isRatio(v float64) bool {
	return v >= 0 && v <= 1
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
