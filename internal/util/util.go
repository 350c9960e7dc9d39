package util

import (
	"github.com/berfenger/microgrid2mqtt/internal/config"

	"go.uber.org/zap"
)

// LoadTestConfig returns the defaults with a fast tick, debug logging and
// the in-memory store.
func LoadTestConfig() config.Config {
	cfg := config.Defaults()
	cfg.LogLevel = zap.DebugLevel
	cfg.Simulator.TickIntervalMillis = 100
	cfg.Simulator.TickTimeoutMillis = 90
	cfg.Simulator.Prosumers = []string{"prosumer-1", "prosumer-2"}
	cfg.Simulator.Managers = []string{"manager-token"}
	cfg.Store.Driver = config.STORE_DRIVER_MEMORY
	cfg.MQTT.Host = "localhost"
	cfg.MQTT.Port = 1883
	return cfg
}
