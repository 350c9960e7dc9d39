package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateBounds(t *testing.T) {

	assert := assert.New(t)

	cfg := Defaults()
	cfg.Simulator.TickIntervalMillis = 10
	assert.Error(cfg.Validate(), "tick interval too small")

	cfg = Defaults()
	cfg.Ramp.DurationSeconds = 0
	assert.Error(cfg.Validate(), "ramp duration must be positive")

	cfg = Defaults()
	cfg.Market.MinPrice = 3
	assert.Error(cfg.Validate(), "min price above max price")

	cfg = Defaults()
	cfg.PowerPlant.ProductionRatioBuffer = 1.2
	assert.Error(cfg.Validate(), "ratio out of range")

	cfg = Defaults()
	cfg.Prosumer.ConsumptionRatioMarket = 1.5
	assert.Error(cfg.Validate(), "prosumer ratio out of range")

	cfg = Defaults()
	cfg.Prosumer.ProductionRatioBuffer = -0.1
	assert.Error(cfg.Validate(), "negative prosumer ratio")

	cfg = Defaults()
	cfg.Store.Driver = STORE_DRIVER_POSTGRES
	assert.Error(cfg.Validate(), "postgres without dsn")
	cfg.Store.DSN = "host=localhost"
	assert.NoError(cfg.Validate())

	cfg = Defaults()
	cfg.Store.Driver = "mongo"
	assert.Error(cfg.Validate(), "unknown driver")
}

func TestCheckMQTTTopic(t *testing.T) {

	assert := assert.New(t)

	topic, err := CheckMQTTTopic("MicroGrid_1")
	assert.NoError(err)
	assert.Equal("microgrid_1", topic)

	_, err = CheckMQTTTopic("micro/grid")
	assert.Error(err)
}
