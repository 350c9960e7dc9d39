package main

import (
	"testing"

	"github.com/berfenger/microgrid2mqtt/internal/config"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfigDefaults(t *testing.T) {

	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")

	cfg, err := initConfig()
	require.NoError(t, err)

	d := config.Defaults()
	assert.Equal(t, d.Signal, cfg.Signal)
	assert.Equal(t, d.Market, cfg.Market)
	assert.Equal(t, d.Prosumer, cfg.Prosumer)
	assert.Equal(t, config.STORE_DRIVER_MEMORY, cfg.Store.Driver)
	assert.Equal(t, "microgrid", cfg.MQTT.BaseTopic)
}

func TestInitConfigEnvOverridesNestedKeys(t *testing.T) {

	assert := assert.New(t)

	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")
	t.Setenv("MICROGRID_SIGNAL_MAX_WIND_SPEED", "1500")
	t.Setenv("MICROGRID_MARKET_MIN_PRICE", "0.5")
	t.Setenv("MICROGRID_POWER_PLANT_BUFFER_SIZE", "1000")
	t.Setenv("MICROGRID_PROSUMER_CONSUMPTION_RATIO_MARKET", "0.25")
	t.Setenv("MICROGRID_SETTLEMENT_ALLOW_NEGATIVE_PLANT_BUFFER", "true")
	t.Setenv("MICROGRID_SIMULATOR_PROSUMERS", "alice,bob")
	t.Setenv("MICROGRID_MQTT_BASE_TOPIC", "Grid_2")

	cfg, err := initConfig()
	require.NoError(t, err)

	assert.Equal(1500.0, cfg.Signal.MaxWindSpeed)
	assert.Equal(0.5, cfg.Market.MinPrice)
	assert.Equal(1000.0, cfg.PowerPlant.BufferSize)
	assert.Equal(0.25, cfg.Prosumer.ConsumptionRatioMarket)
	assert.True(cfg.Settlement.AllowNegativePlantBuffer)
	assert.Equal([]string{"alice", "bob"}, cfg.Simulator.Prosumers)
	assert.Equal("grid_2", cfg.MQTT.BaseTopic)
}

func TestInitConfigRejectsInvalidProsumerRatio(t *testing.T) {

	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")
	t.Setenv("MICROGRID_PROSUMER_PRODUCTION_RATIO_BUFFER", "1.5")

	_, err := initConfig()
	assert.Error(t, err)
}
