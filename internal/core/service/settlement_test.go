package service

import (
	"testing"
	"time"

	"github.com/berfenger/microgrid2mqtt/internal/config"
	"github.com/berfenger/microgrid2mqtt/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prosumer(id string, production, consumption, bufferFilling float64) domain.Prosumer {
	return domain.Prosumer{
		Id:                     id,
		BufferSize:             100,
		BufferFilling:          bufferFilling,
		ProductionRatioBuffer:  0.7,
		ProductionRatioMarket:  0.3,
		ConsumptionRatioBuffer: 0.5,
		ConsumptionRatioMarket: 0.5,
		Production:             production,
		Consumption:            consumption,
	}
}

func TestSurplusRouting(t *testing.T) {

	assert := assert.New(t)

	p := prosumer("p1", 10, 4, 0)
	balance := SettleProsumer(&p, 0)

	assert.InDelta(4.2, p.BufferFilling, 1e-9)
	assert.InDelta(1.8, p.ElectricitySentToMarket, 1e-9)
	assert.Equal(0.0, p.BoughtElectricity)
	assert.False(p.BlackOut)
	assert.InDelta(1.8, balance, 1e-9)
}

func TestSurplusBufferCapped(t *testing.T) {
	p := prosumer("p1", 100, 0, 95)
	SettleProsumer(&p, 0)
	assert.Equal(t, 100.0, p.BufferFilling)
}

func TestDeficitInsufficientMarket(t *testing.T) {

	assert := assert.New(t)

	for _, buffer := range []float64{0, 50, 100} {
		p := prosumer("p1", 0, 10, buffer)
		balance := SettleProsumer(&p, 1)

		assert.True(p.BlackOut)
		assert.Equal(0.0, p.BoughtElectricity)
		assert.Equal(0.0, p.ElectricitySentToMarket)
		assert.Equal(buffer, p.BufferFilling, "blackout leaves the buffer untouched")
		assert.Equal(1.0, balance)
	}
}

func TestDeficitInsufficientBuffer(t *testing.T) {
	p := prosumer("p1", 0, 10, 5)
	balance := SettleProsumer(&p, 1000)
	assert.True(t, p.BlackOut, "market alone cannot serve a deficit")
	assert.Equal(t, 1000.0, balance)
}

func TestDeficitServedConservation(t *testing.T) {

	assert := assert.New(t)

	p := prosumer("p1", 2, 12, 50)
	balance := SettleProsumer(&p, 100)

	need := 10.0
	drain := 50 - p.BufferFilling
	assert.False(p.BlackOut)
	assert.InDelta(5.0, p.BoughtElectricity, 1e-9)
	assert.InDelta(need, p.BoughtElectricity+drain, 1e-9)
	assert.InDelta(95.0, balance, 1e-9)
}

func TestSeedMarketBalance(t *testing.T) {
	plants := []domain.PowerPlant{
		{Status: domain.POWER_PLANT_RUNNING, CurrentProduction: 40, BufferFilling: 1000},
		{Status: domain.POWER_PLANT_STOPPED, CurrentProduction: 0, BufferFilling: 7},
		{Status: domain.POWER_PLANT_STARTING, CurrentProduction: 30, BufferFilling: 3},
	}
	assert.Equal(t, 50.0, SeedMarketBalance(plants))
}

func TestSettlementOrderIsById(t *testing.T) {

	require := require.New(t)

	// only the first prosumer in id order can be served by the market
	in := SettlementInput{
		Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Prosumers: []domain.Prosumer{
			prosumer("b", 0, 10, 50),
			prosumer("a", 0, 10, 50),
		},
		PowerPlants: []domain.PowerPlant{{Id: "pp", Status: domain.POWER_PLANT_RUNNING, CurrentProduction: 8}},
	}

	out := NewSettlementEngine(config.SettlementConfig{}).Settle(in)

	require.Len(out.Prosumers, 2)
	assert.Equal(t, "a", out.Prosumers[0].Id)
	assert.False(t, out.Prosumers[0].BlackOut)
	assert.Equal(t, "b", out.Prosumers[1].Id)
	assert.True(t, out.Prosumers[1].BlackOut)
	assert.Equal(t, 1, out.BlackOuts)
	assert.InDelta(t, 3.0, out.MarketBalance, 1e-9)

	require.Len(out.Records, 2)
	assert.Equal(t, "a", out.Records[0].ActorId)
	assert.Equal(t, in.Date, out.Records[0].Date)

	assert.Equal(t, "b", in.Prosumers[0].Id, "input is not reordered")
}

func TestShortfallFlooredAtZero(t *testing.T) {

	assert := assert.New(t)

	plants := []domain.PowerPlant{
		{Id: "idle1", Status: domain.POWER_PLANT_STOPPED, BufferFilling: 10},
		{Id: "idle2", Status: domain.POWER_PLANT_STARTING, BufferFilling: 1},
		{Id: "run", Status: domain.POWER_PLANT_RUNNING, BufferFilling: 5},
	}
	NewSettlementEngine(config.SettlementConfig{}).AbsorbShortfall(plants, -8)

	assert.Equal(6.0, plants[0].BufferFilling)
	assert.Equal(0.0, plants[1].BufferFilling)
	assert.Equal(5.0, plants[2].BufferFilling, "running plants are not touched")
}

func TestShortfallNegativeBufferAllowed(t *testing.T) {
	plants := []domain.PowerPlant{
		{Id: "idle1", Status: domain.POWER_PLANT_STOPPED, BufferFilling: 10},
		{Id: "idle2", Status: domain.POWER_PLANT_STOPPED, BufferFilling: 1},
	}
	NewSettlementEngine(config.SettlementConfig{AllowNegativePlantBuffer: true}).AbsorbShortfall(plants, -8)

	assert.Equal(t, 6.0, plants[0].BufferFilling)
	assert.Equal(t, -3.0, plants[1].BufferFilling)
}

func TestShortfallIgnoredOnSurplus(t *testing.T) {
	plants := []domain.PowerPlant{{Status: domain.POWER_PLANT_STOPPED, BufferFilling: 10}}
	NewSettlementEngine(config.SettlementConfig{}).AbsorbShortfall(plants, 4)
	assert.Equal(t, 10.0, plants[0].BufferFilling)
}

func TestMarketRecordCarriesPreviousActualPrice(t *testing.T) {

	assert := assert.New(t)
	engine := NewSettlementEngine(config.SettlementConfig{})

	out := engine.Settle(SettlementInput{ComputedPrice: 1.7})
	assert.Equal(1.7, out.Market.ActualPrice)
	assert.Equal(1.7, out.Market.ComputedPrice)

	out = engine.Settle(SettlementInput{ComputedPrice: 1.7, PreviousMarket: &domain.MarketRecord{ActualPrice: 1.2}})
	assert.Equal(1.2, out.Market.ActualPrice)
	assert.Equal(1.7, out.Market.ComputedPrice)
}

func TestGridDeficitMarketRecord(t *testing.T) {

	assert := assert.New(t)

	in := SettlementInput{
		Prosumers: []domain.Prosumer{prosumer("p", 0, 10, 50)},
		PowerPlants: []domain.PowerPlant{
			{Id: "pp", Status: domain.POWER_PLANT_STOPPED, BufferFilling: 6, BufferSize: 79200},
		},
	}
	out := NewSettlementEngine(config.SettlementConfig{}).Settle(in)

	assert.False(out.Prosumers[0].BlackOut)
	assert.InDelta(1.0, out.Market.Electricity, 1e-9)
	assert.Equal(6.0, out.PowerPlants[0].BufferFilling)
	assert.Equal(6.0, in.PowerPlants[0].BufferFilling, "input plants are not mutated")
}
