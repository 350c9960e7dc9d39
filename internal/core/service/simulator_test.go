package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/berfenger/microgrid2mqtt/internal/adapter/store/memory"
	"github.com/berfenger/microgrid2mqtt/internal/config"
	"github.com/berfenger/microgrid2mqtt/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingStore struct {
	*memory.Store
	failProsumer string
}

func (s failingStore) UpdateProsumer(ctx context.Context, p domain.Prosumer) error {
	if p.Id == s.failProsumer {
		return errors.New("disk full")
	}
	return s.Store.UpdateProsumer(ctx, p)
}

func newTestSimulator(t *testing.T, cfg config.Config) (*Simulator, *memory.Store) {
	store := memory.NewStore()
	return NewSimulator(cfg, store, zap.Must(zap.NewDevelopment())), store
}

var tickDate = time.Date(2024, time.March, 14, 11, 0, 0, 0, time.UTC)

func TestInitializeCreatesDefaultPlant(t *testing.T) {

	require := require.New(t)
	ctx := context.Background()

	sim, store := newTestSimulator(t, config.Defaults())

	require.NoError(sim.Initialize(ctx))
	plants, err := store.ListPowerPlants(ctx)
	require.NoError(err)
	require.Len(plants, 1)

	plant := plants[0]
	assert.Equal(t, domain.POWER_PLANT_RUNNING, plant.Status)
	assert.Equal(t, 79200.0, plant.BufferSize)
	assert.Equal(t, 0.0, plant.BufferFilling)
	assert.Equal(t, 0.0, plant.CurrentProduction)
	assert.Equal(t, 0.7, plant.ProductionRatioBuffer)
	assert.Equal(t, 0.3, plant.ProductionRatioMarket)

	// idempotent
	require.NoError(sim.Initialize(ctx))
	plants, err = store.ListPowerPlants(ctx)
	require.NoError(err)
	require.Len(plants, 1)
	assert.Equal(t, plant.Id, plants[0].Id)
}

func TestInitializeSeedsProsumersAndManagers(t *testing.T) {

	require := require.New(t)
	ctx := context.Background()

	cfg := config.Defaults()
	cfg.Simulator.Prosumers = []string{"alice", "bob"}
	cfg.Simulator.Managers = []string{"secret"}
	sim, store := newTestSimulator(t, cfg)

	require.NoError(sim.Initialize(ctx))
	require.NoError(sim.Initialize(ctx))

	prosumers, err := store.ListProsumers(ctx)
	require.NoError(err)
	require.Len(prosumers, 2)
	assert.Equal(t, cfg.Prosumer.BufferSize, prosumers[0].BufferSize)

	managers, err := store.FindManagersByToken(ctx, "secret")
	require.NoError(err)
	require.Len(managers, 1)

	plants, err := store.ListPowerPlants(ctx)
	require.NoError(err)
	require.Len(plants, 1)
	assert.Equal(t, []string{managers[0].Id}, plants[0].Managers)
}

func TestRunTickSettlesAndPersists(t *testing.T) {

	require := require.New(t)
	ctx := context.Background()

	cfg := config.Defaults()
	cfg.Simulator.Prosumers = []string{"alice", "bob", "carol"}
	sim, store := newTestSimulator(t, cfg)
	require.NoError(sim.Initialize(ctx))

	result, err := sim.RunTick(ctx, tickDate)
	require.NoError(err)
	require.NotNil(result)

	assert.Equal(t, 3, result.Prosumers)
	assert.Equal(t, 1, result.PowerPlants)
	assert.Equal(t, 0, result.FailedWrites)
	assert.NoError(t, result.WriteErr)
	assert.Equal(t, sim.signals.WindSpeed(tickDate), result.WindSpeed)

	prosumers, err := store.ListProsumers(ctx)
	require.NoError(err)
	blackOuts := 0
	for _, p := range prosumers {
		assert.Equal(t, sim.signals.Consumption(tickDate, p.Id), p.Consumption)
		assert.Equal(t, sim.signals.Production(tickDate), p.Production)
		assert.GreaterOrEqual(t, p.BufferFilling, 0.0)
		assert.LessOrEqual(t, p.BufferFilling, p.BufferSize)
		if p.BlackOut {
			blackOuts++
		}
	}
	assert.Equal(t, result.BlackOuts, blackOuts)

	records := store.SimulatorRecords()
	assert.Len(t, records, 3)

	market := store.MarketRecords()
	require.Len(market, 1)
	assert.Equal(t, result.MarketBalance, market[0].Electricity)
	assert.Equal(t, market[0].ComputedPrice, market[0].ActualPrice, "first record uses the computed price")
	assert.GreaterOrEqual(t, market[0].ComputedPrice, cfg.Market.MinPrice)
	assert.LessOrEqual(t, market[0].ComputedPrice, cfg.Market.MaxPrice)

	// zero targets: the seeded plant stops after its first ramp step
	plants, err := store.ListPowerPlants(ctx)
	require.NoError(err)
	assert.Equal(t, domain.POWER_PLANT_STOPPED, plants[0].Status)
}

func TestRunTickCarriesActualPrice(t *testing.T) {

	require := require.New(t)
	ctx := context.Background()

	sim, store := newTestSimulator(t, config.Defaults())
	require.NoError(sim.Initialize(ctx))
	require.NoError(store.InsertMarketRecord(ctx, domain.MarketRecord{ActualPrice: 1.33, Date: tickDate.Add(-time.Hour)}))

	result, err := sim.RunTick(ctx, tickDate)
	require.NoError(err)
	assert.Equal(t, 1.33, result.ActualPrice)

	latest, err := sim.LatestMarketRecord(ctx)
	require.NoError(err)
	assert.Equal(t, tickDate, latest.Date)
	assert.Equal(t, 1.33, latest.ActualPrice)
}

func TestRunTickWriteFailureIsolated(t *testing.T) {

	require := require.New(t)
	ctx := context.Background()

	cfg := config.Defaults()
	cfg.Simulator.Prosumers = []string{"alice", "bob"}
	mem := memory.NewStore()
	sim := NewSimulator(cfg, failingStore{Store: mem, failProsumer: "alice"}, zap.NewNop())
	require.NoError(sim.Initialize(ctx))

	result, err := sim.RunTick(ctx, tickDate)
	require.NoError(err)
	assert.Equal(t, 1, result.FailedWrites)
	assert.ErrorContains(t, result.WriteErr, "disk full")

	prosumers, err := mem.ListProsumers(ctx)
	require.NoError(err)
	assert.Equal(t, 0.0, prosumers[0].Consumption, "alice was not written")
	assert.NotEqual(t, 0.0, prosumers[1].Consumption, "bob was written")
	assert.Len(t, mem.MarketRecords(), 1)
	assert.Len(t, mem.SimulatorRecords(), 1)
}

func TestRunTickInvalidState(t *testing.T) {

	require := require.New(t)
	ctx := context.Background()

	sim, store := newTestSimulator(t, config.Defaults())
	require.NoError(sim.Initialize(ctx))
	require.NoError(store.InsertProsumer(ctx, domain.Prosumer{Id: "broken", BufferSize: 10, ConsumptionRatioMarket: 3}))

	_, err := sim.RunTick(ctx, tickDate)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Empty(t, store.MarketRecords())
}

func TestManagerNotFound(t *testing.T) {

	require := require.New(t)
	ctx := context.Background()

	sim, store := newTestSimulator(t, config.Defaults())

	_, err := sim.GetPowerPlantElectricityProduction(ctx, "unknown", tickDate)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(store.InsertManager(ctx, domain.Manager{Id: "m1", Token: "dup"}))
	require.NoError(store.InsertManager(ctx, domain.Manager{Id: "m2", Token: "dup"}))
	_, err = sim.GetPowerPlantElectricityProduction(ctx, "dup", tickDate)
	var nf *domain.NotFoundError
	require.ErrorAs(err, &nf)
	assert.Equal(t, "dup", nf.Key)
}

func TestManagerRampAndPlantRetarget(t *testing.T) {

	require := require.New(t)
	ctx := context.Background()

	cfg := config.Defaults()
	cfg.Simulator.Managers = []string{"secret"}
	sim, store := newTestSimulator(t, cfg)
	require.NoError(sim.Initialize(ctx))

	// no change requested yet: output holds
	reading, err := sim.GetPowerPlantElectricityProduction(ctx, "secret", tickDate)
	require.NoError(err)
	assert.Equal(t, 0.0, reading.NewProduction)

	_, err = sim.RequestPowerPlantProduction(ctx, "secret", 100, tickDate)
	require.NoError(err)

	reading, err = sim.GetPowerPlantElectricityProduction(ctx, "secret", tickDate.Add(15*time.Second))
	require.NoError(err)
	assert.InDelta(t, 50.0, reading.NewProduction, 1e-9)

	// reading does not compound the ramp
	reading, err = sim.GetPowerPlantElectricityProduction(ctx, "secret", tickDate.Add(15*time.Second))
	require.NoError(err)
	assert.InDelta(t, 50.0, reading.NewProduction, 1e-9)

	reading, err = sim.GetPowerPlantElectricityProduction(ctx, "secret", tickDate.Add(31*time.Second))
	require.NoError(err)
	assert.Equal(t, 100.0, reading.NewProduction)

	managers, err := store.FindManagersByToken(ctx, "secret")
	require.NoError(err)
	assert.Equal(t, 100.0, managers[0].PowerPlantProduction, "completed ramp is committed")
	assert.Nil(t, managers[0].ProductionModificationTime)

	plants, err := store.ListPowerPlants(ctx)
	require.NoError(err)
	assert.Equal(t, 100.0, plants[0].FutureProduction)
	require.NotNil(t, plants[0].ProductionModificationTime)
	assert.Equal(t, tickDate, *plants[0].ProductionModificationTime)

	// the plant ramps on the next ticks
	result, err := sim.RunTick(ctx, tickDate.Add(15*time.Second))
	require.NoError(err)
	assert.InDelta(t, 50.0, result.PowerPlantProduction, 1e-9)
}

func TestSetPowerPlantTarget(t *testing.T) {

	require := require.New(t)
	ctx := context.Background()

	sim, store := newTestSimulator(t, config.Defaults())
	require.NoError(sim.Initialize(ctx))

	plants, err := store.ListPowerPlants(ctx)
	require.NoError(err)

	require.NoError(sim.SetPowerPlantTarget(ctx, plants[0].Id, 250, tickDate))
	assert.ErrorIs(t, sim.SetPowerPlantTarget(ctx, "missing", 250, tickDate), domain.ErrNotFound)
	assert.ErrorIs(t, sim.SetPowerPlantTarget(ctx, plants[0].Id, -1, tickDate), domain.ErrInvalidState)

	plants, err = store.ListPowerPlants(ctx)
	require.NoError(err)
	assert.Equal(t, 250.0, plants[0].FutureProduction)
}

func TestQueriesRecordReadings(t *testing.T) {

	assert := assert.New(t)
	ctx := context.Background()

	sim, store := newTestSimulator(t, config.Defaults())

	wind := sim.GetWindSpeed(ctx, tickDate)
	assert.Equal(tickDate, wind.Date)
	consumption := sim.GetElectricityConsumption(ctx, tickDate, "alice")
	assert.Equal(sim.signals.Consumption(tickDate, "alice"), consumption.ElectricityConsumption)
	price := sim.GetCurrentElectricityPrice(ctx, tickDate)
	assert.GreaterOrEqual(price.CurrentElectricityPrice, 1.0)
	assert.LessOrEqual(price.CurrentElectricityPrice, 2.0)
	assert.Equal(50*wind.WindSpeed, sim.GetElectricityProduction(ctx, tickDate))

	readings := store.Readings()
	assert.Len(readings, 3)
	assert.Equal(domain.READING_KIND_WIND_SPEED, readings[0].Kind)
	assert.Equal(domain.READING_KIND_CONSUMPTION, readings[1].Kind)
	assert.Equal("alice", readings[1].ActorId)
	assert.Equal(domain.READING_KIND_CURRENT_PRICE, readings[2].Kind)
}

func TestLatestMarketRecordEmpty(t *testing.T) {
	sim, _ := newTestSimulator(t, config.Defaults())
	_, err := sim.LatestMarketRecord(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
