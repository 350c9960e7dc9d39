package gormstore

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berfenger/microgrid2mqtt/internal/core/domain"
)

func TestProsumerRowMissingRequiredField(t *testing.T) {

	require := require.New(t)

	row := prosumerRow(domain.Prosumer{Id: "p1", BufferSize: 100})
	row.ConsumptionRatioMarket = nil

	_, err := row.toDomain()
	require.Error(err)
	require.True(errors.Is(err, domain.ErrInvalidState))

	var invalid *domain.InvalidStateError
	require.ErrorAs(err, &invalid)
	assert.Equal(t, "consumptionRatioMarket", invalid.Field)
	assert.Equal(t, "p1", invalid.Id)
}

func TestProsumerRowNullBufferFillingIsZero(t *testing.T) {
	row := prosumerRow(domain.Prosumer{Id: "p1", BufferSize: 100, BufferFilling: 12})
	row.BufferFilling = nil

	p, err := row.toDomain()
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.BufferFilling)
	assert.Equal(t, 100.0, p.BufferSize)
}

func TestPowerPlantRowDefaults(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	row := powerPlantRow(domain.PowerPlant{Id: "pp", BufferSize: 79200, ProductionRatioBuffer: 0.7, ProductionRatioMarket: 0.3})
	row.OldProduction = nil
	row.FutureProduction = nil
	row.BufferFilling = nil
	row.Managers = nil

	p, err := row.toDomain()
	require.NoError(err)
	assert.Equal(0.0, p.OldProduction)
	assert.Equal(0.0, p.FutureProduction)
	assert.Equal(0.0, p.BufferFilling)
	assert.NotNil(p.Managers)
	assert.Empty(p.Managers)
}

func TestPowerPlantRowMissingBufferSize(t *testing.T) {
	row := powerPlantRow(domain.PowerPlant{Id: "pp"})
	row.BufferSize = nil

	_, err := row.toDomain()
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestPowerPlantRowKeepsManagersAndSchedule(t *testing.T) {

	assert := assert.New(t)

	changed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	in := domain.PowerPlant{
		Id:                         "pp",
		Status:                     domain.POWER_PLANT_STARTING,
		BufferSize:                 10,
		FutureProduction:           40,
		ProductionModificationTime: &changed,
		Managers:                   []string{"m1", "m2"},
	}

	out, err := powerPlantRow(in).toDomain()
	require.NoError(t, err)
	assert.Equal(in, out)
}

func TestMarketRecordRowDecimalPrices(t *testing.T) {

	assert := assert.New(t)

	rec := domain.MarketRecord{Electricity: -3.5, ComputedPrice: 1.2345, ActualPrice: 1.5, Date: time.Unix(1700000000, 0).UTC()}
	row := marketRecordRow(rec)

	assert.True(row.ComputedPrice.Equal(decimal.RequireFromString("1.2345")))
	assert.Equal(rec, row.toDomain())
}
