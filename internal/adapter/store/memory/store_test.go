package memory

import (
	"context"
	"testing"
	"time"

	"github.com/berfenger/microgrid2mqtt/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProsumersSortedById(t *testing.T) {

	require := require.New(t)
	ctx := context.Background()

	s := NewStore()
	require.NoError(s.InsertProsumer(ctx, domain.Prosumer{Id: "charlie"}))
	require.NoError(s.InsertProsumer(ctx, domain.Prosumer{Id: "alice"}))
	require.NoError(s.InsertProsumer(ctx, domain.Prosumer{Id: "bob"}))

	list, err := s.ListProsumers(ctx)
	require.NoError(err)
	require.Len(list, 3)
	assert.Equal(t, "alice", list[0].Id)
	assert.Equal(t, "bob", list[1].Id)
	assert.Equal(t, "charlie", list[2].Id)
}

func TestUpdateMissingRecord(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	assert.ErrorIs(t, s.UpdateProsumer(ctx, domain.Prosumer{Id: "ghost"}), domain.ErrNotFound)
	assert.ErrorIs(t, s.UpdatePowerPlant(ctx, domain.PowerPlant{Id: "ghost"}), domain.ErrNotFound)
	assert.ErrorIs(t, s.UpdateManager(ctx, domain.Manager{Id: "ghost"}), domain.ErrNotFound)
}

func TestPowerPlantIsolation(t *testing.T) {

	require := require.New(t)
	ctx := context.Background()

	s := NewStore()
	now := time.Now()
	plant := domain.PowerPlant{Id: "pp", Managers: []string{"m1"}, ProductionModificationTime: &now}
	require.NoError(s.InsertPowerPlant(ctx, plant))

	plant.Managers[0] = "changed"
	list, err := s.ListPowerPlants(ctx)
	require.NoError(err)
	require.Len(list, 1)
	assert.Equal(t, "m1", list[0].Managers[0], "stored plant is not aliased by the caller")

	list[0].Managers = append(list[0].Managers, "m2")
	again, _ := s.ListPowerPlants(ctx)
	assert.Len(t, again[0].Managers, 1)
}

func TestLastMarketRecord(t *testing.T) {

	require := require.New(t)
	ctx := context.Background()

	s := NewStore()
	last, err := s.LastMarketRecord(ctx)
	require.NoError(err)
	require.Nil(last)

	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(s.InsertMarketRecord(ctx, domain.MarketRecord{ActualPrice: 1, Date: t0.Add(time.Second)}))
	require.NoError(s.InsertMarketRecord(ctx, domain.MarketRecord{ActualPrice: 2, Date: t0}))

	last, err = s.LastMarketRecord(ctx)
	require.NoError(err)
	require.NotNil(last)
	assert.Equal(t, 1.0, last.ActualPrice, "latest by date, not by insertion")
}

func TestFindManagersByToken(t *testing.T) {

	require := require.New(t)
	ctx := context.Background()

	s := NewStore()
	require.NoError(s.InsertManager(ctx, domain.Manager{Id: "a", Token: "t1"}))
	require.NoError(s.InsertManager(ctx, domain.Manager{Id: "b", Token: "t1"}))
	require.NoError(s.InsertManager(ctx, domain.Manager{Id: "c", Token: "t2"}))

	found, err := s.FindManagersByToken(ctx, "t1")
	require.NoError(err)
	assert.Len(t, found, 2)

	found, err = s.FindManagersByToken(ctx, "nope")
	require.NoError(err)
	assert.Empty(t, found)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewStore()
	_, err := s.ListProsumers(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
