package events

import (
	"testing"

	"github.com/berfenger/microgrid2mqtt/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickResultEventsMatchSensorCatalog(t *testing.T) {

	require := require.New(t)

	evs := TickResultToUpdateEvents(&domain.TickResult{BlackOuts: 2, ComputedPrice: 1.25})
	sensors := domain.GridSensors(domain.GridDevice("microgrid"))
	require.Len(evs, len(sensors))

	for i, ev := range evs {
		sev, ok := ev.(domain.SensorUpdateEvent)
		require.True(ok)
		assert.Equal(t, sensors[i].Id, sev.SensorId())
	}

	price, ok := evs[1].(domain.FloatSensorUpdateEvent)
	require.True(ok)
	assert.Equal(t, 1.25, price.Value)
	assert.Equal(t, uint(4), price.Decimals)

	blackout, ok := evs[len(evs)-1].(domain.BinarySensorUpdateEvent)
	require.True(ok)
	assert.True(t, blackout.Value)
}

func TestGridBlackoutOffWithoutBlackouts(t *testing.T) {
	evs := TickResultToUpdateEvents(&domain.TickResult{})
	blackout := evs[len(evs)-1].(domain.BinarySensorUpdateEvent)
	assert.False(t, blackout.Value)
}

func TestPowerPlantTargetEvents(t *testing.T) {

	assert := assert.New(t)

	evs := PowerPlantTargetUpdateEvents([]domain.PowerPlant{{Id: "a", FutureProduction: 30}, {Id: "b"}})
	assert.Len(evs, 2)

	first := evs[0].(domain.InputNumberSensorUpdateEvent)
	assert.Equal("plant_a", first.Id)
	assert.Equal(30.0, first.Value)

	sw := SimulationSwitchUpdateEvent(true)
	assert.Equal(domain.SWITCH_ID_SIMULATION, sw.Id)
	assert.True(sw.Value)
}
