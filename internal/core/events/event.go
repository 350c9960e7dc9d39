package events

import (
	. "github.com/berfenger/microgrid2mqtt/internal/core/domain"
)

func float(id string, value float64, decimals uint) FloatSensorUpdateEvent {
	return FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: id,
		},
		Value:    value,
		Decimals: decimals,
	}
}

func integer(id string, value int) IntSensorUpdateEvent {
	return IntSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: id,
		},
		Value: value,
	}
}

// TickResultToUpdateEvents turns the aggregates of a settled tick into
// sensor updates, in the order of GridSensors.
func TickResultToUpdateEvents(r *TickResult) []any {
	var events []any

	events = append(events,
		float(SENSOR_ID_MARKET_BALANCE, r.MarketBalance, 2),
		float(SENSOR_ID_COMPUTED_PRICE, r.ComputedPrice, 4),
		float(SENSOR_ID_ACTUAL_PRICE, r.ActualPrice, 4),
		float(SENSOR_ID_WIND_SPEED, r.WindSpeed, 2),
		float(SENSOR_ID_TOTAL_PRODUCTION, r.TotalProduction, 2),
		float(SENSOR_ID_TOTAL_CONSUMPTION, r.TotalConsumption, 2),
		float(SENSOR_ID_POWER_PLANT_PRODUCTION, r.PowerPlantProduction, 2),
		integer(SENSOR_ID_BLACKOUT_COUNT, r.BlackOuts),
		integer(SENSOR_ID_PROSUMER_COUNT, r.Prosumers),
		integer(SENSOR_ID_FAILED_WRITES, r.FailedWrites),
	)

	events = append(events, BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_GRID_BLACKOUT,
		},
		Value: r.GridBlackOut(),
	})

	return events
}

func SimulationSwitchUpdateEvent(running bool) SwitchSensorUpdateEvent {
	return SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SWITCH_ID_SIMULATION,
		},
		Value: running,
	}
}

func PowerPlantTargetUpdateEvents(plants []PowerPlant) []any {
	var events []any
	for _, plant := range plants {
		events = append(events, InputNumberSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: PowerPlantInputNumberId(plant.Id),
			},
			Value:    plant.FutureProduction,
			Decimals: 0,
		})
	}
	return events
}
