package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE           = "bridge"
	SENSOR_ID_MARKET_BALANCE         = "market_balance"
	SENSOR_ID_COMPUTED_PRICE         = "computed_price"
	SENSOR_ID_ACTUAL_PRICE           = "actual_price"
	SENSOR_ID_WIND_SPEED             = "wind_speed"
	SENSOR_ID_TOTAL_PRODUCTION       = "total_production"
	SENSOR_ID_TOTAL_CONSUMPTION      = "total_consumption"
	SENSOR_ID_POWER_PLANT_PRODUCTION = "power_plant_production"
	SENSOR_ID_BLACKOUT_COUNT         = "blackout_count"
	SENSOR_ID_PROSUMER_COUNT         = "prosumer_count"
	SENSOR_ID_FAILED_WRITES          = "failed_writes"
	SENSOR_ID_GRID_BLACKOUT          = "grid_blackout"
	SWITCH_ID_SIMULATION             = "simulation"
	INPUT_NUMBER_ID_PLANT_PREFIX     = "plant_"
	STATE_CLASS_MEASUREMENT          = "measurement"
	STATE_CLASS_TOTAL                = "total"
	DEVICE_CLASS_ENERGY              = "energy"
	DEVICE_CLASS_MONETARY            = "monetary"
	DEVICE_CLASS_WIND_SPEED          = "wind_speed"
	DEVICE_CLASS_CONNECTIVITY        = "connectivity"
	DEVICE_CLASS_PROBLEM             = "problem"
	ENTITY_CLASS_DIAGNOSTIC          = "diagnostic"
	ENTITY_CLASS_CONFIG              = "config"
	SENSOR_TYPE_SENSOR               = "sensor"
	SENSOR_TYPE_BINARY               = "binary_sensor"
	INPUT_NUMBER_MODE_BOX            = "box"
	INPUT_NUMBER_MODE_SLIDER         = "slider"
	PLANT_TARGET_MAX                 = 100000
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("microgrid_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "Microgrid",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Microgrid %s", md5HashShort(baseTopic)),
	}
}

func GridDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("mg_grid_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "Wind micro-grid simulator",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Micro-grid %s", md5HashShort(baseTopic)),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func PowerPlantInputNumberId(plantId string) string {
	return INPUT_NUMBER_ID_PLANT_PREFIX + plantId
}

// GridSensors lists the per-tick aggregates. Only the first sensor carries
// the full device description.
func GridSensors(gridDevice Device) []GenericSensor {

	var sensors []GenericSensor

	measurement := func(id, name, unit, deviceClass, icon string, precision int) GenericSensor {
		return GenericSensor{
			Device:            IdDevice(gridDevice),
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              name,
			StateClass:        STATE_CLASS_MEASUREMENT,
			DeviceClass:       deviceClass,
			UnitOfMeasurement: unit,
			Icon:              icon,
			DisplayPrecision:  optionalInt(precision),
			UniqueId:          uniqueId(gridDevice.Id, id),
		}
	}

	sensors = append(sensors,
		measurement(SENSOR_ID_MARKET_BALANCE, "Market balance", "kWh", "", "mdi:scale-balance", 2),
		measurement(SENSOR_ID_COMPUTED_PRICE, "Computed electricity price", "EUR/kWh", "", "mdi:cash", 4),
		measurement(SENSOR_ID_ACTUAL_PRICE, "Actual electricity price", "EUR/kWh", "", "mdi:cash-check", 4),
		measurement(SENSOR_ID_WIND_SPEED, "Wind speed", "m/s", DEVICE_CLASS_WIND_SPEED, "", 2),
		measurement(SENSOR_ID_TOTAL_PRODUCTION, "Prosumer production", "kWh", "", "mdi:wind-turbine", 2),
		measurement(SENSOR_ID_TOTAL_CONSUMPTION, "Prosumer consumption", "kWh", "", "mdi:home-lightning-bolt", 2),
		measurement(SENSOR_ID_POWER_PLANT_PRODUCTION, "Power plant production", "kWh", "", "mdi:factory", 2),
		measurement(SENSOR_ID_BLACKOUT_COUNT, "Prosumers in blackout", "", "", "mdi:home-alert", 0),
	)
	sensors[0].Device = gridDevice

	prosumers := measurement(SENSOR_ID_PROSUMER_COUNT, "Prosumers", "", "", "mdi:home-group", 0)
	prosumers.EntityCategory = ENTITY_CLASS_DIAGNOSTIC
	sensors = append(sensors, prosumers)

	failedWrites := measurement(SENSOR_ID_FAILED_WRITES, "Failed writes", "", "", "mdi:database-alert", 0)
	failedWrites.EntityCategory = ENTITY_CLASS_DIAGNOSTIC
	failedWrites.EnabledByDefault = optionalBool(false)
	sensors = append(sensors, failedWrites)

	sensors = append(sensors, GenericSensor{
		Device:      IdDevice(gridDevice),
		Id:          SENSOR_ID_GRID_BLACKOUT,
		SensorType:  SENSOR_TYPE_BINARY,
		Name:        "Grid blackout",
		DeviceClass: DEVICE_CLASS_PROBLEM,
		UniqueId:    uniqueId(gridDevice.Id, SENSOR_ID_GRID_BLACKOUT),
	})

	return sensors
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	}}
}

func SimulationSwitches(gridDevice Device) []GenericSwitch {
	return []GenericSwitch{{
		Device:   IdDevice(gridDevice),
		Id:       SWITCH_ID_SIMULATION,
		Name:     "Simulation running",
		UniqueId: uniqueId(gridDevice.Id, SWITCH_ID_SIMULATION),
		Icon:     "mdi:play-pause",
	}}
}

// PowerPlantInputNumbers exposes one production target per plant.
func PowerPlantInputNumbers(gridDevice Device, plants []PowerPlant) []GenericInputNumber {

	var inputNumbers []GenericInputNumber

	for i, plant := range plants {
		id := PowerPlantInputNumberId(plant.Id)
		inputNumbers = append(inputNumbers, GenericInputNumber{
			Device:            IdDevice(gridDevice),
			Id:                id,
			Name:              fmt.Sprintf("Power plant %d target", i+1),
			UniqueId:          uniqueId(gridDevice.Id, id),
			Icon:              "mdi:transmission-tower-import",
			UnitOfMeasurement: "kWh",
			Max:               PLANT_TARGET_MAX,
			Min:               0,
			Step:              1,
			Mode:              INPUT_NUMBER_MODE_BOX,
			InitialValue:      plant.FutureProduction,
		})
	}

	return inputNumbers
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5HashShort(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}

func optionalInt(value int) *int {
	return &value
}
