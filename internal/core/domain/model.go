package domain

import (
	"fmt"
	"time"
)

type PowerPlantStatus int

const (
	POWER_PLANT_STOPPED PowerPlantStatus = iota
	POWER_PLANT_STARTING
	POWER_PLANT_RUNNING
)

func (s PowerPlantStatus) String() string {
	switch s {
	case POWER_PLANT_STOPPED:
		return "stopped"
	case POWER_PLANT_STARTING:
		return "starting"
	case POWER_PLANT_RUNNING:
		return "running"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Prosumer is a grid actor that consumes and may produce energy.
// Consumption, Production, WindSpeed, BlackOut, BoughtElectricity and
// ElectricitySentToMarket only hold the outcome of the last tick.
type Prosumer struct {
	Id                      string  `json:"id"`
	BufferSize              float64 `json:"bufferSize"`
	BufferFilling           float64 `json:"bufferFilling"`
	ProductionRatioBuffer   float64 `json:"productionRatioBuffer"`
	ProductionRatioMarket   float64 `json:"productionRatioMarket"`
	ConsumptionRatioBuffer  float64 `json:"consumptionRatioBuffer"`
	ConsumptionRatioMarket  float64 `json:"consumptionRatioMarket"`
	Consumption             float64 `json:"consumption"`
	Production              float64 `json:"production"`
	WindSpeed               float64 `json:"windSpeed"`
	BlackOut                bool    `json:"blackOut"`
	BoughtElectricity       float64 `json:"boughtElectricity"`
	ElectricitySentToMarket float64 `json:"electricitySentToMarket"`
}

func (p Prosumer) Validate() error {
	if p.BufferSize < 0 {
		return &InvalidStateError{Entity: "prosumer", Id: p.Id, Field: "bufferSize", Reason: "negative capacity"}
	}
	ratios := []struct {
		field string
		value float64
	}{
		{"productionRatioBuffer", p.ProductionRatioBuffer},
		{"productionRatioMarket", p.ProductionRatioMarket},
		{"consumptionRatioBuffer", p.ConsumptionRatioBuffer},
		{"consumptionRatioMarket", p.ConsumptionRatioMarket},
	}
	for _, r := range ratios {
		if r.value < 0 || r.value > 1 {
			return &InvalidStateError{Entity: "prosumer", Id: p.Id, Field: r.field, Reason: "ratio out of [0, 1]"}
		}
	}
	return nil
}

// PowerPlant is a dispatchable producer whose output ramps linearly from
// OldProduction to FutureProduction after every target change.
type PowerPlant struct {
	Id                         string           `json:"id"`
	Status                     PowerPlantStatus `json:"status"`
	BufferSize                 float64          `json:"bufferSize"`
	BufferFilling              float64          `json:"bufferFilling"`
	OldProduction              float64          `json:"oldProduction"`
	FutureProduction           float64          `json:"futureProduction"`
	CurrentProduction          float64          `json:"currentProduction"`
	ProductionRatioBuffer      float64          `json:"productionRatioBuffer"`
	ProductionRatioMarket      float64          `json:"productionRatioMarket"`
	ProductionModificationTime *time.Time       `json:"productionModificationTime,omitempty"`
	Managers                   []string         `json:"managers"`
}

func (p PowerPlant) Validate() error {
	if p.BufferSize < 0 {
		return &InvalidStateError{Entity: "power_plant", Id: p.Id, Field: "bufferSize", Reason: "negative capacity"}
	}
	if p.ProductionRatioBuffer < 0 || p.ProductionRatioBuffer > 1 {
		return &InvalidStateError{Entity: "power_plant", Id: p.Id, Field: "productionRatioBuffer", Reason: "ratio out of [0, 1]"}
	}
	if p.ProductionRatioMarket < 0 || p.ProductionRatioMarket > 1 {
		return &InvalidStateError{Entity: "power_plant", Id: p.Id, Field: "productionRatioMarket", Reason: "ratio out of [0, 1]"}
	}
	return nil
}

func (p PowerPlant) HasManager(managerId string) bool {
	for _, id := range p.Managers {
		if id == managerId {
			return true
		}
	}
	return false
}

type Manager struct {
	Id                         string     `json:"id"`
	Token                      string     `json:"-"`
	PowerPlantProduction       float64    `json:"powerPlantProduction"`
	NewProduction              float64    `json:"newProduction"`
	ProductionModificationTime *time.Time `json:"productionModificationTime,omitempty"`
}

type MarketRecord struct {
	Electricity   float64   `json:"electricity"`
	ComputedPrice float64   `json:"computedPrice"`
	ActualPrice   float64   `json:"actualPrice"`
	Date          time.Time `json:"date"`
}

// SimulatorRecord is the per-actor audit entry written on every tick.
type SimulatorRecord struct {
	ActorId     string    `json:"actorId"`
	WindSpeed   float64   `json:"windSpeed"`
	Consumption float64   `json:"consumption"`
	Production  float64   `json:"production"`
	Date        time.Time `json:"date"`
}

type ReadingKind string

const (
	READING_KIND_WIND_SPEED    ReadingKind = "windSpeed"
	READING_KIND_CONSUMPTION   ReadingKind = "consumption"
	READING_KIND_CURRENT_PRICE ReadingKind = "currentPrice"
)

// Reading is a raw value served by one of the single-shot query paths.
type Reading struct {
	Kind    ReadingKind `json:"kind"`
	ActorId string      `json:"actorId,omitempty"`
	Value   float64     `json:"value"`
	Date    time.Time   `json:"date"`
}

type WindSpeedReading struct {
	WindSpeed float64   `json:"windSpeed"`
	Date      time.Time `json:"date"`
}

type ConsumptionReading struct {
	ElectricityConsumption float64 `json:"electricityConsumption"`
}

type PriceReading struct {
	CurrentElectricityPrice float64   `json:"currentElectricityPrice"`
	Date                    time.Time `json:"date"`
}

type PowerPlantProductionReading struct {
	NewProduction float64 `json:"newProduction"`
}

// TickResult aggregates the outcome of one simulation tick.
type TickResult struct {
	Date                 time.Time `json:"date"`
	MarketBalance        float64   `json:"marketBalance"`
	ComputedPrice        float64   `json:"computedPrice"`
	ActualPrice          float64   `json:"actualPrice"`
	WindSpeed            float64   `json:"windSpeed"`
	TotalProduction      float64   `json:"totalProduction"`
	TotalConsumption     float64   `json:"totalConsumption"`
	PowerPlantProduction float64   `json:"powerPlantProduction"`
	Prosumers            int       `json:"prosumers"`
	PowerPlants          int       `json:"powerPlants"`
	BlackOuts            int       `json:"blackOuts"`
	FailedWrites         int       `json:"failedWrites"`
	WriteErr             error     `json:"-"`
}

func (r TickResult) GridBlackOut() bool {
	return r.BlackOuts > 0
}
