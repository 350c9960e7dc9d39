package gormstore

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/berfenger/microgrid2mqtt/internal/core/domain"
)

// Required columns are nullable so that a row missing them is reported as
// an invalid state instead of silently reading as zero.

type ProsumerRow struct {
	Id                      string   `gorm:"type:varchar(100);primaryKey"`
	BufferSize              *float64 `gorm:"type:double precision"`
	BufferFilling           *float64 `gorm:"type:double precision"`
	ProductionRatioBuffer   *float64 `gorm:"type:double precision"`
	ProductionRatioMarket   *float64 `gorm:"type:double precision"`
	ConsumptionRatioBuffer  *float64 `gorm:"type:double precision"`
	ConsumptionRatioMarket  *float64 `gorm:"type:double precision"`
	Consumption             float64  `gorm:"type:double precision;not null;default:0"`
	Production              float64  `gorm:"type:double precision;not null;default:0"`
	WindSpeed               float64  `gorm:"type:double precision;not null;default:0"`
	BlackOut                bool     `gorm:"not null;default:false"`
	BoughtElectricity       float64  `gorm:"type:double precision;not null;default:0"`
	ElectricitySentToMarket float64  `gorm:"type:double precision;not null;default:0"`
}

func (ProsumerRow) TableName() string {
	return "prosumers"
}

type PowerPlantRow struct {
	Id                         string                      `gorm:"type:varchar(100);primaryKey"`
	Status                     int                         `gorm:"not null;default:0"`
	BufferSize                 *float64                    `gorm:"type:double precision"`
	BufferFilling              *float64                    `gorm:"type:double precision"`
	OldProduction              *float64                    `gorm:"type:double precision"`
	FutureProduction           *float64                    `gorm:"type:double precision"`
	CurrentProduction          float64                     `gorm:"type:double precision;not null;default:0"`
	ProductionRatioBuffer      *float64                    `gorm:"type:double precision"`
	ProductionRatioMarket      *float64                    `gorm:"type:double precision"`
	ProductionModificationTime *time.Time                  `gorm:"type:timestamptz"`
	Managers                   datatypes.JSONSlice[string] `gorm:"type:jsonb"`
}

func (PowerPlantRow) TableName() string {
	return "power_plants"
}

type ManagerRow struct {
	Id                         string     `gorm:"type:varchar(100);primaryKey"`
	Token                      string     `gorm:"type:varchar(255);not null;index"`
	PowerPlantProduction       float64    `gorm:"type:double precision;not null;default:0"`
	NewProduction              float64    `gorm:"type:double precision;not null;default:0"`
	ProductionModificationTime *time.Time `gorm:"type:timestamptz"`
}

func (ManagerRow) TableName() string {
	return "managers"
}

type MarketRecordRow struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement"`
	Electricity   float64         `gorm:"type:double precision;not null"`
	ComputedPrice decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	ActualPrice   decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	Date          time.Time       `gorm:"type:timestamptz;not null;index"`
}

func (MarketRecordRow) TableName() string {
	return "market_records"
}

type SimulatorRecordRow struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	ActorId     string    `gorm:"type:varchar(100);not null;index"`
	WindSpeed   float64   `gorm:"type:double precision;not null"`
	Consumption float64   `gorm:"type:double precision;not null"`
	Production  float64   `gorm:"type:double precision;not null"`
	Date        time.Time `gorm:"type:timestamptz;not null;index"`
}

func (SimulatorRecordRow) TableName() string {
	return "simulator_records"
}

type ReadingRow struct {
	ID      uint64    `gorm:"primaryKey;autoIncrement"`
	Kind    string    `gorm:"type:varchar(30);not null;index"`
	ActorId string    `gorm:"type:varchar(100)"`
	Value   float64   `gorm:"type:double precision;not null"`
	Date    time.Time `gorm:"type:timestamptz;not null"`
}

func (ReadingRow) TableName() string {
	return "readings"
}

func required(entity, id, field string, v *float64) (float64, error) {
	if v == nil {
		return 0, &domain.InvalidStateError{Entity: entity, Id: id, Field: field, Reason: "missing value"}
	}
	return *v, nil
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func ptr[T any](v T) *T {
	return &v
}

func (r ProsumerRow) toDomain() (domain.Prosumer, error) {
	p := domain.Prosumer{
		Id:                      r.Id,
		BufferFilling:           orZero(r.BufferFilling),
		Consumption:             r.Consumption,
		Production:              r.Production,
		WindSpeed:               r.WindSpeed,
		BlackOut:                r.BlackOut,
		BoughtElectricity:       r.BoughtElectricity,
		ElectricitySentToMarket: r.ElectricitySentToMarket,
	}
	fields := []struct {
		name string
		src  *float64
		dst  *float64
	}{
		{"bufferSize", r.BufferSize, &p.BufferSize},
		{"productionRatioBuffer", r.ProductionRatioBuffer, &p.ProductionRatioBuffer},
		{"productionRatioMarket", r.ProductionRatioMarket, &p.ProductionRatioMarket},
		{"consumptionRatioBuffer", r.ConsumptionRatioBuffer, &p.ConsumptionRatioBuffer},
		{"consumptionRatioMarket", r.ConsumptionRatioMarket, &p.ConsumptionRatioMarket},
	}
	for _, f := range fields {
		v, err := required("prosumer", r.Id, f.name, f.src)
		if err != nil {
			return domain.Prosumer{}, err
		}
		*f.dst = v
	}
	return p, nil
}

func prosumerRow(p domain.Prosumer) ProsumerRow {
	return ProsumerRow{
		Id:                      p.Id,
		BufferSize:              ptr(p.BufferSize),
		BufferFilling:           ptr(p.BufferFilling),
		ProductionRatioBuffer:   ptr(p.ProductionRatioBuffer),
		ProductionRatioMarket:   ptr(p.ProductionRatioMarket),
		ConsumptionRatioBuffer:  ptr(p.ConsumptionRatioBuffer),
		ConsumptionRatioMarket:  ptr(p.ConsumptionRatioMarket),
		Consumption:             p.Consumption,
		Production:              p.Production,
		WindSpeed:               p.WindSpeed,
		BlackOut:                p.BlackOut,
		BoughtElectricity:       p.BoughtElectricity,
		ElectricitySentToMarket: p.ElectricitySentToMarket,
	}
}

func (r PowerPlantRow) toDomain() (domain.PowerPlant, error) {
	bufferSize, err := required("power_plant", r.Id, "bufferSize", r.BufferSize)
	if err != nil {
		return domain.PowerPlant{}, err
	}
	ratioBuffer, err := required("power_plant", r.Id, "productionRatioBuffer", r.ProductionRatioBuffer)
	if err != nil {
		return domain.PowerPlant{}, err
	}
	ratioMarket, err := required("power_plant", r.Id, "productionRatioMarket", r.ProductionRatioMarket)
	if err != nil {
		return domain.PowerPlant{}, err
	}
	managers := []string(r.Managers)
	if managers == nil {
		managers = []string{}
	}
	return domain.PowerPlant{
		Id:                         r.Id,
		Status:                     domain.PowerPlantStatus(r.Status),
		BufferSize:                 bufferSize,
		BufferFilling:              orZero(r.BufferFilling),
		OldProduction:              orZero(r.OldProduction),
		FutureProduction:           orZero(r.FutureProduction),
		CurrentProduction:          r.CurrentProduction,
		ProductionRatioBuffer:      ratioBuffer,
		ProductionRatioMarket:      ratioMarket,
		ProductionModificationTime: r.ProductionModificationTime,
		Managers:                   managers,
	}, nil
}

func powerPlantRow(p domain.PowerPlant) PowerPlantRow {
	return PowerPlantRow{
		Id:                         p.Id,
		Status:                     int(p.Status),
		BufferSize:                 ptr(p.BufferSize),
		BufferFilling:              ptr(p.BufferFilling),
		OldProduction:              ptr(p.OldProduction),
		FutureProduction:           ptr(p.FutureProduction),
		CurrentProduction:          p.CurrentProduction,
		ProductionRatioBuffer:      ptr(p.ProductionRatioBuffer),
		ProductionRatioMarket:      ptr(p.ProductionRatioMarket),
		ProductionModificationTime: p.ProductionModificationTime,
		Managers:                   datatypes.JSONSlice[string](p.Managers),
	}
}

func (r ManagerRow) toDomain() domain.Manager {
	return domain.Manager{
		Id:                         r.Id,
		Token:                      r.Token,
		PowerPlantProduction:       r.PowerPlantProduction,
		NewProduction:              r.NewProduction,
		ProductionModificationTime: r.ProductionModificationTime,
	}
}

func managerRow(m domain.Manager) ManagerRow {
	return ManagerRow{
		Id:                         m.Id,
		Token:                      m.Token,
		PowerPlantProduction:       m.PowerPlantProduction,
		NewProduction:              m.NewProduction,
		ProductionModificationTime: m.ProductionModificationTime,
	}
}

func (r MarketRecordRow) toDomain() domain.MarketRecord {
	return domain.MarketRecord{
		Electricity:   r.Electricity,
		ComputedPrice: r.ComputedPrice.InexactFloat64(),
		ActualPrice:   r.ActualPrice.InexactFloat64(),
		Date:          r.Date,
	}
}

func marketRecordRow(m domain.MarketRecord) MarketRecordRow {
	return MarketRecordRow{
		Electricity:   m.Electricity,
		ComputedPrice: decimal.NewFromFloat(m.ComputedPrice),
		ActualPrice:   decimal.NewFromFloat(m.ActualPrice),
		Date:          m.Date,
	}
}
