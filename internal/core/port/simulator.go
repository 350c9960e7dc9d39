package port

import (
	"context"
	"time"

	"github.com/berfenger/microgrid2mqtt/internal/core/domain"
)

type Simulator interface {
	Initialize(ctx context.Context) error
	RunTick(ctx context.Context, now time.Time) (*domain.TickResult, error)

	GetWindSpeed(ctx context.Context, date time.Time) domain.WindSpeedReading
	GetElectricityConsumption(ctx context.Context, date time.Time, prosumerId string) domain.ConsumptionReading
	GetElectricityProduction(ctx context.Context, date time.Time) float64
	GetCurrentElectricityPrice(ctx context.Context, date time.Time) domain.PriceReading

	GetPowerPlantElectricityProduction(ctx context.Context, token string, now time.Time) (domain.PowerPlantProductionReading, error)
	RequestPowerPlantProduction(ctx context.Context, token string, target float64, now time.Time) (domain.PowerPlantProductionReading, error)
	SetPowerPlantTarget(ctx context.Context, plantId string, target float64, now time.Time) error
	ListPowerPlants(ctx context.Context) ([]domain.PowerPlant, error)

	LatestMarketRecord(ctx context.Context) (*domain.MarketRecord, error)
}
