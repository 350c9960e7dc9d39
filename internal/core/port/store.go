package port

import (
	"context"

	"github.com/berfenger/microgrid2mqtt/internal/core/domain"
)

// Store is the persistence gateway of the simulator. Update operations fail
// with a domain.NotFoundError when the target record does not exist.
type Store interface {
	ListProsumers(ctx context.Context) ([]domain.Prosumer, error)
	InsertProsumer(ctx context.Context, prosumer domain.Prosumer) error
	UpdateProsumer(ctx context.Context, prosumer domain.Prosumer) error

	ListPowerPlants(ctx context.Context) ([]domain.PowerPlant, error)
	InsertPowerPlant(ctx context.Context, plant domain.PowerPlant) error
	UpdatePowerPlant(ctx context.Context, plant domain.PowerPlant) error

	FindManagersByToken(ctx context.Context, token string) ([]domain.Manager, error)
	InsertManager(ctx context.Context, manager domain.Manager) error
	UpdateManager(ctx context.Context, manager domain.Manager) error

	// LastMarketRecord returns nil without error when the log is empty.
	LastMarketRecord(ctx context.Context) (*domain.MarketRecord, error)
	InsertMarketRecord(ctx context.Context, record domain.MarketRecord) error
	InsertSimulatorRecord(ctx context.Context, record domain.SimulatorRecord) error
	InsertReading(ctx context.Context, reading domain.Reading) error
}
