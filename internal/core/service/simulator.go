package service

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/microgrid2mqtt/internal/config"
	"github.com/berfenger/microgrid2mqtt/internal/core/domain"
	"github.com/berfenger/microgrid2mqtt/internal/core/port"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Simulator runs the grid ticks and serves the single-shot queries.
type Simulator struct {
	cfg        config.Config
	store      port.Store
	signals    SignalModels
	ramp       RampController
	settlement SettlementEngine
	price      PriceModel
	newId      func() string
	logger     *zap.Logger
}

var _ port.Simulator = (*Simulator)(nil)

func NewSimulator(cfg config.Config, store port.Store, logger *zap.Logger) *Simulator {
	return &Simulator{
		cfg:        cfg,
		store:      store,
		signals:    NewSignalModels(cfg.Signal),
		ramp:       NewRampController(cfg.Ramp),
		settlement: NewSettlementEngine(cfg.Settlement),
		price:      NewPriceModel(cfg.Market),
		newId:      uuid.NewString,
		logger:     logger.With(zap.String("service", "simulator")),
	}
}

// Initialize makes sure at least one power plant exists, then seeds the
// configured prosumers and managers. Running it again is a no-op.
func (s *Simulator) Initialize(ctx context.Context) error {
	plants, err := s.store.ListPowerPlants(ctx)
	if err != nil {
		return fmt.Errorf("initialize: list power plants: %w", err)
	}
	if len(plants) == 0 {
		plant := domain.PowerPlant{
			Id:                    s.newId(),
			Status:                domain.POWER_PLANT_RUNNING,
			BufferSize:            s.cfg.PowerPlant.BufferSize,
			ProductionRatioBuffer: s.cfg.PowerPlant.ProductionRatioBuffer,
			ProductionRatioMarket: s.cfg.PowerPlant.ProductionRatioMarket,
			Managers:              []string{},
		}
		if err := s.store.InsertPowerPlant(ctx, plant); err != nil {
			return fmt.Errorf("initialize: insert power plant: %w", err)
		}
		s.logger.Info("created default power plant", zap.String("id", plant.Id))
		plants = append(plants, plant)
	}

	if err := s.seedProsumers(ctx); err != nil {
		return err
	}
	return s.seedManagers(ctx, plants[0])
}

func (s *Simulator) seedProsumers(ctx context.Context) error {
	if len(s.cfg.Simulator.Prosumers) == 0 {
		return nil
	}
	existing, err := s.store.ListProsumers(ctx)
	if err != nil {
		return fmt.Errorf("initialize: list prosumers: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, p := range existing {
		known[p.Id] = true
	}
	for _, id := range s.cfg.Simulator.Prosumers {
		if known[id] {
			continue
		}
		prosumer := domain.Prosumer{
			Id:                     id,
			BufferSize:             s.cfg.Prosumer.BufferSize,
			ProductionRatioBuffer:  s.cfg.Prosumer.ProductionRatioBuffer,
			ProductionRatioMarket:  s.cfg.Prosumer.ProductionRatioMarket,
			ConsumptionRatioBuffer: s.cfg.Prosumer.ConsumptionRatioBuffer,
			ConsumptionRatioMarket: s.cfg.Prosumer.ConsumptionRatioMarket,
		}
		if err := s.store.InsertProsumer(ctx, prosumer); err != nil {
			return fmt.Errorf("initialize: insert prosumer %s: %w", id, err)
		}
		known[id] = true
		s.logger.Info("created prosumer", zap.String("id", id))
	}
	return nil
}

func (s *Simulator) seedManagers(ctx context.Context, plant domain.PowerPlant) error {
	linked := false
	for _, token := range s.cfg.Simulator.Managers {
		managers, err := s.store.FindManagersByToken(ctx, token)
		if err != nil {
			return fmt.Errorf("initialize: find manager: %w", err)
		}
		var manager domain.Manager
		if len(managers) == 0 {
			manager = domain.Manager{
				Id:                   s.newId(),
				Token:                token,
				PowerPlantProduction: plant.OldProduction,
				NewProduction:        plant.FutureProduction,
			}
			if err := s.store.InsertManager(ctx, manager); err != nil {
				return fmt.Errorf("initialize: insert manager: %w", err)
			}
			s.logger.Info("created manager", zap.String("id", manager.Id))
		} else {
			manager = managers[0]
		}
		if !plant.HasManager(manager.Id) {
			plant.Managers = append(plant.Managers, manager.Id)
			linked = true
		}
	}
	if linked {
		if err := s.store.UpdatePowerPlant(ctx, plant); err != nil {
			return fmt.Errorf("initialize: link managers: %w", err)
		}
	}
	return nil
}

// RunTick reads every actor, computes the signals and ramps, settles the
// grid and writes the new state back. Write failures do not stop the
// remaining writes: they are reported in TickResult.WriteErr.
func (s *Simulator) RunTick(ctx context.Context, now time.Time) (*domain.TickResult, error) {
	var prosumers []domain.Prosumer
	var plants []domain.PowerPlant
	var previous *domain.MarketRecord

	rg, rctx := errgroup.WithContext(ctx)
	rg.Go(func() (err error) {
		prosumers, err = s.store.ListProsumers(rctx)
		return err
	})
	rg.Go(func() (err error) {
		plants, err = s.store.ListPowerPlants(rctx)
		return err
	})
	rg.Go(func() (err error) {
		previous, err = s.store.LastMarketRecord(rctx)
		return err
	})
	if err := rg.Wait(); err != nil {
		return nil, fmt.Errorf("tick read phase: %w", err)
	}

	for _, p := range prosumers {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	for _, p := range plants {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}

	windSpeed := s.signals.WindSpeed(now)
	production := s.signals.Production(now)

	result := &domain.TickResult{
		Date:        now,
		WindSpeed:   windSpeed,
		Prosumers:   len(prosumers),
		PowerPlants: len(plants),
	}

	for i := range prosumers {
		prosumers[i].WindSpeed = windSpeed
		prosumers[i].Production = production
		prosumers[i].Consumption = s.signals.Consumption(now, prosumers[i].Id)
		result.TotalProduction += production
		result.TotalConsumption += prosumers[i].Consumption
	}
	for i := range plants {
		s.ramp.Advance(&plants[i], now)
		result.PowerPlantProduction += plants[i].CurrentProduction
	}

	computedPrice := s.price.Price(s.signals.BaseConsumption(now), windSpeed)

	settled := s.settlement.Settle(SettlementInput{
		Date:           now,
		Prosumers:      prosumers,
		PowerPlants:    plants,
		ComputedPrice:  computedPrice,
		PreviousMarket: previous,
	})

	result.MarketBalance = settled.MarketBalance
	result.ComputedPrice = settled.Market.ComputedPrice
	result.ActualPrice = settled.Market.ActualPrice
	result.BlackOuts = settled.BlackOuts

	result.FailedWrites, result.WriteErr = s.writeSettlement(ctx, settled)

	s.logger.Debug("tick settled",
		zap.Time("date", now),
		zap.Float64("market_balance", result.MarketBalance),
		zap.Int("blackouts", result.BlackOuts),
		zap.Int("failed_writes", result.FailedWrites))

	return result, nil
}

// writeSettlement issues one job per actor plus the market record. Each job
// is awaited and a failing job never cancels the others.
func (s *Simulator) writeSettlement(ctx context.Context, settled Settlement) (int, error) {
	jobs := make([]func() error, 0, len(settled.Prosumers)+len(settled.PowerPlants)+1)

	for i := range settled.Prosumers {
		prosumer := settled.Prosumers[i]
		record := settled.Records[i]
		jobs = append(jobs, func() error {
			if err := s.store.UpdateProsumer(ctx, prosumer); err != nil {
				return fmt.Errorf("update prosumer %s: %w", prosumer.Id, err)
			}
			if err := s.store.InsertSimulatorRecord(ctx, record); err != nil {
				return fmt.Errorf("insert simulator record %s: %w", record.ActorId, err)
			}
			return nil
		})
	}
	for i := range settled.PowerPlants {
		plant := settled.PowerPlants[i]
		jobs = append(jobs, func() error {
			if err := s.store.UpdatePowerPlant(ctx, plant); err != nil {
				return fmt.Errorf("update power plant %s: %w", plant.Id, err)
			}
			return nil
		})
	}
	market := settled.Market
	jobs = append(jobs, func() error {
		if err := s.store.InsertMarketRecord(ctx, market); err != nil {
			return fmt.Errorf("insert market record: %w", err)
		}
		return nil
	})

	errs := make([]error, len(jobs))
	var wg errgroup.Group
	wg.SetLimit(s.cfg.Simulator.WriteConcurrency)
	for i, job := range jobs {
		wg.Go(func() error {
			errs[i] = job()
			if errs[i] != nil {
				s.logger.Error("tick write failed", zap.Error(errs[i]))
			}
			return nil
		})
	}
	_ = wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	return failed, multierr.Combine(errs...)
}

func (s *Simulator) GetWindSpeed(ctx context.Context, date time.Time) domain.WindSpeedReading {
	windSpeed := s.signals.WindSpeed(date)
	s.recordReading(ctx, domain.READING_KIND_WIND_SPEED, "", windSpeed, date)
	return domain.WindSpeedReading{WindSpeed: windSpeed, Date: date}
}

func (s *Simulator) GetElectricityConsumption(ctx context.Context, date time.Time, prosumerId string) domain.ConsumptionReading {
	consumption := s.signals.Consumption(date, prosumerId)
	s.recordReading(ctx, domain.READING_KIND_CONSUMPTION, prosumerId, consumption, date)
	return domain.ConsumptionReading{ElectricityConsumption: consumption}
}

func (s *Simulator) GetElectricityProduction(_ context.Context, date time.Time) float64 {
	return s.signals.Production(date)
}

func (s *Simulator) GetCurrentElectricityPrice(ctx context.Context, date time.Time) domain.PriceReading {
	price := s.price.Price(s.signals.BaseConsumption(date), s.signals.WindSpeed(date))
	s.recordReading(ctx, domain.READING_KIND_CURRENT_PRICE, "", price, date)
	return domain.PriceReading{CurrentElectricityPrice: price, Date: date}
}

func (s *Simulator) recordReading(ctx context.Context, kind domain.ReadingKind, actorId string, value float64, date time.Time) {
	err := s.store.InsertReading(ctx, domain.Reading{Kind: kind, ActorId: actorId, Value: value, Date: date})
	if err != nil {
		s.logger.Warn("could not record reading", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (s *Simulator) managerByToken(ctx context.Context, token string) (*domain.Manager, error) {
	managers, err := s.store.FindManagersByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(managers) != 1 {
		return nil, &domain.NotFoundError{Kind: "manager", Key: token}
	}
	return &managers[0], nil
}

// GetPowerPlantElectricityProduction returns the output the manager's ramp
// has reached at now. A completed ramp is committed to the manager record.
func (s *Simulator) GetPowerPlantElectricityProduction(ctx context.Context, token string, now time.Time) (domain.PowerPlantProductionReading, error) {
	manager, err := s.managerByToken(ctx, token)
	if err != nil {
		return domain.PowerPlantProductionReading{}, err
	}
	if manager.ProductionModificationTime == nil {
		return domain.PowerPlantProductionReading{NewProduction: manager.PowerPlantProduction}, nil
	}
	elapsed := s.ramp.Elapsed(manager.ProductionModificationTime, now)
	current := s.ramp.Output(manager.PowerPlantProduction, manager.NewProduction, elapsed)
	if elapsed >= s.ramp.Duration() {
		manager.PowerPlantProduction = manager.NewProduction
		manager.ProductionModificationTime = nil
		if err := s.store.UpdateManager(ctx, *manager); err != nil {
			return domain.PowerPlantProductionReading{}, fmt.Errorf("commit manager ramp: %w", err)
		}
	}
	return domain.PowerPlantProductionReading{NewProduction: current}, nil
}

// RequestPowerPlantProduction restarts the manager's ramp towards target and
// retargets every power plant the manager operates.
func (s *Simulator) RequestPowerPlantProduction(ctx context.Context, token string, target float64, now time.Time) (domain.PowerPlantProductionReading, error) {
	if target < 0 {
		return domain.PowerPlantProductionReading{}, &domain.InvalidStateError{Entity: "manager", Field: "newProduction", Reason: "negative target"}
	}
	manager, err := s.managerByToken(ctx, token)
	if err != nil {
		return domain.PowerPlantProductionReading{}, err
	}
	elapsed := s.ramp.Elapsed(manager.ProductionModificationTime, now)
	current := s.ramp.Output(manager.PowerPlantProduction, manager.NewProduction, elapsed)
	manager.PowerPlantProduction = current
	manager.NewProduction = target
	manager.ProductionModificationTime = &now
	if err := s.store.UpdateManager(ctx, *manager); err != nil {
		return domain.PowerPlantProductionReading{}, fmt.Errorf("update manager: %w", err)
	}

	plants, err := s.store.ListPowerPlants(ctx)
	if err != nil {
		return domain.PowerPlantProductionReading{}, err
	}
	var errs error
	for i := range plants {
		if !plants[i].HasManager(manager.Id) {
			continue
		}
		s.ramp.Retarget(&plants[i], target, now)
		errs = multierr.Append(errs, s.store.UpdatePowerPlant(ctx, plants[i]))
	}
	if errs != nil {
		return domain.PowerPlantProductionReading{}, fmt.Errorf("retarget power plants: %w", errs)
	}
	return domain.PowerPlantProductionReading{NewProduction: current}, nil
}

func (s *Simulator) SetPowerPlantTarget(ctx context.Context, plantId string, target float64, now time.Time) error {
	if target < 0 {
		return &domain.InvalidStateError{Entity: "power_plant", Id: plantId, Field: "futureProduction", Reason: "negative target"}
	}
	plants, err := s.store.ListPowerPlants(ctx)
	if err != nil {
		return err
	}
	for i := range plants {
		if plants[i].Id != plantId {
			continue
		}
		s.ramp.Retarget(&plants[i], target, now)
		return s.store.UpdatePowerPlant(ctx, plants[i])
	}
	return &domain.NotFoundError{Kind: "power_plant", Key: plantId}
}

func (s *Simulator) ListPowerPlants(ctx context.Context) ([]domain.PowerPlant, error) {
	return s.store.ListPowerPlants(ctx)
}

func (s *Simulator) LatestMarketRecord(ctx context.Context) (*domain.MarketRecord, error) {
	record, err := s.store.LastMarketRecord(ctx)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, &domain.NotFoundError{Kind: "market_record", Key: "latest"}
	}
	return record, nil
}
