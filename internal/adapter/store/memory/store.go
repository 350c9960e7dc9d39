package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/berfenger/microgrid2mqtt/internal/core/domain"
	"github.com/berfenger/microgrid2mqtt/internal/core/port"
)

// Store keeps every collection in process memory. Lists are returned
// sorted by id and hold copies of the stored records.
type Store struct {
	mu               sync.RWMutex
	prosumers        map[string]domain.Prosumer
	powerPlants      map[string]domain.PowerPlant
	managers         map[string]domain.Manager
	marketRecords    []domain.MarketRecord
	simulatorRecords []domain.SimulatorRecord
	readings         []domain.Reading
}

var _ port.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		prosumers:   make(map[string]domain.Prosumer),
		powerPlants: make(map[string]domain.PowerPlant),
		managers:    make(map[string]domain.Manager),
	}
}

func (s *Store) ListProsumers(ctx context.Context) ([]domain.Prosumer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Prosumer, 0, len(s.prosumers))
	for _, p := range s.prosumers {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Prosumer) int { return strings.Compare(a.Id, b.Id) })
	return out, nil
}

func (s *Store) InsertProsumer(ctx context.Context, prosumer domain.Prosumer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prosumers[prosumer.Id] = prosumer
	return nil
}

func (s *Store) UpdateProsumer(ctx context.Context, prosumer domain.Prosumer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.prosumers[prosumer.Id]; !ok {
		return &domain.NotFoundError{Kind: "prosumer", Key: prosumer.Id}
	}
	s.prosumers[prosumer.Id] = prosumer
	return nil
}

func (s *Store) ListPowerPlants(ctx context.Context) ([]domain.PowerPlant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PowerPlant, 0, len(s.powerPlants))
	for _, p := range s.powerPlants {
		out = append(out, clonePowerPlant(p))
	}
	slices.SortFunc(out, func(a, b domain.PowerPlant) int { return strings.Compare(a.Id, b.Id) })
	return out, nil
}

func (s *Store) InsertPowerPlant(ctx context.Context, plant domain.PowerPlant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.powerPlants[plant.Id] = clonePowerPlant(plant)
	return nil
}

func (s *Store) UpdatePowerPlant(ctx context.Context, plant domain.PowerPlant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.powerPlants[plant.Id]; !ok {
		return &domain.NotFoundError{Kind: "power_plant", Key: plant.Id}
	}
	s.powerPlants[plant.Id] = clonePowerPlant(plant)
	return nil
}

func (s *Store) FindManagersByToken(ctx context.Context, token string) ([]domain.Manager, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Manager
	for _, m := range s.managers {
		if m.Token == token {
			out = append(out, cloneManager(m))
		}
	}
	slices.SortFunc(out, func(a, b domain.Manager) int { return strings.Compare(a.Id, b.Id) })
	return out, nil
}

func (s *Store) InsertManager(ctx context.Context, manager domain.Manager) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.managers[manager.Id] = cloneManager(manager)
	return nil
}

func (s *Store) UpdateManager(ctx context.Context, manager domain.Manager) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.managers[manager.Id]; !ok {
		return &domain.NotFoundError{Kind: "manager", Key: manager.Id}
	}
	s.managers[manager.Id] = cloneManager(manager)
	return nil
}

func (s *Store) LastMarketRecord(ctx context.Context) (*domain.MarketRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last *domain.MarketRecord
	for i := range s.marketRecords {
		if last == nil || !s.marketRecords[i].Date.Before(last.Date) {
			last = &s.marketRecords[i]
		}
	}
	if last == nil {
		return nil, nil
	}
	record := *last
	return &record, nil
}

func (s *Store) InsertMarketRecord(ctx context.Context, record domain.MarketRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marketRecords = append(s.marketRecords, record)
	return nil
}

func (s *Store) InsertSimulatorRecord(ctx context.Context, record domain.SimulatorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simulatorRecords = append(s.simulatorRecords, record)
	return nil
}

func (s *Store) InsertReading(ctx context.Context, reading domain.Reading) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, reading)
	return nil
}

func (s *Store) MarketRecords() []domain.MarketRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.marketRecords)
}

func (s *Store) SimulatorRecords() []domain.SimulatorRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.simulatorRecords)
}

func (s *Store) Readings() []domain.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.readings)
}

func clonePowerPlant(p domain.PowerPlant) domain.PowerPlant {
	p.Managers = slices.Clone(p.Managers)
	p.ProductionModificationTime = cloneTime(p.ProductionModificationTime)
	return p
}

func cloneManager(m domain.Manager) domain.Manager {
	m.ProductionModificationTime = cloneTime(m.ProductionModificationTime)
	return m
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
