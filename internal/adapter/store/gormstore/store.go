package gormstore

import (
	"context"

	"gorm.io/gorm"

	"github.com/berfenger/microgrid2mqtt/internal/core/domain"
	"github.com/berfenger/microgrid2mqtt/internal/core/port"
)

type Store struct {
	db *gorm.DB
}

var _ port.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ListProsumers(ctx context.Context) ([]domain.Prosumer, error) {
	var rows []ProsumerRow
	if err := s.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Prosumer, 0, len(rows))
	for _, r := range rows {
		p, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) InsertProsumer(ctx context.Context, p domain.Prosumer) error {
	row := prosumerRow(p)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) UpdateProsumer(ctx context.Context, p domain.Prosumer) error {
	row := prosumerRow(p)
	return s.update(ctx, &ProsumerRow{}, "prosumer", p.Id, &row)
}

func (s *Store) ListPowerPlants(ctx context.Context) ([]domain.PowerPlant, error) {
	var rows []PowerPlantRow
	if err := s.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.PowerPlant, 0, len(rows))
	for _, r := range rows {
		p, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) InsertPowerPlant(ctx context.Context, p domain.PowerPlant) error {
	row := powerPlantRow(p)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) UpdatePowerPlant(ctx context.Context, p domain.PowerPlant) error {
	row := powerPlantRow(p)
	return s.update(ctx, &PowerPlantRow{}, "power_plant", p.Id, &row)
}

func (s *Store) FindManagersByToken(ctx context.Context, token string) ([]domain.Manager, error) {
	var rows []ManagerRow
	if err := s.db.WithContext(ctx).Where("token = ?", token).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Manager, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) InsertManager(ctx context.Context, m domain.Manager) error {
	row := managerRow(m)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) UpdateManager(ctx context.Context, m domain.Manager) error {
	row := managerRow(m)
	return s.update(ctx, &ManagerRow{}, "manager", m.Id, &row)
}

func (s *Store) LastMarketRecord(ctx context.Context) (*domain.MarketRecord, error) {
	var rows []MarketRecordRow
	if err := s.db.WithContext(ctx).Order("date desc").Order("id desc").Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rec := rows[0].toDomain()
	return &rec, nil
}

func (s *Store) InsertMarketRecord(ctx context.Context, rec domain.MarketRecord) error {
	row := marketRecordRow(rec)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) InsertSimulatorRecord(ctx context.Context, rec domain.SimulatorRecord) error {
	row := SimulatorRecordRow{
		ActorId:     rec.ActorId,
		WindSpeed:   rec.WindSpeed,
		Consumption: rec.Consumption,
		Production:  rec.Production,
		Date:        rec.Date,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *Store) InsertReading(ctx context.Context, r domain.Reading) error {
	row := ReadingRow{
		Kind:    string(r.Kind),
		ActorId: r.ActorId,
		Value:   r.Value,
		Date:    r.Date,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// update writes every column of row, zero values included.
func (s *Store) update(ctx context.Context, model any, kind, id string, row any) error {
	res := s.db.WithContext(ctx).Model(model).Where("id = ?", id).Select("*").Updates(row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &domain.NotFoundError{Kind: kind, Key: id}
	}
	return nil
}
