package gormstore

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/berfenger/microgrid2mqtt/internal/config"
)

func Open(cfg config.StoreConfig) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	gdb, err := gorm.Open(postgres.Open(cfg.DSN), gcfg)
	if err != nil {
		return nil, err
	}

	sqldb, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return gdb, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ProsumerRow{},
		&PowerPlantRow{},
		&ManagerRow{},
		&MarketRecordRow{},
		&SimulatorRecordRow{},
		&ReadingRow{},
	)
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqldb, err := db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}
