package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kjannette/fiindo-etl/internal/models"
)

const defaultBatchSize = 500

// GormStore is the Store used for SQLite files and tests.
type GormStore struct {
	db        *gorm.DB
	batchSize int
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, batchSize: defaultBatchSize}
}

func (s *GormStore) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&models.TickerStatistic{},
		&models.IndustryAggregate{},
		&models.PipelineRun{},
	)
	return persistErr("migrate", err)
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) SaveTickerStatistics(ctx context.Context, stats []models.TickerStatistic) error {
	if len(stats) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			UpdateAll: true,
		}).CreateInBatches(stats, s.batchSize).Error
	})
	return persistErr("save ticker statistics", err)
}

func (s *GormStore) SaveIndustryAggregates(ctx context.Context, aggs []models.IndustryAggregate) error {
	if len(aggs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "industry"}},
			UpdateAll: true,
		}).CreateInBatches(aggs, s.batchSize).Error
	})
	return persistErr("save industry aggregates", err)
}

func (s *GormStore) RecordRun(ctx context.Context, run *models.PipelineRun) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(run).Error
	return persistErr("record run", err)
}

func (s *GormStore) ListTickerStatistics(ctx context.Context) ([]models.TickerStatistic, error) {
	var out []models.TickerStatistic
	err := s.db.WithContext(ctx).Order("symbol ASC").Find(&out).Error
	return out, persistErr("list ticker statistics", err)
}

func (s *GormStore) GetTickerStatistic(ctx context.Context, symbol string) (*models.TickerStatistic, error) {
	var out models.TickerStatistic
	err := s.db.WithContext(ctx).Where("symbol = ?", symbol).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("get ticker statistic", err)
	}
	return &out, nil
}

func (s *GormStore) ListIndustryAggregates(ctx context.Context) ([]models.IndustryAggregate, error) {
	var out []models.IndustryAggregate
	err := s.db.WithContext(ctx).Order("industry ASC").Find(&out).Error
	return out, persistErr("list industry aggregates", err)
}

func (s *GormStore) GetIndustryAggregate(ctx context.Context, industry string) (*models.IndustryAggregate, error) {
	var out models.IndustryAggregate
	err := s.db.WithContext(ctx).Where("industry = ?", industry).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("get industry aggregate", err)
	}
	return &out, nil
}

func (s *GormStore) ListRuns(ctx context.Context, limit int) ([]models.PipelineRun, error) {
	var out []models.PipelineRun
	err := s.db.WithContext(ctx).Order("started_at DESC").Limit(runLimit(limit)).Find(&out).Error
	return out, persistErr("list runs", err)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
