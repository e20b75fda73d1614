package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/faces-api/internal/logging"
	"github.com/example/faces-api/internal/validation"
)

// PostgresPhotoRepository stores photo metadata in PostgreSQL through gorm.
type PostgresPhotoRepository struct {
	retry logging.Retrier
	db    *gorm.DB
}

// OpenPostgres connects with a small bounded pool and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string, poolSize int) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(poolSize)
	sqlDB.SetMaxOpenConns(poolSize)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// NewPostgresPhotoRepository creates a new repository instance.
func NewPostgresPhotoRepository(db *gorm.DB, logger *zap.Logger) *PostgresPhotoRepository {
	return &PostgresPhotoRepository{
		retry: logging.NewRetrier(logger.Named("postgres_photo_repository")),
		db:    db,
	}
}

// AutoMigrate ensures the schema is available.
func (r *PostgresPhotoRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&PhotoRecord{})
}

// Insert writes one record. It is never retried so a slow commit cannot
// produce a duplicate row.
func (r *PostgresPhotoRepository) Insert(ctx context.Context, record *PhotoRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return logging.NewOperationError("postgres.insert_photo", record.ID, err)
	}
	return nil
}

// FindInBox returns every record whose x and y fall inside box, edges included.
func (r *PostgresPhotoRepository) FindInBox(ctx context.Context, box validation.BoundingBox) ([]*PhotoRecord, error) {
	records := make([]*PhotoRecord, 0)
	err := r.retry.Do(ctx, "postgres.find_in_box", "", func() error {
		records = records[:0]
		return r.db.WithContext(ctx).
			Where("x BETWEEN ? AND ? AND y BETWEEN ? AND ?", box.StartX, box.EndX, box.StartY, box.EndY).
			Find(&records).Error
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close releases the underlying pool.
func (r *PostgresPhotoRepository) Close(context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
