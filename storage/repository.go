// Package storage is the GORM-backed entity repository. It enforces
// uniqueness and taxonomy validation on write.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"rental-pipeline/config"
	"rental-pipeline/models"
	"rental-pipeline/utils"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("storage: not found")

// Repository owns all persistent state.
type Repository struct {
	db     *gorm.DB
	logger *utils.Logger
}

// Open connects to the backend selected by cfg.DBDriver and migrates the schema.
func Open(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*Repository, error) {
	switch cfg.DBDriver {
	case "", "sqlite":
		return OpenSQLite(cfg.SQLitePath, logger)
	case "postgres":
		dialector, err := openPostgres(ctx, cfg.DSN(), logger)
		if err != nil {
			return nil, err
		}
		return open(dialector, logger, 0)
	case "mysql":
		if cfg.MySQLDSN == "" {
			return nil, errors.New("storage: MYSQL_DSN is required for the mysql driver")
		}
		return open(mysql.Open(cfg.MySQLDSN), logger, 0)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.DBDriver)
	}
}

// OpenSQLite opens (creating if needed) a SQLite database file. Writes are
// serialized through a single connection.
func OpenSQLite(path string, logger *utils.Logger) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}
	return open(sqlite.Open(path+"?_foreign_keys=on&_busy_timeout=5000"), logger, 1)
}

func open(dialector gorm.Dialector, logger *utils.Logger, maxConns int) (*Repository, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  newGormLogger(logger, 200*time.Millisecond),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	if maxConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("storage: get sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(maxConns)
	}

	r := &Repository{db: db, logger: logger.With("storage")}
	if err := r.migrate(); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return r, nil
}

func (r *Repository) migrate() error {
	return r.db.AutoMigrate(
		&models.Site{},
		&models.Area{},
		&models.Category{},
		&models.Tag{},
		&models.Image{},
		&models.TransitStop{},
		&models.BoundingBox{},
		&models.Listing{},
		&models.ListingExpirationCheck{},
		&models.ScrapeRecord{},
		&models.HousingSearch{},
		&models.UserListingInfo{},
		&models.ListingScore{},
	)
}

// Close releases the connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction runs fn against a repository bound to one transaction.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx, logger: r.logger})
	})
}

func (r *Repository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("load %s %v: %w", what, id, err)
}
