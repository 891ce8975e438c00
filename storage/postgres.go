package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"rental-pipeline/utils"
)

// openPostgres connects through lib/pq, waits for the server to come up,
// and hands the pool to GORM.
func openPostgres(ctx context.Context, dsn string, logger *utils.Logger) (gorm.Dialector, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	ping := &utils.RetryConfig{
		MaxRetries: 9,
		Backoff:    func(int) time.Duration { return 2 * time.Second },
		Logger:     logger,
	}
	if err := ping.Do(ctx, "postgres ping", func(int) error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	return postgres.New(postgres.Config{Conn: db}), nil
}
