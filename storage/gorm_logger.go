package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"rental-pipeline/utils"
)

// gormLogger routes GORM output through the pipeline logger. SQL is logged
// at debug level; slow queries and real errors at warn.
type gormLogger struct {
	logger        *utils.Logger
	slowThreshold time.Duration
}

func newGormLogger(logger *utils.Logger, slowThreshold time.Duration) *gormLogger {
	return &gormLogger{logger: logger.With("db"), slowThreshold: slowThreshold}
}

// LogMode returns the adapter itself; the level is owned by utils.Logger.
func (a *gormLogger) LogMode(_ gormlogger.LogLevel) gormlogger.Interface {
	return a
}

func (a *gormLogger) Info(_ context.Context, msg string, data ...any) {
	a.logger.Debug("%s", fmt.Sprintf(msg, data...))
}

func (a *gormLogger) Warn(_ context.Context, msg string, data ...any) {
	a.logger.Warn("%s", fmt.Sprintf(msg, data...))
}

func (a *gormLogger) Error(_ context.Context, msg string, data ...any) {
	a.logger.Error("%s", fmt.Sprintf(msg, data...))
}

func (a *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		a.logger.Warn("query error: %v [%s] rows=%d %dms", err, sql, rows, elapsed.Milliseconds())
	case a.slowThreshold > 0 && elapsed > a.slowThreshold:
		a.logger.Warn("slow query (>%v): [%s] rows=%d %dms", a.slowThreshold, sql, rows, elapsed.Milliseconds())
	default:
		a.logger.Debug("sql: [%s] rows=%d %dms", sql, rows, elapsed.Milliseconds())
	}
}
