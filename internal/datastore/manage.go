package datastore

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/slippytoad/pittsburgh-address-finder-sub000/internal/logging"
)

// performAutoMigration runs GORM auto-migration for all models.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Violation{}, &Checkpoint{}, &WatchedLocation{}, &Device{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		slog.Debug("database connection initialized", "type", dbType, "connection", connectionInfo)
	}
	return nil
}

// createGormLogger returns a GORM logger that keeps migrations quiet and
// surfaces slow queries and errors only.
func createGormLogger() gormlogger.Interface {
	dbLogger := logging.ForService("datastore")
	if dbLogger == nil {
		dbLogger = slog.Default()
	}
	return gormlogger.New(
		&slogWriter{logger: dbLogger},
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// slogWriter adapts slog to GORM's logger.Writer interface.
type slogWriter struct {
	logger *slog.Logger
}

func (w *slogWriter) Printf(format string, args ...any) {
	w.logger.Warn(fmt.Sprintf(format, args...))
}
