// Package factory selects and builds the configured storage backend.
package factory

import (
	"fmt"
	"log/slog"

	"github.com/kinemo/motionrec/internal/config"
	"github.com/kinemo/motionrec/internal/database"
	"github.com/kinemo/motionrec/internal/storage"
	filestorage "github.com/kinemo/motionrec/internal/storage/file"
	"github.com/kinemo/motionrec/internal/storage/gormstore"
	"github.com/rs/zerolog"
)

// Dependencies holds what the database backed stores need besides their
// storage config.
type Dependencies struct {
	DB       config.DBConfig
	Logger   *slog.Logger
	DBLogger zerolog.Logger
}

// NewBackend creates a storage backend based on configuration. The backend
// is not initialized.
func NewBackend(cfg config.StorageConfig, deps Dependencies) (storage.Backend, error) {
	switch cfg.Type {
	case "file":
		return filestorage.New(cfg.File, deps.Logger), nil
	case "sqlite":
		m := database.NewManager(deps.DBLogger)
		if err := m.OpenSqlite(cfg.SQLite.Path); err != nil {
			return nil, err
		}
		return newGorm(m, deps.Logger), nil
	case "postgres":
		m := database.NewManager(deps.DBLogger)
		if err := m.OpenPostgres(deps.DB); err != nil {
			return nil, err
		}
		return newGorm(m, deps.Logger), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

func newGorm(m *database.Manager, logger *slog.Logger) storage.Backend {
	return gormstore.New(gormstore.Dependencies{
		DB:      m.DB,
		Logger:  logger,
		OnClose: m.Close,
	})
}
