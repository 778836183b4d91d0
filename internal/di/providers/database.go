package providers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/listenupapp/catalog-server/internal/config"
	"github.com/listenupapp/catalog-server/internal/history"
	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/store/postgres"
	"github.com/listenupapp/catalog-server/internal/store/sqlite"
)

// StoreHandle wraps the catalog store with shutdown capability.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the configured catalog backend.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	var (
		db  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
		db, err = sqlite.Open(cfg.Store.Path, log.Component("store"))
	case config.DriverPostgres:
		db, err = postgres.Open(cfg.Store.DSN, log.Component("store"))
	default:
		err = fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Catalog store initialized", "driver", cfg.Store.Driver)
	return &StoreHandle{Store: db}, nil
}

// HistoryHandle wraps the import report archive with shutdown capability.
type HistoryHandle struct {
	*history.Archive
}

// Shutdown implements do.Shutdownable.
func (h *HistoryHandle) Shutdown() error {
	return h.Close()
}

// ProvideHistory opens the import report archive.
func ProvideHistory(i do.Injector) (*HistoryHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	archive, err := history.Open(cfg.History.Path, log.Component("history"))
	if err != nil {
		return nil, err
	}

	log.Info("Import history opened", "path", cfg.History.Path)
	return &HistoryHandle{Archive: archive}, nil
}
