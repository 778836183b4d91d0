package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/catalog-server/internal/config"
	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/service"
	"github.com/listenupapp/catalog-server/internal/watcher"
)

// DropFolderHandle runs the drop folder importer. It is inert when no watch
// directory is configured.
type DropFolderHandle struct {
	*watcher.DropFolder
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable. It waits for the import in flight.
func (h *DropFolderHandle) Shutdown() error {
	if h.cancel == nil {
		return nil
	}
	h.cancel()
	<-h.done
	return nil
}

// ProvideDropFolder starts watching the configured drop folder.
func ProvideDropFolder(i do.Injector) (*DropFolderHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Import.WatchDir == "" {
		return &DropFolderHandle{}, nil
	}

	imports := do.MustInvoke[*service.ImportService](i)
	folder, err := watcher.NewDropFolder(cfg.Import.WatchDir, imports, log.Component("dropfolder"), watcher.Options{})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := folder.Run(ctx); err != nil {
			log.Error("Drop folder stopped", "error", err)
		}
	}()

	log.Info("Drop folder started", "dir", folder.Dir())
	return &DropFolderHandle{DropFolder: folder, cancel: cancel, done: done}, nil
}
