package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/catalog-server/internal/config"
	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/search"
	"github.com/listenupapp/catalog-server/internal/store"
)

// SearchIndexHandle wraps the search index with shutdown capability. Index
// is nil when search is disabled.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	if h.Index == nil {
		return nil
	}
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index and hooks it to the
// store so every catalog write keeps it current.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	if !cfg.Search.Enabled {
		log.Info("Search index disabled")
		return &SearchIndexHandle{}, nil
	}

	index, err := search.NewIndex(search.Options{
		DataPath: cfg.Search.Path,
		Logger:   log.Component("search"),
	})
	if err != nil {
		return nil, err
	}
	storeHandle.SetSearchIndexer(index)

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{Index: index}, nil
}

// TriggerSearchReindexIfNeeded fills an empty index from the store in the
// background. Should be called after all services are wired.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	if indexHandle.Index == nil {
		return
	}
	docCount, _ := indexHandle.DocumentCount()
	if docCount > 0 {
		return
	}

	ctx := context.Background()
	total, err := storeHandle.CountBooks(ctx, store.BookFilter{})
	if err != nil || total == 0 {
		return
	}

	log.Info("Search index is empty but books exist, triggering initial reindex",
		"book_count", total,
	)

	go func() {
		if err := reindex(ctx, storeHandle.Store, indexHandle.Index); err != nil {
			log.Error("Initial search reindex failed", "error", err)
			return
		}
		count, _ := indexHandle.DocumentCount()
		log.Info("Initial search reindex completed", "documents", count)
	}()
}

// reindex walks the whole catalog page by page.
func reindex(ctx context.Context, s store.Browser, index *search.Index) error {
	page := store.Page{Page: 1, Limit: store.MaxPageLimit}
	for {
		books, err := s.ListBooks(ctx, store.BookFilter{}, page)
		if err != nil {
			return err
		}
		if err := index.IndexBooks(ctx, books); err != nil {
			return err
		}
		if len(books) < page.Limit {
			return nil
		}
		page.Page++
	}
}

