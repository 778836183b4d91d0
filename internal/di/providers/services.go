package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/catalog-server/internal/config"
	"github.com/listenupapp/catalog-server/internal/fieldmap"
	"github.com/listenupapp/catalog-server/internal/importer"
	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/normalize"
	"github.com/listenupapp/catalog-server/internal/reconcile"
	"github.com/listenupapp/catalog-server/internal/service"
)

// ProvideFieldMapper provides the header mapper, using the configured YAML
// tables when set.
func ProvideFieldMapper(i do.Injector) (*fieldmap.Mapper, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Import.FieldMapPath == "" {
		return fieldmap.Default(), nil
	}

	tables, err := fieldmap.LoadTables(cfg.Import.FieldMapPath)
	if err != nil {
		return nil, err
	}
	mapper, err := fieldmap.New(tables)
	if err != nil {
		return nil, err
	}

	log.Info("Field map loaded", "path", cfg.Import.FieldMapPath)
	return mapper, nil
}

// ProvideNormalizer provides the row normalizer.
func ProvideNormalizer(i do.Injector) (*normalize.Normalizer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return normalize.New(cfg.Import.DefaultCurrency), nil
}

// ProvideEngine provides the reconciliation engine.
func ProvideEngine(i do.Injector) (*reconcile.Engine, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return reconcile.NewEngine(storeHandle.Store, log.Component("reconcile")), nil
}

// ProvideRunner provides the batch import runner.
func ProvideRunner(i do.Injector) (*importer.Runner, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	engine := do.MustInvoke[*reconcile.Engine](i)
	normalizer := do.MustInvoke[*normalize.Normalizer](i)

	audit := importer.NewFileAuditLog(cfg.Import.LogDir)
	return importer.NewRunner(engine, normalizer, audit, log.Component("importer")), nil
}

// ProvideCatalogService provides the catalog service.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	engine := do.MustInvoke[*reconcile.Engine](i)
	normalizer := do.MustInvoke[*normalize.Normalizer](i)
	log := do.MustInvoke[*logger.Logger](i)

	var searcher service.BookSearcher
	if indexHandle.Index != nil {
		searcher = indexHandle.Index
	}

	return service.NewCatalogService(storeHandle.Store, engine, normalizer, searcher, log.Component("catalog")), nil
}

// ProvideImportService provides the import service.
func ProvideImportService(i do.Injector) (*service.ImportService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	runner := do.MustInvoke[*importer.Runner](i)
	mapper := do.MustInvoke[*fieldmap.Mapper](i)
	historyHandle := do.MustInvoke[*HistoryHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewImportService(runner, mapper, historyHandle.Archive, cfg.Import.Policy(), log.Component("imports")), nil
}
