// Package di provides dependency injection configuration for the catalog server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/catalog-server/internal/config"
	"github.com/listenupapp/catalog-server/internal/di/providers"
	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
// Configuration is loaded from flags, the environment and .env.
func NewContainer() *do.RootScope {
	injector := do.New()
	do.Provide(injector, providers.ProvideConfig)
	register(injector)
	return injector
}

// NewContainerWithConfig is NewContainer with configuration already loaded,
// for callers that parse their own flags.
func NewContainerWithConfig(cfg *config.Config) *do.RootScope {
	injector := do.New()
	do.ProvideValue(injector, cfg)
	register(injector)
	return injector
}

func register(injector do.Injector) {
	// Core infrastructure
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)

	// Persistence
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideHistory)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Import pipeline
	do.Provide(injector, providers.ProvideFieldMapper)
	do.Provide(injector, providers.ProvideNormalizer)
	do.Provide(injector, providers.ProvideEngine)
	do.Provide(injector, providers.ProvideRunner)

	// Business services
	do.Provide(injector, providers.ProvideCatalogService)
	do.Provide(injector, providers.ProvideImportService)

	// Server
	do.Provide(injector, providers.ProvideUploadLimiter)
	do.Provide(injector, providers.ProvideAPIServer)
	do.Provide(injector, providers.ProvideHTTPServer)

	// Workers
	do.Provide(injector, providers.ProvideDropFolder)
}

// BootstrapServices initializes everything except the HTTP server and
// background workers.
func BootstrapServices(injector *do.RootScope) error {
	if _, err := do.Invoke[*logger.Logger](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.CatalogService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.ImportService](injector); err != nil {
		return err
	}
	return nil
}

// Bootstrap initializes all services, starts the HTTP server and the drop
// folder, and fills an empty search index.
func Bootstrap(injector *do.RootScope) error {
	if err := BootstrapServices(injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.DropFolderHandle](injector); err != nil {
		return err
	}

	providers.TriggerSearchReindexIfNeeded(injector)
	return nil
}
