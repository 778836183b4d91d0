package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/listenupapp/catalog-server/internal/api"
	"github.com/listenupapp/catalog-server/internal/config"
	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/ratelimit"
	"github.com/listenupapp/catalog-server/internal/service"
)

// UploadLimiterHandle wraps the per-client upload limiter.
type UploadLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *UploadLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideUploadLimiter provides the per-client upload rate limiter.
func ProvideUploadLimiter(i do.Injector) (*UploadLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return &UploadLimiterHandle{
		KeyedRateLimiter: ratelimit.New(cfg.Server.UploadRPS, cfg.Server.UploadBurst),
	}, nil
}

// ProvideAPIServer provides the HTTP handler.
func ProvideAPIServer(i do.Injector) (*api.Server, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	limiter := do.MustInvoke[*UploadLimiterHandle](i)

	services := api.Services{
		Catalog: do.MustInvoke[*service.CatalogService](i),
		Imports: do.MustInvoke[*service.ImportService](i),
	}

	return api.NewServer(services, api.Options{
		UploadDir:      cfg.Import.UploadDir,
		MaxUploadBytes: cfg.Import.MaxUploadBytes(),
		CORSOrigins:    cfg.Server.CORSOrigins,
		UploadLimiter:  limiter.KeyedRateLimiter,
	}, log.Component("api")), nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts it in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	handler := do.MustInvoke[*api.Server](i)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
