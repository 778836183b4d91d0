// Command catalogctl runs catalog imports and inspections from the shell
// against the same store the server uses.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/listenupapp/catalog-server/internal/config"
	"github.com/listenupapp/catalog-server/internal/di"
	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/service"
)

// globalFlags are forwarded to config.Load so the CLI resolves settings the
// same way the server does.
type globalFlags struct {
	envFile     string
	dataPath    string
	storeDriver string
	storePath   string
	storeDSN    string
	logLevel    string
}

func (g *globalFlags) args(cmd *cobra.Command) []string {
	var args []string
	add := func(name, value string) {
		if cmd.Flags().Changed(name) {
			args = append(args, "-"+name, value)
		}
	}
	add("env-file", g.envFile)
	add("data-path", g.dataPath)
	add("store-driver", g.storeDriver)
	add("store-path", g.storePath)
	add("store-dsn", g.storeDSN)
	// The CLI defaults to quieter logs than the server.
	return append(args, "-log-level", g.logLevel)
}

// app holds the services a command needs.
type app struct {
	injector *do.RootScope
	catalog  *service.CatalogService
	imports  *service.ImportService
}

func (a *app) Close() {
	_ = a.injector.Shutdown()
}

// open builds the container with logs on stderr so stdout stays parseable.
func (g *globalFlags) open(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(g.args(cmd))
	if err != nil {
		return nil, err
	}

	injector := di.NewContainerWithConfig(cfg)
	do.OverrideValue(injector, logger.New(logger.Config{
		Writer:      cmd.ErrOrStderr(),
		Format:      cfg.Logger.Format,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	}))

	if err := di.BootstrapServices(injector); err != nil {
		_ = injector.Shutdown()
		return nil, err
	}
	return &app{
		injector: injector,
		catalog:  do.MustInvoke[*service.CatalogService](injector),
		imports:  do.MustInvoke[*service.ImportService](injector),
	}, nil
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Import and inspect book catalog data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.envFile, "env-file", ".env", "path to .env file")
	pf.StringVar(&g.dataPath, "data-path", "", "base path for server data")
	pf.StringVar(&g.storeDriver, "store-driver", "", "catalog store: sqlite or postgres")
	pf.StringVar(&g.storePath, "store-path", "", "SQLite database file")
	pf.StringVar(&g.storeDSN, "store-dsn", "", "Postgres connection string")
	pf.StringVar(&g.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newImportCmd(g),
		newHeadersCmd(g),
		newCheckCmd(g),
		newReportsCmd(g),
	)
	return root
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
