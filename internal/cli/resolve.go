package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cartrewards/service_layer/internal/app/directory"
	"github.com/cartrewards/service_layer/internal/app/kvcache"
	"github.com/cartrewards/service_layer/internal/app/runtime"
	"github.com/cartrewards/service_layer/internal/app/services/resolver"
	"github.com/cartrewards/service_layer/internal/app/services/stores"
	"github.com/cartrewards/service_layer/internal/app/storage/postgres"
	"github.com/cartrewards/service_layer/internal/config"
)

type resolveOutput struct {
	StoreID   string         `json:"storeId"`
	State     resolver.State `json:"state"`
	Error     string         `json:"error,omitempty"`
	ErrorKind string         `json:"errorKind,omitempty"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the configured Shopify store to its directory record",
		Long: `Run one store resolution: fetch the record for SHOPIFY_STORE_ID from the
store directory, creating it when it does not exist, and remember the id in
the configured resolver cache.

The directory is STORE_DIRECTORY_URL (or --directory-url); without one the
directory is read from DATABASE_URL directly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), rootOpts, cmd)
		},
	}
}

func runResolve(ctx context.Context, opts *RootOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	log := opts.logger(cmd.ErrOrStderr())

	dir, cleanup, err := openDirectory(cfg)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "open store directory", Err: err}
	}
	defer cleanup()

	cache, err := runtime.OpenCache(ctx, cfg.Cache)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "open resolver cache", Err: err}
	}
	defer kvcache.Close(cache)

	res := resolver.New(cfg.Store, dir, cache, log.Named("store-resolver"))

	spinner := NewSpinner(cmd.ErrOrStderr(), "resolving "+cfg.Store.ShopifyStoreID)
	spinner.Start()
	result := res.Resolve(ctx)
	spinner.Stop()

	if opts.JSON {
		out := resolveOutput{StoreID: result.StoreID, State: result.State, Error: result.ErrorMessage()}
		if result.Err != nil {
			out.ErrorKind = string(result.Err.Kind)
		}
		if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	} else {
		printer := NewPrinter(cmd.OutOrStdout())
		switch {
		case result.Err != nil:
			printer.Error(result.Err.Message)
			if result.StoreID != "" {
				printer.Warning("using cached store id " + result.StoreID)
			}
		case result.Loading:
			printer.Warning("store creation still in progress")
		default:
			printer.Success(fmt.Sprintf("store %s (%s)", result.StoreID, result.State))
		}
	}

	if result.Err != nil {
		return &ExitError{Code: ExitFailure, Message: "store resolution failed", Err: result.Err}
	}
	return nil
}

func openDirectory(cfg *config.Config) (directory.Directory, func(), error) {
	if cfg.Directory.URL != "" {
		client, err := runtime.NewDirectoryClient(cfg.Directory)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	}
	if !cfg.Database.Enabled() {
		return nil, nil, errors.New("set STORE_DIRECTORY_URL, --directory-url or DATABASE_URL")
	}
	db, err := runtime.OpenDatabase(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	local := directory.NewLocal(stores.New(postgres.New(db), nil))
	return local, func() { _ = db.Close() }, nil
}
