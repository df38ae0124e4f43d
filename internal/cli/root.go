package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cartrewards/service_layer/internal/config"
	"github.com/cartrewards/service_layer/pkg/logger"
)

// Exit codes for rewardsctl.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the exit code for err; plain errors map to ExitFailure.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile      string
	DirectoryURL string
	JSON         bool
	LogLevel     string
}

// NewRootCommand creates the rewardsctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "rewardsctl",
		Short:         "Operate the cart rewards service",
		Long:          "Resolve the configured Shopify store, evaluate reward eligibility, inspect the store directory and apply migrations.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env", "", "path to a .env file (default: ./.env when present)")
	cmd.PersistentFlags().StringVar(&opts.DirectoryURL, "directory-url", "", "store directory base URL (overrides STORE_DIRECTORY_URL)")
	cmd.PersistentFlags().BoolVar(&opts.JSON, "json", false, "print JSON output")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewEligibilityCommand(opts))
	cmd.AddCommand(NewStoresCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.EnvFile)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "load configuration", Err: err}
	}
	if o.DirectoryURL != "" {
		cfg.Directory.URL = o.DirectoryURL
	}
	return cfg, nil
}

func (o *RootOptions) logger(w io.Writer) *logger.Logger {
	log := logger.New(logger.LoggingConfig{Level: o.LogLevel, Format: "text", Output: "stderr"})
	log.Logger.SetOutput(w)
	return log.Named("rewardsctl")
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
