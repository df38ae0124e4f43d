package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cartrewards/service_layer/internal/app/directory"
	"github.com/cartrewards/service_layer/internal/app/domain/store"
)

// NewStoresCommand creates the stores command group.
func NewStoresCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stores",
		Short: "Inspect the store directory",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stores registered in the directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			dir, cleanup, err := openDirectory(cfg)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "open store directory", Err: err}
			}
			defer cleanup()

			lister, ok := dir.(directory.Lister)
			if !ok {
				return &ExitError{Code: ExitCommandError, Message: "store directory does not support listing"}
			}
			records, err := lister.ListStores(cmd.Context())
			if err != nil {
				return &ExitError{Code: ExitFailure, Message: "list stores", Err: err}
			}

			redacted := make([]store.Record, 0, len(records))
			for _, rec := range records {
				redacted = append(redacted, rec.Redacted())
			}
			if rootOpts.JSON {
				return writeJSON(cmd.OutOrStdout(), redacted)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSHOPIFY STORE\tNAME\tACTIVE")
			for _, rec := range redacted {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", rec.ID, rec.ShopifyStoreID, rec.StoreName, rec.IsActive)
			}
			return tw.Flush()
		},
	})
	return cmd
}
