package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cartrewards/service_layer/internal/app/services/rewards"
	"github.com/cartrewards/service_layer/internal/config"
)

// NewEligibilityCommand creates the eligibility command.
func NewEligibilityCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		cartValue  int64
		selected   []string
		milestones string
	)

	cmd := &cobra.Command{
		Use:   "eligibility",
		Short: "Evaluate free-product eligibility for a cart total",
		Long: `Evaluate how many free products a cart unlocks and which of the given
selections survive, using the milestone table from --milestones (or the
built-in 3000/4000/5000 ladder).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := config.LoadMilestonesOrDefault(milestones)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "load milestones", Err: err}
			}
			svc := rewards.New(catalog, rootOpts.logger(cmd.ErrOrStderr()))
			result, err := svc.Evaluate(cartValue, selected)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "evaluate", Err: err}
			}

			if rootOpts.JSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cart value:  %d\n", result.CartValue)
			fmt.Fprintf(out, "max allowed: %d\n", result.MaxAllowed)
			fmt.Fprintf(out, "state:       %s\n", result.State)
			if len(result.Selected) > 0 {
				fmt.Fprintf(out, "selected:    %s\n", strings.Join(result.Selected, ", "))
			}
			if next := result.Progress.Next; next != nil {
				fmt.Fprintf(out, "next tier:   %d more for %d free product(s)\n", result.Progress.Remaining, next.FreeProducts)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&cartValue, "cart-value", 0, "cart total in minor currency units")
	cmd.Flags().StringSliceVar(&selected, "selected", nil, "already selected product ids (comma separated)")
	cmd.Flags().StringVar(&milestones, "milestones", "", "milestone YAML file")
	_ = cmd.MarkFlagRequired("cart-value")
	return cmd
}
