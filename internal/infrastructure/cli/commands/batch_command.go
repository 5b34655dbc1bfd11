package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doeshing/hookgate/internal/infrastructure/cli/helpers"
)

// NewBatchCommand evaluates a JSON-lines stream of events concurrently.
func NewBatchCommand(rt *Runtime) *cobra.Command {
	var (
		workers int
		live    bool
		trace   bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Simulate many events read as JSON lines from stdin",
		Long: `Read one hook event per line from stdin and write one result per line
to stdout, in input order. Events are simulated (no audit entries) unless
--audit is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := helpers.ReadEventLines(cmd.InOrStdin())
			if err != nil {
				return err
			}

			container, err := rt.Container(cmd.Context())
			if err != nil {
				return err
			}

			results, runErr := container.BatchService(workers, live, trace).Run(cmd.Context(), items)
			enc := json.NewEncoder(cmd.OutOrStdout())
			failed := 0
			for _, res := range results {
				if res.Error != "" {
					failed++
				}
				if err := enc.Encode(res); err != nil {
					return err
				}
			}
			if runErr != nil {
				return runErr
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d event(s) could not be decoded", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent evaluations (default batch.workers)")
	cmd.Flags().BoolVar(&live, "audit", false, "Evaluate for real: write audit entries and metrics")
	cmd.Flags().BoolVar(&trace, "trace", false, "Attach the per-rule trace to each simulated result")
	return cmd
}
