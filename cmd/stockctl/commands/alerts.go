package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/keystock/keystock-backend/internal/accessories"
	"github.com/keystock/keystock-backend/internal/alerts"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List accessories at or below their alert threshold",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd.Context(), func(e *env) error {
			evaluator, err := alerts.NewEvaluator(accessories.NewRepository(e.client.DB()), nil)
			if err != nil {
				return err
			}
			rows, err := evaluator.LowStock(cmd.Context())
			if err != nil {
				return err
			}

			list := accessories.NewAccessoryDTOs(rows)
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no accessories are low on stock")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tQUANTITY\tMIN")
			for _, a := range list {
				fmt.Fprintf(w, "%s\t%d\t%d\n", a.Name, a.Quantity, a.MinQuantity)
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(alertsCmd)
}
