package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/keystock/keystock-backend/internal/accessories"
	"github.com/keystock/keystock-backend/internal/usage"
	"github.com/keystock/keystock-backend/pkg/enums"
)

var historyDate string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the usage recorded on one local calendar day",
	Long: `Print every usage record registered on a calendar day in the configured
KEYSTOCK_TIMEZONE. Defaults to today.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd.Context(), func(e *env) error {
			loc, err := e.cfg.App.Location()
			if err != nil {
				return err
			}
			day, err := usage.ParseDay(historyDate, loc)
			if err != nil {
				return err
			}

			reconciler, err := usage.NewReconciler(accessories.NewRepository(e.client.DB()))
			if err != nil {
				return err
			}
			svc, err := usage.NewService(usage.ServiceParams{
				Repo:        usage.NewRepository(e.client.DB()),
				Reconciler:  reconciler,
				Tx:          e.client,
				Logger:      e.logg,
				Location:    loc,
				MaxQuantity: e.cfg.Ledger.MaxUsageQty,
			})
			if err != nil {
				return err
			}

			rows, err := svc.History(cmd.Context(), usage.Actor{Role: enums.RoleAdmin}, day)
			if err != nil {
				return err
			}
			records := usage.NewRecordDTOs(rows, loc)
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tACCESSORY\tVEHICLE\tQTY\tUSER\tFLAG")
			for _, r := range records {
				user := "-"
				if r.UserName != nil {
					user = *r.UserName
				}
				flag := ""
				if r.Flagged {
					flag = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s %s %d\t%d\t%s\t%s\n",
					r.UsedAt.Format("15:04"), r.AccessoryName, r.Brand, r.Model, r.Year, r.Quantity, user, flag)
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyDate, "date", "", "Calendar day as YYYY-MM-DD (default today)")
}
