package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/keystock/keystock-backend/internal/users"
)

var seedPassword string

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the default admin account when no users exist",
	Long: `Create the default admin account when the users table is empty.

The username comes from KEYSTOCK_SEED_ADMIN_USERNAME. The password comes from
--password, then KEYSTOCK_SEED_ADMIN_PASSWORD; when both are empty a random
password is generated and printed once.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd.Context(), func(e *env) error {
			seed := e.cfg.Seed
			if seedPassword != "" {
				seed.AdminPassword = seedPassword
			}

			admin, password, err := users.EnsureDefaultAdmin(cmd.Context(), users.NewRepository(e.client.DB()), seed, e.cfg.Password)
			if err != nil {
				return err
			}
			return printSeedResult(cmd.OutOrStdout(), users.FromModel(admin), password, seed.AdminPassword == "")
		})
	},
}

func init() {
	rootCmd.AddCommand(seedAdminCmd)
	seedAdminCmd.Flags().StringVar(&seedPassword, "password", "", "Password for the seeded admin")
}

func printSeedResult(w io.Writer, admin *users.UserDTO, password string, generated bool) error {
	if admin == nil {
		if jsonOutput {
			return json.NewEncoder(w).Encode(map[string]any{"created": false})
		}
		fmt.Fprintln(w, "users already exist; nothing to do")
		return nil
	}

	if jsonOutput {
		out := map[string]any{"created": true, "user": admin}
		if generated {
			out["generated_password"] = password
		}
		return json.NewEncoder(w).Encode(out)
	}
	fmt.Fprintf(w, "created admin %q\n", admin.Username)
	if generated {
		fmt.Fprintf(w, "generated password: %s\n", password)
	}
	return nil
}
