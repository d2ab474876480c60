// internal/cli/migrate.go
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/javajoker/dlms-backend/internal/database"
)

func NewMigrateCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema, constraints and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withDB(func(db *gorm.DB) error {
				if err := database.RunMigrations(db); err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "Migrations applied")
				return nil
			})
		},
	}
}

func NewSeedCommand(rt *Runtime) *cobra.Command {
	opts := database.DefaultSeedOptions()
	var skipExaminers bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the admin and examiner accounts that do not exist yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if skipExaminers {
				opts.Examiners = nil
			}
			return rt.withDB(func(db *gorm.DB) error {
				if err := database.SeedInitialData(db, opts); err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Seeded admin %s and %d examiner(s)\n", opts.Admin.Email, len(opts.Examiners))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.Admin.Email, "admin-email", opts.Admin.Email, "admin account email")
	cmd.Flags().StringVar(&opts.Admin.FullName, "admin-name", opts.Admin.FullName, "admin account name")
	cmd.Flags().BoolVar(&skipExaminers, "no-examiners", false, "seed the admin account only")
	return cmd
}
