// internal/cli/root.go
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/javajoker/dlms-backend/internal/config"
	"github.com/javajoker/dlms-backend/internal/database"
)

// ValidFormats are the accepted values of --format.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string
}

// Runtime is what commands need from the outside world. Tests swap the
// database functions for an in-memory store.
type Runtime struct {
	Config  *config.Config
	OpenDB  func(cfg config.DatabaseConfig) (*gorm.DB, error)
	CloseDB func(db *gorm.DB)
}

func NewRuntime(cfg *config.Config) *Runtime {
	return &Runtime{Config: cfg, OpenDB: database.Initialize, CloseDB: database.Close}
}

// withDB opens the configured database for the duration of fn.
func (rt *Runtime) withDB(fn func(db *gorm.DB) error) error {
	db, err := rt.OpenDB(rt.Config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer rt.CloseDB(db)
	return fn(db)
}

// NewRootCommand creates the dlmsctl command tree.
func NewRootCommand(rt *Runtime) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dlmsctl",
		Short: "Operator tooling for the driving-license management service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(rt))
	cmd.AddCommand(NewSeedCommand(rt))
	cmd.AddCommand(NewWorkloadCommand(rt, opts))
	cmd.AddCommand(NewEligibilityCommand(rt, opts))
	cmd.AddCommand(NewTokenCommand(rt))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
