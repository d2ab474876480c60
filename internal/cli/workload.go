// internal/cli/workload.go
package cli

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/javajoker/dlms-backend/internal/services"
)

// NewWorkloadCommand prints the open practical exams per examiner, the same
// counts examiner assignment balances on.
func NewWorkloadCommand(rt *Runtime, rootOpts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "workload",
		Short: "Show examiner workloads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withDB(func(db *gorm.DB) error {
				loads, err := services.ExaminerWorkloads(cmd.Context(), db, all)
				if err != nil {
					return err
				}
				if loads == nil {
					loads = []services.ExaminerWorkload{}
				}
				if rootOpts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), loads)
				}

				out := cmd.OutOrStdout()
				if len(loads) == 0 {
					color.New(color.FgYellow).Fprintln(out, "No examiners found")
					return nil
				}

				table := tablewriter.NewWriter(out)
				table.SetHeader([]string{"Examiner", "Email", "Active", "Open Exams"})
				for _, l := range loads {
					table.Append([]string{l.FullName, l.Email, strconv.FormatBool(l.Active), strconv.FormatInt(l.Workload, 10)})
				}
				table.Render()
				fmt.Fprintf(out, "%d examiner(s)\n", len(loads))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include inactive examiners")
	return cmd
}
