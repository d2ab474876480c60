// internal/cli/eligibility.go
package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/javajoker/dlms-backend/internal/services"
)

func NewEligibilityCommand(rt *Runtime, rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "eligibility <candidate-id>",
		Short: "Show where a candidate stands on the way to a license",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			candidateID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid candidate id %q: %w", args[0], err)
			}

			return rt.withDB(func(db *gorm.DB) error {
				e, err := services.ResolveEligibility(cmd.Context(), db, candidateID)
				if err != nil {
					return err
				}
				if rootOpts.Format == "json" {
					return writeJSON(cmd.OutOrStdout(), e)
				}
				printEligibility(cmd.OutOrStdout(), e)
				return nil
			})
		},
	}
}

func printEligibility(out io.Writer, e *services.Eligibility) {
	status := color.New(color.FgYellow)
	switch e.Status {
	case services.EligibilityLicenseIssued, services.EligibilityEligibleForLicense:
		status = color.New(color.FgGreen)
	}
	fmt.Fprintf(out, "Candidate %s: ", e.CandidateID)
	status.Fprintln(out, e.Status)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Requirement", "Met", "Detail"})
	table.Append([]string{"Theory exam", yesNo(e.TheoryPassed), recordDetail(e.TheoryResult)})
	table.Append([]string{"Practical exam", yesNo(e.PracticalPassed), recordDetail(e.PracticalResult)})

	payment := ""
	if e.Payment != nil {
		payment = fmt.Sprintf("%.2f %s via %s", e.Payment.Amount, e.Payment.Currency, e.Payment.Method)
	}
	table.Append([]string{"Payment", yesNo(e.PaymentVerified), payment})

	license := ""
	if e.License != nil {
		license = fmt.Sprintf("%s (class %s, expires %s)", e.License.LicenseNumber, e.License.Class, e.License.ExpiryDate.Format("2006-01-02"))
	}
	table.Append([]string{"License", yesNo(e.License != nil), license})
	table.Render()
}

func recordDetail(r *services.ExamRecord) string {
	if r == nil {
		return ""
	}
	detail := fmt.Sprintf("%.2f on %s", r.Score, r.TakenAt.Format("2006-01-02"))
	if r.Source == services.SourceExamSchedule {
		detail += " (from schedule)"
	}
	return detail
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
