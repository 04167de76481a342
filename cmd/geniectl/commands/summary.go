package commands

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	// summary flags
	summaryDays int
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the patient glucose summary",
	Long: `Print every patient with reading count, average and last value over the
window, as shown on the clinician dashboard.

Examples:
  geniectl summary              # last 7 days
  geniectl summary --days 30
  geniectl summary --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSummary(cmd)
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)

	summaryCmd.Flags().IntVar(&summaryDays, "days", 0, "Window in days (default: SUMMARY_WINDOW)")
}

func runSummary(cmd *cobra.Command) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	window, err := a.Summary.WindowForDays(summaryDays)
	if err != nil {
		return err
	}
	rows, err := a.Summary.PatientSummaries(cmd.Context(), window)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, rows)
	}
	if len(rows) == 0 {
		muted(out, "No patients registered")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tEMAIL\tREADINGS\tAVG\tLAST")
	for _, r := range rows {
		if r.Error != "" {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t%s\n", r.Name, r.Email, r.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.Name, r.Email, r.ReadingsCount, optional(r.AvgGlucose), optional(r.LastReading))
	}
	return tw.Flush()
}

func optional(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}
