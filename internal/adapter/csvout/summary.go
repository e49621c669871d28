package csvout

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/climate-data-etl/internal/domain"
)

// WriteSummary renders the run report as plain text.
func WriteSummary(w io.Writer, r domain.RunReport) error {
	var b strings.Builder
	line := strings.Repeat("=", 70)

	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b, "CLIMATE DATA DOWNLOAD SUMMARY")
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "Run ID:      %s\n", r.RunID)
	fmt.Fprintf(&b, "Generated:   %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Period:      %s to %s\n", r.Period.Start.Format(time.DateOnly), r.Period.End.Format(time.DateOnly))
	fmt.Fprintf(&b, "Zones:       %d (%s)\n", len(r.Zones), strings.Join(r.Zones, ", "))
	fmt.Fprintf(&b, "States:      %d/%d completed\n", r.StatesCompleted, len(r.States))
	if r.Interrupted {
		fmt.Fprintln(&b, "Status:      INTERRUPTED (partial output)")
	} else {
		fmt.Fprintln(&b, "Status:      complete")
	}
	fmt.Fprintln(&b)

	for _, t := range r.Tables {
		fmt.Fprintf(&b, "%s: %d rows, %d without data\n", TableFiles[t.Table], t.Rows, t.MissingRows)
		tw := tabwriter.NewWriter(&b, 2, 4, 2, ' ', 0)
		for _, cr := range t.Ranges {
			if cr.Count == 0 {
				fmt.Fprintf(tw, "  %s\t%s\n", cr.Column, domain.MissingValue)
				continue
			}
			fmt.Fprintf(tw, "  %s\t%s .. %s\n", cr.Column, domain.FormatFloat(cr.Min), domain.FormatFloat(cr.Max))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(&b)
	}

	switch {
	case r.CO2Error != "":
		fmt.Fprintf(&b, "%s: failed (%s)\n", CO2File, r.CO2Error)
	case r.CO2Records > 0:
		fmt.Fprintf(&b, "%s: %d rows\n", CO2File, r.CO2Records)
	default:
		fmt.Fprintf(&b, "%s: skipped\n", CO2File)
	}

	fmt.Fprintf(&b, "Failed chunks: %d\n", r.FailedChunks)
	if len(r.FailedStates) > 0 {
		fmt.Fprintf(&b, "Failed states: %s\n", strings.Join(r.FailedStates, ", "))
		fmt.Fprintf(&b, "Re-run the chunks listed in %s.\n", FailuresFile)
	}
	fmt.Fprintln(&b, line)

	_, err := io.WriteString(w, b.String())
	return err
}
