package shadowextract

import (
	"fmt"
	"io"

	"github.com/function61/hostkit/pkg/byteshuman"
	"github.com/function61/hostkit/pkg/duration"
	"github.com/function61/hostkit/pkg/hiveextract"
	"github.com/olekukonko/tablewriter"
)

// per-target table followed by the run outcome and any warnings
func WriteSummary(res *RunResult, out io.Writer) {
	tbl := tablewriter.NewWriter(out)
	tbl.SetAutoFormatHeaders(false)
	tbl.SetBorder(false)
	tbl.SetAutoWrapText(false)
	tbl.SetHeader([]string{"Target", "Outcome", "Size", "Destination / reason"})

	for _, target := range res.Results {
		size := ""
		detail := target.Destination

		switch {
		case target.Err != nil:
			detail = target.Err.Error()
		case target.Outcome == hiveextract.OutcomeSkipped:
			detail = "not present on volume"
			if target.Target.Conditional {
				detail += " (optional)"
			}
		default:
			size = byteshuman.Humanize(uint64(target.Bytes))
		}

		tbl.Append([]string{target.Target.Name, target.Outcome.String(), size, detail})
	}

	tbl.Render()

	counts := res.Counts()

	fmt.Fprintf(out, "\nrun %s on %s: %s in %s (copied %d, skipped %d, failed %d)\n",
		res.RunID,
		res.Volume,
		describeOutcome(res),
		duration.Humanize(res.Finished.Sub(res.Started)),
		counts.Copied,
		counts.Skipped,
		counts.Failed)

	if res.Err != nil {
		fmt.Fprintf(out, "error: %v\n", res.Err)
	}

	for _, warning := range res.Warnings {
		fmt.Fprintf(out, "warning: %s\n", warning.String())
	}
}

func describeOutcome(res *RunResult) string {
	switch {
	case res.Succeeded():
		return "success"
	case res.Partial():
		return "partial success"
	default:
		return "FAILED"
	}
}
