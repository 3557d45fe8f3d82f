package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"soakq/internal/tui/styles"
)

var rule = strings.Repeat("=", 70)

// WriteText prints the soak analysis the way it appears at the end of a
// headless run.
func WriteText(w io.Writer, s Summary) {
	fmt.Fprintf(w, "\n%s\n%sSOAK TEST ANALYSIS\n%s\n", rule, strings.Repeat(" ", 26), rule)
	fmt.Fprintf(w, "Total Requests: %d\n", s.TotalRequests)
	fmt.Fprintf(w, "Error Rate: %.2f%%\n", s.ErrorRate*100)

	fmt.Fprintf(w, "\nResponse Time Analysis:\n")
	fmt.Fprintf(w, "  Minimum:  %.2fms\n", s.MinMs)
	fmt.Fprintf(w, "  Average:  %.2fms\n", s.AvgMs)
	fmt.Fprintf(w, "  P95:      %.2fms\n", s.P95Ms)
	fmt.Fprintf(w, "  Maximum:  %.2fms\n", s.MaxMs)
	fmt.Fprintf(w, "  Range:    %.2fms (%.1f%% increase)\n", s.RangeMs, s.DegradationPct)

	if s.BaselineMs != nil {
		fmt.Fprintf(w, "\nBaseline: %.2fms | Degradation p95: %.2fms | Leak flags: %d (%.2f%%)\n",
			*s.BaselineMs, s.Degradation.P95, s.LeakFlags, s.LeakRate*100)
	} else {
		fmt.Fprintf(w, "\nBaseline: not established (no successful response)\n")
	}

	if len(s.Phases) > 0 {
		fmt.Fprintf(w, "\nBy Phase:\n")
		for _, p := range s.Phases {
			fmt.Fprintf(w, "  %-10s reqs=%-8d avg=%8.2fms p95=%8.2fms max=%8.2fms\n",
				p.Phase, p.Requests, p.AvgMs, p.P95Ms, p.MaxMs)
		}
	}

	if len(s.Thresholds) > 0 {
		fmt.Fprintf(w, "\nThresholds:\n")
		for _, t := range s.Thresholds {
			mark := styles.Success.Render("✓")
			if !t.Passed {
				mark = styles.Error.Render("✗")
			}
			obs := fmt.Sprintf("%.4g", t.Observed)
			if t.NoData {
				obs = "no data"
			}
			fmt.Fprintf(w, "  %s %-40s %-12s %s\n", mark, t.Metric, t.Threshold, obs)
		}
	}

	if len(s.Errors) > 0 {
		fmt.Fprintf(w, "\n❌ FAILURE SUMMARY\n")
		keys := make([]string, 0, len(s.Errors))
		for k := range s.Errors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "   %d x %s\n", s.Errors[k], k)
		}
	}

	fmt.Fprintf(w, "%s\n", rule)
	switch s.Verdict {
	case VerdictSignificant:
		fmt.Fprintln(w, styles.Error.Render("⚠️  "+string(s.Verdict)))
		fmt.Fprintln(w, "    Response times increased by >50% over test duration")
		fmt.Fprintln(w, "    Possible memory leak or resource exhaustion")
	case VerdictModerate:
		fmt.Fprintln(w, styles.Warn.Render("⚠️  "+string(s.Verdict)))
		fmt.Fprintln(w, "    Response times increased by >25% over test duration")
		fmt.Fprintln(w, "    Monitor for resource issues")
	case VerdictElevatedErrors:
		fmt.Fprintln(w, styles.Warn.Render("⚠️  "+string(s.Verdict)))
		fmt.Fprintln(w, "    Error rate above 5% - investigate stability issues")
	default:
		fmt.Fprintln(w, styles.Success.Render("✓ "+string(VerdictStable)))
		fmt.Fprintln(w, "  Response times remained relatively consistent")
		fmt.Fprintln(w, "  No significant degradation detected")
	}
	fmt.Fprintf(w, "%s\n\n", rule)
}
