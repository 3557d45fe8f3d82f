package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"soakq/internal/runner"
)

// ExportCSV exports results to a JMeter-compatible CSV file.
// Schema: timeStamp,elapsed,label,responseCode,responseMessage,threadName,dataType,success,failureMessage,bytes,URL,phase,degradation
func ExportCSV(results []runner.ExperimentResult, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{
		"timeStamp", "elapsed", "label", "responseCode", "responseMessage",
		"threadName", "dataType", "success", "failureMessage", "bytes",
		"URL", "phase", "degradation",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, res := range results {
		degradation := ""
		if res.DegradationMs != nil {
			degradation = strconv.FormatFloat(*res.DegradationMs, 'f', 3, 64)
		}

		record := []string{
			strconv.FormatInt(res.TimeStamp.UnixMilli(), 10),
			strconv.FormatInt(res.Latency.Milliseconds(), 10),
			res.Endpoint, // Label
			strconv.Itoa(res.Status),
			http.StatusText(res.Status),
			fmt.Sprintf("VU %d", res.VU), // Thread Name
			"text",
			strconv.FormatBool(res.Success),
			res.Err,
			strconv.FormatInt(res.Bytes, 10),
			res.URL,
			res.Phase.String(),
			degradation,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// ExportJSON writes the summary as indented JSON.
func ExportJSON(s Summary, filename string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
