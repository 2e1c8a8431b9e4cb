package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"

	"github.com/sells-group/drylogs/internal/model"
	"github.com/sells-group/drylogs/internal/redflag"
	"github.com/sells-group/drylogs/internal/report"
)

// Output formats accepted by --format.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
	formatXLSX  = "xlsx"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newReportBuilder() *report.Builder {
	return report.NewBuilder(language.AmericanEnglish)
}

// writeReport renders t in format to outPath, or stdout when outPath is
// empty. raw is what json prints.
func writeReport(format, outPath string, t report.Table, raw any) error {
	var w io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return eris.Wrapf(err, "create %s", outPath)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}
	return renderReport(w, format, t, raw)
}

func renderReport(w io.Writer, format string, t report.Table, raw any) error {
	switch format {
	case formatTable, "":
		return writeTabular(w, t)
	case formatJSON:
		return printJSON(w, raw)
	case formatCSV:
		return report.WriteCSV(w, t)
	case formatXLSX:
		return report.WriteXLSX(w, t)
	default:
		return eris.Errorf("unknown format %q (table, json, csv, xlsx)", format)
	}
}

func writeTabular(w io.Writer, t report.Table) error {
	if len(t.Rows) == 0 {
		fmt.Fprintf(w, "No rows for %s.\n", strings.ToLower(t.Name))
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(t.Headers, "\t")))
	for _, r := range t.Rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

func printFlags(w io.Writer, flags []model.RedFlag) error {
	if len(flags) == 0 {
		fmt.Fprintln(w, "No red flags.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSEVERITY\tRESOLVED\tDESCRIPTION")
	for _, f := range redflag.SortBySeverity(flags) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", f.ID, f.Type, f.Severity, f.Resolved, f.Description)
	}
	return tw.Flush()
}

// readJobs reads a JSON array of jobs, a single job object, or one job
// per line.
func readJobs(r io.Reader) ([]model.Job, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "read jobs")
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, eris.New("no jobs in input")
	}

	if trimmed[0] == '[' {
		var jobs []model.Job
		if err := json.Unmarshal(trimmed, &jobs); err != nil {
			return nil, eris.Wrap(err, "decode job array")
		}
		return jobs, nil
	}

	var jobs []model.Job
	dec := json.NewDecoder(bufio.NewReader(bytes.NewReader(trimmed)))
	for dec.More() {
		var j model.Job
		if err := dec.Decode(&j); err != nil {
			return nil, eris.Wrapf(err, "decode job %d", len(jobs)+1)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func readJobsFile(path string) ([]model.Job, error) {
	if path == "-" {
		return readJobs(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return readJobs(f)
}
