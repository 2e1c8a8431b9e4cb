// Package report renders review-queue views as CSV or XLSX.
package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/drylogs/internal/cost"
	"github.com/sells-group/drylogs/internal/engine"
	"github.com/sells-group/drylogs/internal/priority"
)

// Table is a named grid of display strings.
type Table struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// Builder formats engine views for people.
type Builder struct {
	money *cost.Calculator
	title cases.Caser
}

// NewBuilder creates a Builder for the given locale.
func NewBuilder(tag language.Tag) *Builder {
	return &Builder{money: cost.NewCalculator(tag), title: cases.Title(tag)}
}

// Queue tabulates the review queue in the order given.
func (b *Builder) Queue(items []engine.QueueItem) Table {
	t := Table{
		Name:    "Review Queue",
		Headers: []string{"Rank", "Job", "Customer", "Status", "Score", "Urgency", "Open Flags", "Highest Severity", "Estimate", "Affected Area", "Reasons"},
	}
	for i, it := range items {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(i + 1),
			it.JobID,
			it.CustomerName,
			string(it.JobStatus),
			strconv.Itoa(it.Score),
			b.label(string(it.Urgency)),
			strconv.Itoa(it.OpenFlags),
			b.label(string(it.Highest)),
			b.money.Money(it.EstimatedTotal),
			b.money.SqFt(it.AffectedSqFt),
			it.Reason,
		})
	}
	return t
}

// Bottlenecks tabulates the bottleneck roll-up.
func (b *Builder) Bottlenecks(bs []priority.Bottleneck) Table {
	t := Table{
		Name:    "Bottlenecks",
		Headers: []string{"Bottleneck", "Jobs", "Average Days", "Job IDs"},
	}
	for _, bn := range bs {
		t.Rows = append(t.Rows, []string{
			b.label(string(bn.Type)),
			strconv.Itoa(bn.Count),
			strconv.Itoa(bn.AverageDays),
			strings.Join(bn.Jobs, " "),
		})
	}
	return t
}

// Analytics tabulates the review analytics as metric/value pairs followed
// by the top issues.
func (b *Builder) Analytics(a priority.Analytics) Table {
	t := Table{
		Name:    "Analytics",
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Total Jobs", strconv.Itoa(a.TotalJobs)},
			{"Average Days To Approval", strconv.Itoa(a.AverageTimeToApproval)},
			{"Approval Rate", strconv.Itoa(a.ApprovalRate) + "%"},
			{"Documentation Completeness", strconv.Itoa(a.DocumentationCompleteness) + "%"},
			{"Red Flag Rate", strconv.Itoa(a.RedFlagRate) + "%"},
		},
	}
	for _, issue := range a.TopIssues {
		t.Rows = append(t.Rows, []string{"Issue: " + b.label(issue.Issue), strconv.Itoa(issue.Count)})
	}
	return t
}

// label turns "external-response-delay" into "External Response Delay".
func (b *Builder) label(s string) string {
	if s == "" {
		return ""
	}
	return b.title.String(strings.ReplaceAll(s, "-", " "))
}

// WriteCSV writes t with its header row.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return eris.Wrap(err, "report: write csv rows")
	}
	return nil
}

// WriteXLSX writes one sheet per table. Numeric columns stay numeric.
func WriteXLSX(w io.Writer, tables ...Table) error {
	if len(tables) == 0 {
		return eris.New("report: no tables to write")
	}
	f := xlsx.NewFile()
	for _, t := range tables {
		sheet, err := f.AddSheet(sheetName(t.Name))
		if err != nil {
			return eris.Wrapf(err, "report: add sheet %q", t.Name)
		}
		header := sheet.AddRow()
		for _, h := range t.Headers {
			cell := header.AddCell()
			cell.SetString(h)
			cell.GetStyle().Font.Bold = true
		}
		for _, r := range t.Rows {
			row := sheet.AddRow()
			for _, v := range r {
				cell := row.AddCell()
				if n, err := strconv.Atoi(v); err == nil {
					cell.SetInt(n)
					continue
				}
				cell.SetString(v)
			}
		}
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write xlsx")
	}
	return nil
}

// sheetName trims to the 31 characters Excel allows.
func sheetName(name string) string {
	if name == "" {
		name = "Sheet1"
	}
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
