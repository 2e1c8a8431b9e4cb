package main

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/drylogs/internal/model"
	"github.com/sells-group/drylogs/internal/report"
)

func TestReadJobs(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantIDs []string
		wantErr string
	}{
		{"array", `[{"jobId":"a"},{"jobId":"b"}]`, []string{"a", "b"}, ""},
		{"single object", `{"jobId":"a"}`, []string{"a"}, ""},
		{"one per line", "{\"jobId\":\"a\"}\n{\"jobId\":\"b\"}\n", []string{"a", "b"}, ""},
		{"empty", "  \n", nil, "no jobs in input"},
		{"bad array", `[{"jobId":}]`, nil, "decode job array"},
		{"bad line", "{\"jobId\":\"a\"}\n{oops}\n", nil, "decode job 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := readJobs(strings.NewReader(tt.input))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			ids := make([]string, len(jobs))
			for i, j := range jobs {
				ids[i] = j.JobID
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func sampleTable() report.Table {
	return report.Table{
		Name:    "Bottlenecks",
		Headers: []string{"Bottleneck", "Jobs"},
		Rows:    [][]string{{"Phase Aging", "3"}},
	}
}

func TestRenderReport(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderReport(&buf, formatTable, sampleTable(), nil))
		out := buf.String()
		assert.Contains(t, out, "BOTTLENECK")
		assert.Contains(t, out, "Phase Aging")
	})

	t.Run("empty table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderReport(&buf, formatTable, report.Table{Name: "Review Queue"}, nil))
		assert.Equal(t, "No rows for review queue.\n", buf.String())
	})

	t.Run("json uses raw value", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderReport(&buf, formatJSON, sampleTable(), map[string]int{"count": 3}))
		assert.JSONEq(t, `{"count":3}`, buf.String())
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderReport(&buf, formatCSV, sampleTable(), nil))
		records, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"Bottleneck", "Jobs"}, {"Phase Aging", "3"}}, records)
	})

	t.Run("xlsx", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderReport(&buf, formatXLSX, sampleTable(), nil))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("PK")))
	})

	t.Run("unknown", func(t *testing.T) {
		err := renderReport(&bytes.Buffer{}, "yaml", sampleTable(), nil)
		assert.ErrorContains(t, err, `unknown format "yaml"`)
	})
}

func TestPrintFlags(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printFlags(&buf, nil))
	assert.Equal(t, "No red flags.\n", buf.String())

	buf.Reset()
	require.NoError(t, printFlags(&buf, []model.RedFlag{{
		ID: "f1", Type: model.FlagCostOverrun, Severity: model.SeverityHigh, Description: "Cost overrun detected",
	}}))
	assert.Contains(t, buf.String(), "cost-overrun")
	assert.Contains(t, buf.String(), "Cost overrun detected")

	buf.Reset()
	require.NoError(t, printFlags(&buf, []model.RedFlag{
		{ID: "f1", Type: model.FlagMissingPhotos, Severity: model.SeverityMedium},
		{ID: "f2", Type: model.FlagEquipmentVariance, Severity: model.SeverityCritical},
		{ID: "f3", Type: model.FlagCostOverrun, Severity: model.SeverityHigh},
	}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "f2"))
	assert.True(t, strings.HasPrefix(lines[2], "f3"))
	assert.True(t, strings.HasPrefix(lines[3], "f1"))
}
