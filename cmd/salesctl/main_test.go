package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"sales-dashboard/internal/sales"
)

const fixture = "../../internal/sales/testdata/retail_sales.csv"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_Metadata(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "salesctl", cmd.Use)
	assert.True(t, cmd.SilenceUsage)

	names := make([]string, 0, len(cmd.Commands()))
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"validate", "summarize", "export"}, names)

	file := cmd.PersistentFlags().Lookup("file")
	require.NotNil(t, file)
	assert.Equal(t, "f", file.Shorthand)
}

func TestValidate(t *testing.T) {
	out, err := run(t, "validate", "--file", fixture)
	require.NoError(t, err)
	assert.Equal(t, "retail_sales.csv: ok, 20 rows, 0 with unparseable values\n", out)
}

func TestValidate_Failures(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("Date,Quantity\n2024-01-05,2\n"), 0o600))

	_, err := run(t, "validate", "--file", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Total Amount, Product Category")

	_, err = run(t, "validate", "--file", filepath.Join(dir, "absent.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, sales.ErrSourceNotFound)
	assert.Contains(t, err.Error(), "absent.csv")
}

func TestSummarize_JSON(t *testing.T) {
	out, err := run(t, "summarize", "--file", fixture, "--year", "2024")
	require.NoError(t, err)

	var s struct {
		RowCount int    `json:"row_count"`
		RankedBy string `json:"ranked_by"`
		KPIs     struct {
			Total string `json:"total"`
		} `json:"kpis"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 1, s.RowCount)
	assert.Equal(t, "900", s.KPIs.Total)
	assert.Equal(t, "quantity", s.RankedBy)
}

func TestSummarize_YAML(t *testing.T) {
	out, err := run(t, "summarize", "--file", fixture, "--rank", "revenue", "--output", "yaml")
	require.NoError(t, err)

	var s struct {
		RowCount int    `yaml:"row_count"`
		RankedBy string `yaml:"ranked_by"`
		KPIs     struct {
			Total string `yaml:"total"`
		} `yaml:"kpis"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &s))
	assert.Equal(t, 20, s.RowCount)
	assert.Equal(t, "revenue", s.RankedBy)
	assert.Equal(t, "9155", s.KPIs.Total)
}

func TestSummarize_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"output", []string{"--output", "xml"}, "output must be json or yaml"},
		{"rank", []string{"--rank", "price"}, "price"},
		{"bins", []string{"--bins", "0"}, "bins must be positive"},
		{"start", []string{"--start", "2024/01/01"}, "invalid --start"},
		{"reversed range", []string{"--start", "2023-05-01", "--end", "2023-04-01"}, "2023-05-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append([]string{"summarize", "--file", fixture}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExport(t *testing.T) {
	out, err := run(t, "export", "--file", fixture, "--table", "monthly", "--year", "2024")
	require.NoError(t, err)
	assert.Equal(t, "Year_Month,Total Amount\n2024-01-01,900.00\n", out)

	_, err = run(t, "export", "--file", fixture, "--table", "regions")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown table "regions"`)
}

func TestExport_XLSXToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.xlsx")
	out, err := run(t, "export", "--file", fixture, "--format", "xlsx", "--out", path)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("PK")))
}

func TestExport_ReportsWriteFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "summary.csv")
	_, err := run(t, "export", "--file", fixture, "--out", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create")
}

func TestWriteFile_ClosesAndReportsErrors(t *testing.T) {
	a, f, err := summarize(newRootCmd(), &rootFlags{File: fixture}, &filterFlags{Rank: "quantity", Bins: 10, Year: 2024})
	require.NoError(t, err)
	s, err := a.Summarize(context.Background(), f)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "monthly.csv")
	require.NoError(t, writeFile(path, "csv", "monthly", s))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Year_Month,Total Amount\n2024-01-01,900.00\n", string(data))

	err = writeFile(path, "csv", "regions", s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "regions")
}
