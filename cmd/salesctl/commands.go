package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sales-dashboard/internal/export"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/sales"
)

func newValidateCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that a CSV file has the required columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rf.load(cmd, sales.Options{})
			if err != nil {
				return err
			}

			stats := a.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok, %v rows, %v with unparseable values\n",
				filepath.Base(fmt.Sprint(stats["source"])), stats["record_count"], stats["rows_with_issues"])
			return nil
		},
	}
}

func newSummarizeCmd(rf *rootFlags) *cobra.Command {
	ff := &filterFlags{}
	var output string

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Print the sales summary as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "json" && output != "yaml" {
				return fmt.Errorf("output must be json or yaml, got %q", output)
			}

			a, f, err := summarize(cmd, rf, ff)
			if err != nil {
				return err
			}
			s, err := a.Summarize(cmd.Context(), f)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output == "yaml" {
				enc := yaml.NewEncoder(w)
				enc.SetIndent(2)
				if err := enc.Encode(s); err != nil {
					return fmt.Errorf("encode yaml: %w", err)
				}
				return enc.Close()
			}

			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		},
	}

	ff.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format (json or yaml)")
	return cmd
}

func newExportCmd(rf *rootFlags) *cobra.Command {
	ff := &filterFlags{}
	var (
		table  string
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a summary table as CSV, or every table as an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "csv" && format != "xlsx" {
				return fmt.Errorf("format must be csv or xlsx, got %q", format)
			}
			name, err := export.ParseTableName(table)
			if err != nil {
				return err
			}

			a, f, err := summarize(cmd, rf, ff)
			if err != nil {
				return err
			}
			s, err := a.Summarize(cmd.Context(), f)
			if err != nil {
				return err
			}

			if out == "" {
				return write(cmd.OutOrStdout(), format, name, s)
			}
			if err := writeFile(out, format, name, s); err != nil {
				return err
			}
			rf.logger(cmd).Info("export written", "table", name, "format", format, "path", out)
			return nil
		},
	}

	ff.register(cmd)
	cmd.Flags().StringVarP(&table, "table", "t", string(export.TableMonthly), "Table to export")
	cmd.Flags().StringVar(&format, "format", "csv", "Export format (csv or xlsx)")
	cmd.Flags().StringVar(&out, "out", "", "Output file (defaults to stdout)")
	return cmd
}

// writeFile reports a failed close, which can mean the export was
// truncated on disk.
func writeFile(path, format string, table export.TableName, s *models.Summary) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(file, format, table, s); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func write(w io.Writer, format string, table export.TableName, s *models.Summary) error {
	if format == "xlsx" {
		return export.WriteXLSX(w, s)
	}
	return export.WriteCSV(w, s, table)
}
