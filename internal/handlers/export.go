package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/export"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// HandleExport downloads the {table} summary table as CSV. With
// format=xlsx the workbook holds every table, one sheet each.
func (h *APIHandlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if err := validate.Var(format, "oneof=csv xlsx"); err != nil {
		h.writeError(w, r, errors.ValidationWrap(err, "format must be csv or xlsx"))
		return
	}

	table, err := export.ParseTableName(chi.URLParam(r, "table"))
	if err != nil {
		h.writeError(w, r, errors.NotFound(err.Error()))
		return
	}

	s, ok := h.summarize(w, r)
	if !ok {
		return
	}

	var (
		buf         bytes.Buffer
		filename    string
		contentType string
	)
	switch format {
	case "xlsx":
		err = export.WriteXLSX(&buf, s)
		filename, contentType = "sales_summary.xlsx", contentTypeXLSX
	default:
		err = export.WriteCSV(&buf, s, table)
		filename, contentType = export.FileName(table, "csv"), contentTypeCSV
	}
	if err != nil {
		h.writeError(w, r, errors.Wrap(err, errors.CodeInternal, "Export failed"))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("export write interrupted", "table", table, "error", err)
	}
}
