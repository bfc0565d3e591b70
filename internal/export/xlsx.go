package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"sales-dashboard/internal/models"
)

const (
	SheetKPIs           = "KPIs"
	SheetMonthly        = "Monthly"
	SheetMonthlyRevenue = "Monthly Revenue"
	SheetCategories     = "Categories"
	SheetGender         = "Gender"
	SheetPivot          = "Pivot"
)

// WriteXLSX writes every summary table into one workbook, a sheet per table.
func WriteXLSX(w io.Writer, s *models.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetKPIs); err != nil {
		return fmt.Errorf("rename default sheet: %w", err)
	}

	kpis := [][]any{{"Metric", "Value"}}
	for _, r := range kpiRows(s.KPIs) {
		kpis = append(kpis, []any{r.Metric, r.Value})
	}

	monthly := [][]any{{"Year_Month", "Total Amount"}}
	for _, m := range s.MonthlyTotals {
		monthly = append(monthly, []any{m.YearMonth.Format(monthLayout), m.TotalAmount.InexactFloat64()})
	}

	revenue := [][]any{{"Year", "Month", "Revenue"}}
	for _, m := range s.MonthlyRevenue {
		revenue = append(revenue, []any{m.Year, m.Month, m.Revenue.InexactFloat64()})
	}

	valueHeader := "Quantity"
	if s.RankedBy == "revenue" {
		valueHeader = "Revenue"
	}
	categories := [][]any{{"Product Category", valueHeader}}
	for _, c := range s.Categories {
		categories = append(categories, []any{c.Category, c.Value.InexactFloat64()})
	}

	gender := [][]any{{"Gender", "Total Amount"}}
	for _, g := range s.Gender {
		gender = append(gender, []any{g.Gender, g.TotalAmount.InexactFloat64()})
	}

	pivotHeader := []any{"Product Category"}
	for _, m := range s.Pivot.Months {
		pivotHeader = append(pivotHeader, m.Format(monthLayout))
	}
	pivot := [][]any{pivotHeader}
	for i, category := range s.Pivot.Categories {
		row := []any{category}
		for _, cell := range s.Pivot.Cells[i] {
			row = append(row, cell.InexactFloat64())
		}
		pivot = append(pivot, row)
	}

	sheets := []struct {
		name string
		rows [][]any
	}{
		{SheetKPIs, kpis},
		{SheetMonthly, monthly},
		{SheetMonthlyRevenue, revenue},
		{SheetCategories, categories},
		{SheetGender, gender},
		{SheetPivot, pivot},
	}
	for _, sheet := range sheets {
		if err := writeSheet(f, sheet.name, sheet.rows); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, rows [][]any) error {
	if idx, _ := f.GetSheetIndex(name); idx < 0 {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("write sheet %s row %d: %w", name, i+1, err)
		}
	}
	return nil
}
