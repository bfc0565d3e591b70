package sales

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"sales-dashboard/internal/models"
)

const (
	ColDate        = "Date"
	ColQuantity    = "Quantity"
	ColTotalAmount = "Total Amount"
	ColCategory    = "Product Category"
	ColGender      = "Gender"

	ColRevenue   = "Revenue"
	ColYear      = "Year"
	ColMonth     = "Month"
	ColYearMonth = "Year_Month"

	DateLayout = "2006-01-02"

	// IssueExtraCells marks a row that had more cells than the header. The
	// surplus cells are not part of the table.
	IssueExtraCells = "extra cells"
)

// RequiredColumns must all be present for a dataset to be usable.
var RequiredColumns = []string{ColDate, ColQuantity, ColTotalAmount, ColCategory}

var derivedColumns = []string{ColRevenue, ColYear, ColMonth, ColYearMonth}

const utf8BOM = "\ufeff"

// Table is an immutable tabular snapshot with named columns. Every row has
// exactly len(Columns()) cells.
type Table struct {
	columns []string
	rows    [][]string
	index   map[string]int
	extra   map[int]int // row -> cells dropped past the header width
}

// NewTable copies columns and rows into a new Table, padding or truncating
// rows to the header width. Truncated rows are remembered and reported as
// IssueExtraCells once derived.
func NewTable(columns []string, rows [][]string) *Table {
	t := &Table{
		columns: slices.Clone(columns),
		rows:    make([][]string, len(rows)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range t.columns {
		// first occurrence wins for duplicated headers
		if _, ok := t.index[c]; !ok {
			t.index[c] = i
		}
	}
	for i, r := range rows {
		if n := len(r) - len(columns); n > 0 {
			if t.extra == nil {
				t.extra = make(map[int]int)
			}
			t.extra[i] = n
		}
		t.rows[i] = normalizeRow(r, len(columns))
	}
	return t
}

func normalizeRow(r []string, width int) []string {
	row := make([]string, width)
	copy(row, r)
	return row
}

func (t *Table) Columns() []string { return slices.Clone(t.columns) }

func (t *Table) Len() int { return len(t.rows) }

// Row returns a copy of row i.
func (t *Table) Row(i int) []string { return slices.Clone(t.rows[i]) }

func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Cell returns the value at row i for column name, or "" if the column is
// absent.
func (t *Table) Cell(i int, name string) string {
	idx, ok := t.index[name]
	if !ok {
		return ""
	}
	return t.rows[i][idx]
}

// Load reads a CSV document with a header row.
func Load(ctx context.Context, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &SchemaError{Missing: slices.Clone(RequiredColumns)}
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record %d: %w", len(rows)+1, err)
		}
		rows = append(rows, record)
	}

	return NewTable(header, rows), nil
}

// Open loads the CSV file at path.
func Open(ctx context.Context, path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &SourceError{Source: path, Err: err}
	}
	defer file.Close()

	return Load(ctx, file)
}

// Validate returns t unchanged when every required column is present.
func Validate(t *Table) (*Table, error) {
	var missing []string
	for _, c := range RequiredColumns {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}
	return t, nil
}

// TableFromTransactions renders typed transactions into the CSV column
// layout the aggregator expects.
func TableFromTransactions(txs []models.Transaction) *Table {
	columns := []string{"Transaction ID", ColDate, "Customer ID", ColGender, "Age",
		ColCategory, ColQuantity, "Price per Unit", ColTotalAmount}

	rows := make([][]string, 0, len(txs))
	for _, tx := range txs {
		date := ""
		if !tx.Date.IsZero() {
			date = tx.Date.Format(DateLayout)
		}
		rows = append(rows, []string{
			tx.TransactionID,
			date,
			tx.CustomerID,
			tx.Gender,
			strconv.Itoa(tx.Age),
			tx.Category,
			strconv.Itoa(tx.Quantity),
			tx.PricePerUnit.String(),
			tx.TotalAmount.String(),
		})
	}
	return NewTable(columns, rows)
}
