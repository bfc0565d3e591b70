package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one sales row in typed form. It is what tests and
// programmatic callers hand to the aggregator instead of raw CSV text.
type Transaction struct {
	TransactionID string
	Date          time.Time
	CustomerID    string
	Gender        string
	Age           int
	Category      string
	Quantity      int
	PricePerUnit  decimal.Decimal
	TotalAmount   decimal.Decimal
}

type KPISet struct {
	Total decimal.Decimal `json:"total" yaml:"total"`
	Mean  decimal.Decimal `json:"mean" yaml:"mean"`
	Max   decimal.Decimal `json:"max" yaml:"max"`
	Min   decimal.Decimal `json:"min" yaml:"min"`
	Count int             `json:"count" yaml:"count"`
}

type MonthlyTotal struct {
	YearMonth   time.Time       `json:"year_month" yaml:"year_month"`
	TotalAmount decimal.Decimal `json:"total_amount" yaml:"total_amount"`
}

type MonthlyRevenue struct {
	Year    int             `json:"year" yaml:"year"`
	Month   int             `json:"month" yaml:"month"`
	Revenue decimal.Decimal `json:"revenue" yaml:"revenue"`
}

type CategoryRank struct {
	Category string          `json:"category" yaml:"category"`
	Value    decimal.Decimal `json:"value" yaml:"value"`
}

type GenderTotal struct {
	Gender      string          `json:"gender" yaml:"gender"`
	TotalAmount decimal.Decimal `json:"total_amount" yaml:"total_amount"`
}

// PivotMatrix is dense: Cells[i][j] holds the total for Categories[i] in
// Months[j], zero when no transaction falls in that combination.
type PivotMatrix struct {
	Categories []string            `json:"categories" yaml:"categories"`
	Months     []time.Time         `json:"months" yaml:"months"`
	Cells      [][]decimal.Decimal `json:"cells" yaml:"cells"`
}

type HistogramBin struct {
	Lower decimal.Decimal `json:"lower" yaml:"lower"`
	Upper decimal.Decimal `json:"upper" yaml:"upper"`
	Count int             `json:"count" yaml:"count"`
}

// ScatterPoint is one transaction in the Quantity vs Total Amount chart.
type ScatterPoint struct {
	Quantity    int64           `json:"quantity" yaml:"quantity"`
	TotalAmount decimal.Decimal `json:"total_amount" yaml:"total_amount"`
}

type CategoryDistribution struct {
	Category string          `json:"category" yaml:"category"`
	Min      decimal.Decimal `json:"min" yaml:"min"`
	Q1       decimal.Decimal `json:"q1" yaml:"q1"`
	Median   decimal.Decimal `json:"median" yaml:"median"`
	Q3       decimal.Decimal `json:"q3" yaml:"q3"`
	Max      decimal.Decimal `json:"max" yaml:"max"`
	Count    int             `json:"count" yaml:"count"`
}

// Facets describe the whole table regardless of filters and feed the
// filter widgets.
type Facets struct {
	Years      []int      `json:"years" yaml:"years"`
	Categories []string   `json:"categories" yaml:"categories"`
	FirstDate  *time.Time `json:"first_date,omitempty" yaml:"first_date,omitempty"`
	LastDate   *time.Time `json:"last_date,omitempty" yaml:"last_date,omitempty"`
}

type Summary struct {
	RankedBy       string                 `json:"ranked_by" yaml:"ranked_by"`
	RowCount       int                    `json:"row_count" yaml:"row_count"`
	KPIs           KPISet                 `json:"kpis" yaml:"kpis"`
	MonthlyTotals  []MonthlyTotal         `json:"monthly_totals" yaml:"monthly_totals"`
	MonthlyRevenue []MonthlyRevenue       `json:"monthly_revenue" yaml:"monthly_revenue"`
	Categories     []CategoryRank         `json:"categories" yaml:"categories"`
	Pivot          PivotMatrix            `json:"pivot" yaml:"pivot"`
	Gender         []GenderTotal          `json:"gender" yaml:"gender"`
	Histogram      []HistogramBin         `json:"histogram" yaml:"histogram"`
	Distribution   []CategoryDistribution `json:"distribution" yaml:"distribution"`
	Scatter        []ScatterPoint         `json:"scatter" yaml:"scatter"`
	Facets         Facets                 `json:"facets" yaml:"facets"`
}
