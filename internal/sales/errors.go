package sales

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrSourceNotFound = errors.New("source not found")
	// ErrNoData is returned by consumers asked to summarize before any
	// dataset has been loaded.
	ErrNoData = errors.New("no dataset loaded")
)

// SourceError reports a data source that does not exist or cannot be read.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("open source %q: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func (e *SourceError) Is(target error) bool {
	return target == ErrSourceNotFound
}

// SchemaError lists required columns absent from the header. It is fatal
// for the whole dataset.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// RangeError rejects a date range whose start is after its end.
type RangeError struct {
	Start time.Time
	End   time.Time
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid date range: start %s is after end %s",
		e.Start.Format(DateLayout), e.End.Format(DateLayout))
}
