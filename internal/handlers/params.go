package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/sales"
)

const (
	defaultRowLimit = 100
	maxRowLimit     = 1000
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// filterQuery is the filter part of every summary request, as sent by the
// JSON API query string or the dashboard signals.
type filterQuery struct {
	Year     string `json:"year" validate:"omitempty,number,len=4"`
	Start    string `json:"start" validate:"omitempty,datetime=2006-01-02"`
	End      string `json:"end" validate:"omitempty,datetime=2006-01-02"`
	Category string `json:"category" validate:"omitempty,max=128"`
	Rank     string `json:"rank" validate:"omitempty,oneof=quantity revenue"`
}

type pageQuery struct {
	Limit  string `validate:"omitempty,number"`
	Offset string `validate:"omitempty,number"`
}

func filterFromQuery(r *http.Request) (filterQuery, error) {
	q := r.URL.Query()
	fq := filterQuery{
		Year:     strings.TrimSpace(q.Get("year")),
		Start:    strings.TrimSpace(q.Get("start")),
		End:      strings.TrimSpace(q.Get("end")),
		Category: strings.TrimSpace(q.Get("category")),
		Rank:     strings.ToLower(strings.TrimSpace(q.Get("rank"))),
	}
	if err := validate.Struct(fq); err != nil {
		return filterQuery{}, errors.ValidationWrap(err, "Invalid filter parameters")
	}
	return fq, nil
}

// Filter converts the validated query into a sales filter. A range with a
// single bound is open on the other side.
func (fq filterQuery) Filter() (sales.Filter, error) {
	var f sales.Filter

	if fq.Year != "" {
		year, err := strconv.Atoi(fq.Year)
		if err != nil {
			return f, errors.ValidationWrap(err, "Invalid year")
		}
		f = f.WithYear(year)
	}

	if fq.Start != "" || fq.End != "" {
		start := time.Time{}
		end := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
		var err error
		if fq.Start != "" {
			if start, err = sales.ParseDay(fq.Start); err != nil {
				return f, errors.ValidationWrap(err, "Invalid start date")
			}
		}
		if fq.End != "" {
			if end, err = sales.ParseDay(fq.End); err != nil {
				return f, errors.ValidationWrap(err, "Invalid end date")
			}
		}
		f = f.WithDateRange(start, end)
	}

	if fq.Category != "" {
		f = f.WithCategory(fq.Category)
	}
	return f, nil
}

func (fq filterQuery) RankKey() (sales.RankKey, bool) {
	if fq.Rank == "" {
		return "", false
	}
	key, err := sales.ParseRankKey(fq.Rank)
	return key, err == nil
}

// parsePage reads offset and limit. The limit defaults to defaultRowLimit
// and is capped at maxRowLimit.
func parsePage(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	pq := pageQuery{Limit: q.Get("limit"), Offset: q.Get("offset")}
	if err := validate.Struct(pq); err != nil {
		return 0, 0, errors.ValidationWrap(err, "Invalid paging parameters")
	}

	limit = defaultRowLimit
	if pq.Limit != "" {
		if limit, err = strconv.Atoi(pq.Limit); err != nil {
			return 0, 0, errors.ValidationWrap(err, "Invalid limit")
		}
	}
	if pq.Offset != "" {
		if offset, err = strconv.Atoi(pq.Offset); err != nil {
			return 0, 0, errors.ValidationWrap(err, "Invalid offset")
		}
	}
	if limit <= 0 || limit > maxRowLimit {
		return 0, 0, errors.Validation(fmt.Sprintf("limit must be between 1 and %d", maxRowLimit))
	}
	return offset, limit, nil
}

// parseLimit reads an optional positive limit. Zero means no limit.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	if err := validate.Var(raw, "number"); err != nil {
		return 0, errors.ValidationWrap(err, "Invalid limit")
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, errors.Validation("limit must be a non-negative integer")
	}
	return limit, nil
}
