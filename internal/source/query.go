package source

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/dshills/iati3w/internal/schema"
)

// DefaultPageSize is the number of activities requested per page.
const DefaultPageSize = 25

// Query holds the d-portal filters. Zero values leave a filter unset,
// except PageSize which must be positive.
type Query struct {
	CountryCode  string
	Humanitarian bool
	YearMin      int
	YearMax      int
	StatusCode   string
	PageSize     int
}

// Validate reports a query that cannot be sent.
func (q Query) Validate() error {
	if q.PageSize <= 0 {
		return fmt.Errorf("page size must be > 0, got %d", q.PageSize)
	}
	if q.YearMin < 0 || q.YearMax < 0 {
		return fmt.Errorf("years must not be negative")
	}
	if q.YearMin != 0 && q.YearMax != 0 && q.YearMin > q.YearMax {
		return fmt.Errorf("year range %d-%d is inverted", q.YearMin, q.YearMax)
	}
	return nil
}

// Values encodes the query for the page starting at offset. A year range
// selects activities overlapping it: ending on or after 1 January of
// YearMin and starting on or before 31 December of YearMax, both expressed
// as days since 1970-01-01.
func (q Query) Values(offset int) url.Values {
	v := url.Values{}
	v.Set("select", "*")
	v.Set("from", "act,country,sector")
	v.Set("form", "xml")
	if q.CountryCode != "" {
		v.Set("country_code", q.CountryCode)
	}
	if q.Humanitarian {
		v.Set("*@humanitarian", "1")
	}
	if q.StatusCode != "" {
		v.Set("status_code", q.StatusCode)
	}
	if q.YearMin != 0 {
		v.Set("day_end_gteq", strconv.Itoa(epochDays(q.YearMin, time.January, 1)))
	}
	if q.YearMax != 0 {
		v.Set("day_start_lteq", strconv.Itoa(epochDays(q.YearMax, time.December, 31)))
	}
	v.Set("limit", strconv.Itoa(q.PageSize))
	v.Set("offset", strconv.Itoa(offset))
	return v
}

// Record returns the query as it is written into a report.
func (q Query) Record() *schema.Query {
	return &schema.Query{
		CountryCode:  q.CountryCode,
		Humanitarian: q.Humanitarian,
		YearMin:      q.YearMin,
		YearMax:      q.YearMax,
		StatusCode:   q.StatusCode,
		PageSize:     q.PageSize,
	}
}

func epochDays(year int, month time.Month, day int) int {
	return int(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
