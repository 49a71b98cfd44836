package periods

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/odyssey-erp/retail-ledger/internal/accounting/shared"
)

// PeriodStatus enumerates valid ledger period states.
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "OPEN"
	PeriodStatusClosed PeriodStatus = "CLOSED"
)

const (
	minYear = 2000
	maxYear = 2100
)

var periodPattern = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

// Period is a calendar month, the unit of accumulation and regulatory reporting.
type Period struct {
	Year  int
	Month time.Month
}

// Parse validates a YYYY-MM string.
func Parse(raw string) (Period, error) {
	if raw == "" {
		return Period{}, fmt.Errorf("%w: period required", shared.ErrInvalidPeriod)
	}
	m := periodPattern.FindStringSubmatch(raw)
	if m == nil {
		return Period{}, fmt.Errorf("%w: %q does not match YYYY-MM", shared.ErrInvalidPeriod, raw)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if year < minYear || year > maxYear {
		return Period{}, fmt.Errorf("%w: year %d outside %d-%d", shared.ErrInvalidPeriod, year, minYear, maxYear)
	}
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: month %d outside 1-12", shared.ErrInvalidPeriod, month)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// FromDate returns the period containing t.
func FromDate(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// String renders YYYY-MM.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Bounds returns the first and last calendar day of the month (UTC midnight).
func (p Period) Bounds() (time.Time, time.Time) {
	first := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first, last
}

// Previous returns the month before p.
func (p Period) Previous() Period {
	first, _ := p.Bounds()
	return FromDate(first.AddDate(0, -1, 0))
}

// ValidateTransition checks status changes of a ledger period.
func ValidateTransition(current, target PeriodStatus) error {
	if current == target {
		return fmt.Errorf("%w: period already %s", shared.ErrInvalidStatus, current)
	}
	switch current {
	case PeriodStatusOpen:
		if target == PeriodStatusClosed {
			return nil
		}
	case PeriodStatusClosed:
		if target == PeriodStatusOpen {
			return nil
		}
	}
	return fmt.Errorf("%w: %s to %s", shared.ErrInvalidStatus, current, target)
}
