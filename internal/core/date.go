package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day with no time-of-day component.
// It marshals to and from the YYYY-MM-DD form used across the store and API.
type Date struct {
	time.Time
}

// NewDate creates a Date from year, month, day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today truncates t to its calendar day.
func Today(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Before reports whether d falls strictly before other.
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }

// After reports whether d falls strictly after other.
func (d Date) After(other Date) bool { return d.Time.After(other.Time) }

// Equal reports whether d and other are the same day.
func (d Date) Equal(other Date) bool { return d.Time.Equal(other.Time) }

// YearMonth returns the calendar month d falls in.
func (d Date) YearMonth() YearMonth {
	return YearMonth{Year: d.Year(), Month: d.Month()}
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// YearMonth is a comparable calendar month. It replaces raw YYYY-MM string
// comparison for the recurring-expense generation marker.
type YearMonth struct {
	Year  int
	Month time.Month
}

// ParseYearMonth parses a YYYY-MM string. The empty string parses to the
// zero YearMonth, meaning "never".
func ParseYearMonth(s string) (YearMonth, error) {
	if s == "" {
		return YearMonth{}, nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return YearMonth{}, fmt.Errorf("parse year-month %q: %w", s, err)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) IsZero() bool {
	return ym.Year == 0 && ym.Month == 0
}

func (ym YearMonth) String() string {
	if ym.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Compare returns -1, 0 or +1 ordering ym against other chronologically.
func (ym YearMonth) Compare(other YearMonth) int {
	switch {
	case ym.Year != other.Year:
		if ym.Year < other.Year {
			return -1
		}
		return 1
	case ym.Month != other.Month:
		if ym.Month < other.Month {
			return -1
		}
		return 1
	default:
		return 0
	}
}

func (ym YearMonth) Before(other YearMonth) bool { return ym.Compare(other) < 0 }

func (ym YearMonth) MarshalJSON() ([]byte, error) {
	return json.Marshal(ym.String())
}

func (ym *YearMonth) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseYearMonth(s)
	if err != nil {
		return err
	}
	*ym = parsed
	return nil
}

// YearRange returns the first and last days of a calendar year.
func YearRange(year int) (start, end Date) {
	return NewDate(year, time.January, 1), NewDate(year, time.December, 31)
}
