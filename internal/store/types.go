package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
)

// Date is a nullable calendar date stored as DATE (postgres) or TEXT (sqlite).
type Date struct {
	Time  time.Time
	Valid bool
}

// NewDate builds a valid date at UTC midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Valid: true}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

func (d *Date) Scan(src any) error {
	t, ok, err := parseTimeValue(src, dateLayout)
	if err != nil {
		return fmt.Errorf("scan date: %w", err)
	}
	if !ok {
		*d = Date{}
		return nil
	}
	*d = DateOf(t)
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if !d.Valid {
		return nil, nil
	}
	return d.Time.Format(dateLayout), nil
}

func (d Date) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(dateLayout)
}

// Before reports whether d is strictly before o; invalid dates are never before.
func (d Date) Before(o Date) bool {
	return d.Valid && o.Valid && d.Time.Before(o.Time)
}

// DaysUntil is the whole number of days from d to o.
func (d Date) DaysUntil(o Date) int {
	return int(o.Time.Sub(d.Time).Hours() / 24)
}

// AddDays shifts a valid date.
func (d Date) AddDays(n int) Date {
	if !d.Valid {
		return d
	}
	return Date{Time: d.Time.AddDate(0, 0, n), Valid: true}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.Time.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return err
	}
	*d = DateOf(t)
	return nil
}

// Timestamp is a UTC point in time stored without zone information.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// NewTimestamp wraps t, normalised to UTC with second precision.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Second), Valid: true}
}

func (ts *Timestamp) Scan(src any) error {
	t, ok, err := parseTimeValue(src, timestampLayout)
	if err != nil {
		return fmt.Errorf("scan timestamp: %w", err)
	}
	if !ok {
		*ts = Timestamp{}
		return nil
	}
	*ts = NewTimestamp(t)
	return nil
}

func (ts Timestamp) Value() (driver.Value, error) {
	if !ts.Valid {
		return nil, nil
	}
	return ts.Time.UTC().Format(timestampLayout), nil
}

// Date returns the calendar day of ts.
func (ts Timestamp) Date() Date {
	if !ts.Valid {
		return Date{}
	}
	return DateOf(ts.Time)
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if !ts.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(ts.Time.UTC().Format(time.RFC3339))
}

var textLayouts = []string{
	timestampLayout,
	dateLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05",
}

func parseTimeValue(src any, preferred string) (time.Time, bool, error) {
	switch v := src.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return v, true, nil
	case []byte:
		return parseTimeText(string(v), preferred)
	case string:
		return parseTimeText(v, preferred)
	default:
		return time.Time{}, false, fmt.Errorf("unsupported type %T", src)
	}
}

func parseTimeText(s, preferred string) (time.Time, bool, error) {
	if s == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.Parse(preferred, s); err == nil {
		return t, true, nil
	}
	for _, layout := range textLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognised time %q", s)
}
