package values

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bratushka/cypher/pkg/errdefs"
)

// unixEpochOrdinal is the proleptic Gregorian ordinal of 1970-01-01, with
// 0001-01-01 being day 1.
const unixEpochOrdinal = 719163

const secondsPerDay = 24 * 60 * 60

// CalendarDate is a calendar date without time of day or location.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a CalendarDate, normalizing overflowing months and days the way
// time.Date does.
func NewDate(year int, month time.Month, day int) CalendarDate {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) CalendarDate {
	y, m, d := t.Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

// DateFromOrdinal is the inverse of CalendarDate.Ordinal.
func DateFromOrdinal(n int64) CalendarDate {
	return DateOf(time.Unix((n-unixEpochOrdinal)*secondsPerDay, 0).UTC())
}

// Ordinal returns the proleptic Gregorian day number, 0001-01-01 being 1.
func (d CalendarDate) Ordinal() int64 {
	return d.Midnight().Unix()/secondsPerDay + unixEpochOrdinal
}

// Midnight returns the start of d in UTC.
func (d CalendarDate) Midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d CalendarDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d CalendarDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type dateType struct{}

func (dateType) Name() string      { return "Date" }
func (dateType) Accepts() []string { return []string{"values.CalendarDate", "time.Time"} }

func (dateType) Normalize(raw any) any {
	if t, ok := asTime(raw); ok {
		return DateOf(t)
	}
	if d, ok := raw.(*CalendarDate); ok && d != nil {
		return *d
	}
	return raw
}

func (t dateType) Validate(v any) error {
	if _, ok := v.(CalendarDate); !ok {
		return errdefs.TypeMismatch(v, "Date", t.Accepts()...)
	}
	return nil
}

func (t dateType) ToQueryLiteral(v any) (string, error) {
	v = t.Normalize(v)
	if err := t.Validate(v); err != nil {
		return "", err
	}
	return strconv.FormatInt(v.(CalendarDate).Ordinal(), 10), nil
}

func (dateType) FromQueryLiteral(text string) (any, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return nil, &errdefs.ConstraintError{Value: text, Reason: err.Error()}
	}
	if n < 1 {
		return nil, &errdefs.ConstraintError{Value: text, Reason: "Ordinals start at 1."}
	}
	return DateFromOrdinal(n), nil
}

// Rounding selects how sub-microsecond precision is dropped.
type Rounding int

const (
	// RoundNearest rounds to the closest microsecond, halves away from zero.
	RoundNearest Rounding = iota
	// RoundFloor truncates toward negative infinity.
	RoundFloor
)

// microsTolerance absorbs float noise in microsecond counts: 1000000.9999999999
// becomes 1000001 even when flooring.
const microsTolerance = 1e-3

// DateTimeType is serialized as integer microseconds since the Unix epoch.
type DateTimeType struct {
	Rounding Rounding
}

func (DateTimeType) Name() string      { return "DateTime" }
func (DateTimeType) Accepts() []string { return []string{"time.Time", "values.CalendarDate"} }

func (dt DateTimeType) Normalize(raw any) any {
	switch x := raw.(type) {
	case CalendarDate:
		return x.Midnight()
	case *CalendarDate:
		if x != nil {
			return x.Midnight()
		}
		return raw
	}
	if t, ok := asTime(raw); ok {
		return time.UnixMicro(dt.micros(t)).UTC()
	}
	return raw
}

func (dt DateTimeType) Validate(v any) error {
	if _, ok := v.(time.Time); !ok {
		return errdefs.TypeMismatch(v, "DateTime", dt.Accepts()...)
	}
	return nil
}

func (dt DateTimeType) ToQueryLiteral(v any) (string, error) {
	v = dt.Normalize(v)
	if err := dt.Validate(v); err != nil {
		return "", err
	}
	return strconv.FormatInt(v.(time.Time).UnixMicro(), 10), nil
}

// FromQueryLiteral accepts integer microseconds and, for data written by
// older clients, float seconds.
func (dt DateTimeType) FromQueryLiteral(text string) (any, error) {
	text = strings.TrimSpace(text)
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return time.UnixMicro(n).UTC(), nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, &errdefs.ConstraintError{Value: text, Reason: err.Error()}
	}
	return time.UnixMicro(RoundMicros(f*1e6, dt.Rounding)).UTC(), nil
}

func (dt DateTimeType) micros(t time.Time) int64 {
	sec, nsec := t.Unix(), int64(t.Nanosecond())
	us, rem := nsec/1000, nsec%1000
	if dt.Rounding == RoundNearest && rem >= 500 {
		us++
	}
	return sec*1_000_000 + us
}

// RoundMicros converts a float microsecond count to an integer. Values
// within microsTolerance of an integer snap to it before the rounding mode
// applies.
func RoundMicros(x float64, mode Rounding) int64 {
	nearest := math.Round(x)
	if math.Abs(x-nearest) < microsTolerance {
		return int64(nearest)
	}
	if mode == RoundFloor {
		return int64(math.Floor(x))
	}
	return int64(nearest)
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case *time.Time:
		if x != nil {
			return *x, true
		}
	}
	return time.Time{}, false
}
