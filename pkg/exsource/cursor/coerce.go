package cursor

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ukaji3/exsource-go/pkg/exsource"
	"github.com/ukaji3/exsource-go/pkg/exsource/workbook"
)

// The coercions below take the evaluated cell of a non-blank source cell.
// They return *exsource.Error values carrying only a code and message; the
// cursor adds the position.

func mismatch(format string, args ...any) *exsource.Error {
	return exsource.NewError(exsource.CodeTypeMismatch, nil, format, args...)
}

func toBool(c workbook.Cell) (bool, error) {
	switch c.Kind {
	case workbook.KindBoolean:
		return c.Bool, nil
	case workbook.KindText:
		switch s := strings.TrimSpace(c.Text); {
		case strings.EqualFold(s, "true"):
			return true, nil
		case strings.EqualFold(s, "false"):
			return false, nil
		default:
			return false, mismatch("invalid boolean text %q", s)
		}
	case workbook.KindNumeric:
		switch c.Number {
		case 1:
			return true, nil
		case 0:
			return false, nil
		default:
			return false, mismatch("invalid numeric value for boolean: %v", c.Number)
		}
	}
	return false, mismatch("cannot read boolean from %s cell", c.Kind)
}

// Float bounds of the int64 range: -2^63 is representable, 2^63 is not.
const (
	minInt64Float = -9223372036854775808.0
	maxInt64Float = 9223372036854775808.0
)

func toInt64(c workbook.Cell) (int64, error) {
	switch c.Kind {
	case workbook.KindNumeric:
		v := c.Number
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Floor(v) {
			return 0, mismatch("numeric value %v is not a whole number", v)
		}
		if v < minInt64Float || v >= maxInt64Float {
			return 0, mismatch("numeric value %v is out of range for bigint", v)
		}
		return int64(v), nil
	case workbook.KindText:
		s := strings.TrimSpace(c.Text)
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, mismatch("cannot parse bigint from %q", s)
		}
		return v, nil
	}
	return 0, mismatch("cannot read bigint from %s cell", c.Kind)
}

func toFloat64(c workbook.Cell) (float64, error) {
	switch c.Kind {
	case workbook.KindNumeric:
		return c.Number, nil
	case workbook.KindText:
		s := strings.TrimSpace(c.Text)
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, mismatch("cannot parse double from %q", s)
		}
		return v, nil
	}
	return 0, mismatch("cannot read double from %s cell", c.Kind)
}

// toTime decodes a date-formatted numeric cell into its wall clock (UTC).
// src is the cell as stored, eff its evaluation.
func toTime(src, eff workbook.Cell, what string) (time.Time, error) {
	if eff.Kind != workbook.KindNumeric {
		return time.Time{}, mismatch("cannot read %s from %s cell", what, eff.Kind)
	}
	isDate, err := src.IsDateFormatted()
	if err != nil {
		return time.Time{}, err
	}
	if !isDate {
		return time.Time{}, mismatch("cannot read %s from a numeric cell without a date format", what)
	}
	return src.Time()
}

// epochDay counts days from 1970-01-01 to the calendar date of wall.
func epochDay(wall time.Time) int64 {
	d := time.Date(wall.Year(), wall.Month(), wall.Day(), 0, 0, 0, 0, time.UTC)
	return d.Unix() / 86400
}

// inLocation reinterprets a zone-less wall clock in loc.
func inLocation(wall time.Time, loc *time.Location) time.Time {
	return time.Date(wall.Year(), wall.Month(), wall.Day(),
		wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), loc)
}
