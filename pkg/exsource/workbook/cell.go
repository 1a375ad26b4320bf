package workbook

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"
)

// Kind is the stored representation of a cell.
type Kind int

const (
	KindBlank Kind = iota
	KindNumeric
	KindBoolean
	KindText
	KindFormula
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindBlank:
		return "BLANK"
	case KindNumeric:
		return "NUMERIC"
	case KindBoolean:
		return "BOOLEAN"
	case KindText:
		return "STRING"
	case KindFormula:
		return "FORMULA"
	case KindError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Cell is a tagged union over the cell kinds. Only the field matching Kind
// is meaningful. Formula cells resolve to one of the other kinds through
// Evaluate.
type Cell struct {
	Kind Kind
	// Number is set for KindNumeric.
	Number float64
	// Bool is set for KindBoolean.
	Bool bool
	// Text is the content of KindText and the error code of KindError
	// (for example "#DIV/0!"). For KindFormula it is the cached result, if any.
	Text string
	// Formula is the formula text of KindFormula, without the leading '='.
	Formula string
	// Address is the A1-style reference of the cell.
	Address string
	// DateFormat marks a numeric cell as date formatted. Cells read from an
	// OOXML document also consult the cell style.
	DateFormat bool

	raw    string
	result *Cell
	src    cellSource
}

// cellSource is the document behind a cell, used for lazy work.
type cellSource interface {
	evaluate(c Cell) (Cell, error)
	display(c Cell) (string, error)
	dateFormatted(c Cell) (bool, error)
	date1904() bool
}

// Blank returns a blank cell at address.
func Blank(address string) Cell {
	return Cell{Kind: KindBlank, Address: address}
}

// Number returns a numeric cell.
func Number(address string, v float64) Cell {
	return Cell{Kind: KindNumeric, Number: v, Address: address}
}

// Date returns a date-formatted numeric cell holding serial.
func Date(address string, serial float64) Cell {
	return Cell{Kind: KindNumeric, Number: serial, Address: address, DateFormat: true}
}

// Bool returns a boolean cell.
func Bool(address string, v bool) Cell {
	return Cell{Kind: KindBoolean, Bool: v, Address: address}
}

// Text returns a text cell.
func Text(address, v string) Cell {
	return Cell{Kind: KindText, Text: v, Address: address}
}

// ErrorValue returns an error cell holding code, such as "#N/A".
func ErrorValue(address, code string) Cell {
	return Cell{Kind: KindError, Text: code, Address: address}
}

// Formula returns a formula cell whose evaluation yields result.
func Formula(address, formula string, result Cell) Cell {
	result.Address = address
	return Cell{Kind: KindFormula, Formula: formula, Address: address, result: &result}
}

// IsBlank reports whether the cell has no content.
func (c Cell) IsBlank() bool {
	return c.Kind == KindBlank
}

// Evaluate resolves a formula cell to its result. Other kinds are returned unchanged.
func (c Cell) Evaluate() (Cell, error) {
	if c.Kind != KindFormula {
		return c, nil
	}
	if c.result != nil {
		return *c.result, nil
	}
	if c.src == nil {
		return Cell{}, errors.Newf("formula %q at %s has no evaluator", c.Formula, c.Address)
	}
	return c.src.evaluate(c)
}

// Display renders the cell the way a spreadsheet shows it, independent of
// the process locale. Formulas are evaluated first.
func (c Cell) Display() (string, error) {
	if c.src != nil {
		return c.src.display(c)
	}
	if c.raw != "" {
		return c.raw, nil
	}
	switch c.Kind {
	case KindBlank:
		return "", nil
	case KindNumeric:
		return formatNumber(c.Number), nil
	case KindBoolean:
		if c.Bool {
			return "TRUE", nil
		}
		return "FALSE", nil
	case KindText, KindError:
		return c.Text, nil
	case KindFormula:
		r, err := c.Evaluate()
		if err != nil {
			return "", err
		}
		return r.Display()
	}
	return "", errors.Newf("unknown cell kind %d", c.Kind)
}

// IsDateFormatted reports whether a numeric cell carries a date or time
// number format. Formula cells are evaluated first.
func (c Cell) IsDateFormatted() (bool, error) {
	eff, err := c.Evaluate()
	if err != nil {
		return false, err
	}
	if eff.Kind != KindNumeric {
		return false, nil
	}
	if eff.DateFormat || c.DateFormat {
		return true, nil
	}
	if eff.src != nil {
		return eff.src.dateFormatted(eff)
	}
	return false, nil
}

// Time decodes the serial date of a numeric cell into a zone-less wall clock,
// returned in UTC.
func (c Cell) Time() (time.Time, error) {
	eff, err := c.Evaluate()
	if err != nil {
		return time.Time{}, err
	}
	if eff.Kind != KindNumeric {
		return time.Time{}, errors.Newf("cell %s is %s, not a date serial", c.Address, eff.Kind)
	}
	use1904 := eff.src != nil && eff.src.date1904()
	t, err := excelize.ExcelDateToTime(eff.Number, use1904)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "decode date serial %v", eff.Number)
	}
	return t, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// errorLiterals are the error codes a spreadsheet can hold or produce.
var errorLiterals = map[string]bool{
	"#NULL!":  true,
	"#DIV/0!": true,
	"#VALUE!": true,
	"#REF!":   true,
	"#NAME?":  true,
	"#NUM!":   true,
	"#N/A":    true,
	"#SPILL!": true,
	"#CALC!":  true,
}

// IsErrorLiteral reports whether s is a spreadsheet error code.
func IsErrorLiteral(s string) bool {
	return errorLiterals[strings.ToUpper(strings.TrimSpace(s))]
}
