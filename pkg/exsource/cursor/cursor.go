// Package cursor reads the data rows of one sheet with strict, typed
// coercion.
package cursor

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ukaji3/exsource-go/pkg/exsource"
	"github.com/ukaji3/exsource-go/pkg/exsource/models"
	"github.com/ukaji3/exsource-go/pkg/exsource/workbook"
)

// Precondition failures. These are programming errors on the caller's side
// and carry no exsource.Code.
var (
	ErrNoCurrentRow = errors.New("no current row")
	ErrClosed       = errors.New("cursor is closed")
	ErrFieldIndex   = errors.New("invalid field index")
)

const progressEvery = 100

type state int

const (
	stateCreated state = iota
	statePositioned
	stateExhausted
	stateClosed
)

// Cursor iterates the rows after the header of a sheet. It owns the document
// and the source that produced it; Close releases both. A Cursor is not safe
// for concurrent use.
type Cursor struct {
	src     io.Closer
	doc     workbook.Document
	sheet   workbook.Sheet
	columns []models.Column

	logger *slog.Logger
	loc    *time.Location
	ectx   exsource.Context

	state   state
	numRows int
	next    int
	row     workbook.Row
	read    int64
	err     error
}

// Option configures a Cursor.
type Option func(*Cursor)

// WithLogger sets the diagnostic sink.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cursor) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLocation sets the zone used by Timestamp. The default is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(c *Cursor) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithErrorContext sets the request identity attached to read errors.
func WithErrorContext(ectx exsource.Context) Option {
	return func(c *Cursor) {
		c.ectx = ectx
	}
}

// New returns a cursor over sheet, which must belong to doc. It takes
// ownership of src and doc; either may be nil.
func New(src io.Closer, doc workbook.Document, sheet workbook.Sheet, columns []models.Column, opts ...Option) *Cursor {
	c := &Cursor{
		src:     src,
		doc:     doc,
		sheet:   sheet,
		columns: columns,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		loc:     time.Local,
		numRows: -1,
		next:    1,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.ectx.Table == "" && sheet != nil {
		c.ectx.Table = sheet.Name()
	}

	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name
	}
	c.logger.Info("opened cursor", "sheet", c.sheetName(), "columns", names)
	return c
}

func (c *Cursor) sheetName() string {
	if c.sheet == nil {
		return ""
	}
	return c.sheet.Name()
}

// Columns returns the columns read by the cursor, in field order.
func (c *Cursor) Columns() []models.Column {
	return c.columns
}

// Advance moves to the next row after the header, blank rows included. It
// returns false when no row remains, after Close, or after a fault reported
// by Err.
func (c *Cursor) Advance() bool {
	if c.state == stateClosed || c.state == stateExhausted {
		return false
	}
	if c.numRows < 0 {
		n, err := c.sheet.NumRows()
		if err != nil {
			c.fail(c.wrap(err, "cannot read sheet"))
			return false
		}
		c.numRows = n
	}
	if c.next >= c.numRows {
		c.state = stateExhausted
		c.row = nil
		c.logger.Debug("cursor exhausted", "sheet", c.sheetName(), "records", c.read)
		return false
	}

	row, err := c.sheet.Row(c.next)
	if err != nil {
		e := c.wrap(err, "cannot read row")
		e.Row = c.next + 1
		c.fail(e)
		return false
	}
	c.next++
	c.row = row
	c.state = statePositioned
	c.read++
	if c.read%progressEvery == 0 {
		c.logger.Debug("read records", "sheet", c.sheetName(), "records", c.read)
	}
	return true
}

func (c *Cursor) fail(err *exsource.Error) {
	c.err = err
	c.row = nil
	c.state = stateExhausted
}

func (c *Cursor) wrap(err error, msg string) *exsource.Error {
	e := exsource.NewError(exsource.CodeRead, err, "%s", msg)
	e.URL, e.Schema, e.Table, e.Sheet = c.ectx.URL, c.ectx.Schema, c.ectx.Table, c.sheetName()
	return e
}

// Err returns the fault that stopped iteration, if any.
func (c *Cursor) Err() error {
	return c.err
}

// RowNumber returns the 1-based physical row number of the current row, 0
// when there is none.
func (c *Cursor) RowNumber() int {
	if c.row == nil {
		return 0
	}
	return c.row.Index() + 1
}

// RecordsRead counts successful Advance calls.
func (c *Cursor) RecordsRead() int64 {
	return c.read
}

// Type returns the type requested for field.
func (c *Cursor) Type(field int) (models.ColumnType, error) {
	if field < 0 || field >= len(c.columns) {
		return 0, errors.Wrapf(ErrFieldIndex, "field %d of %d", field, len(c.columns))
	}
	return c.columns[field].Type, nil
}

// cell returns the stored cell for field, checking the preconditions shared by
// every accessor.
func (c *Cursor) cell(field int, want string) (workbook.Cell, error) {
	if c.state == stateClosed {
		return workbook.Cell{}, ErrClosed
	}
	if field < 0 || field >= len(c.columns) {
		return workbook.Cell{}, errors.Wrapf(ErrFieldIndex, "field %d of %d", field, len(c.columns))
	}
	if c.row == nil {
		return workbook.Cell{}, ErrNoCurrentRow
	}
	cell, err := c.row.Cell(c.columns[field].Ordinal)
	if err != nil {
		return workbook.Cell{}, c.readError(err, field, want, workbook.Cell{}, "cannot read cell")
	}
	return cell, nil
}

// evaluate resolves cell to its effective value.
func (c *Cursor) evaluate(cell workbook.Cell, field int, want string) (workbook.Cell, error) {
	eff, err := cell.Evaluate()
	if err != nil {
		return workbook.Cell{}, c.readError(err, field, want, cell, "cannot evaluate formula")
	}
	return eff, nil
}

// readError attaches the cursor position to err. A fresh coercion error
// keeps its code, anything else is wrapped as CodeRead.
func (c *Cursor) readError(err error, field int, want string, cell workbook.Cell, msg string) *exsource.Error {
	e, ok := err.(*exsource.Error)
	if !ok || e.Message == "" || e.Sheet != "" {
		e = exsource.NewError(exsource.CodeRead, err, "%s", msg)
	}
	col := c.columns[field]
	e.URL, e.Schema, e.Table = c.ectx.URL, c.ectx.Schema, c.ectx.Table
	e.Sheet = c.sheetName()
	e.Column, e.Ordinal = col.Name, col.Ordinal
	e.Row = c.RowNumber()
	e.Type = want
	e.Cell = cell.Address
	if e.Cell == "" {
		e.Cell = fmt.Sprintf("R%dC%d", e.Row, col.Ordinal+1)
	}
	if e.Value == "" {
		e.Value = c.render(cell)
	}
	return e
}

// render is a best-effort rendering of cell for error messages.
func (c *Cursor) render(cell workbook.Cell) string {
	if cell.IsBlank() {
		return ""
	}
	s, err := cell.Display()
	if err != nil {
		c.logger.Warn("cannot render cell for error report", "cell", cell.Address, "error", err)
		return "<unreadable>"
	}
	return s
}

func (c *Cursor) blankError(field int, want string, cell workbook.Cell) error {
	return c.readError(
		exsource.NewError(exsource.CodeRead, nil, "cannot read %s from a blank cell", want),
		field, want, cell, "")
}

// Bool reads field as a boolean. Blank cells are a read error.
func (c *Cursor) Bool(field int) (bool, error) {
	const want = "boolean"
	cell, err := c.cell(field, want)
	if err != nil {
		return false, err
	}
	if cell.IsBlank() {
		return false, c.blankError(field, want, cell)
	}
	eff, err := c.evaluate(cell, field, want)
	if err != nil {
		return false, err
	}
	v, err := toBool(eff)
	if err != nil {
		return false, c.readError(err, field, want, cell, "")
	}
	return v, nil
}

// Int64 reads field as a bigint. Blank cells are a read error; numbers must
// be whole and within range.
func (c *Cursor) Int64(field int) (int64, error) {
	const want = "bigint"
	cell, err := c.cell(field, want)
	if err != nil {
		return 0, err
	}
	if cell.IsBlank() {
		return 0, c.blankError(field, want, cell)
	}
	eff, err := c.evaluate(cell, field, want)
	if err != nil {
		return 0, err
	}
	v, err := toInt64(eff)
	if err != nil {
		return 0, c.readError(err, field, want, cell, "")
	}
	return v, nil
}

// Float64 reads field as a double. Blank cells are a read error.
func (c *Cursor) Float64(field int) (float64, error) {
	const want = "double"
	cell, err := c.cell(field, want)
	if err != nil {
		return 0, err
	}
	if cell.IsBlank() {
		return 0, c.blankError(field, want, cell)
	}
	eff, err := c.evaluate(cell, field, want)
	if err != nil {
		return 0, err
	}
	v, err := toFloat64(eff)
	if err != nil {
		return 0, c.readError(err, field, want, cell, "")
	}
	return v, nil
}

// Text reads field as displayed by a spreadsheet. It is null when IsNull is.
func (c *Cursor) Text(field int) (sql.NullString, error) {
	const want = "varchar"
	cell, err := c.cell(field, want)
	if err != nil {
		return sql.NullString{}, err
	}
	if c.isNullCell(cell) {
		return sql.NullString{}, nil
	}
	s, err := cell.Display()
	if err != nil {
		return sql.NullString{}, c.readError(err, field, want, cell, "cannot format cell")
	}
	return sql.NullString{String: s, Valid: true}, nil
}

// Date reads a date-formatted numeric field as days since 1970-01-01. Blank
// cells are null.
func (c *Cursor) Date(field int) (sql.NullInt32, error) {
	const want = "date"
	wall, ok, err := c.wallClock(field, want)
	if err != nil || !ok {
		return sql.NullInt32{}, err
	}
	return sql.NullInt32{Int32: int32(epochDay(wall)), Valid: true}, nil
}

// Timestamp reads a date-formatted numeric field as milliseconds since the
// Unix epoch, taking the stored wall clock in the cursor location. Blank
// cells are null.
func (c *Cursor) Timestamp(field int) (sql.NullInt64, error) {
	const want = "timestamp(3)"
	wall, ok, err := c.wallClock(field, want)
	if err != nil || !ok {
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: inLocation(wall, c.loc).UnixMilli(), Valid: true}, nil
}

func (c *Cursor) wallClock(field int, want string) (time.Time, bool, error) {
	cell, err := c.cell(field, want)
	if err != nil {
		return time.Time{}, false, err
	}
	if cell.IsBlank() {
		return time.Time{}, false, nil
	}
	eff, err := c.evaluate(cell, field, want)
	if err != nil {
		return time.Time{}, false, err
	}
	wall, err := toTime(cell, eff, want)
	if err != nil {
		return time.Time{}, false, c.readError(err, field, want, cell, "cannot decode date")
	}
	return wall, true, nil
}

// IsNull reports whether field has no value: there is no current row, the
// cell is blank, or it is a formula evaluating to an error. It never fails;
// an out-of-range field or a closed cursor reads as null.
func (c *Cursor) IsNull(field int) bool {
	cell, err := c.cell(field, "")
	if err != nil {
		return true
	}
	return c.isNullCell(cell)
}

func (c *Cursor) isNullCell(cell workbook.Cell) bool {
	switch cell.Kind {
	case workbook.KindBlank:
		return true
	case workbook.KindFormula:
		eff, err := cell.Evaluate()
		if err != nil {
			c.logger.Debug("cannot evaluate formula for null check", "cell", cell.Address, "error", err)
			return false
		}
		return eff.Kind == workbook.KindError
	}
	return false
}

// Value reads field according to its column type: string, int64, float64,
// bool, or time.Time for dates (UTC midnight) and timestamps (cursor
// location). Null values are nil.
func (c *Cursor) Value(field int) (any, error) {
	typ, err := c.Type(field)
	if err != nil {
		return nil, err
	}
	if c.state == stateClosed {
		return nil, ErrClosed
	}
	if c.row == nil {
		return nil, ErrNoCurrentRow
	}
	if c.IsNull(field) {
		return nil, nil
	}

	switch typ {
	case models.TypeVarchar:
		v, err := c.Text(field)
		if err != nil || !v.Valid {
			return nil, err
		}
		return v.String, nil
	case models.TypeBigint:
		return c.Int64(field)
	case models.TypeDouble:
		return c.Float64(field)
	case models.TypeBoolean:
		return c.Bool(field)
	case models.TypeDate:
		v, err := c.Date(field)
		if err != nil || !v.Valid {
			return nil, err
		}
		return time.Unix(int64(v.Int32)*86400, 0).UTC(), nil
	case models.TypeTimestamp:
		v, err := c.Timestamp(field)
		if err != nil || !v.Valid {
			return nil, err
		}
		return time.UnixMilli(v.Int64).In(c.loc), nil
	}
	return nil, errors.Newf("unsupported column type %s", typ)
}

// Close releases the document, then the source. Failures are logged. Close
// is idempotent.
func (c *Cursor) Close() error {
	if c.state == stateClosed {
		return nil
	}
	c.state = stateClosed
	c.row = nil
	c.logger.Info("closing cursor", "sheet", c.sheetName(), "records", c.read)

	if c.doc != nil {
		if err := c.doc.Close(); err != nil {
			c.logger.Warn("cannot close document", "sheet", c.sheetName(), "error", err)
		}
	}
	if c.src != nil {
		if err := c.src.Close(); err != nil {
			c.logger.Warn("cannot release archive", "sheet", c.sheetName(), "error", err)
		}
	}
	return nil
}
