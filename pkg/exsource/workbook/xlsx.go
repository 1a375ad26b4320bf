package workbook

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ukaji3/exsource-go/pkg/exsource/models"
	"github.com/xuri/excelize/v2"
)

// xlsxDocument is a Document backed by excelize.
type xlsxDocument struct {
	f       *excelize.File
	use1904 bool
	// dateStyles caches whether a style index carries a date number format.
	dateStyles map[int]bool
	sheets     map[string]*xlsxSheet
}

func openXLSX(path string) (*xlsxDocument, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	doc := &xlsxDocument{
		f:          f,
		dateStyles: make(map[int]bool),
		sheets:     make(map[string]*xlsxSheet),
	}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		doc.use1904 = *props.Date1904
	}
	return doc, nil
}

func (d *xlsxDocument) Encoding() models.Encoding {
	return models.EncodingOOXML
}

func (d *xlsxDocument) SheetNames() []string {
	return d.f.GetSheetList()
}

func (d *xlsxDocument) Sheet(name string) (Sheet, bool) {
	resolved, ok := findSheet(d.f.GetSheetList(), name)
	if !ok {
		return nil, false
	}
	s, ok := d.sheets[resolved]
	if !ok {
		s = &xlsxSheet{doc: d, name: resolved}
		d.sheets[resolved] = s
	}
	return s, true
}

func (d *xlsxDocument) Properties() (map[string]string, error) {
	p, err := d.f.GetDocProps()
	if err != nil {
		return nil, errors.Wrap(err, "read document properties")
	}
	props := make(map[string]string)
	set := func(k, v string) {
		if v != "" {
			props[k] = v
		}
	}
	set("title", p.Title)
	set("subject", p.Subject)
	set("creator", p.Creator)
	set("keywords", p.Keywords)
	set("description", p.Description)
	set("last_modified_by", p.LastModifiedBy)
	set("created", p.Created)
	set("modified", p.Modified)
	set("category", p.Category)
	return props, nil
}

func (d *xlsxDocument) Close() error {
	return d.f.Close()
}

func (d *xlsxDocument) isDateStyle(idx int) (bool, error) {
	if v, ok := d.dateStyles[idx]; ok {
		return v, nil
	}
	style, err := d.f.GetStyle(idx)
	if err != nil {
		return false, errors.Wrapf(err, "read style %d", idx)
	}
	v := isDateFormat(style.NumFmt, style.CustomNumFmt)
	d.dateStyles[idx] = v
	return v, nil
}

// xlsxSheet loads raw row values on first use.
type xlsxSheet struct {
	doc    *xlsxDocument
	name   string
	rows   [][]string
	loaded bool
}

func (s *xlsxSheet) Name() string {
	return s.name
}

func (s *xlsxSheet) load() error {
	if s.loaded {
		return nil
	}
	// Rows keeps trailing blank rows that GetRows trims.
	it, err := s.doc.f.Rows(s.name)
	if err != nil {
		return errors.Wrapf(err, "read rows of sheet %q", s.name)
	}
	defer func() { _ = it.Close() }()
	var rows [][]string
	for it.Next() {
		cols, err := it.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return errors.Wrapf(err, "read row %d of sheet %q", len(rows)+1, s.name)
		}
		rows = append(rows, cols)
	}
	if err := it.Error(); err != nil {
		return errors.Wrapf(err, "read rows of sheet %q", s.name)
	}
	s.rows = rows
	s.loaded = true
	return nil
}

func (s *xlsxSheet) NumRows() (int, error) {
	if err := s.load(); err != nil {
		return 0, err
	}
	return len(s.rows), nil
}

func (s *xlsxSheet) Row(i int) (Row, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(s.rows) {
		return nil, errors.Newf("row %d out of range [0, %d)", i, len(s.rows))
	}
	return &xlsxRow{sheet: s, index: i, raw: s.rows[i]}, nil
}

func (s *xlsxSheet) Dimension() (models.CellRange, bool, error) {
	if err := s.load(); err != nil {
		return models.CellRange{}, false, err
	}
	if len(s.rows) == 0 {
		return models.CellRange{}, false, nil
	}
	if ref, err := s.doc.f.GetSheetDimension(s.name); err == nil {
		if r, ok := parseRange(ref); ok && r.R2 >= len(s.rows) {
			return r, true, nil
		}
	}
	r, ok := dataBounds(s.rows)
	return r, ok, nil
}

// xlsx cells delegate lazy work back to their sheet.

func (s *xlsxSheet) evaluate(c Cell) (Cell, error) {
	res, err := s.doc.f.CalcCellValue(s.name, c.Address, excelize.Options{RawCellValue: true})
	if err != nil {
		switch {
		case IsErrorLiteral(res):
		case IsErrorLiteral(err.Error()):
			res = err.Error()
		default:
			return Cell{}, errors.Wrapf(err, "evaluate formula %q at %s", c.Formula, c.Address)
		}
		return Cell{Kind: KindError, Text: strings.ToUpper(strings.TrimSpace(res)), Address: c.Address, src: s}, nil
	}

	kind, known, err := s.resultKind(c, 0)
	if err != nil {
		return Cell{}, err
	}
	var out Cell
	if known {
		out = classifyAs(kind, c.Formula, res)
	} else {
		out = classifyResult(c.Formula, res)
	}
	out.Address = c.Address
	out.src = s
	return out, nil
}

// maxReferenceDepth bounds chains of formulas that only reference each other.
const maxReferenceDepth = 16

// resultKind reports the kind a formula yields when the workbook records it:
// the kind of the one cell a bare reference points at, else the type stored
// with the cached result. known is false when neither is available.
func (s *xlsxSheet) resultKind(c Cell, depth int) (kind Kind, known bool, err error) {
	if sheet, ref, ok := singleReference(c.Formula); ok && depth < maxReferenceDepth {
		target := s
		if sheet != "" {
			t, ok := s.doc.Sheet(sheet)
			if !ok {
				return 0, false, nil
			}
			target = t.(*xlsxSheet)
		}
		col, row, err := excelize.CellNameToCoordinates(ref)
		if err != nil {
			return 0, false, nil
		}
		tc, err := target.cellAt(col-1, row-1)
		if err != nil {
			return 0, false, err
		}
		if tc.Kind != KindFormula {
			return tc.Kind, true, nil
		}
		return target.resultKind(tc, depth+1)
	}

	// Formulas written without a cached value carry a placeholder type.
	if c.Text == "" {
		return 0, false, nil
	}
	typ, err := s.doc.f.GetCellType(s.name, c.Address)
	if err != nil {
		return 0, false, errors.Wrapf(err, "read type at %s", c.Address)
	}
	switch typ {
	case excelize.CellTypeFormula, excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return KindText, true, nil
	case excelize.CellTypeBool:
		return KindBoolean, true, nil
	case excelize.CellTypeError:
		return KindError, true, nil
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		return KindNumeric, true, nil
	}
	return 0, false, nil
}

func (s *xlsxSheet) display(c Cell) (string, error) {
	if c.Kind == KindFormula {
		res, err := s.doc.f.CalcCellValue(s.name, c.Address)
		if err != nil {
			if IsErrorLiteral(res) {
				return res, nil
			}
			if IsErrorLiteral(err.Error()) {
				return err.Error(), nil
			}
			return "", errors.Wrapf(err, "evaluate formula %q at %s", c.Formula, c.Address)
		}
		return res, nil
	}
	if c.Kind == KindBlank {
		return "", nil
	}
	v, err := s.doc.f.GetCellValue(s.name, c.Address)
	if err != nil {
		return "", errors.Wrapf(err, "format cell %s", c.Address)
	}
	return v, nil
}

func (s *xlsxSheet) dateFormatted(c Cell) (bool, error) {
	idx, err := s.doc.f.GetCellStyle(s.name, c.Address)
	if err != nil {
		return false, errors.Wrapf(err, "read style of %s", c.Address)
	}
	return s.doc.isDateStyle(idx)
}

func (s *xlsxSheet) date1904() bool {
	return s.doc.use1904
}

type xlsxRow struct {
	sheet *xlsxSheet
	index int
	raw   []string
}

func (r *xlsxRow) Index() int {
	return r.index
}

func (r *xlsxRow) Len() int {
	return len(r.raw)
}

func (r *xlsxRow) Cell(col int) (Cell, error) {
	if col < 0 {
		return Cell{}, errors.Newf("negative column %d", col)
	}
	var raw string
	if col < len(r.raw) {
		raw = r.raw[col]
	}
	return r.sheet.cell(col, r.index, raw)
}

// cellAt reads the cell at zero-based col and row, blank past the data.
func (s *xlsxSheet) cellAt(col, row int) (Cell, error) {
	if err := s.load(); err != nil {
		return Cell{}, err
	}
	var raw string
	if row >= 0 && row < len(s.rows) && col >= 0 && col < len(s.rows[row]) {
		raw = s.rows[row][col]
	}
	return s.cell(col, row, raw)
}

func (s *xlsxSheet) cell(col, row int, raw string) (Cell, error) {
	f, sheet := s.doc.f, s.name
	addr, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return Cell{}, err
	}

	formula, err := f.GetCellFormula(sheet, addr)
	if err != nil {
		return Cell{}, errors.Wrapf(err, "read formula at %s", addr)
	}
	if formula != "" {
		return Cell{Kind: KindFormula, Formula: formula, Text: raw, Address: addr, src: s}, nil
	}
	if raw == "" {
		return Cell{Kind: KindBlank, Address: addr, src: s}, nil
	}

	typ, err := f.GetCellType(sheet, addr)
	if err != nil {
		return Cell{}, errors.Wrapf(err, "read type at %s", addr)
	}
	c := Cell{Address: addr, src: s}
	switch typ {
	case excelize.CellTypeBool:
		c.Kind = KindBoolean
		c.Bool = raw == "1" || strings.EqualFold(raw, "true")
	case excelize.CellTypeError:
		c.Kind = KindError
		c.Text = raw
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		c.Kind = KindText
		c.Text = raw
	case excelize.CellTypeDate:
		t, err := parseISODate(raw)
		if err != nil {
			return Cell{}, errors.Wrapf(err, "decode date at %s", addr)
		}
		c.Kind = KindNumeric
		c.Number = timeToSerial(t, s.doc.use1904)
		c.DateFormat = true
	default:
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			c.Kind = KindNumeric
			c.Number = v
		} else {
			c.Kind = KindText
			c.Text = raw
		}
	}
	return c, nil
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
	"15:04:05",
}

func parseISODate(s string) (time.Time, error) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Newf("unsupported ISO 8601 value %q", s)
}

// timeToSerial converts a wall clock to a spreadsheet serial date.
func timeToSerial(t time.Time, use1904 bool) float64 {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	epoch := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	if use1904 {
		epoch = time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	secs := wall.Unix() - epoch.Unix()
	serial := float64(secs)/86400 + float64(wall.Nanosecond())/8.64e13
	// Serials before 1900-03-01 count the phantom 1900-02-29.
	if !use1904 && wall.Before(time.Date(1900, 3, 1, 0, 0, 0, 0, time.UTC)) {
		serial--
	}
	return serial
}
