package workbook

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/extrame/xls"
	"github.com/richardlehane/mscfb"
	"github.com/richardlehane/msoleps"
	"github.com/ukaji3/exsource-go/pkg/exsource/models"
	"github.com/xuri/excelize/v2"
)

// xlsDocument is a Document backed by a BIFF workbook. The decoder renders
// every cell as formatted text, so legacy cells are classified back into
// blank, numeric and text; they are never formulas or date formatted.
type xlsDocument struct {
	wb     *xls.WorkBook
	props  map[string]string
	names  []string
	sheets map[string]*xlsSheet
}

func openXLS(path string) (doc *xlsDocument, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}
	props, err := inspectCompoundFile(data)
	if err != nil {
		return nil, err
	}

	// The BIFF decoder panics on some malformed records.
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, errors.Newf("malformed workbook: %v", r)
		}
	}()
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	doc = &xlsDocument{wb: wb, props: props, sheets: make(map[string]*xlsSheet)}
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		doc.names = append(doc.names, ws.Name)
		if _, dup := doc.sheets[ws.Name]; !dup {
			doc.sheets[ws.Name] = &xlsSheet{ws: ws}
		}
	}
	return doc, nil
}

// inspectCompoundFile checks that data is an OLE2 container holding a
// workbook stream and collects its summary information properties.
func inspectCompoundFile(data []byte) (map[string]string, error) {
	r, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "read compound file")
	}
	props := make(map[string]string)
	hasWorkbook := false
	for entry, err := r.Next(); err == nil; entry, err = r.Next() {
		switch entry.Name {
		case "Workbook", "Book":
			hasWorkbook = true
		}
		if !msoleps.IsMSOLEPS(entry.Initial) {
			continue
		}
		ps := msoleps.New()
		if perr := ps.Reset(r); perr != nil {
			continue
		}
		for _, p := range ps.Property {
			if v, ok := propertyValue(fmt.Sprint(p)); ok {
				props[strings.ToLower(p.Name)] = v
			}
		}
	}
	if !hasWorkbook {
		return nil, errors.New("compound file has no Workbook stream")
	}
	return props, nil
}

// propertyValue trims a summary property, rejecting empty values and code
// page strings that are not valid UTF-8.
func propertyValue(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" || !utf8.ValidString(v) {
		return "", false
	}
	return v, true
}

func (d *xlsDocument) Encoding() models.Encoding {
	return models.EncodingLegacy
}

func (d *xlsDocument) SheetNames() []string {
	return append([]string(nil), d.names...)
}

func (d *xlsDocument) Sheet(name string) (Sheet, bool) {
	resolved, ok := findSheet(d.names, name)
	if !ok {
		return nil, false
	}
	return d.sheets[resolved], true
}

func (d *xlsDocument) Properties() (map[string]string, error) {
	out := make(map[string]string, len(d.props))
	for k, v := range d.props {
		out[k] = v
	}
	return out, nil
}

func (d *xlsDocument) Close() error {
	d.wb = nil
	d.sheets = nil
	return nil
}

var _ io.Closer = (*xlsDocument)(nil)

type xlsSheet struct {
	ws *xls.WorkSheet
}

func (s *xlsSheet) Name() string {
	return s.ws.Name
}

func (s *xlsSheet) NumRows() (int, error) {
	if s.ws.MaxRow == 0 && s.row(0) == nil {
		return 0, nil
	}
	return int(s.ws.MaxRow) + 1, nil
}

// row returns the decoded row i, or nil when the sheet has no record for it.
// The decoder dereferences missing rows.
func (s *xlsSheet) row(i int) (r *xls.Row) {
	defer func() {
		if recover() != nil {
			r = nil
		}
	}()
	return s.ws.Row(i)
}

func (s *xlsSheet) Row(i int) (Row, error) {
	n, _ := s.NumRows()
	if i < 0 || i >= n {
		return nil, errors.Newf("row %d out of range [0, %d)", i, n)
	}
	row := &xlsRow{index: i}
	if r := s.row(i); r != nil {
		for c := 0; c < r.LastCol(); c++ {
			row.values = append(row.values, r.Col(c))
		}
	}
	row.values = trimTrailingEmpty(row.values)
	return row, nil
}

func (s *xlsSheet) Dimension() (models.CellRange, bool, error) {
	n, _ := s.NumRows()
	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		r, err := s.Row(i)
		if err != nil {
			return models.CellRange{}, false, err
		}
		rows = append(rows, r.(*xlsRow).values)
	}
	r, ok := dataBounds(rows)
	return r, ok, nil
}

type xlsRow struct {
	index  int
	values []string
}

func (r *xlsRow) Index() int {
	return r.index
}

func (r *xlsRow) Len() int {
	return len(r.values)
}

func (r *xlsRow) Cell(col int) (Cell, error) {
	if col < 0 {
		return Cell{}, errors.Newf("negative column %d", col)
	}
	addr, err := excelize.CoordinatesToCellName(col+1, r.index+1)
	if err != nil {
		return Cell{}, err
	}
	var raw string
	if col < len(r.values) {
		raw = r.values[col]
	}
	c := parseValue(raw)
	c.Address = addr
	return c, nil
}

// parseValue classifies a rendered legacy cell: blank, numeric when the text
// is an integer or decimal literal, text otherwise. The rendering is kept
// for display.
func parseValue(s string) Cell {
	if strings.TrimSpace(s) == "" {
		return Cell{Kind: KindBlank}
	}
	// Try integer first
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Cell{Kind: KindNumeric, Number: float64(i), raw: s}
	}
	// Try float, rejecting spellings like "NaN" or "Inf" that are text in a sheet
	if f, err := strconv.ParseFloat(s, 64); err == nil && isDecimalLiteral(s) {
		return Cell{Kind: KindNumeric, Number: f, raw: s}
	}
	if IsErrorLiteral(s) {
		return Cell{Kind: KindError, Text: s}
	}
	return Cell{Kind: KindText, Text: s}
}

func isDecimalLiteral(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case strings.ContainsRune("+-.eE", r):
		default:
			return false
		}
	}
	return true
}

func trimTrailingEmpty(values []string) []string {
	n := len(values)
	for n > 0 && values[n-1] == "" {
		n--
	}
	return values[:n]
}
