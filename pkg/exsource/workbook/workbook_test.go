package workbook

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukaji3/exsource-go/pkg/exsource"
	"github.com/ukaji3/exsource-go/pkg/exsource/models"
	"github.com/xuri/excelize/v2"
)

// writeFixture saves an xlsx built by fill under a temp dir and returns its path.
func writeFixture(t *testing.T, fill func(f *excelize.File)) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	fill(f)
	path := filepath.Join(t.TempDir(), "fixture.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func cellAt(t *testing.T, s Sheet, row, col int) Cell {
	t.Helper()
	r, err := s.Row(row)
	require.NoError(t, err)
	c, err := r.Cell(col)
	require.NoError(t, err)
	return c
}

func TestSniffBytes(t *testing.T) {
	tests := []struct {
		name    string
		head    []byte
		want    models.Encoding
		wantErr bool
	}{
		{"ooxml", []byte("PK\x03\x04rest"), models.EncodingOOXML, false},
		{"ole", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, models.EncodingLegacy, false},
		{"csv", []byte("a,b,c\n"), models.EncodingUnknown, true},
		{"empty", nil, models.EncodingUnknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sniffBytes(tt.head)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenRejectsNonSpreadsheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("just some text"), 0o644))

	_, err := Open(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, exsource.ErrFileOpen)
}

func TestOpenRejectsCorruptCompoundFile(t *testing.T) {
	data := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 64)...)
	path := filepath.Join(t.TempDir(), "broken.xls")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err := Open(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, exsource.ErrFileOpen)
	assert.Equal(t, exsource.CodeFileOpen, exsource.CodeOf(err))
}

func TestOpenXLSX(t *testing.T) {
	path := writeFixture(t, func(f *excelize.File) {
		f.SetCellValue("Sheet1", "A1", "Header1")
		f.SetCellValue("Sheet1", "B1", "Header2")
		f.SetCellValue("Sheet1", "A2", 100)
		f.SetCellValue("Sheet1", "B2", 200.5)
		f.SetCellValue("Sheet1", "A3", "Text")
		f.SetCellValue("Sheet1", "B3", true)
		f.NewSheet("Other")
	})

	doc, err := Open(path)
	require.NoError(t, err)
	defer doc.Close()

	assert.Equal(t, models.EncodingOOXML, doc.Encoding())
	assert.Equal(t, []string{"Sheet1", "Other"}, doc.SheetNames())

	s, ok := doc.Sheet("sheet1")
	require.True(t, ok, "lookup ignores case")
	assert.Equal(t, "Sheet1", s.Name())
	_, ok = doc.Sheet("Missing")
	assert.False(t, ok)

	n, err := s.NumRows()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, "Header1", cellAt(t, s, 0, 0).Text)
	num := cellAt(t, s, 1, 0)
	assert.Equal(t, KindNumeric, num.Kind)
	assert.Equal(t, 100.0, num.Number)
	assert.Equal(t, 200.5, cellAt(t, s, 1, 1).Number)

	b := cellAt(t, s, 2, 1)
	assert.Equal(t, KindBoolean, b.Kind)
	assert.True(t, b.Bool)

	past := cellAt(t, s, 2, 10)
	assert.True(t, past.IsBlank())
	assert.Equal(t, "K3", past.Address)

	dim, ok, err := s.Dimension()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.CellRange{R1: 1, C1: 1, R2: 3, C2: 2}, dim)

	other, _ := doc.Sheet("Other")
	n, err = other.NumRows()
	require.NoError(t, err)
	assert.Zero(t, n)
	_, ok, err = other.Dimension()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenXLS(t *testing.T) {
	doc, err := Open(filepath.Join("testdata", "Table.xls"))
	require.NoError(t, err)
	defer doc.Close()

	assert.Equal(t, models.EncodingLegacy, doc.Encoding())
	assert.Equal(t, []string{"Table"}, doc.SheetNames())
	_, err = doc.Properties()
	require.NoError(t, err)

	s, ok := doc.Sheet("TABLE")
	require.True(t, ok)
	n, err := s.NumRows()
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	tests := []struct {
		row, col int
		want     Cell
	}{
		{0, 0, Cell{Kind: KindText, Text: "Code", Address: "A1"}},
		{0, 1, Cell{Kind: KindText, Text: "Name", Address: "B1"}},
		{0, 2, Cell{Kind: KindText, Text: "Description", Address: "C1"}},
		{1, 0, Cell{Kind: KindText, Text: "code1", Address: "A2"}},
		{11, 2, Cell{Kind: KindText, Text: "description11", Address: "C12"}},
		{11, 5, Cell{Kind: KindBlank, Address: "F12"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cellAt(t, s, tt.row, tt.col), tt.want.Address)
	}

	_, err = s.Row(12)
	assert.Error(t, err)

	dim, ok, err := s.Dimension()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.CellRange{R1: 1, C1: 1, R2: 12, C2: 3}, dim)
}

func TestXLSXTrailingBlankRows(t *testing.T) {
	tests := []struct {
		name string
		fill func(f *excelize.File)
		want int
	}{
		{"data only", func(f *excelize.File) {
			f.SetSheetRow("Sheet1", "A1", &[]any{"id", "name"})
			f.SetSheetRow("Sheet1", "A2", &[]any{1, "a"})
		}, 2},
		{"styled blank row", func(f *excelize.File) {
			f.SetSheetRow("Sheet1", "A1", &[]any{"id", "name"})
			f.SetSheetRow("Sheet1", "A2", &[]any{1, "a"})
			style, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
			f.SetCellStyle("Sheet1", "A4", "B4", style)
		}, 4},
		{"sized blank row", func(f *excelize.File) {
			f.SetSheetRow("Sheet1", "A1", &[]any{"id"})
			f.SetRowHeight("Sheet1", 3, 30)
		}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Open(writeFixture(t, tt.fill))
			require.NoError(t, err)
			defer doc.Close()
			s, _ := doc.Sheet("Sheet1")

			n, err := s.NumRows()
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)

			last, err := s.Row(n - 1)
			require.NoError(t, err)
			c, err := last.Cell(0)
			require.NoError(t, err)
			if n > 2 {
				assert.True(t, c.IsBlank())
			}
		})
	}
}

func TestXLSXDates(t *testing.T) {
	when := time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)
	path := writeFixture(t, func(f *excelize.File) {
		f.SetCellValue("Sheet1", "A1", when)
		f.SetCellValue("Sheet1", "B1", 45366.5)
	})

	doc, err := Open(path)
	require.NoError(t, err)
	defer doc.Close()
	s, _ := doc.Sheet("Sheet1")

	date := cellAt(t, s, 0, 0)
	require.Equal(t, KindNumeric, date.Kind)
	isDate, err := date.IsDateFormatted()
	require.NoError(t, err)
	assert.True(t, isDate)
	got, err := date.Time()
	require.NoError(t, err)
	assert.Equal(t, when, got)

	plain := cellAt(t, s, 0, 1)
	isDate, err = plain.IsDateFormatted()
	require.NoError(t, err)
	assert.False(t, isDate)
}

func TestXLSXFormulas(t *testing.T) {
	path := writeFixture(t, func(f *excelize.File) {
		f.SetCellValue("Sheet1", "A1", 2)
		f.SetCellValue("Sheet1", "B1", 3)
		f.SetCellFormula("Sheet1", "C1", "A1+B1")
		f.SetCellFormula("Sheet1", "D1", `"x"&A1`)
		f.SetCellFormula("Sheet1", "E1", "A1>B1")
	})

	doc, err := Open(path)
	require.NoError(t, err)
	defer doc.Close()
	s, _ := doc.Sheet("Sheet1")

	sum := cellAt(t, s, 0, 2)
	require.Equal(t, KindFormula, sum.Kind)
	assert.Equal(t, "A1+B1", sum.Formula)
	res, err := sum.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, KindNumeric, res.Kind)
	assert.Equal(t, 5.0, res.Number)

	res, err = cellAt(t, s, 0, 3).Evaluate()
	require.NoError(t, err)
	assert.Equal(t, KindText, res.Kind)
	assert.Equal(t, "x2", res.Text)

	res, err = cellAt(t, s, 0, 4).Evaluate()
	require.NoError(t, err)
	assert.Equal(t, KindBoolean, res.Kind)
	assert.False(t, res.Bool)
}

func TestXLSXReferenceFormulas(t *testing.T) {
	path := writeFixture(t, func(f *excelize.File) {
		f.SetCellValue("Sheet1", "E2", "1")
		f.SetCellValue("Sheet1", "F2", 1)
		f.SetCellValue("Sheet1", "G2", true)
		f.SetCellFormula("Sheet1", "A2", "E2")
		f.SetCellFormula("Sheet1", "B2", "$F$2")
		f.SetCellFormula("Sheet1", "C2", "A2")
		f.SetCellFormula("Sheet1", "D2", "G2")
		f.NewSheet("Other Data")
		f.SetCellValue("Other Data", "A1", "007")
		f.SetCellFormula("Sheet1", "H2", "'Other Data'!A1")
		f.SetCellFormula("Sheet1", "I2", "E2*1")
	})

	doc, err := Open(path)
	require.NoError(t, err)
	defer doc.Close()
	s, _ := doc.Sheet("Sheet1")

	tests := []struct {
		name string
		col  int
		want Cell
	}{
		{"text reference", 0, Cell{Kind: KindText, Text: "1"}},
		{"absolute numeric reference", 1, Cell{Kind: KindNumeric, Number: 1}},
		{"chained reference", 2, Cell{Kind: KindText, Text: "1"}},
		{"boolean reference", 3, Cell{Kind: KindBoolean, Bool: true}},
		{"other sheet", 7, Cell{Kind: KindText, Text: "007"}},
		{"arithmetic", 8, Cell{Kind: KindNumeric, Number: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cellAt(t, s, 1, tt.col)
			require.Equal(t, KindFormula, c.Kind)
			res, err := c.Evaluate()
			require.NoError(t, err)
			assert.Equal(t, tt.want.Kind, res.Kind)
			assert.Equal(t, tt.want.Text, res.Text)
			assert.Equal(t, tt.want.Number, res.Number)
			assert.Equal(t, tt.want.Bool, res.Bool)
		})
	}
}

func TestDetachedCells(t *testing.T) {
	c := Formula("C1", "A1*2", Number("", 8))
	res, err := c.Evaluate()
	require.NoError(t, err)
	assert.Equal(t, 8.0, res.Number)
	assert.Equal(t, "C1", res.Address)

	s, err := c.Display()
	require.NoError(t, err)
	assert.Equal(t, "8", s)

	s, err = Bool("A1", true).Display()
	require.NoError(t, err)
	assert.Equal(t, "TRUE", s)

	isDate, err := Date("A1", 45366).IsDateFormatted()
	require.NoError(t, err)
	assert.True(t, isDate)

	_, err = Cell{Kind: KindFormula, Formula: "A1", Address: "B1"}.Evaluate()
	assert.Error(t, err)

	tm, err := Date("A1", 45366).Time()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), tm)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		input string
		kind  Kind
		num   float64
		text  string
	}{
		{"123", KindNumeric, 123, ""},
		{"123.45", KindNumeric, 123.45, ""},
		{"-100", KindNumeric, -100, ""},
		{"1e3", KindNumeric, 1000, ""},
		{"NaN", KindText, 0, "NaN"},
		{"Inf", KindText, 0, "Inf"},
		{"hello", KindText, 0, "hello"},
		{"#N/A", KindError, 0, "#N/A"},
		{"", KindBlank, 0, ""},
		{"   ", KindBlank, 0, ""},
	}

	for _, tt := range tests {
		got := parseValue(tt.input)
		if got.Kind != tt.kind {
			t.Errorf("parseValue(%q).Kind = %v, want %v", tt.input, got.Kind, tt.kind)
			continue
		}
		if got.Number != tt.num || got.Text != tt.text {
			t.Errorf("parseValue(%q) = %+v", tt.input, got)
		}
	}

	disp, err := parseValue("1.50").Display()
	require.NoError(t, err)
	assert.Equal(t, "1.50", disp, "legacy cells keep their rendering")
}

func TestPropertyValue(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{" Quarterly report ", "Quarterly report", true},
		{"売上", "売上", true},
		{"", "", false},
		{"   ", "", false},
		{"caf\xe9", "", false},
		{"\x94\x84\x8f\xe3", "", false},
	}
	for _, tt := range tests {
		got, ok := propertyValue(tt.raw)
		assert.Equal(t, tt.ok, ok, "%q", tt.raw)
		assert.Equal(t, tt.want, got, "%q", tt.raw)
	}
}

func TestFindSheet(t *testing.T) {
	names := []string{"data", "Data", "Summary"}
	got, ok := findSheet(names, "Data")
	assert.True(t, ok)
	assert.Equal(t, "Data", got, "exact match wins")

	got, ok = findSheet(names, "SUMMARY")
	assert.True(t, ok)
	assert.Equal(t, "Summary", got)

	got, ok = findSheet(names, "DATA")
	assert.True(t, ok)
	assert.Equal(t, "data", got, "first case-insensitive match wins")

	_, ok = findSheet(names, "nope")
	assert.False(t, ok)
}

func TestPrintAreas(t *testing.T) {
	path := writeFixture(t, func(f *excelize.File) {
		f.SetCellValue("Sheet1", "A1", "x")
		f.NewSheet("Q 1")
		require.NoError(t, f.SetDefinedName(&excelize.DefinedName{
			Name:     "_xlnm.Print_Area",
			RefersTo: "Sheet1!$A$1:$B$3,Sheet1!$D$1:$D$2",
			Scope:    "Sheet1",
		}))
		require.NoError(t, f.SetDefinedName(&excelize.DefinedName{
			Name:     "_xlnm.Print_Area",
			RefersTo: "'Q 1'!$C$5:$E$9",
			Scope:    "Q 1",
		}))
	})

	doc, err := Open(path)
	require.NoError(t, err)
	defer doc.Close()

	assert.Equal(t, []models.CellRange{
		{R1: 1, C1: 1, R2: 3, C2: 2},
		{R1: 1, C1: 4, R2: 2, C2: 4},
	}, PrintAreas(doc, "Sheet1"))
	assert.Equal(t, []models.CellRange{{R1: 5, C1: 3, R2: 9, C2: 5}}, PrintAreas(doc, "Q 1"))
	assert.Empty(t, PrintAreas(doc, "Missing"))
}
