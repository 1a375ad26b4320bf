// Package workbook opens spreadsheet files as structured documents.
//
// Both the legacy BIFF format (.xls, inside an OLE2 compound file) and the
// zip-based SpreadsheetML format (.xlsx) are supported; the format is sniffed
// from the file content, not the extension.
package workbook

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ukaji3/exsource-go/pkg/exsource"
	"github.com/ukaji3/exsource-go/pkg/exsource/models"
)

var (
	ooxmlMagic = []byte("PK\x03\x04")
	oleMagic   = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Document is an open spreadsheet file. A Document is not safe for
// concurrent use.
type Document interface {
	// Encoding returns the sniffed file format.
	Encoding() models.Encoding
	// SheetNames lists the sheets in workbook order.
	SheetNames() []string
	// Sheet looks a sheet up by name, exact match first, then ignoring case.
	Sheet(name string) (Sheet, bool)
	// Properties returns document metadata such as title and author.
	Properties() (map[string]string, error)
	Close() error
}

// Sheet is one worksheet of a Document.
type Sheet interface {
	Name() string
	// NumRows returns the number of physical rows, header included.
	NumRows() (int, error)
	// Row returns the row at zero-based index i.
	Row(i int) (Row, error)
	// Dimension returns the populated range; ok is false for an empty sheet.
	Dimension() (r models.CellRange, ok bool, err error)
}

// Row is one physical row of a Sheet.
type Row interface {
	// Index is the zero-based row index.
	Index() int
	// Len is the last populated column index plus one.
	Len() int
	// Cell returns the cell at zero-based column col. Positions past Len are blank.
	Cell(col int) (Cell, error)
}

// Open opens the spreadsheet at path, sniffing its encoding. Any failure is
// a CodeFileOpen error wrapping the decode fault.
func Open(path string) (Document, error) {
	name := filepath.Base(path)
	enc, err := Sniff(path)
	if err != nil {
		return nil, exsource.NewError(exsource.CodeFileOpen, err, "cannot open spreadsheet %q", name)
	}

	var doc Document
	switch enc {
	case models.EncodingOOXML:
		doc, err = openXLSX(path)
	case models.EncodingLegacy:
		doc, err = openXLS(path)
	}
	if err != nil {
		return nil, exsource.NewError(exsource.CodeFileOpen, err, "cannot decode %s spreadsheet %q", enc, name)
	}
	return doc, nil
}

// Sniff inspects the leading bytes of the file at path.
func Sniff(path string) (models.Encoding, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.EncodingUnknown, errors.Wrap(err, "open")
	}
	defer f.Close()

	head := make([]byte, len(oleMagic))
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return models.EncodingUnknown, errors.Wrap(err, "read header")
	}
	return sniffBytes(head[:n])
}

func sniffBytes(head []byte) (models.Encoding, error) {
	switch {
	case bytes.HasPrefix(head, ooxmlMagic):
		return models.EncodingOOXML, nil
	case bytes.HasPrefix(head, oleMagic):
		return models.EncodingLegacy, nil
	case len(head) == 0:
		return models.EncodingUnknown, errors.New("empty file")
	}
	return models.EncodingUnknown, errors.Newf("unrecognized spreadsheet signature % x", head)
}

// findSheet resolves name against names: exact match first, then the first
// case-insensitive match.
func findSheet(names []string, name string) (string, bool) {
	for _, n := range names {
		if n == name {
			return n, true
		}
	}
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return n, true
		}
	}
	return "", false
}
