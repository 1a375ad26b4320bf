package models

import "strings"

// Encoding identifies the on-disk format of a spreadsheet file.
type Encoding int

const (
	// EncodingUnknown is used before the file has been sniffed.
	EncodingUnknown Encoding = iota
	// EncodingLegacy is the BIFF binary format inside an OLE2 compound file (.xls).
	EncodingLegacy
	// EncodingOOXML is the zip-based SpreadsheetML format (.xlsx).
	EncodingOOXML
)

func (e Encoding) String() string {
	switch e {
	case EncodingLegacy:
		return "xls"
	case EncodingOOXML:
		return "xlsx"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (e Encoding) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// EncodingForName guesses the encoding from a file extension.
func EncodingForName(name string) Encoding {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".xlsx"):
		return EncodingOOXML
	case strings.HasSuffix(lower, ".xls"):
		return EncodingLegacy
	default:
		return EncodingUnknown
	}
}

// SpreadsheetFile is one spreadsheet extracted from the archive.
type SpreadsheetFile struct {
	// Schema is the file name without its extension.
	Schema string `json:"schema"`
	// FullName is the base file name with extension.
	FullName string `json:"full_name"`
	// Encoding is derived from the extension; the document sniffs the real one on open.
	Encoding Encoding `json:"encoding"`
	// Size is the extracted size in bytes.
	Size int64 `json:"size"`
}

// SchemaName strips the last extension from a file name.
func SchemaName(fullName string) string {
	if i := strings.LastIndexByte(fullName, '.'); i >= 0 {
		return fullName[:i]
	}
	return fullName
}
