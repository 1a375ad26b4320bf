package models

import (
	"fmt"
	"strings"
)

// ColumnType is the output type requested for a column.
type ColumnType int

const (
	// TypeVarchar is text. Catalog columns are always TypeVarchar.
	TypeVarchar ColumnType = iota
	// TypeBigint is a 64-bit integer.
	TypeBigint
	// TypeDouble is a 64-bit float.
	TypeDouble
	// TypeBoolean is a boolean.
	TypeBoolean
	// TypeDate is a day count since 1970-01-01.
	TypeDate
	// TypeTimestamp is milliseconds since the Unix epoch.
	TypeTimestamp
)

var columnTypeNames = [...]string{
	TypeVarchar:   "varchar",
	TypeBigint:    "bigint",
	TypeDouble:    "double",
	TypeBoolean:   "boolean",
	TypeDate:      "date",
	TypeTimestamp: "timestamp(3)",
}

func (t ColumnType) String() string {
	if int(t) >= 0 && int(t) < len(columnTypeNames) {
		return columnTypeNames[t]
	}
	return fmt.Sprintf("ColumnType(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t ColumnType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ColumnType) UnmarshalText(b []byte) error {
	parsed, err := ParseColumnType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseColumnType parses a type name such as "varchar" or "bigint".
func ParseColumnType(s string) (ColumnType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "varchar", "text", "string":
		return TypeVarchar, nil
	case "bigint", "integer", "int", "long":
		return TypeBigint, nil
	case "double", "float":
		return TypeDouble, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	case "date":
		return TypeDate, nil
	case "timestamp", "timestamp(3)":
		return TypeTimestamp, nil
	}
	return 0, fmt.Errorf("unknown column type %q", s)
}

// Column is one header-derived column of a table.
type Column struct {
	// Name is the trimmed header text or COLUMN_<ordinal>.
	Name string `json:"name"`
	// Type is the output type.
	Type ColumnType `json:"type"`
	// Ordinal is the zero-based position in the header row.
	Ordinal int `json:"ordinal"`
}

// SyntheticColumnName names a column whose header cell is unusable.
func SyntheticColumnName(ordinal int) string {
	return fmt.Sprintf("COLUMN_%d", ordinal)
}
