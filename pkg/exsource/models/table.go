package models

import "fmt"

// SchemaTableName identifies a table: a sheet inside a spreadsheet file.
type SchemaTableName struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

func (n SchemaTableName) String() string {
	return fmt.Sprintf("%s.%s", n.Schema, n.Table)
}

// Constraint is a host predicate offered for pushdown. It is carried along
// but never applied; filtering stays with the host.
type Constraint struct {
	// Expression is the host's textual rendering of the predicate.
	Expression string `json:"expression,omitempty"`
}

// IsAll reports whether the constraint selects every row.
func (c Constraint) IsAll() bool {
	return c.Expression == ""
}

// TableHandle is a resolved table reference plus the offered constraint.
type TableHandle struct {
	Name       SchemaTableName `json:"name"`
	Constraint Constraint      `json:"constraint"`
}

func (h TableHandle) String() string {
	if h.Constraint.IsAll() {
		return h.Name.String()
	}
	return fmt.Sprintf("%s [%s]", h.Name, h.Constraint.Expression)
}

// Split is a unit of work covering exactly one table.
type Split struct {
	Table TableHandle `json:"table"`
	// Addresses lists preferred hosts; always empty, any worker may run a split.
	Addresses []string `json:"addresses"`
}

func (s Split) String() string {
	return fmt.Sprintf("split{table=%s}", s.Table)
}
