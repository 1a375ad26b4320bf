package models

// TableInfo describes one sheet exposed as a table.
type TableInfo struct {
	// Name identifies the table.
	Name SchemaTableName `json:"name"`
	// Columns are the header-derived columns in ordinal order.
	Columns []Column `json:"columns"`
	// DataRows is the number of physical rows after the header.
	DataRows int `json:"data_rows"`
	// UsedRange is the populated range of the sheet, nil for an empty sheet.
	UsedRange *CellRange `json:"used_range,omitempty"`
	// Density is the share of non-blank cells inside UsedRange.
	Density float64 `json:"density"`
	// PrintAreas are the print ranges defined for the sheet.
	PrintAreas []CellRange `json:"print_areas,omitempty"`
	// Encoding is the sniffed encoding of the owning file.
	Encoding string `json:"encoding"`
	// Properties holds document metadata (title, author, ...).
	Properties map[string]string `json:"properties,omitempty"`
}
