// Package models defines data structures shared by the connector components.
package models

// ScanRow is one data row produced by a scan.
type ScanRow struct {
	// R is the physical row number in the sheet (1-based, header is row 1).
	R int `json:"r"`
	// Values holds one value per requested column, nil for SQL NULL.
	Values []any `json:"values"`
}
