package workbook

import (
	"strings"

	"github.com/ukaji3/exsource-go/pkg/exsource/models"
	"github.com/xuri/excelize/v2"
)

// parseRange parses a reference like $A$1:$D$10 or a single cell like B2.
func parseRange(ref string) (models.CellRange, bool) {
	ref = strings.ReplaceAll(strings.TrimSpace(ref), "$", "")
	if i := strings.LastIndex(ref, "!"); i >= 0 {
		ref = ref[i+1:]
	}

	parts := strings.Split(ref, ":")
	if len(parts) == 1 {
		parts = append(parts, parts[0])
	}
	if len(parts) != 2 {
		return models.CellRange{}, false
	}

	c1, r1, err := excelize.CellNameToCoordinates(parts[0])
	if err != nil {
		return models.CellRange{}, false
	}
	c2, r2, err := excelize.CellNameToCoordinates(parts[1])
	if err != nil {
		return models.CellRange{}, false
	}
	if r2 < r1 {
		r1, r2 = r2, r1
	}
	if c2 < c1 {
		c1, c2 = c2, c1
	}
	return models.CellRange{R1: r1, C1: c1, R2: r2, C2: c2}, true
}

// dataBounds finds the bounding box of non-empty cells, 1-based.
func dataBounds(rows [][]string) (models.CellRange, bool) {
	minRow, maxRow := -1, -1
	minCol, maxCol := -1, -1

	for rowIdx, row := range rows {
		for colIdx, cell := range row {
			if cell == "" {
				continue
			}
			if minRow < 0 || rowIdx < minRow {
				minRow = rowIdx
			}
			if rowIdx > maxRow {
				maxRow = rowIdx
			}
			if minCol < 0 || colIdx < minCol {
				minCol = colIdx
			}
			if colIdx > maxCol {
				maxCol = colIdx
			}
		}
	}

	if minRow < 0 {
		return models.CellRange{}, false
	}
	return models.CellRange{R1: minRow + 1, C1: minCol + 1, R2: maxRow + 1, C2: maxCol + 1}, true
}

// Density returns the share of non-blank cells inside the populated range of
// s, in [0, 1]. An empty sheet has density 0.
func Density(s Sheet) (float64, error) {
	r, ok, err := s.Dimension()
	if err != nil || !ok {
		return 0, err
	}
	n, err := s.NumRows()
	if err != nil {
		return 0, err
	}

	nonEmpty := 0
	for i := r.R1 - 1; i < r.R2 && i < n; i++ {
		row, err := s.Row(i)
		if err != nil {
			return 0, err
		}
		for c := r.C1 - 1; c < r.C2 && c < row.Len(); c++ {
			cell, err := row.Cell(c)
			if err != nil {
				return 0, err
			}
			if !cell.IsBlank() {
				nonEmpty++
			}
		}
	}
	return float64(nonEmpty) / float64(r.Rows()*r.Cols()), nil
}
