package workbook

import (
	"strings"

	"github.com/ukaji3/exsource-go/pkg/exsource/models"
)

const printAreaName = "_xlnm.Print_Area"

// PrintAreas returns the print ranges defined for the named sheet, in
// definition order. Legacy documents report none.
func PrintAreas(doc Document, sheet string) []models.CellRange {
	x, ok := doc.(*xlsxDocument)
	if !ok {
		return nil
	}
	var out []models.CellRange
	for _, dn := range x.f.GetDefinedName() {
		if !strings.EqualFold(dn.Name, printAreaName) {
			continue
		}
		for _, part := range strings.Split(strings.TrimPrefix(dn.RefersTo, "="), ",") {
			name, ref, ok := splitReference(part)
			if !ok || name != sheet {
				continue
			}
			if r, ok := parseRange(ref); ok {
				out = append(out, r)
			}
		}
	}
	return out
}

// splitReference splits 'Sheet Name'!$A$1:$D$10 into the unquoted sheet
// name and the range.
func splitReference(part string) (sheet, ref string, ok bool) {
	part = strings.TrimSpace(part)
	i := strings.LastIndex(part, "!")
	if i <= 0 {
		return "", "", false
	}
	sheet = part[:i]
	if len(sheet) >= 2 && sheet[0] == '\'' && sheet[len(sheet)-1] == '\'' {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	return sheet, part[i+1:], true
}
