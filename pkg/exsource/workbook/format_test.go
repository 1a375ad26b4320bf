package workbook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ukaji3/exsource-go/pkg/exsource/models"
)

func TestIsDateFormat(t *testing.T) {
	custom := func(s string) *string { return &s }
	tests := []struct {
		name   string
		id     int
		custom *string
		want   bool
	}{
		{"general", 0, nil, false},
		{"builtin date", 14, nil, true},
		{"builtin datetime", 22, nil, true},
		{"builtin percent", 10, nil, false},
		{"custom iso", 164, custom("yyyy-mm-dd"), true},
		{"custom time", 165, custom("hh:mm:ss"), true},
		{"custom elapsed", 166, custom("[h]:mm"), true},
		{"custom number", 167, custom("#,##0.00"), false},
		{"quoted literal", 168, custom(`0.0" days"`), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isDateFormat(tt.id, tt.custom))
		})
	}
}

func TestYieldsText(t *testing.T) {
	tests := []struct {
		formula string
		want    bool
	}{
		{`"abc"`, true},
		{`A1&B1`, true},
		{`=UPPER(A1)`, true},
		{`TEXT(A1,"0.00")`, true},
		{`LEN(UPPER(A1))`, false},
		{`UPPER(A1)&""`, true},
		{`SUM(A1:A3)`, false},
		{`A1+B1`, false},
		{`LEFT(A1,1)+1`, false},
		{``, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, yieldsText(tt.formula), tt.formula)
	}
}

func TestClassifyResult(t *testing.T) {
	assert.Equal(t, Cell{Kind: KindNumeric, Number: 42}, classifyResult("A1*2", "42"))
	assert.Equal(t, Cell{Kind: KindText, Text: "42"}, classifyResult(`A1&""`, "42"))
	assert.Equal(t, Cell{Kind: KindBoolean, Bool: true}, classifyResult("A1>0", "TRUE"))
	assert.Equal(t, Cell{Kind: KindError, Text: "#DIV/0!"}, classifyResult("1/0", "#DIV/0!"))
	assert.Equal(t, Cell{Kind: KindBlank}, classifyResult("A9", ""))
	assert.Equal(t, Cell{Kind: KindText, Text: "n/a"}, classifyResult("IF(A1,B1,C1)", "n/a"))
}

func TestClassifyAs(t *testing.T) {
	tests := []struct {
		kind   Kind
		result string
		want   Cell
	}{
		{KindText, "1", Cell{Kind: KindText, Text: "1"}},
		{KindText, "TRUE", Cell{Kind: KindText, Text: "TRUE"}},
		{KindNumeric, "42", Cell{Kind: KindNumeric, Number: 42}},
		{KindBoolean, "1", Cell{Kind: KindBoolean, Bool: true}},
		{KindBoolean, "FALSE", Cell{Kind: KindBoolean}},
		{KindError, "#n/a", Cell{Kind: KindError, Text: "#N/A"}},
		{KindBlank, "", Cell{Kind: KindBlank}},
		{KindNumeric, "abc", Cell{Kind: KindText, Text: "abc"}},
		{KindBoolean, "7", Cell{Kind: KindNumeric, Number: 7}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyAs(tt.kind, "B1", tt.result), "%s %q", tt.kind, tt.result)
	}
}

func TestSingleReference(t *testing.T) {
	tests := []struct {
		formula, sheet, cell string
		ok                   bool
	}{
		{"E2", "", "E2", true},
		{"=$E$2", "", "E2", true},
		{"'My Sheet'!B7", "My Sheet", "B7", true},
		{"Data!$A1", "Data", "A1", true},
		{"A1:B2", "", "", false},
		{"A1+B1", "", "", false},
		{"SUM(A1)", "", "", false},
		{"Total", "", "", false},
		{`"E2"`, "", "", false},
	}
	for _, tt := range tests {
		sheet, cell, ok := singleReference(tt.formula)
		assert.Equal(t, tt.ok, ok, tt.formula)
		assert.Equal(t, tt.sheet, sheet, tt.formula)
		assert.Equal(t, tt.cell, cell, tt.formula)
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		ref  string
		want models.CellRange
		ok   bool
	}{
		{"$A$1:$D$10", models.CellRange{R1: 1, C1: 1, R2: 10, C2: 4}, true},
		{"'My Sheet'!B2:C3", models.CellRange{R1: 2, C1: 2, R2: 3, C2: 3}, true},
		{"B2", models.CellRange{R1: 2, C1: 2, R2: 2, C2: 2}, true},
		{"D4:A1", models.CellRange{R1: 1, C1: 1, R2: 4, C2: 4}, true},
		{"A1:B2:C3", models.CellRange{}, false},
		{"nonsense", models.CellRange{}, false},
	}
	for _, tt := range tests {
		got, ok := parseRange(tt.ref)
		assert.Equal(t, tt.ok, ok, tt.ref)
		assert.Equal(t, tt.want, got, tt.ref)
	}
}

func TestDataBounds(t *testing.T) {
	_, ok := dataBounds(nil)
	assert.False(t, ok)
	_, ok = dataBounds([][]string{{"", ""}, {}})
	assert.False(t, ok)

	got, ok := dataBounds([][]string{
		{},
		{"", "x"},
		{"", "", "", "y"},
	})
	assert.True(t, ok)
	assert.Equal(t, models.CellRange{R1: 2, C1: 2, R2: 3, C2: 4}, got)
}

func TestTimeToSerial(t *testing.T) {
	assert.Equal(t, 45366.0, timeToSerial(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), false))
	assert.Equal(t, 45366.75, timeToSerial(time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC), false))
	assert.Equal(t, 61.0, timeToSerial(time.Date(1900, 3, 1, 0, 0, 0, 0, time.UTC), false))
	assert.Equal(t, 59.0, timeToSerial(time.Date(1900, 2, 28, 0, 0, 0, 0, time.UTC), false))
	assert.Equal(t, 1.0, timeToSerial(time.Date(1904, 1, 2, 0, 0, 0, 0, time.UTC), true))

	tests := []struct {
		t    time.Time
		want float64
	}{
		{time.Date(2500, 1, 1, 0, 0, 0, 0, time.UTC), 219148},
		{time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC), 2958465},
		{time.Date(2300, 6, 1, 12, 0, 0, 0, time.UTC), 146250.5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, timeToSerial(tt.t, false), tt.t.String())
	}
}

func TestSplitReference(t *testing.T) {
	tests := []struct {
		in, sheet, ref string
		ok             bool
	}{
		{"Sheet1!$A$1:$D$10", "Sheet1", "$A$1:$D$10", true},
		{" 'My Sheet'!A1:B2", "My Sheet", "A1:B2", true},
		{"'It''s'!C3", "It's", "C3", true},
		{"$A$1:$D$10", "", "", false},
	}
	for _, tt := range tests {
		sheet, ref, ok := splitReference(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.sheet, sheet, tt.in)
		assert.Equal(t, tt.ref, ref, tt.in)
	}
}
