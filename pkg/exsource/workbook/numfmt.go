package workbook

import (
	"strings"

	"github.com/xuri/nfp"
)

// builtinDateFormats are the built-in number format ids that render dates
// or times: 14-22 (d/m/y, h:mm), 45-47 (mm:ss) and the CJK ranges 27-36, 50-58.
var builtinDateFormats = map[int]bool{}

func init() {
	for _, r := range [][2]int{{14, 22}, {27, 36}, {45, 47}, {50, 58}} {
		for id := r[0]; id <= r[1]; id++ {
			builtinDateFormats[id] = true
		}
	}
}

// isDateFormat reports whether a number format renders a date or time.
// custom takes precedence over the built-in id when set.
func isDateFormat(id int, custom *string) bool {
	if custom != nil && strings.TrimSpace(*custom) != "" {
		return isDateFormatCode(*custom)
	}
	return builtinDateFormats[id]
}

// isDateFormatCode inspects a format code such as "yyyy-mm-dd hh:mm" for
// date and time tokens. Quoted literals and elapsed-time brackets are handled
// by the tokenizer.
func isDateFormatCode(code string) bool {
	p := nfp.NumberFormatParser()
	for _, section := range p.Parse(code) {
		for _, token := range section.Items {
			switch token.TType {
			case nfp.TokenTypeDateTimes, nfp.TokenTypeElapsedDateTimes:
				return true
			}
		}
	}
	return false
}
