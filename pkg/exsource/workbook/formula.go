package workbook

import (
	"strconv"
	"strings"

	"github.com/xuri/efp"
	"github.com/xuri/excelize/v2"
)

// textFunctions always return text, whatever their arguments look like.
var textFunctions = map[string]bool{
	"CHAR": true, "CLEAN": true, "CONCAT": true, "CONCATENATE": true,
	"DOLLAR": true, "FIXED": true, "LEFT": true, "LEFTB": true,
	"LOWER": true, "MID": true, "MIDB": true, "PROPER": true,
	"REPLACE": true, "REPT": true, "RIGHT": true, "RIGHTB": true,
	"SUBSTITUTE": true, "T": true, "TEXT": true, "TEXTJOIN": true,
	"TRIM": true, "UNICHAR": true, "UPPER": true,
}

// yieldsText reports whether the top-level expression of formula produces
// text: a string literal, a '&' concatenation, or a call to a text function
// spanning the whole formula.
func yieldsText(formula string) bool {
	tokens := tokenize(formula)
	if len(tokens) == 0 {
		return false
	}
	depth := 0
	for _, tok := range tokens {
		switch {
		case tok.TType == efp.TokenTypeFunction && tok.TSubType == efp.TokenSubTypeStart,
			tok.TType == efp.TokenTypeSubexpression && tok.TSubType == efp.TokenSubTypeStart:
			depth++
		case tok.TType == efp.TokenTypeFunction && tok.TSubType == efp.TokenSubTypeStop,
			tok.TType == efp.TokenTypeSubexpression && tok.TSubType == efp.TokenSubTypeStop:
			depth--
		case depth == 0 && tok.TType == efp.TokenTypeOperatorInfix && tok.TValue == "&":
			return true
		}
	}
	first, last := tokens[0], tokens[len(tokens)-1]
	if len(tokens) == 1 {
		return first.TType == efp.TokenTypeOperand && first.TSubType == efp.TokenSubTypeText
	}
	return first.TType == efp.TokenTypeFunction && first.TSubType == efp.TokenSubTypeStart &&
		textFunctions[strings.ToUpper(first.TValue)] &&
		last.TType == efp.TokenTypeFunction && last.TSubType == efp.TokenSubTypeStop &&
		closesFirst(tokens)
}

// tokenize splits formula into tokens, dropping whitespace.
func tokenize(formula string) []efp.Token {
	ps := efp.ExcelParser()
	var tokens []efp.Token
	for _, tok := range ps.Parse(strings.TrimPrefix(strings.TrimSpace(formula), "=")) {
		if tok.TType == efp.TokenTypeWhitespace || tok.TType == efp.TokenTypeNoop {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// closesFirst reports whether the function opened by tokens[0] is closed only
// by the last token.
func closesFirst(tokens []efp.Token) bool {
	depth := 0
	for i, tok := range tokens {
		if tok.TType != efp.TokenTypeFunction && tok.TType != efp.TokenTypeSubexpression {
			continue
		}
		switch tok.TSubType {
		case efp.TokenSubTypeStart:
			depth++
		case efp.TokenSubTypeStop:
			depth--
			if depth == 0 && i != len(tokens)-1 {
				return false
			}
		}
	}
	return true
}

// classifyResult turns the raw result of a formula evaluation into a cell.
func classifyResult(formula, result string) Cell {
	if yieldsText(formula) {
		return Cell{Kind: KindText, Text: result}
	}
	trimmed := strings.TrimSpace(result)
	switch {
	case trimmed == "":
		return Cell{Kind: KindBlank}
	case IsErrorLiteral(trimmed):
		return Cell{Kind: KindError, Text: strings.ToUpper(trimmed)}
	case strings.EqualFold(trimmed, "TRUE"):
		return Cell{Kind: KindBoolean, Bool: true}
	case strings.EqualFold(trimmed, "FALSE"):
		return Cell{Kind: KindBoolean, Bool: false}
	}
	if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return Cell{Kind: KindNumeric, Number: v}
	}
	return Cell{Kind: KindText, Text: result}
}

// classifyAs converts a formula result whose kind the workbook records.
// A result that does not fit kind is classified from its content.
func classifyAs(kind Kind, formula, result string) Cell {
	trimmed := strings.TrimSpace(result)
	switch kind {
	case KindText:
		return Cell{Kind: KindText, Text: result}
	case KindBoolean:
		switch strings.ToUpper(trimmed) {
		case "TRUE", "1":
			return Cell{Kind: KindBoolean, Bool: true}
		case "FALSE", "0":
			return Cell{Kind: KindBoolean, Bool: false}
		}
	case KindNumeric:
		if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return Cell{Kind: KindNumeric, Number: v}
		}
	case KindError:
		if IsErrorLiteral(trimmed) {
			return Cell{Kind: KindError, Text: strings.ToUpper(trimmed)}
		}
	case KindBlank:
		if trimmed == "" {
			return Cell{Kind: KindBlank}
		}
	}
	return classifyResult(formula, result)
}

// singleReference reports the cell named by a formula that is nothing but
// one cell reference, such as E2, $E$2 or 'Q 1'!E2. sheet is empty for a
// reference into the formula's own sheet.
func singleReference(formula string) (sheet, cell string, ok bool) {
	tokens := tokenize(formula)
	if len(tokens) != 1 || tokens[0].TType != efp.TokenTypeOperand || tokens[0].TSubType != efp.TokenSubTypeRange {
		return "", "", false
	}
	ref := tokens[0].TValue
	if strings.Contains(ref, "!") {
		if sheet, ref, ok = splitReference(ref); !ok {
			return "", "", false
		}
	}
	ref = strings.ReplaceAll(ref, "$", "")
	if _, _, err := excelize.CellNameToCoordinates(ref); err != nil {
		return "", "", false
	}
	return sheet, ref, true
}
