// Package output renders catalog data and scan results.
package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/ukaji3/exsource-go/pkg/exsource/models"
)

// ToJSON serializes v, indented when pretty is set.
func ToJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// WriteJSONLines writes one JSON object per row, keys in column order.
func WriteJSONLines(w io.Writer, columns []models.Column, rows []models.ScanRow) error {
	bw := bufio.NewWriter(w)
	for _, row := range rows {
		line, err := rowObject(columns, row)
		if err != nil {
			return err
		}
		if _, err := bw.Write(line); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func rowObject(columns []models.Column, row models.ScanRow) ([]byte, error) {
	if len(row.Values) != len(columns) {
		return nil, errors.Newf("row %d has %d values for %d columns", row.R, len(row.Values), len(columns))
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(row.Values[i])
		if err != nil {
			return nil, errors.Wrapf(err, "row %d column %q", row.R, col.Name)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
