package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/ukaji3/exsource-go/pkg/exsource/models"
	"github.com/ukaji3/exsource-go/pkg/exsource/output"
)

type scanOptions struct {
	columns    []string
	format     string
	outputPath string
	pretty     bool
	constraint string
}

// scanResult is the document written by --format json.
type scanResult struct {
	Table   models.TableHandle `json:"table"`
	Columns []models.Column    `json:"columns"`
	Rows    []models.ScanRow   `json:"rows"`
}

func newScanCmd(a *app) *cobra.Command {
	var o scanOptions
	cmd := &cobra.Command{
		Use:   "scan <schema> <table>",
		Short: "Read the data rows of a sheet",
		Long: `Read the data rows of a sheet. Every column is varchar unless a type
is given with --columns name:type (varchar, bigint, double, boolean, date,
timestamp). Blank cells are NULL.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.scan(cmd, tableName(args), o)
		},
	}
	cmd.Flags().StringSliceVar(&o.columns, "columns", nil, "columns to read as name[:type], in output order (default: all, as varchar)")
	cmd.Flags().StringVar(&o.format, "format", "jsonl", "output format: json, jsonl, arrow, table")
	cmd.Flags().StringVarP(&o.outputPath, "output", "o", "", "output file path (default: stdout)")
	cmd.Flags().BoolVar(&o.pretty, "pretty", false, "pretty-print JSON output")
	cmd.Flags().StringVar(&o.constraint, "where", "", "predicate offered for pushdown; it is reported, never applied")
	return cmd
}

func (a *app) scan(cmd *cobra.Command, name models.SchemaTableName, o scanOptions) error {
	switch o.format {
	case "json", "jsonl", "arrow", "table":
	default:
		return errors.Newf("invalid format: %s (must be json, jsonl, arrow or table)", o.format)
	}
	ctx := cmd.Context()

	header, err := a.conn.Catalog().Columns(ctx, name)
	if err != nil {
		return err
	}
	columns, err := selectColumns(header, o.columns, name)
	if err != nil {
		return err
	}

	handle := a.conn.Catalog().TableHandle(name)
	handle.Constraint = models.Constraint{Expression: o.constraint}
	if _, applied := a.conn.Planner().ApplyFilter(handle, handle.Constraint); !applied && !handle.Constraint.IsAll() {
		a.logger.Info("constraint not applied, returning all rows", "table", handle.String())
	}

	w, closeOut, err := openOutput(cmd.OutOrStdout(), o.outputPath)
	if err != nil {
		return err
	}
	defer closeOut()

	if o.format == "arrow" {
		splits, err := a.conn.Planner().Splits(ctx, handle, handle.Constraint)
		if err != nil {
			return err
		}
		cur, err := a.conn.RecordSets().RecordSet(ctx, splits[0], columns)
		if err != nil {
			return err
		}
		defer cur.Close()
		n, err := output.WriteArrow(w, columns, cur, a.conn.Config().EffectiveScanBatchSize())
		if err != nil {
			return err
		}
		a.logger.Info("scan finished", "table", handle.String(), "rows", n)
		return closeOut()
	}

	var rows []models.ScanRow
	if _, err := a.conn.Scan(ctx, name, columns, func(r models.ScanRow) error {
		rows = append(rows, r)
		return nil
	}); err != nil {
		return err
	}
	a.logger.Info("scan finished", "table", handle.String(), "rows", len(rows))

	switch o.format {
	case "jsonl":
		err = output.WriteJSONLines(w, columns, rows)
	case "json":
		var data []byte
		data, err = output.ToJSON(scanResult{Table: handle, Columns: columns, Rows: rows}, o.pretty)
		if err == nil {
			_, err = fmt.Fprintln(w, string(data))
		}
	case "table":
		_, err = fmt.Fprintln(w, renderTable(scanHeaders(columns), scanCells(rows)))
	}
	if err != nil {
		return errors.Wrap(err, "failed to write output")
	}
	return closeOut()
}

// openOutput returns stdout or a buffered file. The returned close func is
// safe to call more than once and reports the first flush or close failure.
func openOutput(stdout io.Writer, path string) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create output")
	}
	bw := bufio.NewWriter(f)
	var closed bool
	return bw, func() error {
		if closed {
			return nil
		}
		closed = true
		ferr := bw.Flush()
		if cerr := f.Close(); ferr == nil {
			ferr = cerr
		}
		if ferr != nil {
			return errors.Wrap(ferr, "failed to write output")
		}
		return nil
	}, nil
}

func scanHeaders(columns []models.Column) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.Name
	}
	return out
}

func scanCells(rows []models.ScanRow) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		cells := make([]string, len(r.Values))
		for j, v := range r.Values {
			cells[j] = formatValue(v)
		}
		out[i] = cells
	}
	return out
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 && x.Location() == time.UTC {
			return x.Format(time.DateOnly)
		}
		return x.Format("2006-01-02 15:04:05.000 MST")
	}
	return fmt.Sprint(v)
}
