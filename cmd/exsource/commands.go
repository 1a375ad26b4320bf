package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/ukaji3/exsource-go/pkg/exsource"
	"github.com/ukaji3/exsource-go/pkg/exsource/models"
	"github.com/ukaji3/exsource-go/pkg/exsource/output"
)

// catalogFormat is the --format flag of the listing commands.
type catalogFormat struct {
	format string
	pretty bool
}

func (f *catalogFormat) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.format, "format", "table", "output format: table, json")
	cmd.Flags().BoolVar(&f.pretty, "pretty", false, "pretty-print JSON output")
}

// write renders v as JSON, or headers and rows as a table.
func (f *catalogFormat) write(w io.Writer, v any, headers []string, rows [][]string) error {
	switch f.format {
	case "table":
		_, err := fmt.Fprintln(w, renderTable(headers, rows))
		return err
	case "json":
		data, err := output.ToJSON(v, f.pretty)
		if err != nil {
			return errors.Wrap(err, "serialization failed")
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	return errors.Newf("invalid format: %s (must be table or json)", f.format)
}

func newSchemasCmd(a *app) *cobra.Command {
	var f catalogFormat
	cmd := &cobra.Command{
		Use:   "schemas",
		Short: "List the spreadsheet files of the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schemas, err := a.conn.Catalog().Schemas(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, len(schemas))
			for i, s := range schemas {
				rows[i] = []string{s}
			}
			return f.write(cmd.OutOrStdout(), schemas, []string{"schema"}, rows)
		},
	}
	f.register(cmd)
	return cmd
}

func newTablesCmd(a *app) *cobra.Command {
	var f catalogFormat
	cmd := &cobra.Command{
		Use:   "tables [schema]",
		Short: "List sheets, of one schema or of all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var schema string
			if len(args) == 1 {
				schema = args[0]
			}
			tables, err := a.conn.Catalog().Tables(cmd.Context(), schema)
			if err != nil {
				return err
			}
			rows := make([][]string, len(tables))
			for i, t := range tables {
				rows[i] = []string{t.Schema, t.Table}
			}
			return f.write(cmd.OutOrStdout(), tables, []string{"schema", "table"}, rows)
		},
	}
	f.register(cmd)
	return cmd
}

func newColumnsCmd(a *app) *cobra.Command {
	var f catalogFormat
	cmd := &cobra.Command{
		Use:   "columns <schema> <table>",
		Short: "List the header-derived columns of a sheet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cols, err := a.conn.Catalog().Columns(cmd.Context(), tableName(args))
			if err != nil {
				return err
			}
			return f.write(cmd.OutOrStdout(), cols, []string{"#", "name", "type"}, columnRows(cols))
		},
	}
	f.register(cmd)
	return cmd
}

func newDescribeCmd(a *app) *cobra.Command {
	var f catalogFormat
	cmd := &cobra.Command{
		Use:   "describe <schema> <table>",
		Short: "Show columns, size and document properties of a sheet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.conn.Catalog().Describe(cmd.Context(), tableName(args))
			if err != nil {
				return err
			}
			if f.format == "table" {
				w := cmd.OutOrStdout()
				fmt.Fprintln(w, TitleStyle.Render(info.Name.String()))
				used := "empty"
				if info.UsedRange != nil {
					used = info.UsedRange.String()
				}
				summary := [][]string{
					{"encoding", info.Encoding},
					{"data rows", strconv.Itoa(info.DataRows)},
					{"used range", used},
					{"density", strconv.FormatFloat(info.Density, 'f', 2, 64)},
				}
				for _, area := range info.PrintAreas {
					summary = append(summary, []string{"print area", area.String()})
				}
				for _, k := range slices.Sorted(maps.Keys(info.Properties)) {
					summary = append(summary, []string{k, info.Properties[k]})
				}
				fmt.Fprintln(w, renderTable([]string{"property", "value"}, summary))
			}
			return f.write(cmd.OutOrStdout(), info, []string{"#", "name", "type"}, columnRows(info.Columns))
		},
	}
	f.register(cmd)
	return cmd
}

func tableName(args []string) models.SchemaTableName {
	return models.SchemaTableName{Schema: args[0], Table: args[1]}
}

func columnRows(cols []models.Column) [][]string {
	rows := make([][]string, len(cols))
	for i, c := range cols {
		rows[i] = []string{strconv.Itoa(c.Ordinal), c.Name, c.Type.String()}
	}
	return rows
}

// selectColumns resolves --columns entries of the form name[:type] against
// the header columns. Names match exactly first, then ignoring case.
func selectColumns(header []models.Column, specs []string, name models.SchemaTableName) ([]models.Column, error) {
	if len(specs) == 0 {
		return header, nil
	}
	out := make([]models.Column, 0, len(specs))
	for _, spec := range specs {
		colName, typName, hasType := strings.Cut(spec, ":")
		colName = strings.TrimSpace(colName)
		col, ok := findColumn(header, colName)
		if !ok {
			e := exsource.NewError(exsource.CodeNotFound, nil, "column %q does not exist", colName)
			e.Schema, e.Table = name.Schema, name.Table
			return nil, e
		}
		if hasType {
			t, err := models.ParseColumnType(typName)
			if err != nil {
				return nil, errors.Wrapf(err, "column %q", colName)
			}
			col.Type = t
		}
		out = append(out, col)
	}
	return out, nil
}

func findColumn(cols []models.Column, name string) (models.Column, bool) {
	for _, c := range cols {
		if c.Name == name {
			return c, true
		}
	}
	for _, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return models.Column{}, false
}
