// Package catalog lists the schemas, tables and columns of an archive.
//
// Every call materializes its own archive.Source and releases it before
// returning; nothing is cached, so two calls against an archive that changed
// in between may disagree.
package catalog

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/ukaji3/exsource-go/pkg/exsource"
	"github.com/ukaji3/exsource-go/pkg/exsource/archive"
	"github.com/ukaji3/exsource-go/pkg/exsource/models"
	"github.com/ukaji3/exsource-go/pkg/exsource/workbook"
)

// Resolver answers catalog questions about the archive at Config.URL.
type Resolver struct {
	cfg    exsource.Config
	logger *slog.Logger
	opts   []archive.Option
}

// New returns a Resolver. opts are applied to every archive.Source it creates
// after the options derived from cfg and logger.
func New(cfg exsource.Config, logger *slog.Logger, opts ...archive.Option) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{cfg: cfg, logger: logger, opts: opts}
}

func (r *Resolver) sourceOptions() []archive.Option {
	return append([]archive.Option{archive.WithConfig(r.cfg), archive.WithLogger(r.logger)}, r.opts...)
}

func (r *Resolver) withSource(ctx context.Context, fn func(*archive.Source) error) error {
	return archive.With(ctx, r.cfg.URL, r.sourceOptions(), fn)
}

// Schemas lists one schema per extracted spreadsheet, in archive order.
func (r *Resolver) Schemas(ctx context.Context) ([]string, error) {
	var schemas []string
	err := r.withSource(ctx, func(src *archive.Source) error {
		var err error
		schemas, err = src.Schemas()
		return err
	})
	if err != nil {
		r.logger.Warn("cannot list schemas", "url", r.cfg.ArchiveURL(), "error", err)
		return nil, exsource.WithContext(err, r.cfg.ErrorContext("", ""))
	}
	return schemas, nil
}

// Tables lists the sheets of schema. An empty schema lists the sheets of every
// spreadsheet using a single materialization. A schema absent from the
// archive yields an empty list.
func (r *Resolver) Tables(ctx context.Context, schema string) ([]models.SchemaTableName, error) {
	tables := []models.SchemaTableName{}
	err := r.withSource(ctx, func(src *archive.Source) error {
		var files []models.SpreadsheetFile
		if schema == "" {
			all, err := src.Files()
			if err != nil {
				return err
			}
			files = all
		} else {
			f, ok, err := src.Lookup(schema)
			if err != nil {
				return err
			}
			if !ok {
				r.logger.Warn("schema not found while listing tables", "schema", schema, "url", r.cfg.ArchiveURL())
				return nil
			}
			files = []models.SpreadsheetFile{f}
		}

		for _, f := range files {
			names, err := sheetNames(src, f)
			if err != nil {
				return exsource.WithContext(err, r.cfg.ErrorContext(f.Schema, ""))
			}
			for _, n := range names {
				tables = append(tables, models.SchemaTableName{Schema: f.Schema, Table: n})
			}
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("cannot list tables", "schema", schema, "url", r.cfg.ArchiveURL(), "error", err)
		return nil, exsource.WithContext(err, r.cfg.ErrorContext(schema, ""))
	}
	return tables, nil
}

func sheetNames(src *archive.Source, f models.SpreadsheetFile) ([]string, error) {
	doc, err := src.OpenDocument(f.FullName)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return doc.SheetNames(), nil
}

// Columns derives the columns of a table from its header row. A sheet with
// no header row has no columns.
func (r *Resolver) Columns(ctx context.Context, name models.SchemaTableName) ([]models.Column, error) {
	var columns []models.Column
	err := r.withSource(ctx, func(src *archive.Source) error {
		return withSheet(src, name, func(_ workbook.Document, sheet workbook.Sheet) error {
			var err error
			columns, err = HeaderColumns(sheet)
			return err
		})
	})
	if err != nil {
		r.logger.Warn("cannot resolve columns", "table", name.String(), "url", r.cfg.ArchiveURL(), "error", err)
		return nil, exsource.WithContext(err, r.cfg.ErrorContext(name.Schema, name.Table))
	}
	if len(columns) == 0 {
		r.logger.Warn("sheet has no header row", "table", name.String())
	}
	return columns, nil
}

// TableHandle returns a handle for name without checking that it exists.
func (r *Resolver) TableHandle(name models.SchemaTableName) models.TableHandle {
	return models.TableHandle{Name: name}
}

// Describe reports the columns, size and metadata of a table.
func (r *Resolver) Describe(ctx context.Context, name models.SchemaTableName) (models.TableInfo, error) {
	var info models.TableInfo
	err := r.withSource(ctx, func(src *archive.Source) error {
		return withSheet(src, name, func(doc workbook.Document, sheet workbook.Sheet) error {
			columns, err := HeaderColumns(sheet)
			if err != nil {
				return err
			}
			rows, err := sheet.NumRows()
			if err != nil {
				return err
			}
			props, err := doc.Properties()
			if err != nil {
				return err
			}
			info = models.TableInfo{
				Name:       models.SchemaTableName{Schema: name.Schema, Table: sheet.Name()},
				Columns:    columns,
				DataRows:   max(rows-1, 0),
				Encoding:   doc.Encoding().String(),
				Properties: props,
				PrintAreas: workbook.PrintAreas(doc, sheet.Name()),
			}
			if used, ok, err := sheet.Dimension(); err != nil {
				return err
			} else if ok {
				info.UsedRange = &used
				if info.Density, err = workbook.Density(sheet); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return models.TableInfo{}, exsource.WithContext(err, r.cfg.ErrorContext(name.Schema, name.Table))
	}
	return info, nil
}

// withSheet resolves name inside a materialized source and runs fn with the
// open document and sheet. The document is closed when fn returns.
func withSheet(src *archive.Source, name models.SchemaTableName, fn func(workbook.Document, workbook.Sheet) error) error {
	doc, sheet, err := OpenSheet(src, name)
	if err != nil {
		return err
	}
	defer doc.Close()
	return fn(doc, sheet)
}

// OpenSheet opens the spreadsheet of name.Schema and finds sheet name.Table.
// A missing schema or sheet is a CodeNotFound error. On success the caller
// owns the returned Document.
func OpenSheet(src *archive.Source, name models.SchemaTableName) (workbook.Document, workbook.Sheet, error) {
	f, ok, err := src.Lookup(name.Schema)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		e := exsource.NewError(exsource.CodeNotFound, nil, "schema %q not found", name.Schema)
		e.Schema, e.Table, e.URL = name.Schema, name.Table, src.URL()
		return nil, nil, e
	}
	doc, err := src.OpenDocument(f.FullName)
	if err != nil {
		return nil, nil, err
	}
	sheet, ok := doc.Sheet(name.Table)
	if !ok {
		_ = doc.Close()
		e := exsource.NewError(exsource.CodeNotFound, nil, "table %q not found in %q", name.Table, f.FullName)
		e.Schema, e.Table, e.URL = name.Schema, name.Table, src.URL()
		return nil, nil, e
	}
	return doc, sheet, nil
}

// HeaderColumns names one varchar column per position of row 0, up to the
// last populated cell. Blank, non-text and whitespace-only header cells are
// named COLUMN_<i>.
func HeaderColumns(sheet workbook.Sheet) ([]models.Column, error) {
	n, err := sheet.NumRows()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []models.Column{}, nil
	}
	header, err := sheet.Row(0)
	if err != nil {
		return nil, err
	}

	columns := make([]models.Column, 0, header.Len())
	for i := 0; i < header.Len(); i++ {
		cell, err := header.Cell(i)
		if err != nil {
			return nil, err
		}
		name := models.SyntheticColumnName(i)
		if cell.Kind == workbook.KindText {
			if trimmed := strings.TrimSpace(cell.Text); trimmed != "" {
				name = trimmed
			}
		}
		columns = append(columns, models.Column{Name: name, Type: models.TypeVarchar, Ordinal: i})
	}
	return columns, nil
}
