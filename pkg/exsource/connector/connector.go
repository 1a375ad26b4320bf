// Package connector wires the catalog, planner and record-set factory for one
// archive behind a single entry point.
package connector

import (
	"context"
	"io"
	"log/slog"

	"github.com/ukaji3/exsource-go/pkg/exsource"
	"github.com/ukaji3/exsource-go/pkg/exsource/archive"
	"github.com/ukaji3/exsource-go/pkg/exsource/catalog"
	"github.com/ukaji3/exsource-go/pkg/exsource/cursor"
	"github.com/ukaji3/exsource-go/pkg/exsource/models"
	"github.com/ukaji3/exsource-go/pkg/exsource/split"
)

// Connector exposes the spreadsheets of one archive as tables.
type Connector struct {
	cfg     exsource.Config
	logger  *slog.Logger
	catalog *catalog.Resolver
	planner *split.Planner
	factory *split.Factory
}

// New validates cfg and builds a Connector. A nil logger discards output.
// opts are passed to every archive.Source the connector creates.
func New(cfg exsource.Config, logger *slog.Logger, opts ...archive.Option) (*Connector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, exsource.NewError(exsource.CodeInternal, err, "invalid configuration")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger.Info("connector configured", "url", cfg.ArchiveURL())
	return &Connector{
		cfg:     cfg,
		logger:  logger,
		catalog: catalog.New(cfg, logger, opts...),
		planner: split.NewPlanner(cfg, logger, opts...),
		factory: split.NewFactory(cfg, logger, opts...),
	}, nil
}

// Config returns the configuration the connector was built with.
func (c *Connector) Config() exsource.Config { return c.cfg }

// Catalog returns the schema, table and column resolver.
func (c *Connector) Catalog() *catalog.Resolver { return c.catalog }

// Planner returns the split planner.
func (c *Connector) Planner() *split.Planner { return c.planner }

// RecordSets returns the cursor factory.
func (c *Connector) RecordSets() *split.Factory { return c.factory }

// Open plans name and returns a cursor over columns. When columns is nil the
// header-derived varchar columns are read.
func (c *Connector) Open(ctx context.Context, name models.SchemaTableName, columns []models.Column) (*cursor.Cursor, error) {
	if columns == nil {
		cols, err := c.catalog.Columns(ctx, name)
		if err != nil {
			return nil, err
		}
		columns = cols
	}
	handle := c.catalog.TableHandle(name)
	splits, err := c.planner.Splits(ctx, handle, handle.Constraint)
	if err != nil {
		return nil, err
	}
	return c.factory.RecordSet(ctx, splits[0], columns)
}

// Scan reads every data row of name and calls fn with its values, converted
// per column type by cursor.Value. Scanning stops at the first error,
// including one returned by fn. It returns the columns read.
func (c *Connector) Scan(ctx context.Context, name models.SchemaTableName, columns []models.Column, fn func(models.ScanRow) error) ([]models.Column, error) {
	cur, err := c.Open(ctx, name, columns)
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	columns = cur.Columns()

	for cur.Advance() {
		if err := ctx.Err(); err != nil {
			return columns, err
		}
		row := models.ScanRow{R: cur.RowNumber(), Values: make([]any, len(columns))}
		for i := range columns {
			v, err := cur.Value(i)
			if err != nil {
				return columns, err
			}
			row.Values[i] = v
		}
		if err := fn(row); err != nil {
			return columns, err
		}
	}
	return columns, cur.Err()
}
