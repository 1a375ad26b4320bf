// Package split plans one unit of work per table and turns a split into an
// open cursor.
package split

import (
	"context"
	"io"
	"log/slog"

	"github.com/ukaji3/exsource-go/pkg/exsource"
	"github.com/ukaji3/exsource-go/pkg/exsource/archive"
	"github.com/ukaji3/exsource-go/pkg/exsource/catalog"
	"github.com/ukaji3/exsource-go/pkg/exsource/cursor"
	"github.com/ukaji3/exsource-go/pkg/exsource/models"
)

func discard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l
}

// Planner validates tables and emits their splits.
type Planner struct {
	cfg    exsource.Config
	logger *slog.Logger
	opts   []archive.Option
}

// NewPlanner returns a Planner for the archive at cfg.URL.
func NewPlanner(cfg exsource.Config, logger *slog.Logger, opts ...archive.Option) *Planner {
	return &Planner{cfg: cfg, logger: discard(logger), opts: opts}
}

// Splits checks that the table exists and that its spreadsheet opens, then
// returns exactly one split for it. The archive is released before returning.
// The constraint is recorded on the split but never applied.
func (p *Planner) Splits(ctx context.Context, handle models.TableHandle, c models.Constraint) ([]models.Split, error) {
	opts := append([]archive.Option{archive.WithConfig(p.cfg), archive.WithLogger(p.logger)}, p.opts...)
	err := archive.With(ctx, p.cfg.URL, opts, func(src *archive.Source) error {
		doc, _, err := catalog.OpenSheet(src, handle.Name)
		if err != nil {
			return err
		}
		return doc.Close()
	})
	if err != nil {
		p.logger.Warn("cannot plan table", "table", handle.Name.String(), "error", err)
		return nil, exsource.WithContext(err, p.cfg.ErrorContext(handle.Name.Schema, handle.Name.Table))
	}

	if !c.IsAll() {
		handle.Constraint = c
	}
	s := models.Split{Table: handle, Addresses: []string{}}
	p.logger.Debug("planned split", "split", s.String())
	return []models.Split{s}, nil
}

// ApplyFilter never pushes a constraint down; filtering stays with the host.
func (p *Planner) ApplyFilter(handle models.TableHandle, _ models.Constraint) (models.TableHandle, bool) {
	return handle, false
}

// Factory opens cursors for splits.
type Factory struct {
	cfg    exsource.Config
	logger *slog.Logger
	opts   []archive.Option
}

// NewFactory returns a Factory for the archive at cfg.URL.
func NewFactory(cfg exsource.Config, logger *slog.Logger, opts ...archive.Option) *Factory {
	return &Factory{cfg: cfg, logger: discard(logger), opts: opts}
}

// RecordSet materializes a fresh archive, opens the split's spreadsheet and
// returns a cursor over columns. The cursor owns the archive and the
// document; if any step fails, whatever was acquired is released in reverse
// order before the error is returned.
func (f *Factory) RecordSet(ctx context.Context, s models.Split, columns []models.Column) (_ *cursor.Cursor, err error) {
	name := s.Table.Name
	ectx := f.cfg.ErrorContext(name.Schema, name.Table)
	defer func() {
		if err != nil {
			f.logger.Error("cannot open record set", "split", s.String(), "error", err)
			err = exsource.WithContext(err, ectx)
		}
	}()

	opts := append([]archive.Option{archive.WithConfig(f.cfg), archive.WithLogger(f.logger)}, f.opts...)
	src := archive.New(f.cfg.URL, opts...)
	if err := src.Materialize(ctx); err != nil {
		_ = src.Close()
		return nil, err
	}

	doc, sheet, err := catalog.OpenSheet(src, name)
	if err != nil {
		_ = src.Close()
		return nil, err
	}

	return cursor.New(src, doc, sheet, columns,
		cursor.WithLogger(f.logger),
		cursor.WithLocation(f.cfg.EffectiveLocation()),
		cursor.WithErrorContext(ectx),
	), nil
}
