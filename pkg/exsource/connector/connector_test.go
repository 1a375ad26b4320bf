package connector

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukaji3/exsource-go/pkg/exsource"
	"github.com/ukaji3/exsource-go/pkg/exsource/archive"
	"github.com/ukaji3/exsource-go/internal/fixture"
	"github.com/ukaji3/exsource-go/pkg/exsource/models"
)

func newConnector(t *testing.T) *Connector {
	t.Helper()
	book := fixture.Workbook(t, fixture.Users(), fixture.Sheet{Name: "Mixed", Rows: [][]any{
		{"qty", "note"},
		{3, "ok"},
		{nil, nil},
		{4.5, "half"},
	}})
	cfg := exsource.Config{
		URL:     fixture.Serve(t, fixture.Zip(t, fixture.Entry{Name: "crm.xlsx", Data: book})),
		TempDir: t.TempDir(),
	}
	c, err := New(cfg, nil)
	require.NoError(t, err)
	return c
}

func TestNewValidates(t *testing.T) {
	_, err := New(exsource.Config{}, nil)
	assert.ErrorIs(t, err, exsource.ErrInternal)
}

func TestScanDefaultColumns(t *testing.T) {
	c := newConnector(t)
	var rows []models.ScanRow
	cols, err := c.Scan(context.Background(), models.SchemaTableName{Schema: "crm", Table: "Users"}, nil,
		func(r models.ScanRow) error {
			rows = append(rows, r)
			return nil
		})
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, []models.ScanRow{
		{R: 2, Values: []any{"101", "alice", "alice@example.com"}},
		{R: 3, Values: []any{"102", "bob", "bob@example.com"}},
		{R: 4, Values: []any{"103", "carol", "carol@example.com"}},
	}, rows)

	left, err := filepath.Glob(filepath.Join(c.Config().TempDir, archive.TempDirPrefix+"*"))
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestScanTypedColumns(t *testing.T) {
	c := newConnector(t)
	columns := []models.Column{{Name: "qty", Type: models.TypeDouble, Ordinal: 0}}
	var values []any
	_, err := c.Scan(context.Background(), models.SchemaTableName{Schema: "crm", Table: "Mixed"}, columns,
		func(r models.ScanRow) error {
			values = append(values, r.Values[0])
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []any{3.0, nil, 4.5}, values)

	columns[0].Type = models.TypeBigint
	_, err = c.Scan(context.Background(), models.SchemaTableName{Schema: "crm", Table: "Mixed"}, columns,
		func(models.ScanRow) error { return nil })
	assert.ErrorIs(t, err, exsource.ErrTypeMismatch)
}

func TestScanStopsOnCallbackError(t *testing.T) {
	c := newConnector(t)
	calls := 0
	_, err := c.Scan(context.Background(), models.SchemaTableName{Schema: "crm", Table: "Users"}, nil,
		func(models.ScanRow) error {
			calls++
			return assert.AnError
		})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}

func TestScanMissingTable(t *testing.T) {
	c := newConnector(t)
	_, err := c.Scan(context.Background(), models.SchemaTableName{Schema: "crm", Table: "Nope"}, nil,
		func(models.ScanRow) error { return nil })
	assert.ErrorIs(t, err, exsource.ErrNotFound)
}
