package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukaji3/exsource-go/pkg/exsource"
	"github.com/ukaji3/exsource-go/internal/fixture"
	"github.com/ukaji3/exsource-go/pkg/exsource/models"
)

func newResolver(t *testing.T, entries ...fixture.Entry) *Resolver {
	t.Helper()
	cfg := exsource.Config{URL: fixture.Serve(t, fixture.Zip(t, entries...)), TempDir: t.TempDir()}
	return New(cfg, nil)
}

func salesArchive(t *testing.T) []fixture.Entry {
	sales := fixture.Workbook(t,
		fixture.Users(),
		fixture.Sheet{Name: "Headers", Rows: [][]any{
			{"  id ", nil, 42, "   ", "name"},
			{1, 2, 3, 4, 5, 6},
		}},
		fixture.Sheet{Name: "Empty"},
	)
	inventory := fixture.Workbook(t, fixture.Sheet{Name: "Stock", Rows: [][]any{{"sku"}, {"A-1"}}})
	return []fixture.Entry{
		{Name: "data/sales.xlsx", Data: sales},
		{Name: "inventory.xlsx", Data: inventory},
	}
}

func TestSchemasAreStable(t *testing.T) {
	r := newResolver(t, salesArchive(t)...)
	ctx := context.Background()

	first, err := r.Schemas(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sales", "inventory"}, first)

	second, err := r.Schemas(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTables(t *testing.T) {
	r := newResolver(t, salesArchive(t)...)
	ctx := context.Background()

	tables, err := r.Tables(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, []models.SchemaTableName{
		{Schema: "sales", Table: "Users"},
		{Schema: "sales", Table: "Headers"},
		{Schema: "sales", Table: "Empty"},
	}, tables)

	all, err := r.Tables(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, models.SchemaTableName{Schema: "inventory", Table: "Stock"}, all[3])

	missing, err := r.Tables(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestColumns(t *testing.T) {
	r := newResolver(t, salesArchive(t)...)
	ctx := context.Background()

	cols, err := r.Columns(ctx, models.SchemaTableName{Schema: "sales", Table: "Users"})
	require.NoError(t, err)
	assert.Equal(t, []models.Column{
		{Name: "UserID", Type: models.TypeVarchar, Ordinal: 0},
		{Name: "Username", Type: models.TypeVarchar, Ordinal: 1},
		{Name: "Email", Type: models.TypeVarchar, Ordinal: 2},
	}, cols)

	cols, err = r.Columns(ctx, models.SchemaTableName{Schema: "sales", Table: "Headers"})
	require.NoError(t, err)
	var names []string
	for i, c := range cols {
		assert.Equal(t, i, c.Ordinal)
		assert.Equal(t, models.TypeVarchar, c.Type)
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"id", "COLUMN_1", "COLUMN_2", "COLUMN_3", "name"}, names,
		"width follows the header row, not the data rows")

	cols, err = r.Columns(ctx, models.SchemaTableName{Schema: "sales", Table: "Empty"})
	require.NoError(t, err)
	assert.Empty(t, cols)
	assert.NotNil(t, cols)
}

func TestColumnsNotFound(t *testing.T) {
	r := newResolver(t, salesArchive(t)...)
	ctx := context.Background()

	_, err := r.Columns(ctx, models.SchemaTableName{Schema: "sales", Table: "Orders"})
	require.Error(t, err)
	assert.ErrorIs(t, err, exsource.ErrNotFound)
	var e *exsource.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "sales", e.Schema)
	assert.Equal(t, "Orders", e.Table)
	assert.NotEmpty(t, e.URL)

	_, err = r.Columns(ctx, models.SchemaTableName{Schema: "ghost", Table: "Users"})
	assert.ErrorIs(t, err, exsource.ErrNotFound)
}

func TestDescribe(t *testing.T) {
	r := newResolver(t, salesArchive(t)...)

	info, err := r.Describe(context.Background(), models.SchemaTableName{Schema: "SALES", Table: "users"})
	require.NoError(t, err)
	assert.Equal(t, "Users", info.Name.Table)
	assert.Len(t, info.Columns, 3)
	assert.Equal(t, 3, info.DataRows)
	assert.Equal(t, "xlsx", info.Encoding)
	require.NotNil(t, info.UsedRange)
	assert.Equal(t, models.CellRange{R1: 1, C1: 1, R2: 4, C2: 3}, *info.UsedRange)
	assert.Empty(t, info.PrintAreas)
	assert.InDelta(t, 1.0, info.Density, 1e-9)

	info, err = r.Describe(context.Background(), models.SchemaTableName{Schema: "sales", Table: "Empty"})
	require.NoError(t, err)
	assert.Zero(t, info.DataRows)
	assert.Nil(t, info.UsedRange)
}

func TestLegacyWorkbook(t *testing.T) {
	legacy, err := os.ReadFile(filepath.Join("..", "workbook", "testdata", "Table.xls"))
	require.NoError(t, err)
	r := newResolver(t, fixture.Entry{Name: "legacy/Codes.xls", Data: legacy})
	ctx := context.Background()

	schemas, err := r.Schemas(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Codes"}, schemas)

	tables, err := r.Tables(ctx, "codes")
	require.NoError(t, err)
	assert.Equal(t, []models.SchemaTableName{{Schema: "Codes", Table: "Table"}}, tables)

	cols, err := r.Columns(ctx, models.SchemaTableName{Schema: "Codes", Table: "Table"})
	require.NoError(t, err)
	assert.Equal(t, []models.Column{
		{Name: "Code", Type: models.TypeVarchar, Ordinal: 0},
		{Name: "Name", Type: models.TypeVarchar, Ordinal: 1},
		{Name: "Description", Type: models.TypeVarchar, Ordinal: 2},
	}, cols)

	info, err := r.Describe(ctx, models.SchemaTableName{Schema: "Codes", Table: "Table"})
	require.NoError(t, err)
	assert.Equal(t, "xls", info.Encoding)
	assert.Equal(t, 11, info.DataRows)
	require.NotNil(t, info.UsedRange)
	assert.Equal(t, models.CellRange{R1: 1, C1: 1, R2: 12, C2: 3}, *info.UsedRange)
}

func TestUnreachableArchive(t *testing.T) {
	r := New(exsource.Config{URL: fixture.Unreachable(t), TempDir: t.TempDir()}, nil)
	_, err := r.Schemas(context.Background())
	assert.ErrorIs(t, err, exsource.ErrTransport)

	_, err = r.Tables(context.Background(), "")
	assert.ErrorIs(t, err, exsource.ErrTransport)
}

func TestTableHandle(t *testing.T) {
	r := New(exsource.Config{}, nil)
	h := r.TableHandle(models.SchemaTableName{Schema: "any", Table: "thing"})
	assert.Equal(t, "any.thing", h.String())
	assert.True(t, h.Constraint.IsAll())
}
