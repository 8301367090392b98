package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kugl/internal/config"
	"kugl/internal/util"
)

func newDb(t *testing.T, schemas ...string) *util.SqliteDb {
	t.Helper()
	db, err := util.NewSqliteDb()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	for _, s := range schemas {
		require.NoError(t, db.Attach(s))
	}
	return db
}

func TestConfigTableBuild(t *testing.T) {
	builder, err := NewFromConfig("hr", config.CreateTable{
		Table:     "people",
		Resource:  "people",
		RowSource: []string{"people"},
		Columns: []config.ColumnDef{
			{Name: "name", Type: "text", Path: "name"},
			{Name: "age", Type: "integer", Path: "age"},
		},
	}, nil)
	require.NoError(t, err)

	db := newDb(t, "hr")
	doc := map[string]any{"people": []any{
		map[string]any{"name": "Jim", "age": float64(42)},
		map[string]any{"name": "Jill", "age": float64(43)},
	}}
	require.NoError(t, builder.Build(db, doc))

	columns, rows, err := db.Query("SELECT name, age FROM hr.people ORDER BY age")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, columns)
	assert.Equal(t, [][]any{{"Jim", int64(42)}, {"Jill", int64(43)}}, rows)
}

func TestRowSourceTraversalWithParentHop(t *testing.T) {
	// {items: [{a: [1,2]}, {a: [3]}]} expanded by [items, a] gives
	// three rows whose ^a parent column renders the originating list.
	builder, err := NewFromConfig("s", config.CreateTable{
		Table:     "t",
		Resource:  "r",
		RowSource: []string{"items", "a"},
		Columns: []config.ColumnDef{
			{Name: "value", Type: "integer", Path: "@"},
			{Name: "origin", Type: "text", Path: "^a"},
		},
	}, nil)
	require.NoError(t, err)

	db := newDb(t, "s")
	doc := map[string]any{"items": []any{
		map[string]any{"a": []any{float64(1), float64(2)}},
		map[string]any{"a": []any{float64(3)}},
	}}
	require.NoError(t, builder.Build(db, doc))

	_, rows, err := db.Query("SELECT value, origin FROM s.t ORDER BY value")
	require.NoError(t, err)
	assert.Equal(t, [][]any{
		{int64(1), "[1 2]"},
		{int64(2), "[1 2]"},
		{int64(3), "[3]"},
	}, rows)
}

func TestParentHopOverrunIsFatal(t *testing.T) {
	builder, err := NewFromConfig("s", config.CreateTable{
		Table:     "t",
		Resource:  "r",
		RowSource: []string{"items"},
		Columns: []config.ColumnDef{
			{Name: "x", Path: "^^^foo"},
		},
	}, nil)
	require.NoError(t, err)

	db := newDb(t, "s")
	doc := map[string]any{"items": []any{map[string]any{"foo": "bar"}}}
	err = builder.Build(db, doc)
	require.Error(t, err)
	var extractionErr *util.ExtractionError
	assert.ErrorAs(t, err, &extractionErr)
}

func TestLabelColumns(t *testing.T) {
	builder, err := NewFromConfig("s", config.CreateTable{
		Table:     "t",
		Resource:  "r",
		RowSource: []string{"items", "spec.containers"},
		Columns: []config.ColumnDef{
			{Name: "image", Path: "image"},
			{Name: "team", Label: config.Strings{"dept", "team"}},
		},
	}, nil)
	require.NoError(t, err)

	db := newDb(t, "s")
	doc := map[string]any{"items": []any{
		map[string]any{
			"metadata": map[string]any{"labels": map[string]any{"team": "sre"}},
			"spec":     map[string]any{"containers": []any{map[string]any{"image": "nginx"}}},
		},
	}}
	require.NoError(t, builder.Build(db, doc))

	_, rows, err := db.Query("SELECT image, team FROM s.t")
	require.NoError(t, err)
	// Labels resolve at the root of the parent chain; the first
	// present key wins.
	assert.Equal(t, [][]any{{"nginx", "sre"}}, rows)
}

func TestMatchContextColumns(t *testing.T) {
	builder, err := NewFromConfig("s", config.CreateTable{
		Table:     "t",
		Resource:  "r",
		RowSource: []string{"[]", "content.people"},
		Columns: []config.ColumnDef{
			{Name: "region", Path: "^match.region"},
			{Name: "name", Path: "name"},
		},
	}, nil)
	require.NoError(t, err)

	db := newDb(t, "s")
	doc := []any{
		map[string]any{
			"match":   map[string]any{"region": "east"},
			"content": map[string]any{"people": []any{map[string]any{"name": "Jim"}}},
		},
		map[string]any{
			"match":   map[string]any{"region": "west"},
			"content": map[string]any{"people": []any{map[string]any{"name": "Jill"}}},
		},
	}
	require.NoError(t, builder.Build(db, doc))

	_, rows, err := db.Query("SELECT region, name FROM s.t ORDER BY name")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"west", "Jill"}, {"east", "Jim"}}, rows)
}

func TestTypeCoercion(t *testing.T) {
	builder, err := NewFromConfig("s", config.CreateTable{
		Table:     "t",
		Resource:  "r",
		RowSource: []string{"items"},
		Columns: []config.ColumnDef{
			{Name: "when", Type: "date", Path: "ts"},
			{Name: "howlong", Type: "age", Path: "dur"},
			{Name: "howbig", Type: "size", Path: "mem"},
			{Name: "howfast", Type: "cpu", Path: "cpu"},
			{Name: "broken", Type: "integer", Path: "junk"},
		},
	}, nil)
	require.NoError(t, err)

	db := newDb(t, "s")
	doc := map[string]any{"items": []any{map[string]any{
		"ts":   "1970-01-01T00:01:00Z",
		"dur":  "5m30s",
		"mem":  "10Ki",
		"cpu":  "1500m",
		"junk": "not a number",
	}}}
	require.NoError(t, builder.Build(db, doc))

	_, rows, err := db.Query("SELECT * FROM s.t")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	// Coercion failures become null, not errors.
	assert.Equal(t, []any{int64(60), int64(330), int64(10240), 1.5, nil}, rows[0])
}

func TestCodeTableWithExtension(t *testing.T) {
	def := BuiltinDef{
		Schema:   "k",
		Name:     "things",
		Resource: "things",
		Columns:  []CodeColumn{{Name: "name", SQLType: "text"}},
		MakeRows: func(doc any) ([]Row, error) {
			var rows []Row
			for _, item := range doc.(map[string]any)["items"].([]any) {
				rows = append(rows, Row{Obj: item, Values: []any{item.(map[string]any)["name"]}})
			}
			return rows, nil
		},
	}
	builder, err := NewFromCode(def, []config.ColumnDef{
		{Name: "color", Path: "spec.color"},
	})
	require.NoError(t, err)

	db := newDb(t, "k")
	doc := map[string]any{"items": []any{
		map[string]any{"name": "widget", "spec": map[string]any{"color": "red"}},
	}}
	require.NoError(t, builder.Build(db, doc))

	_, rows, err := db.Query("SELECT name, color FROM k.things")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"widget", "red"}}, rows)
}

func TestBuilderDeterminism(t *testing.T) {
	create := config.CreateTable{
		Table:     "t",
		Resource:  "r",
		RowSource: []string{"items"},
		Columns: []config.ColumnDef{
			{Name: "a", Path: "a"},
			{Name: "b", Type: "integer", Path: "b"},
		},
	}
	doc := map[string]any{"items": []any{
		map[string]any{"a": "x", "b": float64(1)},
		map[string]any{"a": "y", "b": float64(2)},
	}}
	var first [][]any
	for i := 0; i < 3; i++ {
		builder, err := NewFromConfig("s", create, nil)
		require.NoError(t, err)
		db := newDb(t, "s")
		require.NoError(t, builder.Build(db, doc))
		_, rows, err := db.Query("SELECT a, b FROM s.t")
		require.NoError(t, err)
		if first == nil {
			first = rows
		} else {
			assert.Equal(t, first, rows)
		}
	}
}
