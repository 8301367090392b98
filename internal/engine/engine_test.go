package engine

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"kugl/internal/cache"
	"kugl/internal/config"
	"kugl/internal/query"
	"kugl/internal/registry"
	"kugl/internal/util"
)

const hrConfig = `
resources:
  - name: people
    data:
      people:
        - {name: Jim, age: 42}
        - {name: Jill, age: 43}
create:
  - table: people
    resource: people
    row_source: [people]
    columns:
      - {name: name, path: name}
      - {name: age, type: integer, path: age}
`

func newTestEngine(t *testing.T, fs afero.Fs, settings config.Settings) (*Engine, *testingclock.FakeClock, *bytes.Buffer) {
	t.Helper()
	t.Setenv("KUGL_HOME", "/home/kugl")
	clk := testingclock.NewFakeClock(time.Unix(50000, 0))
	e := New(registry.New(fs), settings, fs, "/home/kugl/cache", clk)
	var stderr bytes.Buffer
	e.Stderr = &stderr
	return e, clk, &stderr
}

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func TestQueryInlineData(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/home/kugl/hr.yaml", hrConfig)
	e, _, _ := newTestEngine(t, fs, config.DefaultSettings())

	result, err := e.Query(query.New("SELECT name, age FROM hr.people ORDER BY age"), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, result.Columns)
	assert.Equal(t, [][]any{{"Jim", int64(42)}, {"Jill", int64(43)}}, result.Rows)
}

func TestQueryDefaultSchemaOverride(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/home/kugl/hr.yaml", hrConfig)
	e, _, _ := newTestEngine(t, fs, config.DefaultSettings())

	q := query.New("SELECT name FROM people ORDER BY age DESC")
	q.DefaultSchema = "hr"
	result, err := e.Query(q, Options{})
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"Jill"}, {"Jim"}}, result.Rows)
}

func TestQueryWithCTE(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/home/kugl/hr.yaml", hrConfig)
	e, _, _ := newTestEngine(t, fs, config.DefaultSettings())

	sql := "WITH old AS (SELECT * FROM hr.people WHERE age > 42) SELECT name FROM old"
	result, err := e.Query(query.New(sql), Options{})
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"Jill"}}, result.Rows)
}

func TestQueryScalarFunctions(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/home/kugl/hr.yaml", hrConfig)
	e, clk, _ := newTestEngine(t, fs, config.DefaultSettings())

	old := util.GetClock()
	util.SetClock(clk)
	t.Cleanup(func() { util.SetClock(old) })

	sql := "SELECT now(), to_age(330), to_size(10240), to_utc(60) FROM hr.people LIMIT 1"
	result, err := e.Query(query.New(sql), Options{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, []any{int64(50000), "5m30s", "10Ki", "1970-01-01T00:01:00Z"}, result.Rows[0])
}

func TestStaleDataWarningAndPause(t *testing.T) {
	t.Setenv("SOME_VAR", "abc")
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/home/kugl/hr.yaml", `
resources:
  - name: people
    exec: "exit 7"
    cacheable: true
    cache_key: "$SOME_VAR/xyz"
create:
  - table: people
    resource: people
    row_source: [people]
    columns:
      - {name: name, path: name}
`)
	settings := config.DefaultSettings()
	settings.CacheTimeout = util.Age(60)
	e, clk, stderr := newTestEngine(t, fs, settings)

	// Plant a 70-second-old snapshot; the exec command would fail if
	// it ever ran.
	snapshot := filepath.Join("/home/kugl/cache", "hr", "abc", "xyz", "people.exec.json")
	require.NoError(t, fs.MkdirAll(filepath.Dir(snapshot), 0o755))
	writeFile(t, fs, snapshot, `{"people": [{"name": "Cached"}]}`)
	mtime := clk.Now().Add(-70 * time.Second)
	require.NoError(t, fs.Chtimes(snapshot, mtime, mtime))

	before := clk.Now()
	result, err := e.Query(query.New("SELECT name FROM hr.people"), Options{CacheFlag: cache.NeverUpdate})
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"Cached"}}, result.Rows)
	assert.Equal(t, "Data may be up to 70 seconds old.\n", stderr.String())
	// The half-second pause ran on the injected clock.
	assert.Equal(t, 500*time.Millisecond, clk.Now().Sub(before))
}

func TestRecklessSuppressesWarningAndPause(t *testing.T) {
	t.Setenv("SOME_VAR", "abc")
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/home/kugl/hr.yaml", `
resources:
  - name: people
    exec: "exit 7"
    cacheable: true
    cache_key: "$SOME_VAR/xyz"
create:
  - table: people
    resource: people
    row_source: [people]
    columns:
      - {name: name, path: name}
`)
	settings := config.DefaultSettings()
	settings.Reckless = true
	e, clk, stderr := newTestEngine(t, fs, settings)

	snapshot := filepath.Join("/home/kugl/cache", "hr", "abc", "xyz", "people.exec.json")
	require.NoError(t, fs.MkdirAll(filepath.Dir(snapshot), 0o755))
	writeFile(t, fs, snapshot, `{"people": [{"name": "Cached"}]}`)
	mtime := clk.Now().Add(-70 * time.Second)
	require.NoError(t, fs.Chtimes(snapshot, mtime, mtime))

	before := clk.Now()
	_, err := e.Query(query.New("SELECT name FROM hr.people"), Options{CacheFlag: cache.NeverUpdate})
	require.NoError(t, err)
	assert.Empty(t, stderr.String())
	assert.Equal(t, time.Duration(0), clk.Now().Sub(before))
}

func TestCacheableExecRoundTrip(t *testing.T) {
	t.Setenv("SOME_VAR", "abc")
	marker := filepath.Join(t.TempDir(), "ran")
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/home/kugl/hr.yaml", fmt.Sprintf(`
resources:
  - name: people
    exec: "echo x >> %s; echo '{\"people\": [{\"name\": \"Jim\"}]}'"
    cacheable: true
    cache_key: "$SOME_VAR/xyz"
create:
  - table: people
    resource: people
    row_source: [people]
    columns:
      - {name: name, path: name}
`, marker))
	e, _, _ := newTestEngine(t, fs, config.DefaultSettings())

	first, err := e.Query(query.New("SELECT name FROM hr.people"), Options{CacheFlag: cache.Check})
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"Jim"}}, first.Rows)

	// The snapshot landed under the expanded cache key.
	snapshot := filepath.Join("/home/kugl/cache", "hr", "abc", "xyz", "people.exec.json")
	exists, err := afero.Exists(fs, snapshot)
	require.NoError(t, err)
	assert.True(t, exists)
	runs, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(runs))

	// A NEVER_UPDATE query in the same environment reuses the snapshot
	// without re-running the command.
	second, err := e.Query(query.New("SELECT name FROM hr.people"), Options{CacheFlag: cache.NeverUpdate})
	require.NoError(t, err)
	assert.Equal(t, first.Rows, second.Rows)
	runs, err = os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(runs))
}

func TestFetchFailureNamesResource(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/home/kugl/hr.yaml", `
resources:
  - name: people
    file: /no/such/file.yaml
create:
  - table: people
    resource: people
    columns:
      - {name: name, path: name}
`)
	e, _, _ := newTestEngine(t, fs, config.DefaultSettings())

	_, err := e.Query(query.New("SELECT name FROM hr.people"), Options{})
	require.Error(t, err)
	var resErr *util.ResourceError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "people", resErr.Resource)
}

func TestConcurrentFetchBindsAllResources(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := "resources:\n"
	for i := 0; i < 12; i++ {
		cfg += fmt.Sprintf("  - name: r%d\n    data: {items: [{c%d: %d}]}\n", i, i, i)
	}
	cfg += "create:\n"
	for i := 0; i < 12; i++ {
		cfg += fmt.Sprintf("  - table: t%d\n    resource: r%d\n    columns: [{name: c%d, type: integer, path: c%d}]\n", i, i, i, i)
	}
	writeFile(t, fs, "/home/kugl/many.yaml", cfg)
	e, _, _ := newTestEngine(t, fs, config.DefaultSettings())

	sql := "SELECT c0"
	for i := 1; i < 12; i++ {
		sql += fmt.Sprintf(", c%d", i)
	}
	sql += " FROM many.t0"
	for i := 1; i < 12; i++ {
		sql += fmt.Sprintf(" JOIN many.t%d", i)
	}
	result, err := e.Query(query.New(sql), Options{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	want := make([]any, 12)
	for i := range want {
		want[i] = int64(i)
	}
	assert.Equal(t, want, result.Rows[0])
}

func TestUnknownTableSurfacesSqlError(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/home/kugl/hr.yaml", hrConfig)
	e, _, _ := newTestEngine(t, fs, config.DefaultSettings())

	_, err := e.Query(query.New("SELECT * FROM hr.ghosts"), Options{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "no such table")
}
