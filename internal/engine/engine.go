// Package engine orchestrates a query: parse, resolve against the
// registry, fetch or load the backing resources, materialize tables,
// then run the SQL. If you're looking for kugl's brain, you've found it.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"kugl/internal/cache"
	"kugl/internal/config"
	"kugl/internal/query"
	"kugl/internal/registry"
	"kugl/internal/resource"
	"kugl/internal/table"
	"kugl/internal/util"
)

// fetchWorkers bounds the fetch fan-out.
const fetchWorkers = 8

// Options are the per-query behaviors chosen on the command line.
type Options struct {
	CacheFlag     cache.Flag
	Namespace     string
	AllNamespaces bool
}

// Engine runs queries against one registry, cache and clock.
type Engine struct {
	reg      *registry.Registry
	settings config.Settings
	cache    *cache.DataCache
	clock    clock.Clock

	// Stderr receives the staleness notice; tests capture it.
	Stderr io.Writer
}

// New builds an engine. The cache directory is created lazily by the
// first snapshot write.
func New(reg *registry.Registry, settings config.Settings, fs afero.Fs, cacheDir string, clk clock.Clock) *Engine {
	return &Engine{
		reg:      reg,
		settings: settings,
		cache:    cache.New(fs, cacheDir, settings.CacheTimeout, clk),
		clock:    clk,
		Stderr:   os.Stderr,
	}
}

// Result is a query outcome: column names plus rows in source order.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Query executes one SQL statement end to end.
func (e *Engine) Query(q query.Query, opts Options) (*Result, error) {
	refs, err := q.TableRefs()
	if err != nil {
		return nil, err
	}
	util.Debug("engine", "table refs %s", query.Describe(refs))

	// Resolve refs to builders; unknown names may be CTEs and resolve
	// to nothing. Refs arrive sorted, so build order is deterministic.
	searchPath := append(append([]string{}, e.settings.InitPath...), util.Home())
	var builders []table.Builder
	entries := map[string]cache.Entry{}
	docKeys := map[table.Builder]string{}
	for _, ref := range refs {
		schema, err := e.reg.Schema(ref.Schema, searchPath)
		if err != nil {
			return nil, err
		}
		builder, err := schema.TableBuilder(ref.Name)
		if err != nil {
			return nil, err
		}
		if builder == nil {
			continue
		}
		res, ok := schema.Resource(builder.ResourceName())
		if !ok {
			return nil, util.Referencef("Table '%s' needs unknown resource '%s'", ref.Name, builder.ResourceName())
		}
		if nc, ok := res.(resource.NamespaceConfigurable); ok {
			nc.SetNamespace(opts.Namespace, opts.AllNamespaces)
		}
		builders = append(builders, builder)
		key := ref.Schema + "." + builder.ResourceName()
		entries[key] = cache.Entry{Schema: ref.Schema, Resource: res}
		docKeys[builder] = key
	}

	required := make([]cache.Entry, 0, len(entries))
	for _, entry := range entries {
		required = append(required, entry)
	}
	sort.Slice(required, func(i, j int) bool { return required[i].String() < required[j].String() })

	refresh, maxAge, err := e.cache.AdviseRefresh(required, opts.CacheFlag)
	if err != nil {
		return nil, err
	}
	if maxAge != nil && !e.settings.Reckless {
		fmt.Fprintf(e.Stderr, "Data may be up to %d seconds old.\n", *maxAge)
		e.clock.Sleep(500 * time.Millisecond)
	}

	docs, err := e.fetch(required, refresh)
	if err != nil {
		return nil, err
	}

	db, err := util.NewSqliteDb()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	for _, schema := range schemaNames(required, builders) {
		if err := db.Attach(schema); err != nil {
			return nil, err
		}
	}
	for _, builder := range builders {
		if err := builder.Build(db, docs[docKeys[builder]]); err != nil {
			return nil, err
		}
	}

	columns, rows, err := db.Query(q.SQL)
	if err != nil {
		return nil, err
	}
	return &Result{Columns: columns, Rows: rows}, nil
}

// fetch retrieves all required documents with a bounded worker pool;
// the first failure cancels the rest and is the single surfaced error.
func (e *Engine) fetch(required, refresh []cache.Entry) (map[string]any, error) {
	refreshing := map[string]bool{}
	for _, entry := range refresh {
		refreshing[entry.String()] = true
	}
	var mu sync.Mutex
	docs := map[string]any{}
	group, ctx := errgroup.WithContext(context.Background())
	group.SetLimit(fetchWorkers)
	for _, entry := range required {
		group.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var doc any
			var err error
			if refreshing[entry.String()] {
				doc, err = entry.Resource.GetObjects()
				if err == nil && entry.Resource.Cacheable() {
					err = e.cache.Dump(entry, doc)
				}
			} else {
				doc, err = e.cache.Load(entry)
			}
			if err != nil {
				return &util.ResourceError{Resource: entry.Resource.Name(), Err: err}
			}
			mu.Lock()
			docs[entry.String()] = doc
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// schemaNames returns the distinct schemas to attach, sorted.
func schemaNames(entries []cache.Entry, builders []table.Builder) []string {
	seen := map[string]bool{}
	for _, entry := range entries {
		seen[entry.Schema] = true
	}
	for _, b := range builders {
		seen[b.Schema()] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
