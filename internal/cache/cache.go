// Package cache stores per-resource document snapshots on disk and
// advises the engine which resources need refreshing.
package cache

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"k8s.io/utils/clock"

	"kugl/internal/resource"
	"kugl/internal/util"
)

// Flag selects the cache behavior for one query.
type Flag int

const (
	// Check refreshes whatever is missing or expired.
	Check Flag = iota
	// AlwaysUpdate refreshes everything.
	AlwaysUpdate
	// NeverUpdate refreshes only what is missing from the cache.
	NeverUpdate
)

// Entry identifies one resource within its schema; snapshot files live
// at <dir>/<schema>/<resource cache path>.
type Entry struct {
	Schema   string
	Resource resource.Resource
}

func (e Entry) String() string { return e.Schema + "." + e.Resource.Name() }

// DataCache manages the snapshot folder tree.
type DataCache struct {
	fs      afero.Fs
	dir     string
	timeout util.Age
	clock   clock.Clock
}

func New(fs afero.Fs, dir string, timeout util.Age, clk clock.Clock) *DataCache {
	return &DataCache{fs: fs, dir: dir, timeout: timeout, clock: clk}
}

func (c *DataCache) path(e Entry) (string, error) {
	rel, err := e.Resource.CachePath()
	if err != nil {
		return "", err
	}
	return filepath.Join(c.dir, e.Schema, rel), nil
}

// Dump writes a snapshot, replacing the whole file.
func (c *DataCache) Dump(e Entry, doc any) error {
	path, err := c.path(e)
	if err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", e, err)
	}
	if err := c.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := afero.WriteFile(c.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	// Stamp with the injected clock so staleness math is coherent
	// under a fake clock.
	now := c.clock.Now()
	_ = c.fs.Chtimes(path, now, now)
	util.Debug("cache", "wrote %s", path)
	return nil
}

// Load reads a snapshot written by Dump.
func (c *DataCache) Load(e Entry) (any, error) {
	path, err := c.path(e)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cache: %s: %w", path, err)
	}
	return doc, nil
}

// EntryAge returns the snapshot age in seconds, or nil when there is no
// snapshot.
func (c *DataCache) EntryAge(e Entry) (*int64, error) {
	path, err := c.path(e)
	if err != nil {
		return nil, err
	}
	info, err := c.fs.Stat(path)
	if err != nil {
		util.Debug("cache", "missing cache file %s", path)
		return nil, nil
	}
	age := c.clock.Now().Unix() - info.ModTime().Unix()
	if age < 0 {
		age = 0
	}
	util.Debug("cache", "found cache file (age = %s) %s", util.ToAge(age), path)
	return &age, nil
}

// AdviseRefresh splits the entries into those to refresh and those to
// serve from cache, and reports the oldest age among the kept ones (nil
// when nothing is kept).
func (c *DataCache) AdviseRefresh(entries []Entry, flag Flag) ([]Entry, *int64, error) {
	if flag == AlwaysUpdate {
		return entries, nil, nil
	}
	cacheable := lo.Filter(entries, func(e Entry, _ int) bool { return e.Resource.Cacheable() })
	nonCacheable := lo.Filter(entries, func(e Entry, _ int) bool { return !e.Resource.Cacheable() })
	// Sort for deterministic refresh order in unit tests.
	sort.Slice(cacheable, func(i, j int) bool { return cacheable[i].String() < cacheable[j].String() })

	var refresh, kept []Entry
	var maxAge *int64
	for _, e := range cacheable {
		age, err := c.EntryAge(e)
		if err != nil {
			return nil, nil, err
		}
		switch {
		case age == nil:
			refresh = append(refresh, e)
		case flag == Check && *age >= c.timeout.Seconds():
			refresh = append(refresh, e)
		default:
			kept = append(kept, e)
			if maxAge == nil || *age > *maxAge {
				maxAge = age
			}
		}
	}
	refresh = append(refresh, nonCacheable...)
	util.Debug("cache", "refreshable %v, kept %v", refresh, kept)
	return refresh, maxAge, nil
}
