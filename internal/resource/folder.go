package resource

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/spf13/afero"

	"kugl/internal/config"
	"kugl/internal/util"
)

// Folder enumerates files under a directory by glob, keeps those whose
// folder-relative path matches a named-group regex, and yields one
// {match, content} entry per kept file. Never cacheable; the source is
// already on local disk.
type Folder struct {
	name  string
	dir   string
	glob  string
	match *regexp.Regexp
	fs    afero.Fs
}

func newFolder(def config.ResourceDef, fs afero.Fs) (Resource, error) {
	re, err := regexp.Compile(def.Match)
	if err != nil {
		return nil, util.Configf("invalid match regex for resource '%s': %v", def.Name, err)
	}
	return &Folder{name: def.Name, dir: util.ExpandPath(def.Folder), glob: def.Glob, match: re, fs: fs}, nil
}

func (f *Folder) Name() string    { return f.name }
func (f *Folder) Cacheable() bool { return false }

func (f *Folder) CachePath() (string, error) {
	return "", util.Configf("folder resource '%s' is not cacheable", f.name)
}

func (f *Folder) GetObjects() (any, error) {
	paths, err := afero.Glob(f.fs, filepath.Join(f.dir, f.glob))
	if err != nil {
		return nil, fmt.Errorf("invalid glob '%s': %w", f.glob, err)
	}
	sort.Strings(paths)
	var entries []any
	for _, path := range paths {
		rel, err := filepath.Rel(f.dir, path)
		if err != nil {
			continue
		}
		m := f.match.FindStringSubmatch(filepath.ToSlash(rel))
		if m == nil {
			util.Debug("folder", "%s does not match %s, skipping", rel, f.match)
			continue
		}
		groups := map[string]any{}
		for i, name := range f.match.SubexpNames() {
			if name != "" {
				groups[name] = m[i]
			}
		}
		text, err := afero.ReadFile(f.fs, path)
		if err != nil {
			return nil, err
		}
		content, err := ParseDocument(string(text))
		if err != nil {
			return nil, err
		}
		entries = append(entries, map[string]any{"match": groups, "content": content})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no files in %s match %s", f.dir, f.match)
	}
	return entries, nil
}
