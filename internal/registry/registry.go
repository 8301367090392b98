// Package registry is the process-wide catalog of schemas: built-in
// tables and resources registered at startup, plus user definitions
// merged in from <schema>.yaml files the first time a schema is
// referenced by a query.
package registry

import (
	"path/filepath"
	"sync"

	"github.com/samber/lo"
	"github.com/spf13/afero"

	"kugl/internal/config"
	"kugl/internal/resource"
	"kugl/internal/table"
	"kugl/internal/util"
)

type Registry struct {
	mu        sync.Mutex
	fs        afero.Fs
	schemas   map[string]*Schema
	factories map[string]resource.Factory
}

var (
	global     *Registry
	globalOnce sync.Once
)

// Global returns the process registry, created on first use against the
// real filesystem.
func Global() *Registry {
	globalOnce.Do(func() {
		global = New(afero.NewOsFs())
	})
	return global
}

// New builds a registry with the standard resource kinds; tests pass an
// in-memory filesystem.
func New(fs afero.Fs) *Registry {
	return &Registry{
		fs:        fs,
		schemas:   map[string]*Schema{},
		factories: resource.BuiltinFactories(),
	}
}

// AddResourceKind registers a factory for a resource kind.
func (r *Registry) AddResourceKind(kind string, factory resource.Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// AddSchema registers a schema eagerly; defaultKind applies to resource
// entries with no kind field.
func (r *Registry) AddSchema(name, defaultKind string) *Schema {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addSchemaLocked(name, defaultKind)
}

func (r *Registry) addSchemaLocked(name, defaultKind string) *Schema {
	if s, ok := r.schemas[name]; ok {
		return s
	}
	util.Debug("registry", "add schema %s", name)
	s := &Schema{
		Name:             name,
		DefaultKind:      defaultKind,
		reg:              r,
		builtins:         map[string]table.BuiltinDef{},
		builtinResources: map[string]config.ResourceDef{},
		resources:        map[string]resource.Resource{},
		creates:          map[string]config.CreateTable{},
		extends:          map[string][]config.ColumnDef{},
	}
	r.schemas[name] = s
	return s
}

// Schema returns the named schema, materializing it on first reference
// and merging user config found along the search path.
func (r *Registry) Schema(name string, searchPath []string) (*Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.addSchemaLocked(name, "")
	if err := s.load(searchPath); err != nil {
		return nil, err
	}
	return s, nil
}

// Schema is one named namespace of resources and tables.
type Schema struct {
	Name        string
	DefaultKind string

	reg              *Registry
	builtins         map[string]table.BuiltinDef
	builtinResources map[string]config.ResourceDef
	resources        map[string]resource.Resource
	creates          map[string]config.CreateTable
	extends          map[string][]config.ColumnDef
	loaded           bool
}

// AddBuiltinTable registers a table implemented in code; called at
// startup, before any query resolution.
func (s *Schema) AddBuiltinTable(def table.BuiltinDef) error {
	if _, ok := s.builtins[def.Name]; ok {
		return util.Referencef("table '%s' is already defined in schema '%s'", def.Name, s.Name)
	}
	util.Debug("registry", "add table %s.%s", s.Name, def.Name)
	def.Schema = s.Name
	s.builtins[def.Name] = def
	return nil
}

// AddBuiltinResource registers a resource definition in code; user
// config may not redefine it.
func (s *Schema) AddBuiltinResource(def config.ResourceDef) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if _, ok := s.builtinResources[def.Name]; ok {
		return util.Configf("Resource '%s' is already defined in schema '%s'", def.Name, s.Name)
	}
	s.builtinResources[def.Name] = def
	return nil
}

// load merges <schema>.yaml from each search-path directory, in order.
// The schema is immutable once loaded.
func (s *Schema) load(searchPath []string) error {
	if s.loaded {
		return nil
	}
	for name, def := range s.builtinResources {
		res, err := s.construct(def)
		if err != nil {
			return err
		}
		s.resources[name] = res
	}
	for _, dir := range searchPath {
		path := filepath.Join(util.ExpandPath(dir), s.Name+".yaml")
		cfg, found, err := config.LoadSchemaFile(s.reg.fs, path)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		util.Debug("registry", "merging %s into schema %s", path, s.Name)
		if err := s.merge(cfg); err != nil {
			return err
		}
	}
	if err := s.check(); err != nil {
		return err
	}
	s.loaded = true
	return nil
}

func (s *Schema) merge(cfg *config.UserConfig) error {
	for _, def := range cfg.Resources {
		if _, ok := s.resources[def.Name]; ok {
			return util.Configf("Resource '%s' is already defined in schema '%s'", def.Name, s.Name)
		}
		res, err := s.construct(def)
		if err != nil {
			return err
		}
		s.resources[def.Name] = res
	}
	for _, create := range cfg.Create {
		if _, ok := s.builtins[create.Table]; ok {
			return util.Referencef("Table '%s' is already defined in schema '%s'", create.Table, s.Name)
		}
		if _, ok := s.creates[create.Table]; ok {
			return util.Configf("Table '%s' is already defined in schema '%s'", create.Table, s.Name)
		}
		s.creates[create.Table] = create
	}
	for _, extend := range cfg.Extend {
		s.extends[extend.Table] = append(s.extends[extend.Table], extend.Columns...)
	}
	return nil
}

// check verifies the cross-definition invariants once all files are
// merged: extends have a base table, creates have a known resource, and
// column names stay unique per table.
func (s *Schema) check() error {
	for name := range s.extends {
		_, isBuiltin := s.builtins[name]
		_, isCreate := s.creates[name]
		if !isBuiltin && !isCreate {
			return util.Referencef("Cannot extend undefined table '%s' in schema '%s'", name, s.Name)
		}
	}
	for _, create := range s.creates {
		if _, ok := s.resources[create.Resource]; !ok {
			return util.Referencef("Table '%s' needs unknown resource '%s'", create.Table, create.Resource)
		}
		base := lo.Map(create.Columns, func(c config.ColumnDef, _ int) string { return c.Name })
		if err := s.checkColumns(create.Table, base); err != nil {
			return err
		}
	}
	for _, builtin := range s.builtins {
		base := lo.Map(builtin.Columns, func(c table.CodeColumn, _ int) string { return c.Name })
		if err := s.checkColumns(builtin.Name, base); err != nil {
			return err
		}
	}
	return nil
}

func (s *Schema) checkColumns(tableName string, base []string) error {
	seen := map[string]bool{}
	for _, name := range base {
		seen[name] = true
	}
	for _, c := range s.extends[tableName] {
		if seen[c.Name] {
			return util.Referencef("column '%s' is defined twice in table '%s'", c.Name, tableName)
		}
		seen[c.Name] = true
	}
	return nil
}

// construct builds the resource for a definition, inferring its kind.
func (s *Schema) construct(def config.ResourceDef) (resource.Resource, error) {
	kind := def.DeclaredKind()
	if kind == "" {
		kind = s.DefaultKind
	}
	if kind == "" {
		return nil, util.Configf("cannot infer kind of resource '%s' in schema '%s'", def.Name, s.Name)
	}
	factory, ok := s.reg.factories[kind]
	if !ok {
		return nil, util.Configf("unknown resource kind '%s' for resource '%s'", kind, def.Name)
	}
	return factory(def, s.reg.fs)
}

// TableBuilder resolves a table name to its builder, or nil when the
// name is unknown (it may be a CTE; the SQL engine flags true unknowns).
func (s *Schema) TableBuilder(name string) (table.Builder, error) {
	if def, ok := s.builtins[name]; ok {
		return table.NewFromCode(def, s.extends[name])
	}
	if create, ok := s.creates[name]; ok {
		return table.NewFromConfig(s.Name, create, s.extends[name])
	}
	return nil, nil
}

// Resource returns a loaded resource by name.
func (s *Schema) Resource(name string) (resource.Resource, bool) {
	res, ok := s.resources[name]
	return res, ok
}
