// Package config defines the validated models for kugl configuration
// files: init.yaml (settings and shortcuts) and one <schema>.yaml per
// user-extended schema (resources, table creates and extends).
package config

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmespath/go-jmespath"

	"kugl/internal/util"
)

// Settings holds the settings: entry from init.yaml.
type Settings struct {
	CacheTimeout util.Age `json:"cache_timeout,omitempty"`
	Reckless     bool     `json:"reckless,omitempty"`
	InitPath     []string `json:"init_path,omitempty"`
}

// DefaultSettings returns the settings used when init.yaml is absent or
// silent.
func DefaultSettings() Settings {
	return Settings{CacheTimeout: util.Age(120)}
}

// Shortcut aliases a name to an argv vector expanded before flag
// parsing.
type Shortcut struct {
	Name string   `json:"name"`
	Args []string `json:"args"`
}

// UserInit is the root model for init.yaml.
type UserInit struct {
	Settings  *Settings  `json:"settings,omitempty"`
	Shortcuts []Shortcut `json:"shortcuts,omitempty"`
}

// Command is an exec command: either a shell string or an argv list in
// the YAML source.
type Command []string

func (c *Command) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = util.ShellCommand(s)
		return nil
	}
	var argv []string
	if err := json.Unmarshal(data, &argv); err != nil {
		return fmt.Errorf("exec must be a string or list of strings")
	}
	*c = argv
	return nil
}

// Strings is a string-or-list-of-strings YAML value.
type Strings []string

func (l *Strings) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = []string{s}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected a string or list of strings")
	}
	*l = many
	return nil
}

// ResourceDef holds one entry from the resources: list. Exactly one
// kind field may be set; when none is, the kind is inferred by the
// registry.
type ResourceDef struct {
	Name       string   `json:"name"`
	Data       any      `json:"data,omitempty"`
	File       string   `json:"file,omitempty"`
	Exec       Command  `json:"exec,omitempty"`
	Folder     string   `json:"folder,omitempty"`
	Glob       string   `json:"glob,omitempty"`
	Match      string   `json:"match,omitempty"`
	Namespaced *bool    `json:"namespaced,omitempty"`
	Cacheable  *bool    `json:"cacheable,omitempty"`
	CacheKey   string   `json:"cache_key,omitempty"`
}

// Resource kinds.
const (
	KindData       = "data"
	KindFile       = "file"
	KindExec       = "exec"
	KindFolder     = "folder"
	KindKubernetes = "kubernetes"
)

// envRefRe finds $VAR references in a cache_key template.
var envRefRe = regexp.MustCompile(`\$\{?([A-Za-z_][A-Za-z0-9_]*)\}?`)

// EnvRefs returns the environment variables referenced by a cache_key.
func EnvRefs(template string) []string {
	var refs []string
	for _, m := range envRefRe.FindAllStringSubmatch(template, -1) {
		refs = append(refs, m[1])
	}
	return refs
}

// DeclaredKind returns the kind field explicitly present on the
// definition, or "" when the kind must be inferred.
func (r *ResourceDef) DeclaredKind() string {
	switch {
	case r.Data != nil:
		return KindData
	case r.File != "":
		return KindFile
	case len(r.Exec) > 0:
		return KindExec
	case r.Folder != "":
		return KindFolder
	case r.Namespaced != nil:
		return KindKubernetes
	default:
		return ""
	}
}

// Validate checks the structural invariants that don't depend on the
// enclosing schema.
func (r *ResourceDef) Validate() error {
	if r.Name == "" {
		return util.Configf("resource must have a name")
	}
	kinds := 0
	for _, set := range []bool{r.Data != nil, r.File != "", len(r.Exec) > 0, r.Folder != ""} {
		if set {
			kinds++
		}
	}
	if r.Namespaced != nil {
		kinds++
	}
	if kinds > 1 {
		return util.Configf("resource '%s' must define only one of data, file, exec, folder, namespaced", r.Name)
	}
	if r.File != "" && r.Cacheable != nil && *r.Cacheable {
		return util.Configf("file resource '%s' may not be cacheable", r.Name)
	}
	if len(r.Exec) > 0 && r.Cacheable != nil && *r.Cacheable {
		if r.CacheKey == "" {
			return util.Configf("cacheable exec resource '%s' requires a cache_key", r.Name)
		}
		if len(EnvRefs(r.CacheKey)) == 0 {
			return util.Configf("cache_key for resource '%s' must reference at least one environment variable", r.Name)
		}
	}
	if r.Folder != "" {
		if r.Glob == "" || r.Match == "" {
			return util.Configf("folder resource '%s' requires glob and match", r.Name)
		}
		re, err := regexp.Compile(r.Match)
		if err != nil {
			return util.Configf("invalid match regex for resource '%s': %v", r.Name, err)
		}
		named := 0
		for _, name := range re.SubexpNames() {
			if name != "" {
				named++
			}
		}
		if named == 0 {
			return util.Configf("match regex for resource '%s' must have at least one named group", r.Name)
		}
	} else if r.Glob != "" || r.Match != "" {
		return util.Configf("glob and match are only valid on folder resources ('%s')", r.Name)
	}
	return nil
}

// Column types, mapped to SQL column types in the table builder.
var columnTypes = map[string]bool{
	"text": true, "integer": true, "real": true,
	"date": true, "age": true, "size": true, "cpu": true,
}

// parentedPathRe splits the ^ prefix off a path expression.
var parentedPathRe = regexp.MustCompile(`^(\^*)(.*)$`)

// ColumnDef holds one entry from a columns: list.
type ColumnDef struct {
	Name    string  `json:"name"`
	Type    string  `json:"type,omitempty"`
	Path    string  `json:"path,omitempty"`
	Label   Strings `json:"label,omitempty"`
	Comment string  `json:"comment,omitempty"`
}

// SplitPath separates the parent-hop prefix from the path proper. A
// "^match." prefix is reported as a match-group lookup instead.
func SplitPath(path string) (hops int, matchKey string, expr string) {
	if rest, ok := strings.CutPrefix(path, "^match."); ok {
		return 0, rest, ""
	}
	m := parentedPathRe.FindStringSubmatch(path)
	return len(m[1]), "", m[2]
}

// Validate checks a column definition, including that its path
// expression compiles.
func (c *ColumnDef) Validate() error {
	if c.Name == "" {
		return util.Configf("column must have a name")
	}
	if c.Type != "" && !columnTypes[c.Type] {
		return util.Configf("invalid type '%s' for column '%s'", c.Type, c.Name)
	}
	if (c.Path == "") == (len(c.Label) == 0) {
		return util.Configf("column '%s' must specify exactly one of path or label", c.Name)
	}
	if c.Path != "" {
		_, matchKey, expr := SplitPath(c.Path)
		if matchKey != "" {
			return nil
		}
		if expr == "" {
			return util.Configf("empty path in column '%s'", c.Name)
		}
		if _, err := jmespath.Compile(expr); err != nil {
			return util.Configf("invalid path expression '%s' in column '%s': %v", expr, c.Name, err)
		}
	}
	return nil
}

// CreateTable binds a table name to a resource and its columns.
type CreateTable struct {
	Table     string      `json:"table"`
	Resource  string      `json:"resource"`
	RowSource []string    `json:"row_source,omitempty"`
	Columns   []ColumnDef `json:"columns,omitempty"`
}

func (t *CreateTable) Validate() error {
	if t.Table == "" {
		return util.Configf("create entry must have a table name")
	}
	if t.Resource == "" {
		return util.Configf("table '%s' must name a resource", t.Table)
	}
	for _, source := range t.RowSource {
		if _, err := jmespath.Compile(source); err != nil {
			return util.Configf("invalid row_source '%s' for table '%s': %v", source, t.Table, err)
		}
	}
	return validateColumns(t.Table, t.Columns)
}

// ExtendTable attaches additional columns to an existing table.
type ExtendTable struct {
	Table   string      `json:"table"`
	Columns []ColumnDef `json:"columns,omitempty"`
}

func (t *ExtendTable) Validate() error {
	if t.Table == "" {
		return util.Configf("extend entry must have a table name")
	}
	return validateColumns(t.Table, t.Columns)
}

func validateColumns(table string, columns []ColumnDef) error {
	seen := map[string]bool{}
	for i := range columns {
		c := &columns[i]
		if err := c.Validate(); err != nil {
			return err
		}
		if seen[c.Name] {
			return util.Configf("column '%s' is defined twice in table '%s'", c.Name, table)
		}
		seen[c.Name] = true
	}
	return nil
}

// UserConfig is the root model for a <schema>.yaml file.
type UserConfig struct {
	Resources []ResourceDef `json:"resources,omitempty"`
	Create    []CreateTable `json:"create,omitempty"`
	Extend    []ExtendTable `json:"extend,omitempty"`
}

func (c *UserConfig) Validate() error {
	for i := range c.Resources {
		if err := c.Resources[i].Validate(); err != nil {
			return err
		}
	}
	for i := range c.Create {
		if err := c.Create[i].Validate(); err != nil {
			return err
		}
	}
	for i := range c.Extend {
		if err := c.Extend[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
