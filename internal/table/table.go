// Package table turns JSON-shaped resource documents into SQL tables:
// it enumerates row objects, extracts typed columns, and issues the
// CREATE TABLE and insert statements.
package table

import (
	"fmt"
	"strings"

	"github.com/jmespath/go-jmespath"

	"kugl/internal/config"
	"kugl/internal/util"
)

// Builder creates and fills one table from its resource document.
type Builder interface {
	Schema() string
	Name() string
	ResourceName() string
	Build(db *util.SqliteDb, doc any) error
}

// Row is one table row produced by a built-in table implementation,
// paired with the source object so user-declared extension columns can
// extract from it.
type Row struct {
	Obj    any
	Values []any
}

// CodeColumn declares a built-in table column whose value is produced
// in code.
type CodeColumn struct {
	Name    string
	SQLType string
}

// BuiltinDef declares a table implemented in code, registered at
// startup.
type BuiltinDef struct {
	Schema   string
	Name     string
	Resource string
	Columns  []CodeColumn
	MakeRows func(doc any) ([]Row, error)
}

// defaultRowSource is the Kubernetes convention applied when a config
// table has no row_source.
var defaultRowSource = []string{"items"}

// NewFromConfig builds a config-only table: row enumeration via
// row_source, all columns from config.
func NewFromConfig(schema string, create config.CreateTable, extend []config.ColumnDef) (Builder, error) {
	sources := create.RowSource
	if len(sources) == 0 {
		sources = defaultRowSource
	}
	compiled := make([]*jmespath.JMESPath, len(sources))
	for i, source := range sources {
		expr, err := jmespath.Compile(source)
		if err != nil {
			return nil, util.Configf("invalid row_source '%s' for table '%s': %v", source, create.Table, err)
		}
		compiled[i] = expr
	}
	columns, err := compileColumns(append(append([]config.ColumnDef{}, create.Columns...), extend...))
	if err != nil {
		return nil, err
	}
	return &configTable{
		schema:    schema,
		name:      create.Table,
		resource:  create.Resource,
		rowSource: compiled,
		columns:   columns,
	}, nil
}

// NewFromCode builds a built-in table, optionally extended by
// user-declared columns.
func NewFromCode(def BuiltinDef, extend []config.ColumnDef) (Builder, error) {
	extras, err := compileColumns(extend)
	if err != nil {
		return nil, err
	}
	return &codeTable{def: def, extras: extras}, nil
}

type configTable struct {
	schema    string
	name      string
	resource  string
	rowSource []*jmespath.JMESPath
	columns   []*column
}

func (t *configTable) Schema() string       { return t.schema }
func (t *configTable) Name() string         { return t.name }
func (t *configTable) ResourceName() string { return t.resource }

func (t *configTable) Build(db *util.SqliteDb, doc any) error {
	decls := make([]string, len(t.columns))
	for i, c := range t.columns {
		decls[i] = fmt.Sprintf(`"%s" %s`, c.name, c.sqlType)
	}
	if err := createTable(db, t.schema, t.name, decls); err != nil {
		return err
	}
	items := itemize(t.name, t.rowSource, doc)
	for _, item := range items {
		values := make([]any, len(t.columns))
		for i, c := range t.columns {
			value, err := c.extract(item)
			if err != nil {
				return err
			}
			values[i] = value
		}
		if err := insertRow(db, t.schema, t.name, values); err != nil {
			return err
		}
	}
	return nil
}

type codeTable struct {
	def    BuiltinDef
	extras []*column
}

func (t *codeTable) Schema() string       { return t.def.Schema }
func (t *codeTable) Name() string         { return t.def.Name }
func (t *codeTable) ResourceName() string { return t.def.Resource }

func (t *codeTable) Build(db *util.SqliteDb, doc any) error {
	decls := make([]string, 0, len(t.def.Columns)+len(t.extras))
	for _, c := range t.def.Columns {
		decls = append(decls, fmt.Sprintf(`"%s" %s`, c.Name, c.SQLType))
	}
	for _, c := range t.extras {
		decls = append(decls, fmt.Sprintf(`"%s" %s`, c.name, c.sqlType))
	}
	if err := createTable(db, t.def.Schema, t.def.Name, decls); err != nil {
		return err
	}
	rows, err := t.def.MakeRows(doc)
	if err != nil {
		return err
	}
	for _, row := range rows {
		values := row.Values
		item := &Item{Obj: row.Obj}
		for _, c := range t.extras {
			value, err := c.extract(item)
			if err != nil {
				return err
			}
			values = append(values, value)
		}
		if err := insertRow(db, t.def.Schema, t.def.Name, values); err != nil {
			return err
		}
	}
	return nil
}

// itemize applies the row-source chain: each path expands the current
// items, flattening list results and recording parent links; nulls are
// dropped.
func itemize(table string, rowSource []*jmespath.JMESPath, doc any) []*Item {
	items := []*Item{{Obj: doc}}
	for _, source := range rowSource {
		var next []*Item
		for _, item := range items {
			found, err := source.Search(item.Obj)
			if err != nil || found == nil {
				continue
			}
			if list, ok := found.([]any); ok {
				for _, child := range list {
					if child != nil {
						next = append(next, &Item{Obj: child, Parent: item})
					}
				}
			} else {
				next = append(next, &Item{Obj: found, Parent: item})
			}
		}
		util.Debug("itemize", "table %s: %d items -> %d", table, len(items), len(next))
		items = next
	}
	return items
}

func createTable(db *util.SqliteDb, schema, name string, decls []string) error {
	stmt := fmt.Sprintf(`CREATE TABLE "%s"."%s" (%s)`, schema, name, strings.Join(decls, ", "))
	return db.Execute(stmt)
}

func insertRow(db *util.SqliteDb, schema, name string, values []any) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	stmt := fmt.Sprintf(`INSERT INTO "%s"."%s" VALUES (%s)`, schema, name, placeholders)
	return db.Execute(stmt, values...)
}
