package table

import (
	"fmt"
	"strconv"

	"github.com/jmespath/go-jmespath"

	"kugl/internal/config"
	"kugl/internal/util"
)

// Item is one row object produced by row-source expansion, linked to
// the object that produced it. Parent links form a forest rooted at the
// resource document.
type Item struct {
	Obj    any
	Parent *Item
}

// Root walks up the parent chain to the outermost row object: the one
// produced by the first row_source step, or the row itself when it has
// no parent. The resource document above that object is not returned.
func (it *Item) Root() *Item {
	for it.Parent != nil && it.Parent.Parent != nil {
		it = it.Parent
	}
	return it
}

// sqlTypes maps config column types to SQL column types.
var sqlTypes = map[string]string{
	"text":    "text",
	"integer": "integer",
	"real":    "real",
	"date":    "integer",
	"age":     "integer",
	"size":    "integer",
	"cpu":     "real",
}

// column is a compiled ColumnDef.
type column struct {
	name     string
	sqlType  string
	hops     int
	matchKey string
	expr     *jmespath.JMESPath
	labels   []string
	coerce   func(any) any
}

func compileColumn(def config.ColumnDef) (*column, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	colType := def.Type
	if colType == "" {
		colType = "text"
	}
	c := &column{
		name:    def.Name,
		sqlType: sqlTypes[colType],
		labels:  def.Label,
		coerce:  coercers[colType],
	}
	if def.Path != "" {
		hops, matchKey, expr := config.SplitPath(def.Path)
		c.hops = hops
		c.matchKey = matchKey
		if matchKey == "" {
			compiled, err := jmespath.Compile(expr)
			if err != nil {
				return nil, util.Configf("invalid path expression '%s' in column '%s': %v", expr, def.Name, err)
			}
			c.expr = compiled
		}
	}
	return c, nil
}

func compileColumns(defs []config.ColumnDef) ([]*column, error) {
	columns := make([]*column, 0, len(defs))
	for _, def := range defs {
		c, err := compileColumn(def)
		if err != nil {
			return nil, err
		}
		columns = append(columns, c)
	}
	return columns, nil
}

// extract produces the column value for one item. Type coercion
// failures yield null; a parent-hop overrun is fatal.
func (c *column) extract(it *Item) (any, error) {
	switch {
	case c.matchKey != "":
		value := findMatchGroup(it, c.matchKey)
		if value == nil {
			return nil, nil
		}
		return c.coerce(value), nil
	case len(c.labels) > 0:
		value := findLabel(it.Root().Obj, c.labels)
		if value == nil {
			return nil, nil
		}
		return c.coerce(value), nil
	default:
		cur := it
		for hop := 0; hop < c.hops; hop++ {
			if cur.Parent == nil {
				return nil, util.Extractionf("column '%s' reaches above the row's parent chain", c.name)
			}
			cur = cur.Parent
		}
		value, err := c.expr.Search(cur.Obj)
		if err != nil || value == nil {
			return nil, nil
		}
		return c.coerce(value), nil
	}
}

// findMatchGroup walks up the parent chain to the nearest folder entry
// and returns one of its regex match groups.
func findMatchGroup(it *Item, key string) any {
	for cur := it; cur != nil; cur = cur.Parent {
		if m, ok := cur.Obj.(map[string]any); ok {
			if groups, ok := m["match"].(map[string]any); ok {
				return groups[key]
			}
		}
	}
	return nil
}

// findLabel looks up label keys in order under metadata.labels of the
// root object.
func findLabel(root any, labels []string) any {
	m, ok := root.(map[string]any)
	if !ok {
		return nil
	}
	metadata, ok := m["metadata"].(map[string]any)
	if !ok {
		return nil
	}
	available, ok := metadata["labels"].(map[string]any)
	if !ok {
		return nil
	}
	for _, label := range labels {
		if value, ok := available[label]; ok && value != nil {
			return value
		}
	}
	return nil
}

// Coercers turn raw document values into the declared column type;
// a value that can't be coerced becomes null.
var coercers = map[string]func(any) any{
	"text": func(v any) any {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	},
	"integer": func(v any) any { return toInt(v) },
	"real":    func(v any) any { return toFloat(v) },
	"date": func(v any) any {
		if s, ok := v.(string); ok {
			if epoch, err := util.ParseUTC(s); err == nil {
				return epoch
			}
			return nil
		}
		return toInt(v)
	},
	"age": func(v any) any {
		if s, ok := v.(string); ok {
			if secs, err := util.ParseAge(s); err == nil {
				return secs
			}
			return nil
		}
		return toInt(v)
	},
	"size": func(v any) any {
		if s, ok := v.(string); ok {
			if nbytes, err := util.ParseSize(s); err == nil {
				return nbytes
			}
			return nil
		}
		return toInt(v)
	},
	"cpu": func(v any) any {
		if s, ok := v.(string); ok {
			if cores, err := util.ParseCPU(s); err == nil {
				return cores
			}
			return nil
		}
		return toFloat(v)
	},
}

func toInt(v any) any {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case string:
		if n, err := strconv.ParseInt(x, 10, 64); err == nil {
			return n
		}
	}
	return nil
}

func toFloat(v any) any {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f
		}
	}
	return nil
}
