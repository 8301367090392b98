// Package query extracts table references from SQL text. The scan is
// purely lexical: identifiers following FROM or any ...JOIN keyword are
// collected, CTE names included. Spurious hits resolve to no builder
// downstream and the SQL engine flags genuinely unknown tables itself.
package query

import (
	"fmt"
	"sort"
	"strings"

	"kugl/internal/util"
)

// DefaultSchema is assumed for unqualified table names unless the query
// overrides it.
const DefaultSchema = "kubernetes"

// Schema names reserved by SQLite.
var reservedSchemas = map[string]bool{"main": true, "temp": true, "init": true}

// TableRef identifies one table referenced by a query.
type TableRef struct {
	Schema string
	Name   string
}

func (r TableRef) String() string { return r.Schema + "." + r.Name }

// Query is an immutable SQL statement plus query-scoped behaviors.
type Query struct {
	SQL           string
	DefaultSchema string
}

// New returns a query using the standard default schema.
func New(sql string) Query {
	return Query{SQL: sql, DefaultSchema: DefaultSchema}
}

// TableRefs scans the SQL and returns the deduplicated references, in
// lexical order of (schema, name).
func (q Query) TableRefs() ([]TableRef, error) {
	defaultSchema := q.DefaultSchema
	if defaultSchema == "" {
		defaultSchema = DefaultSchema
	}
	seen := map[TableRef]bool{}
	pending := false
	for _, tok := range tokenize(q.SQL) {
		if tok.kind != tokenWord {
			pending = false
			continue
		}
		if pending {
			pending = false
			ref, err := parseRef(tok.text, defaultSchema)
			if err != nil {
				return nil, err
			}
			seen[ref] = true
		}
		upper := strings.ToUpper(tok.text)
		if upper == "FROM" || strings.HasSuffix(upper, "JOIN") {
			pending = true
		}
	}
	refs := make([]TableRef, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].String() < refs[j].String() })
	return refs, nil
}

func parseRef(ref string, defaultSchema string) (TableRef, error) {
	parts := strings.Split(ref, ".")
	for _, p := range parts {
		if p == "" {
			return TableRef{}, util.Referencef("invalid table reference: %s", ref)
		}
	}
	var result TableRef
	switch len(parts) {
	case 1:
		result = TableRef{Schema: defaultSchema, Name: parts[0]}
	case 2:
		schema := parts[0]
		if schema == "k8s" {
			schema = "kubernetes"
		}
		result = TableRef{Schema: schema, Name: parts[1]}
	default:
		return TableRef{}, util.Referencef("invalid table reference: %s", ref)
	}
	if reservedSchemas[result.Schema] {
		return TableRef{}, util.Referencef("schema name '%s' is reserved", result.Schema)
	}
	return result, nil
}

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenOther
)

type token struct {
	kind tokenKind
	text string
}

func isWordChar(c byte) bool {
	return c == '_' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// tokenize splits SQL into word and non-word tokens, dropping
// whitespace, comments and string literals. It terminates on any input.
func tokenize(sql string) []token {
	var tokens []token
	i := 0
	for i < len(sql) {
		c := sql[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				i = len(sql)
			} else {
				i += 2 + end + 2
			}
		case c == '\'' || c == '"':
			i = skipQuoted(sql, i)
			tokens = append(tokens, token{kind: tokenOther, text: string(c)})
		case isWordChar(c):
			start := i
			for i < len(sql) && isWordChar(sql[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokenWord, text: sql[start:i]})
		default:
			tokens = append(tokens, token{kind: tokenOther, text: string(c)})
			i++
		}
	}
	return tokens
}

// skipQuoted advances past a quoted literal starting at i, honoring the
// doubled-quote escape. Unterminated literals consume the rest.
func skipQuoted(sql string, i int) int {
	quote := sql[i]
	i++
	for i < len(sql) {
		if sql[i] == quote {
			if i+1 < len(sql) && sql[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return i
}

// Describe is a debugging aid; the engine logs table refs with it on
// the "engine" debug channel.
func Describe(refs []TableRef) string {
	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.String()
	}
	return fmt.Sprintf("[%s]", strings.Join(names, " "))
}
