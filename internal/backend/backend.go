// Package backend maps schema operations to executable DDL for a
// specific SQL dialect. Dialects register themselves by identifier;
// the identifier set is open so migration files may carry text for
// backends this build does not know about.
package backend

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"schemachain/internal/schema"
)

// ID names a SQL backend in migration up/down maps.
type ID string

const (
	Postgres ID = "pg"
	SQLite   ID = "sqlite"
	MySQL    ID = "mysql"
)

// Dialect renders schema operations as DDL for one backend.
type Dialect interface {
	ID() ID
	// DDL renders the operation list as a DDL script. extra resolves
	// named custom types to their representations.
	DDL(ops []schema.Operation, extra map[string]schema.SQLType) (string, error)
}

var (
	regMu    sync.RWMutex
	registry = map[ID]Dialect{}
)

// Register adds a dialect to the registry, replacing any previous
// dialect with the same identifier.
func Register(d Dialect) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[d.ID()] = d
}

// Get looks up a registered dialect.
func Get(id ID) (Dialect, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	d, ok := registry[id]
	return d, ok
}

// IDs returns the registered identifiers in sorted order.
func IDs() []ID {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]ID, 0, len(registry))
	for id := range registry {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func init() {
	Register(pgDialect{})
	Register(sqliteDialect{})
	Register(mysqlDialect{})
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// resolveType unwraps a custom type through the extra_types map; a
// custom type whose representation is itself custom is used verbatim.
func resolveType(t schema.SQLType, extra map[string]schema.SQLType) (schema.Ty, string, error) {
	if !t.IsCustom() {
		return t.Known, "", nil
	}
	rep, ok := extra[t.Custom]
	if !ok {
		return "", "", fmt.Errorf("unknown custom type %s", t.Custom)
	}
	if rep.IsCustom() {
		return "", rep.Custom, nil
	}
	return rep.Known, "", nil
}

// defaultLiteral renders a column's JSON-encoded default value as a
// SQL literal. boolAsInt is set for backends without a boolean type.
func defaultLiteral(raw []byte, boolAsInt bool) (string, bool) {
	s := strings.TrimSpace(string(raw))
	switch {
	case s == "" || s == "null":
		return "", false
	case s == "true":
		if boolAsInt {
			return "1", true
		}
		return "TRUE", true
	case s == "false":
		if boolAsInt {
			return "0", true
		}
		return "FALSE", true
	case strings.HasPrefix(s, `"`):
		var unquoted string
		if err := json.Unmarshal(raw, &unquoted); err != nil {
			unquoted = strings.Trim(s, `"`)
		}
		return "'" + strings.ReplaceAll(unquoted, "'", "''") + "'", true
	default:
		return s, true
	}
}

func script(statements []string) string {
	if len(statements) == 0 {
		return ""
	}
	return strings.Join(statements, ";\n") + ";\n"
}
