package backend

import (
	"fmt"
	"strings"

	"schemachain/internal/schema"
)

type sqliteDialect struct{}

func (sqliteDialect) ID() ID { return SQLite }

// Tables are declared STRICT so the storage classes match the declared
// types instead of SQLite's usual affinity rules.
func (d sqliteDialect) DDL(ops []schema.Operation, extra map[string]schema.SQLType) (string, error) {
	var stmts []string
	for _, op := range ops {
		tbl := quoteIdent(op.Table.Name)
		switch op.Kind {
		case schema.OpCreateTable:
			var lines []string
			for _, c := range op.Table.Columns {
				sql, err := d.columnSQL(c, extra, false)
				if err != nil {
					return "", err
				}
				lines = append(lines, sql)
			}
			// SQLite cannot add constraints after the fact, so foreign
			// keys go inline.
			for _, c := range op.Table.Columns {
				if c.Reference != nil {
					lines = append(lines, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)",
						quoteIdent(c.Name), quoteIdent(c.Reference.TableName), quoteIdent(c.Reference.ColumnName)))
				}
			}
			stmts = append(stmts, fmt.Sprintf("CREATE TABLE %s (\n%s\n) STRICT", tbl, strings.Join(lines, ",\n")))
		case schema.OpAddColumn:
			sql, err := d.columnSQL(op.Col, extra, true)
			if err != nil {
				return "", err
			}
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", tbl, sql))
		case schema.OpAlterColumn:
			// Would need the rebuild-and-copy dance; reject at
			// generation time rather than fail mid-apply.
			return "", fmt.Errorf("sqlite: cannot alter column %s.%s in place", op.Table.Name, op.Col.Name)
		case schema.OpDropColumn:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", tbl, quoteIdent(op.Old.Name)))
		case schema.OpDropTable:
			stmts = append(stmts, fmt.Sprintf("DROP TABLE %s", tbl))
		default:
			return "", fmt.Errorf("sqlite: unsupported operation %s", op.Kind)
		}
	}
	return script(stmts), nil
}

func (d sqliteDialect) columnSQL(c schema.Column, extra map[string]schema.SQLType, needsDefault bool) (string, error) {
	ty, err := d.typeSQL(c.Type, extra)
	if err != nil {
		return "", err
	}
	parts := []string{quoteIdent(c.Name), ty}
	if !c.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if c.PK {
		parts = append(parts, "PRIMARY KEY")
		if c.Auto {
			parts = append(parts, "AUTOINCREMENT")
		}
	}
	if c.Unique {
		parts = append(parts, "UNIQUE")
	}
	if lit, ok := defaultLiteral(c.Default, true); ok {
		parts = append(parts, "DEFAULT "+lit)
	} else if needsDefault && !c.Nullable {
		parts = append(parts, "DEFAULT "+d.zeroLiteral(c.Type, extra))
	}
	return strings.Join(parts, " "), nil
}

func (d sqliteDialect) typeSQL(t schema.SQLType, extra map[string]schema.SQLType) (string, error) {
	ty, custom, err := resolveType(t, extra)
	if err != nil {
		return "", err
	}
	if custom != "" {
		return custom, nil
	}
	switch ty {
	case schema.TyBool, schema.TyInt, schema.TyBigInt:
		return "INTEGER", nil
	case schema.TyReal:
		return "REAL", nil
	case schema.TyText, schema.TyJSON:
		return "TEXT", nil
	case schema.TyBlob:
		return "BLOB", nil
	case schema.TyTimestamp:
		return "TEXT", nil
	default:
		return "", fmt.Errorf("sqlite: no mapping for type %s", ty)
	}
}

func (d sqliteDialect) zeroLiteral(t schema.SQLType, extra map[string]schema.SQLType) string {
	ty, _, err := resolveType(t, extra)
	if err != nil {
		return "''"
	}
	switch ty {
	case schema.TyBool, schema.TyInt, schema.TyBigInt, schema.TyReal:
		return "0"
	case schema.TyBlob:
		return "X''"
	case schema.TyJSON:
		return "'{}'"
	default:
		return "''"
	}
}
