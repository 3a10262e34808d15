package backend

import (
	"fmt"
	"strings"

	"schemachain/internal/schema"
)

type pgDialect struct{}

func (pgDialect) ID() ID { return Postgres }

func (d pgDialect) DDL(ops []schema.Operation, extra map[string]schema.SQLType) (string, error) {
	var stmts []string
	// Foreign keys are added after every table exists, so creates may
	// reference each other in any order.
	var fks []string

	for _, op := range ops {
		tbl := quoteIdent(op.Table.Name)
		switch op.Kind {
		case schema.OpCreateTable:
			var cols []string
			for _, c := range op.Table.Columns {
				sql, err := d.columnSQL(c, extra, false)
				if err != nil {
					return "", err
				}
				cols = append(cols, sql)
				if c.Reference != nil {
					fks = append(fks, fmt.Sprintf("ALTER TABLE %s ADD FOREIGN KEY (%s) REFERENCES %s(%s)",
						tbl, quoteIdent(c.Name), quoteIdent(c.Reference.TableName), quoteIdent(c.Reference.ColumnName)))
				}
			}
			stmts = append(stmts, fmt.Sprintf("CREATE TABLE %s (\n%s\n)", tbl, strings.Join(cols, ",\n")))
		case schema.OpAddColumn:
			sql, err := d.columnSQL(op.Col, extra, true)
			if err != nil {
				return "", err
			}
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", tbl, sql))
			if op.Col.Reference != nil {
				fks = append(fks, fmt.Sprintf("ALTER TABLE %s ADD FOREIGN KEY (%s) REFERENCES %s(%s)",
					tbl, quoteIdent(op.Col.Name), quoteIdent(op.Col.Reference.TableName), quoteIdent(op.Col.Reference.ColumnName)))
			}
		case schema.OpAlterColumn:
			alter, err := d.alterColumn(op, extra)
			if err != nil {
				return "", err
			}
			stmts = append(stmts, alter...)
		case schema.OpDropColumn:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", tbl, quoteIdent(op.Old.Name)))
		case schema.OpDropTable:
			stmts = append(stmts, fmt.Sprintf("DROP TABLE %s", tbl))
		default:
			return "", fmt.Errorf("pg: unsupported operation %s", op.Kind)
		}
	}
	return script(append(stmts, fks...)), nil
}

func (d pgDialect) columnSQL(c schema.Column, extra map[string]schema.SQLType, needsDefault bool) (string, error) {
	ty, err := d.typeSQL(c, extra)
	if err != nil {
		return "", err
	}
	parts := []string{quoteIdent(c.Name), ty}
	if !c.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if c.PK {
		parts = append(parts, "PRIMARY KEY")
	}
	if c.Unique {
		parts = append(parts, "UNIQUE")
	}
	if lit, ok := defaultLiteral(c.Default, false); ok {
		parts = append(parts, "DEFAULT "+lit)
	} else if needsDefault && !c.Nullable {
		parts = append(parts, "DEFAULT "+d.zeroLiteral(c, extra))
	}
	return strings.Join(parts, " "), nil
}

func (d pgDialect) typeSQL(c schema.Column, extra map[string]schema.SQLType) (string, error) {
	ty, custom, err := resolveType(c.Type, extra)
	if err != nil {
		return "", err
	}
	if custom != "" {
		return custom, nil
	}
	if c.Auto {
		switch ty {
		case schema.TyInt:
			return "SERIAL", nil
		case schema.TyBigInt:
			return "BIGSERIAL", nil
		}
	}
	switch ty {
	case schema.TyBool:
		return "BOOLEAN", nil
	case schema.TyInt:
		return "INTEGER", nil
	case schema.TyBigInt:
		return "BIGINT", nil
	case schema.TyReal:
		return "DOUBLE PRECISION", nil
	case schema.TyText:
		return "TEXT", nil
	case schema.TyBlob:
		return "BYTEA", nil
	case schema.TyJSON:
		return "JSONB", nil
	case schema.TyTimestamp:
		return "TIMESTAMPTZ", nil
	default:
		return "", fmt.Errorf("pg: no mapping for type %s", ty)
	}
}

func (d pgDialect) zeroLiteral(c schema.Column, extra map[string]schema.SQLType) string {
	ty, _, err := resolveType(c.Type, extra)
	if err != nil {
		return "''"
	}
	switch ty {
	case schema.TyBool:
		return "FALSE"
	case schema.TyInt, schema.TyBigInt, schema.TyReal:
		return "0"
	case schema.TyBlob:
		return `'\x'`
	case schema.TyJSON:
		return "'{}'"
	case schema.TyTimestamp:
		return "now()"
	default:
		return "''"
	}
}

func (d pgDialect) alterColumn(op schema.Operation, extra map[string]schema.SQLType) ([]string, error) {
	tbl := quoteIdent(op.Table.Name)
	col := quoteIdent(op.Col.Name)
	var stmts []string
	if op.Col.Type != op.Old.Type {
		ty, err := d.typeSQL(op.Col, extra)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", tbl, col, ty))
	}
	if op.Col.Nullable != op.Old.Nullable {
		if op.Col.Nullable {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", tbl, col))
		} else {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", tbl, col))
		}
	}
	if string(op.Col.Default) != string(op.Old.Default) {
		if lit, ok := defaultLiteral(op.Col.Default, false); ok {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", tbl, col, lit))
		} else {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", tbl, col))
		}
	}
	return stmts, nil
}
