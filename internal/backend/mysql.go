package backend

import (
	"fmt"
	"strings"

	"schemachain/internal/schema"
)

type mysqlDialect struct{}

func (mysqlDialect) ID() ID { return MySQL }

func (d mysqlDialect) DDL(ops []schema.Operation, extra map[string]schema.SQLType) (string, error) {
	var stmts []string
	var fks []string
	for _, op := range ops {
		tbl := quoteBacktick(op.Table.Name)
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
			stmts = append(stmts, fmt.Sprintf("CREATE TABLE %s (\n%s\n)", tbl, strings.Join(lines, ",\n")))
			for _, c := range op.Table.Columns {
				if c.Reference != nil {
					fks = append(fks, fmt.Sprintf("ALTER TABLE %s ADD FOREIGN KEY (%s) REFERENCES %s(%s)",
						tbl, quoteBacktick(c.Name), quoteBacktick(c.Reference.TableName), quoteBacktick(c.Reference.ColumnName)))
				}
			}
		case schema.OpAddColumn:
			sql, err := d.columnSQL(op.Col, extra, true)
			if err != nil {
				return "", err
			}
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", tbl, sql))
			if op.Col.Reference != nil {
				fks = append(fks, fmt.Sprintf("ALTER TABLE %s ADD FOREIGN KEY (%s) REFERENCES %s(%s)",
					tbl, quoteBacktick(op.Col.Name), quoteBacktick(op.Col.Reference.TableName), quoteBacktick(op.Col.Reference.ColumnName)))
			}
		case schema.OpAlterColumn:
			sql, err := d.columnSQL(op.Col, extra, false)
			if err != nil {
				return "", err
			}
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", tbl, sql))
		case schema.OpDropColumn:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", tbl, quoteBacktick(op.Old.Name)))
		case schema.OpDropTable:
			stmts = append(stmts, fmt.Sprintf("DROP TABLE %s", tbl))
		default:
			return "", fmt.Errorf("mysql: unsupported operation %s", op.Kind)
		}
	}
	return script(append(stmts, fks...)), nil
}

func (d mysqlDialect) columnSQL(c schema.Column, extra map[string]schema.SQLType, needsDefault bool) (string, error) {
	ty, err := d.typeSQL(c, extra)
	if err != nil {
		return "", err
	}
	parts := []string{quoteBacktick(c.Name), ty}
	if !c.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if c.Auto {
		parts = append(parts, "AUTO_INCREMENT")
	}
	if c.PK {
		parts = append(parts, "PRIMARY KEY")
	}
	if c.Unique {
		parts = append(parts, "UNIQUE")
	}
	if lit, ok := defaultLiteral(c.Default, true); ok {
		parts = append(parts, "DEFAULT "+lit)
	} else if needsDefault && !c.Nullable {
		if zero := d.zeroLiteral(c, extra); zero != "" {
			parts = append(parts, "DEFAULT "+zero)
		}
	}
	return strings.Join(parts, " "), nil
}

func (d mysqlDialect) typeSQL(c schema.Column, extra map[string]schema.SQLType) (string, error) {
	ty, custom, err := resolveType(c.Type, extra)
	if err != nil {
		return "", err
	}
	if custom != "" {
		return custom, nil
	}
	switch ty {
	case schema.TyBool:
		return "TINYINT(1)", nil
	case schema.TyInt:
		return "INT", nil
	case schema.TyBigInt:
		return "BIGINT", nil
	case schema.TyReal:
		return "DOUBLE", nil
	case schema.TyText:
		return "TEXT", nil
	case schema.TyBlob:
		if c.PK || c.Unique || c.Reference != nil {
			// Key columns need a bounded length.
			return "VARBINARY(255)", nil
		}
		return "BLOB", nil
	case schema.TyJSON:
		return "JSON", nil
	case schema.TyTimestamp:
		return "DATETIME", nil
	default:
		return "", fmt.Errorf("mysql: no mapping for type %s", ty)
	}
}

// zeroLiteral may return "" for types MySQL refuses plain defaults on
// (TEXT/BLOB); those columns are added without one.
func (d mysqlDialect) zeroLiteral(c schema.Column, extra map[string]schema.SQLType) string {
	ty, _, err := resolveType(c.Type, extra)
	if err != nil {
		return ""
	}
	switch ty {
	case schema.TyBool, schema.TyInt, schema.TyBigInt, schema.TyReal:
		return "0"
	case schema.TyJSON:
		return "('{}')"
	case schema.TyTimestamp:
		return "CURRENT_TIMESTAMP"
	default:
		return ""
	}
}

func quoteBacktick(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
