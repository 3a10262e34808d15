package schema

import "sort"

// OpKind tags one structural change between two snapshots.
type OpKind string

const (
	OpCreateTable OpKind = "create_table"
	OpAddColumn   OpKind = "add_column"
	OpAlterColumn OpKind = "alter_column"
	OpDropColumn  OpKind = "drop_column"
	OpDropTable   OpKind = "drop_table"
)

// Operation is one structural change, carrying enough detail to derive
// DDL for any backend.
type Operation struct {
	Kind  OpKind
	Table Table  // full definition for creates; Name only otherwise
	Col   Column // new column for adds and alters
	Old   Column // previous column for alters
}

// Diff computes the ordered change list turning old into new. The
// ordering is fixed (creates, then column adds, alters, drops, then
// table drops, names sorted within each group) so identical inputs
// always produce identical output.
func Diff(old, new Database) []Operation {
	var creates, adds, alters, colDrops, drops []Operation

	for _, name := range new.TableNames() {
		nt := new.Tables[name]
		ot, ok := old.Tables[name]
		if !ok {
			creates = append(creates, Operation{Kind: OpCreateTable, Table: nt.clone()})
			continue
		}
		for _, nc := range nt.Columns {
			oc, exists := ot.Column(nc.Name)
			switch {
			case !exists:
				adds = append(adds, Operation{Kind: OpAddColumn, Table: Table{Name: name}, Col: nc})
			case !oc.Equal(nc):
				alters = append(alters, Operation{Kind: OpAlterColumn, Table: Table{Name: name}, Col: nc, Old: oc})
			}
		}
		for _, oc := range ot.Columns {
			if _, exists := nt.Column(oc.Name); !exists {
				colDrops = append(colDrops, Operation{Kind: OpDropColumn, Table: Table{Name: name}, Old: oc})
			}
		}
	}
	for _, name := range old.TableNames() {
		if _, ok := new.Tables[name]; !ok {
			drops = append(drops, Operation{Kind: OpDropTable, Table: Table{Name: name}})
		}
	}

	sortOps(adds)
	sortOps(alters)
	sortOps(colDrops)

	out := make([]Operation, 0, len(creates)+len(adds)+len(alters)+len(colDrops)+len(drops))
	out = append(out, creates...)
	out = append(out, adds...)
	out = append(out, alters...)
	out = append(out, colDrops...)
	out = append(out, drops...)
	return out
}

func sortOps(ops []Operation) {
	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].Table.Name != ops[j].Table.Name {
			return ops[i].Table.Name < ops[j].Table.Name
		}
		return opColumn(ops[i]) < opColumn(ops[j])
	})
}

func opColumn(op Operation) string {
	if op.Col.Name != "" {
		return op.Col.Name
	}
	return op.Old.Name
}
