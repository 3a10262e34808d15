package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffEmptyToTables(t *testing.T) {
	after := NewDatabase()
	require.NoError(t, after.AddTable(blogTable()))

	ops := Diff(NewDatabase(), after)
	require.Len(t, ops, 1)
	assert.Equal(t, OpCreateTable, ops[0].Kind)
	assert.Equal(t, "Blog", ops[0].Table.Name)
	assert.Len(t, ops[0].Table.Columns, 2)
}

func TestDiffAddAndDropColumn(t *testing.T) {
	before := NewDatabase()
	require.NoError(t, before.AddTable(blogTable()))

	after := before.Clone()
	tbl := after.Tables["Blog"]
	tbl.Columns = []Column{
		tbl.Columns[0],
		{Name: "slug", Type: KnownType(TyText)},
	}
	after.Tables["Blog"] = tbl

	ops := Diff(before, after)
	require.Len(t, ops, 2)
	assert.Equal(t, OpAddColumn, ops[0].Kind)
	assert.Equal(t, "slug", ops[0].Col.Name)
	assert.Equal(t, OpDropColumn, ops[1].Kind)
	assert.Equal(t, "name", ops[1].Old.Name)
}

func TestDiffAlterColumn(t *testing.T) {
	before := NewDatabase()
	require.NoError(t, before.AddTable(blogTable()))

	after := before.Clone()
	tbl := after.Tables["Blog"]
	tbl.Columns[1].Nullable = true
	after.Tables["Blog"] = tbl

	ops := Diff(before, after)
	require.Len(t, ops, 1)
	assert.Equal(t, OpAlterColumn, ops[0].Kind)
	assert.Equal(t, "name", ops[0].Col.Name)
	assert.False(t, ops[0].Old.Nullable)
	assert.True(t, ops[0].Col.Nullable)
}

func TestDiffDropTable(t *testing.T) {
	before := NewDatabase()
	require.NoError(t, before.AddTable(blogTable()))

	ops := Diff(before, NewDatabase())
	require.Len(t, ops, 1)
	assert.Equal(t, OpDropTable, ops[0].Kind)
	assert.Equal(t, "Blog", ops[0].Table.Name)
}

func TestDiffIdenticalSnapshots(t *testing.T) {
	db := NewDatabase()
	require.NoError(t, db.AddTable(blogTable()))
	assert.Empty(t, Diff(db, db.Clone()))
}

// The op list must come out the same no matter how maps happen to
// iterate, since it feeds straight into generated migration text.
func TestDiffDeterministicOrder(t *testing.T) {
	before := NewDatabase()
	after := NewDatabase()
	for _, name := range []string{"Zeta", "Alpha", "Mid"} {
		require.NoError(t, after.AddTable(Table{Name: name, Columns: []Column{
			{Name: "id", Type: KnownType(TyInt), PK: true},
		}}))
	}

	first := Diff(before, after)
	for range 20 {
		again := Diff(before, after)
		require.Equal(t, first, again)
	}
	assert.Equal(t, "Alpha", first[0].Table.Name)
	assert.Equal(t, "Mid", first[1].Table.Name)
	assert.Equal(t, "Zeta", first[2].Table.Name)
}
