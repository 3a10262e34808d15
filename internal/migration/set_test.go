package migration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemachain/internal/backend"
	"schemachain/internal/schema"
)

const (
	initName = "20240401_095709389_init"
	tagsName = "20240406_035726416_tags"
)

func loadFixture(t *testing.T) *Set {
	t.Helper()
	set, err := LoadSet(FileSource(filepath.Join("testdata", "blog_set.json")))
	require.NoError(t, err)
	return set
}

func TestDeserializeFixture(t *testing.T) {
	set := loadFixture(t)

	require.Len(t, set.Migrations, 2)
	assert.Equal(t, tagsName, set.Latest)

	init, err := set.Get(initName)
	require.NoError(t, err)
	assert.Empty(t, init.From)
	assert.ElementsMatch(t, []string{"Blog", "Post", "Post_tags_Many", "Tag"}, init.DB.TableNames())

	tags, err := set.Get(tagsName)
	require.NoError(t, err)
	assert.Equal(t, initName, tags.From)
	assert.ElementsMatch(t, []string{"Blog", "Post"}, tags.DB.TableNames())

	post := tags.DB.Tables["Post"]
	col, ok := post.Column("tags")
	require.True(t, ok)
	assert.Equal(t, schema.KnownType(schema.TyJSON), col.Type)

	blogCol, ok := post.Column("blog")
	require.True(t, ok)
	require.NotNil(t, blogCol.Reference)
	assert.Equal(t, "Blog", blogCol.Reference.TableName)
	assert.Equal(t, "id", blogCol.Reference.ColumnName)
}

func TestSerializeRoundTrip(t *testing.T) {
	set := loadFixture(t)

	out, err := set.Serialize()
	require.NoError(t, err)

	again, err := Deserialize(out)
	require.NoError(t, err)
	assert.Equal(t, set.Latest, again.Latest)
	require.Len(t, again.Migrations, len(set.Migrations))
	for name, rec := range set.Migrations {
		other, err := again.Get(name)
		require.NoError(t, err)
		assert.Equal(t, rec.From, other.From)
		assert.Equal(t, rec.Up, other.Up)
		assert.Equal(t, rec.Down, other.Down)
		assert.True(t, rec.DB.Equal(other.DB))
	}
}

func TestSerializeByteEquality(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "blog_set.json"))
	require.NoError(t, err)
	set, err := Deserialize(raw)
	require.NoError(t, err)

	first, err := set.Serialize()
	require.NoError(t, err)
	second, err := set.Serialize()
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))

	// Field-level equivalence with the input, independent of whitespace.
	var want, got map[string]any
	require.NoError(t, json.Unmarshal(raw, &want))
	require.NoError(t, json.Unmarshal(first, &got))
	assert.Equal(t, want, got)
}

func TestDeserializeErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want error
	}{
		{
			"invalid json",
			`{"migrations":`,
			ErrMalformed,
		},
		{
			"unnamed record",
			`{"migrations":{"a":{"db":{"tables":{},"extra_types":{}},"from":null,"up":{},"down":{}}},"current":null,"latest":null}`,
			ErrMalformed,
		},
		{
			"key name mismatch",
			`{"migrations":{"a":{"name":"b","db":{"tables":{},"extra_types":{}},"from":null,"up":{},"down":{}}},"current":null,"latest":null}`,
			ErrMalformed,
		},
		{
			"dangling from",
			`{"migrations":{"a":{"name":"a","db":{"tables":{},"extra_types":{}},"from":"ghost","up":{},"down":{}}},"current":null,"latest":null}`,
			ErrMalformed,
		},
		{
			"dangling latest",
			`{"migrations":{},"current":null,"latest":"ghost"}`,
			ErrMalformed,
		},
		{
			"unknown type tag",
			`{"migrations":{"a":{"name":"a","db":{"tables":{"T":{"name":"T","columns":[{"name":"c","sqltype":{"KnownId":{"Ty":"Decimal"}},"nullable":false,"pk":false,"auto":false,"unique":false,"default":null}]}},"extra_types":{}},"from":null,"up":{},"down":{}}},"current":null,"latest":null}`,
			ErrMalformed,
		},
		{
			"two-node cycle",
			`{"migrations":{"a":{"name":"a","db":{"tables":{},"extra_types":{}},"from":"b","up":{},"down":{}},"b":{"name":"b","db":{"tables":{},"extra_types":{}},"from":"a","up":{},"down":{}}},"current":null,"latest":null}`,
			ErrCycle,
		},
		{
			"self cycle",
			`{"migrations":{"a":{"name":"a","db":{"tables":{},"extra_types":{}},"from":"a","up":{},"down":{}}},"current":null,"latest":null}`,
			ErrCycle,
		},
		{
			"unresolvable reference",
			`{"migrations":{"a":{"name":"a","db":{"tables":{"T":{"name":"T","columns":[{"name":"c","sqltype":{"KnownId":{"Ty":"Int"}},"nullable":false,"pk":false,"auto":false,"unique":false,"default":null,"reference":{"Literal":{"table_name":"Ghost","column_name":"id"}}}]}},"extra_types":{}},"from":null,"up":{},"down":{}}},"current":null,"latest":null}`,
			ErrMalformed,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Deserialize([]byte(tc.in))
			require.ErrorIs(t, err, tc.want)
		})
	}
}

// A reference may target a table that only exists in an ancestor
// snapshot; the tags migration in the fixture relies on this for its
// down text, and a minimal version is checked here.
func TestReferenceResolvesThroughAncestor(t *testing.T) {
	in := `{
	  "migrations": {
	    "base": {
	      "name": "base",
	      "db": {"tables": {"Blog": {"name": "Blog", "columns": [
	        {"name": "id", "sqltype": {"KnownId": {"Ty": "Int"}}, "nullable": false, "pk": true, "auto": false, "unique": false, "default": null}
	      ]}}, "extra_types": {}},
	      "from": null, "up": {}, "down": {}
	    },
	    "child": {
	      "name": "child",
	      "db": {"tables": {"Post": {"name": "Post", "columns": [
	        {"name": "blog", "sqltype": {"KnownId": {"Ty": "Int"}}, "nullable": false, "pk": false, "auto": false, "unique": false, "default": null,
	         "reference": {"Literal": {"table_name": "Blog", "column_name": "id"}}}
	      ]}}, "extra_types": {}},
	      "from": "base", "up": {}, "down": {}
	    }
	  },
	  "current": null,
	  "latest": "child"
	}`
	_, err := Deserialize([]byte(in))
	require.NoError(t, err)
}

func TestRecordSQL(t *testing.T) {
	set := loadFixture(t)
	rec, err := set.Get(initName)
	require.NoError(t, err)

	up, err := rec.SQL(Up, backend.SQLite)
	require.NoError(t, err)
	assert.Contains(t, up, "CREATE TABLE Blog")

	down, err := rec.SQL(Down, backend.Postgres)
	require.NoError(t, err)
	assert.Contains(t, down, "DROP TABLE Blog")

	_, err = rec.SQL(Up, backend.MySQL)
	require.ErrorIs(t, err, ErrUnsupportedBackend)

	assert.Equal(t, []backend.ID{backend.Postgres, backend.SQLite}, rec.Backends())
}

func TestUnknownBackendKeysSurvive(t *testing.T) {
	in := `{"migrations":{"a":{"name":"a","db":{"tables":{},"extra_types":{}},"from":null,"up":{"cockroach":"SELECT 1;"},"down":{"cockroach":"SELECT 1;"}}},"current":null,"latest":"a"}`
	set, err := Deserialize([]byte(in))
	require.NoError(t, err)

	rec, err := set.Get("a")
	require.NoError(t, err)
	text, err := rec.SQL(Up, backend.ID("cockroach"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", text)

	out, err := set.Serialize()
	require.NoError(t, err)
	assert.Contains(t, string(out), "cockroach")
}

func TestAncestryAndDepth(t *testing.T) {
	set := loadFixture(t)

	chain, err := set.Ancestry(tagsName)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, initName, chain[0].Name)
	assert.Equal(t, tagsName, chain[1].Name)

	d, err := set.Depth(initName)
	require.NoError(t, err)
	assert.Equal(t, 1, d)
	d, err = set.Depth(tagsName)
	require.NoError(t, err)
	assert.Equal(t, 2, d)

	_, err = set.Ancestry("ghost")
	require.ErrorIs(t, err, ErrNoSuchMigration)
}

func chainOfThree(t *testing.T) *Set {
	t.Helper()
	in := `{
	  "migrations": {
	    "a": {"name": "a", "db": {"tables": {}, "extra_types": {}}, "from": null, "up": {}, "down": {}},
	    "b": {"name": "b", "db": {"tables": {}, "extra_types": {}}, "from": "a", "up": {}, "down": {}},
	    "c": {"name": "c", "db": {"tables": {}, "extra_types": {}}, "from": "b", "up": {}, "down": {}}
	  },
	  "current": null,
	  "latest": "c"
	}`
	set, err := Deserialize([]byte(in))
	require.NoError(t, err)
	return set
}

func names(records []*Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

func TestPathForward(t *testing.T) {
	set := chainOfThree(t)

	records, dir, err := set.Path("", "c")
	require.NoError(t, err)
	assert.Equal(t, Up, dir)
	assert.Equal(t, []string{"a", "b", "c"}, names(records))

	records, dir, err = set.Path("a", "c")
	require.NoError(t, err)
	assert.Equal(t, Up, dir)
	assert.Equal(t, []string{"b", "c"}, names(records))
}

func TestPathReverse(t *testing.T) {
	set := chainOfThree(t)

	records, dir, err := set.Path("c", "a")
	require.NoError(t, err)
	assert.Equal(t, Down, dir)
	assert.Equal(t, []string{"c", "b"}, names(records))
}

func TestPathNoop(t *testing.T) {
	set := chainOfThree(t)
	records, _, err := set.Path("b", "b")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPathDivergent(t *testing.T) {
	in := `{
	  "migrations": {
	    "root": {"name": "root", "db": {"tables": {}, "extra_types": {}}, "from": null, "up": {}, "down": {}},
	    "left": {"name": "left", "db": {"tables": {}, "extra_types": {}}, "from": "root", "up": {}, "down": {}},
	    "right": {"name": "right", "db": {"tables": {}, "extra_types": {}}, "from": "root", "up": {}, "down": {}}
	  },
	  "current": null,
	  "latest": "left"
	}`
	set, err := Deserialize([]byte(in))
	require.NoError(t, err)

	_, _, err = set.Path("left", "right")
	require.ErrorIs(t, err, ErrNoPath)
}

func TestPathUnknownNames(t *testing.T) {
	set := chainOfThree(t)
	_, _, err := set.Path("ghost", "c")
	require.ErrorIs(t, err, ErrNoSuchMigration)
	_, _, err = set.Path("a", "ghost")
	require.ErrorIs(t, err, ErrNoSuchMigration)
}

func TestNamesChainOrder(t *testing.T) {
	set := chainOfThree(t)
	assert.Equal(t, []string{"a", "b", "c"}, set.Names())
}

func TestLatestRecord(t *testing.T) {
	set := loadFixture(t)
	rec, err := set.LatestRecord()
	require.NoError(t, err)
	assert.Equal(t, tagsName, rec.Name)

	empty := NewSet()
	_, err = empty.LatestRecord()
	require.ErrorIs(t, err, ErrNoSuchMigration)
}

func TestBytesAndFSSource(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "blog_set.json"))
	require.NoError(t, err)

	set, err := LoadSet(BytesSource(raw))
	require.NoError(t, err)
	assert.Equal(t, tagsName, set.Latest)

	set, err = LoadSet(FSSource{FS: os.DirFS("testdata"), Path: "blog_set.json"})
	require.NoError(t, err)
	assert.Equal(t, tagsName, set.Latest)

	_, err = LoadSet(FileSource(filepath.Join("testdata", "missing.json")))
	require.Error(t, err)
}
