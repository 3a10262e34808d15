package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemachain/internal/migration"
)

func TestExampleSetLoads(t *testing.T) {
	set, err := migration.LoadSet(Example())
	require.NoError(t, err)
	assert.Len(t, set.Migrations, 2)
	assert.Equal(t, "20240406_035726416_tags", set.Latest)
}
