package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryIsConsistent(t *testing.T) {
	seen := map[string]bool{}
	for _, table := range All() {
		require.False(t, seen[table.Name], "duplicate table %s", table.Name)
		require.NotEmpty(t, table.PrimaryKey, "table %s has no primary key", table.Name)

		for _, k := range table.PrimaryKey {
			_, ok := table.Column(k)
			assert.True(t, ok, "%s: primary key column %s not declared", table.Name, k)
		}
		for _, fk := range table.ForeignKeys {
			assert.True(t, seen[fk.RefTable], "%s: parent %s must be declared first", table.Name, fk.RefTable)
			parent, ok := Lookup(fk.RefTable)
			require.True(t, ok)
			for i, c := range fk.Columns {
				_, ok := table.Column(c)
				assert.True(t, ok, "%s: fk column %s not declared", table.Name, c)
				_, ok = parent.Column(fk.RefColumns[i])
				assert.True(t, ok, "%s: fk target %s.%s not declared", table.Name, fk.RefTable, fk.RefColumns[i])
			}
		}
		for _, idx := range table.Indexes {
			for _, c := range idx.Columns {
				_, ok := table.Column(c)
				assert.True(t, ok, "%s: index column %s not declared", table.Name, c)
			}
		}
		seen[table.Name] = true
	}
}

func TestMessagesDoNotCascadeFromChannels(t *testing.T) {
	messages, ok := Lookup(Messages)
	require.True(t, ok)
	require.Len(t, messages.ForeignKeys, 1)
	assert.Equal(t, NoAction, messages.ForeignKeys[0].OnDelete)
}

func TestOnlyPendingTasksAreDurable(t *testing.T) {
	for _, table := range All() {
		assert.Equal(t, table.Name == PendingTasks, table.Durable, table.Name)
	}
}
