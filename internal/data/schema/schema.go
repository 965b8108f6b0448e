// Package schema declares the local cache's tables.
//
// Tables:
//   - channelQueries - cached channel id lists per filter/sort pair
//   - users          - shared identity/presence projection
//   - channels       - channel metadata
//   - polls          - polls with denormalized votes
//   - messages       - channel messages (explicitly deleted, never cascaded)
//   - reactions      - one row per (message, user, type)
//   - members        - channel membership
//   - reads          - per-user read watermarks
//   - draft          - draft reply per (channel, parent thread)
//   - draftMessage   - draft message detail row owned by its draft
//   - userSyncStatus - sync watermark and app settings per user
//   - pendingTasks   - queued mutations awaiting backend confirmation
package schema

// Version is the schema version stored in the database. Any mismatch with a
// stored version recreates every table.
const Version = 4

// Column types.
const (
	Text    = "TEXT"
	Integer = "INTEGER"
)

// Foreign key actions.
const (
	Cascade  = "CASCADE"
	NoAction = "NO ACTION"
)

// Column is a single table column.
type Column struct {
	Name    string
	Type    string
	NotNull bool
	// Default is the SQL literal used for rows inserted without the column.
	Default string
	// AutoIncrement marks an INTEGER PRIMARY KEY AUTOINCREMENT column.
	AutoIncrement bool
}

// ForeignKey references a parent table.
type ForeignKey struct {
	Columns    []string
	RefTable   string
	RefColumns []string
	OnDelete   string
}

// Index is a secondary index.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Table is a declarative table definition.
type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  []string
	ForeignKeys []ForeignKey
	Indexes     []Index
	// Durable tables hold local state that is not a copy of backend data and
	// survive a cache reset.
	Durable bool
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the table's column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// IsKey reports whether name is part of the primary key.
func (t Table) IsKey(name string) bool {
	for _, k := range t.PrimaryKey {
		if k == name {
			return true
		}
	}
	return false
}

// Row is a flat storable row keyed by column name. Absent keys are unset.
type Row map[string]any

// Lookup returns the named table.
func Lookup(name string) (Table, bool) {
	t, ok := byName[name]
	return t, ok
}

// All returns every table, parents before children.
func All() []Table {
	out := make([]Table, len(tables))
	copy(out, tables)
	return out
}

var byName = func() map[string]Table {
	m := make(map[string]Table, len(tables))
	for _, t := range tables {
		m[t.Name] = t
	}
	return m
}()
