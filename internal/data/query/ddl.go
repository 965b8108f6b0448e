package query

import (
	"fmt"
	"strings"

	"chatcache/internal/data/schema"
)

// CreateTable renders CREATE TABLE IF NOT EXISTS for t.
func CreateTable(t schema.Table) string {
	var defs []string
	inlinePK := false
	for _, c := range t.Columns {
		def := c.Name + " " + c.Type
		if c.AutoIncrement {
			def += " PRIMARY KEY AUTOINCREMENT"
			inlinePK = true
		}
		if c.NotNull {
			def += " NOT NULL"
		}
		if c.Default != "" {
			def += " DEFAULT " + c.Default
		}
		defs = append(defs, def)
	}
	if !inlinePK && len(t.PrimaryKey) > 0 {
		defs = append(defs, "PRIMARY KEY ("+strings.Join(t.PrimaryKey, ", ")+")")
	}
	for _, fk := range t.ForeignKeys {
		def := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)",
			strings.Join(fk.Columns, ", "), fk.RefTable, strings.Join(fk.RefColumns, ", "))
		if fk.OnDelete != "" {
			def += " ON DELETE " + fk.OnDelete
		}
		defs = append(defs, def)
	}
	return "CREATE TABLE IF NOT EXISTS " + t.Name + " (\n    " + strings.Join(defs, ",\n    ") + "\n)"
}

// CreateIndexes renders CREATE INDEX IF NOT EXISTS for every index of t.
func CreateIndexes(t schema.Table) []string {
	out := make([]string, 0, len(t.Indexes))
	for _, idx := range t.Indexes {
		kind := "INDEX"
		if idx.Unique {
			kind = "UNIQUE INDEX"
		}
		out = append(out, fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)",
			kind, idx.Name, t.Name, strings.Join(idx.Columns, ", ")))
	}
	return out
}

// DropTable renders DROP TABLE IF EXISTS for t.
func DropTable(t schema.Table) string {
	return "DROP TABLE IF EXISTS " + t.Name
}
