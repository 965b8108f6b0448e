//go:build ncruces

package storage

import (
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// The wasm build registers itself as "sqlite3" and replaces the cgo driver.
func init() {
	registerBackend("sqlite3", backend{
		driverName: "sqlite3",
		dsn: func(path string) string {
			if path == MemoryPath {
				return "file::memory:?_pragma=foreign_keys(1)"
			}
			return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		},
	})
}
