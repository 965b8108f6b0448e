//go:build !ncruces

package storage

import _ "github.com/mattn/go-sqlite3"

func init() {
	registerBackend("sqlite3", backend{
		driverName: "sqlite3",
		dsn: func(path string) string {
			if path == MemoryPath {
				return path + "?_foreign_keys=on"
			}
			return path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
		},
	})
}
