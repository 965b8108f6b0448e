package storage

import _ "modernc.org/sqlite"

func init() {
	registerBackend("modernc", backend{
		driverName: "sqlite",
		dsn: func(path string) string {
			if path == MemoryPath {
				return path + "?_pragma=foreign_keys(1)"
			}
			return path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		},
	})
}
