// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete storage backend to run,
// which in turn register their factories with the storage package. The
// kinds "postgres", "mysql", "mssql" and "sqlite" then become available to
// storage.New.
package all

import (
	_ "kgtorrent/internal/storage/mssql"
	_ "kgtorrent/internal/storage/mysql"
	_ "kgtorrent/internal/storage/postgres"
	_ "kgtorrent/internal/storage/sqlite"
)
