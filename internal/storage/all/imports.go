// Package all wires every built-in engine backend into the storage factory.
// Import it for side effects:
//
//	import _ "tabsql/internal/storage/all"
//
// making the kinds "sqlite", "postgres", "mssql" and "mysql" available to
// storage.New.
package all

import (
	_ "tabsql/internal/storage/mssql"
	_ "tabsql/internal/storage/mysql"
	_ "tabsql/internal/storage/postgres"
	_ "tabsql/internal/storage/sqlite"
)
