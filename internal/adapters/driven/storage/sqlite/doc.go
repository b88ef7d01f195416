// Package sqlite provides a SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. One database file serves two stores:
//
//   - IndexStore: the persisted knowledge index (manifest plus chunk vectors)
//   - ReviewStore: review run history with the JSON report of each run
//
// # Schema
//
// The schema is managed through versioned migrations in the migrations/
// directory, recorded in the schema_migrations table.
//
// # Data Location
//
// By default, the database is stored at ~/.docreview/index/index.db
//
// # Thread Safety
//
// All operations are thread-safe. The store relies on SQLite's WAL mode,
// and an index save replaces all rows inside one transaction so readers
// never see a half-written index.
package sqlite
