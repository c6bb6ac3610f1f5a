package storage

// The cgo driver registers itself as "sqlite3". Builds without cgo still
// link, but opening a database with DriverSQLite3 fails at runtime.
import _ "github.com/mattn/go-sqlite3"
