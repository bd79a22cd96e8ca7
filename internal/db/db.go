package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Memory is the path OpenDB treats as a private in-memory database.
const Memory = ":memory:"

// busyTimeoutMS is how long a connection waits for a lock before SQLite
// reports SQLITE_BUSY.
const busyTimeoutMS = 5000

// connPragmas run on every new pooled connection. Cascading deletes of a
// subtree rely on foreign_keys being on for whichever connection runs them.
var connPragmas = []string{
	"foreign_keys(1)",
	fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS),
}

// dsn builds the driver data source name for path.
func dsn(path string) string {
	q := url.Values{}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// OpenDB opens the SQLite database at path, creating its directory when
// needed, and runs migrations. File databases use WAL.
//
// An in-memory database lives on a single connection: every new connection
// to ":memory:" would otherwise see an empty schema.
func OpenDB(path string) (*sql.DB, error) {
	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == Memory {
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}
