package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations. Every statement is safe to re-run.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// ALTER TABLE has no IF NOT EXISTS; re-runs hit this.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	// Budgets, accounts and subaccounts share one table. The budget row has
	// no parent and is its own budget_id.
	`CREATE TABLE IF NOT EXISTS nodes (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		budget_id           INTEGER REFERENCES nodes(id) ON DELETE CASCADE,
		parent_id           INTEGER REFERENCES nodes(id) ON DELETE CASCADE,
		kind                TEXT NOT NULL
		                    CHECK(kind IN ('budget','account','subaccount')),
		identifier          TEXT NOT NULL DEFAULT '',
		description         TEXT NOT NULL DEFAULT '',
		quantity            REAL,
		rate                REAL,
		multiplier          REAL,
		actual              REAL NOT NULL DEFAULT 0,
		group_id            INTEGER REFERENCES budget_groups(id) ON DELETE SET NULL,
		order_index         INTEGER NOT NULL DEFAULT 0,
		created_at          TEXT NOT NULL,
		updated_at          TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_nodes_budget ON nodes(budget_id)`,
	`CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_nodes_group ON nodes(group_id)`,

	`CREATE TABLE IF NOT EXISTS budget_groups (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		budget_id   INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		parent_id   INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		name        TEXT NOT NULL DEFAULT '',
		color       TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_groups_parent ON budget_groups(parent_id)`,

	`CREATE TABLE IF NOT EXISTS markups (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		budget_id   INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		parent_id   INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		identifier  TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		unit        TEXT NOT NULL CHECK(unit IN ('percent','flat')),
		rate        REAL,
		actual      REAL NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_markups_parent ON markups(parent_id)`,

	`CREATE TABLE IF NOT EXISTS markup_children (
		markup_id   INTEGER NOT NULL REFERENCES markups(id) ON DELETE CASCADE,
		node_id     INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (markup_id, node_id)
	)`,

	`CREATE TABLE IF NOT EXISTS fringes (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		budget_id   INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		name        TEXT NOT NULL DEFAULT '',
		unit        TEXT NOT NULL CHECK(unit IN ('percent','flat')),
		rate        REAL,
		cutoff      REAL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_fringes_budget ON fringes(budget_id)`,

	`CREATE TABLE IF NOT EXISTS node_fringes (
		node_id     INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		fringe_id   INTEGER NOT NULL REFERENCES fringes(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (node_id, fringe_id)
	)`,

	// Added after the first release.
	`ALTER TABLE fringes ADD COLUMN color TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE nodes ADD COLUMN fringe_contribution REAL NOT NULL DEFAULT 0`,
}
