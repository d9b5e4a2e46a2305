package collection

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Catalog durably tracks the set of collection names a Registry has handed
// out, plus a per-collection auto-id counter, in a small SQLite database
// alongside the dikkidb data directory. It exists so a process restart
// doesn't need to re-derive "which collections exist" by scanning every id
// in the store.
type Catalog struct {
	db *sql.DB
}

// OpenCatalog opens (creating if absent) the catalog database at path.
func OpenCatalog(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("collection: open catalog %s: %w", path, err)
	}
	if err := initCatalogSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Catalog{db: db}, nil
}

func initCatalogSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			auto_id_counter INTEGER NOT NULL DEFAULT 0
		);
	`)
	return err
}

// Register ensures name exists in the catalog, leaving its counter
// untouched if it's already present.
func (c *Catalog) Register(name string) error {
	_, err := c.db.Exec(
		`INSERT INTO collections (name, auto_id_counter) VALUES (?, 0)
		 ON CONFLICT(name) DO NOTHING`,
		name,
	)
	if err != nil {
		return fmt.Errorf("collection: register %s: %w", name, err)
	}
	return nil
}

// NextAutoID atomically increments and returns name's auto-id counter.
func (c *Catalog) NextAutoID(name string) (int64, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("collection: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO collections (name, auto_id_counter) VALUES (?, 0)
		 ON CONFLICT(name) DO NOTHING`,
		name,
	); err != nil {
		return 0, fmt.Errorf("collection: ensure %s: %w", name, err)
	}
	if _, err := tx.Exec(
		`UPDATE collections SET auto_id_counter = auto_id_counter + 1 WHERE name = ?`,
		name,
	); err != nil {
		return 0, fmt.Errorf("collection: increment %s: %w", name, err)
	}

	var counter int64
	if err := tx.QueryRow(
		`SELECT auto_id_counter FROM collections WHERE name = ?`, name,
	).Scan(&counter); err != nil {
		return 0, fmt.Errorf("collection: read counter %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("collection: commit: %w", err)
	}
	return counter, nil
}

// Names returns every collection the catalog has ever registered.
func (c *Catalog) Names() ([]string, error) {
	rows, err := c.db.Query(`SELECT name FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("collection: list names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close releases the catalog's database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}
