package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/cognicore/partscan/pkg/partscan/catalog"
	"github.com/cognicore/partscan/pkg/partscan/internalerr"
	"github.com/cognicore/partscan/pkg/partscan/store"
)

var _ store.CatalogStore = (*Store)(nil)

// Store is a catalog kept in a SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens a SQLite catalog database with WAL mode enabled,
// creating the schema when needed.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// PRAGMA foreign_keys is per connection; one pooled connection keeps
	// the cascade on aliases in effect.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	// Aliases cascade with their product
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

// String names the source in load errors.
func (s *Store) String() string { return "sqlite:" + s.path }

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS products (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT UNIQUE NOT NULL,
	type TEXT NOT NULL,
	brand TEXT NOT NULL,
	model TEXT NOT NULL,
	power_w REAL DEFAULT 0,
	capacity_kwh REAL DEFAULT 0,
	ac_kw REAL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS product_aliases (
	product_id TEXT NOT NULL,
	pos INTEGER NOT NULL,
	alias TEXT NOT NULL,
	PRIMARY KEY (product_id, pos),
	FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_products_type ON products(type);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Products returns every record in insertion order.
func (s *Store) Products(ctx context.Context) ([]catalog.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, type, brand, model, power_w, capacity_kwh, ac_kw
FROM products
ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []catalog.Record
	pos := make(map[string]int)
	for rows.Next() {
		var r catalog.Record
		if err := rows.Scan(&r.ID, &r.Type, &r.Brand, &r.Model, &r.PowerW, &r.CapacityKWh, &r.ACKW); err != nil {
			return nil, err
		}
		pos[r.ID] = len(out)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	aliasRows, err := s.db.QueryContext(ctx, `
SELECT product_id, alias FROM product_aliases ORDER BY product_id, pos`)
	if err != nil {
		return nil, err
	}
	defer aliasRows.Close()

	for aliasRows.Next() {
		var id, alias string
		if err := aliasRows.Scan(&id, &alias); err != nil {
			return nil, err
		}
		if i, ok := pos[id]; ok {
			out[i].Aliases = append(out[i].Aliases, alias)
		}
	}
	return out, aliasRows.Err()
}

// Product returns one record by ID.
func (s *Store) Product(ctx context.Context, id string) (catalog.Record, bool, error) {
	var r catalog.Record
	err := s.db.QueryRowContext(ctx, `
SELECT id, type, brand, model, power_w, capacity_kwh, ac_kw
FROM products WHERE id=?`, id).
		Scan(&r.ID, &r.Type, &r.Brand, &r.Model, &r.PowerW, &r.CapacityKWh, &r.ACKW)
	if err == sql.ErrNoRows {
		return catalog.Record{}, false, nil
	}
	if err != nil {
		return catalog.Record{}, false, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT alias FROM product_aliases WHERE product_id=? ORDER BY pos`, id)
	if err != nil {
		return catalog.Record{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return catalog.Record{}, false, err
		}
		r.Aliases = append(r.Aliases, alias)
	}
	return r, true, rows.Err()
}

// UpsertProduct inserts or updates a product and replaces its aliases.
func (s *Store) UpsertProduct(ctx context.Context, rec catalog.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("upsert product: %w: empty id", internalerr.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const stmt = `
INSERT INTO products (id, type, brand, model, power_w, capacity_kwh, ac_kw)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	type=excluded.type,
	brand=excluded.brand,
	model=excluded.model,
	power_w=excluded.power_w,
	capacity_kwh=excluded.capacity_kwh,
	ac_kw=excluded.ac_kw;
`
	if _, err := tx.ExecContext(ctx, stmt,
		rec.ID, rec.Type, rec.Brand, rec.Model, rec.PowerW, rec.CapacityKWh, rec.ACKW); err != nil {
		return err
	}

	if err := replaceAliases(ctx, tx, rec.ID, rec.Aliases); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceAliases(ctx context.Context, tx *sql.Tx, id string, aliases []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM product_aliases WHERE product_id=?`, id); err != nil {
		return err
	}
	if len(aliases) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO product_aliases (product_id, pos, alias) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, a := range aliases {
		if _, err := stmt.ExecContext(ctx, id, i, a); err != nil {
			return err
		}
	}
	return nil
}

// DeleteProduct removes a product and its aliases. Deleting an unknown ID
// returns internalerr.ErrNotFound.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("delete product %q: %w", id, internalerr.ErrNotFound)
	}
	return nil
}
