package persist

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/webanalyst/corius/internal/workspace"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// sqliteGateway is the SQLite implementation of Gateway (internal to this
// package). Entities are stored as JSON blobs keyed by id; a snapshot save
// replaces both tables inside one transaction.
type sqliteGateway struct {
	DB *sql.DB
	// Prepared statements for the save hot path.
	stmtInsertItem *sql.Stmt
	stmtInsertDB   *sql.Stmt
}

// Open opens the default SQLite gateway at home/protected/workspace.sqlite.
func Open(home string) (Gateway, error) {
	dbPath := filepath.Join(home, "protected", "workspace.sqlite")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	return OpenDSN("file:" + dbPath + "?_pragma=busy_timeout(5000)")
}

// OpenDSN opens a SQLite gateway at an explicit DSN (used by tests with
// in-memory databases).
func OpenDSN(dsn string) (Gateway, error) {
	if dsn == "" {
		return nil, errors.New("sqlite DSN required")
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn + "?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	g := &sqliteGateway{DB: db}
	if err := g.initPragmas(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := g.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := g.prepareStatements(context.Background()); err != nil {
		_ = g.Close()
		return nil, err
	}
	return g, nil
}

func (g *sqliteGateway) initPragmas(ctx context.Context) error {
	// WAL yields much better concurrency for read-heavy use.
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA temp_store=MEMORY;",
		// Negative cache_size means KB. Tuned for small local workspaces.
		"PRAGMA cache_size=-20000;",
	}
	for _, q := range stmts {
		if _, err := g.DB.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (g *sqliteGateway) prepareStatements(ctx context.Context) error {
	pairs := []struct {
		dest **sql.Stmt
		q    string
	}{
		{&g.stmtInsertItem, `INSERT INTO items(id, data, updated_at) VALUES(?, ?, ?)`},
		{&g.stmtInsertDB, `INSERT INTO databases(id, data, updated_at) VALUES(?, ?, ?)`},
	}
	for _, p := range pairs {
		st, err := g.DB.PrepareContext(ctx, p.q)
		if err != nil {
			return err
		}
		*p.dest = st
	}
	return nil
}

func (g *sqliteGateway) Close() error {
	if g == nil || g.DB == nil {
		return nil
	}
	for _, st := range []*sql.Stmt{g.stmtInsertItem, g.stmtInsertDB} {
		if st != nil {
			_ = st.Close()
		}
	}
	return g.DB.Close()
}

// Save replaces the stored snapshot with snap in one transaction.
func (g *sqliteGateway) Save(ctx context.Context, snap Snapshot) error {
	tx, err := g.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM databases`); err != nil {
		return err
	}
	for _, it := range snap.Items {
		data, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("marshal item %s: %w", it.ID, err)
		}
		if _, err := tx.StmtContext(ctx, g.stmtInsertItem).ExecContext(ctx, it.ID, string(data), it.UpdatedAt.UnixNano()); err != nil {
			return err
		}
	}
	for _, d := range snap.Databases {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshal database %s: %w", d.ID, err)
		}
		if _, err := tx.StmtContext(ctx, g.stmtInsertDB).ExecContext(ctx, d.ID, string(data), d.UpdatedAt.UnixNano()); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO snapshot_meta(key, value) VALUES('saved_at', ?)`, time.Now().UnixNano()); err != nil {
		return err
	}
	return tx.Commit()
}

// Load returns the last saved snapshot, or nil when nothing was ever saved.
func (g *sqliteGateway) Load(ctx context.Context) (*Snapshot, error) {
	var saved int64
	err := g.DB.QueryRowContext(ctx, `SELECT value FROM snapshot_meta WHERE key = 'saved_at'`).Scan(&saved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{}
	rows, err := g.DB.QueryContext(ctx, `SELECT data FROM items ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var it workspace.Item
		if err := json.Unmarshal([]byte(data), &it); err != nil {
			return nil, fmt.Errorf("unmarshal item: %w", err)
		}
		snap.Items = append(snap.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	dbRows, err := g.DB.QueryContext(ctx, `SELECT data FROM databases ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = dbRows.Close() }()
	for dbRows.Next() {
		var data string
		if err := dbRows.Scan(&data); err != nil {
			return nil, err
		}
		var d workspace.Database
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			return nil, fmt.Errorf("unmarshal database: %w", err)
		}
		snap.Databases = append(snap.Databases, d)
	}
	return snap, dbRows.Err()
}

// Migrate runs pending migrations (only those not in schema_migrations).
func (g *sqliteGateway) Migrate(ctx context.Context) error {
	if g == nil || g.DB == nil {
		return errors.New("gateway not initialized")
	}

	if _, err := g.DB.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at INTEGER NOT NULL
);`); err != nil {
		return err
	}

	applied, err := g.appliedVersions(ctx)
	if err != nil {
		return err
	}

	files, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return err
	}
	var migs []migration
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		name := f.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}
		v, err := parseMigrationVersion(name)
		if err != nil {
			return err
		}
		body, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return err
		}
		migs = append(migs, migration{Version: v, Name: name, SQL: string(body)})
	}
	sort.Slice(migs, func(i, j int) bool { return migs[i].Version < migs[j].Version })

	for _, m := range migs {
		if applied[m.Version] {
			continue
		}
		if err := g.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
	}
	return nil
}

type migration struct {
	Version int
	Name    string
	SQL     string
}

func (g *sqliteGateway) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := g.DB.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

func (g *sqliteGateway) applyMigration(ctx context.Context, m migration) error {
	tx, err := g.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?)`, m.Version, time.Now().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}

func parseMigrationVersion(filename string) (int, error) {
	base := strings.TrimSuffix(filename, ".sql")
	parts := strings.SplitN(base, "_", 2)
	if len(parts) < 1 {
		return 0, fmt.Errorf("invalid migration filename: %s", filename)
	}
	v, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid migration version in %s", filename)
	}
	return v, nil
}
