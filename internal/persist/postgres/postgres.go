// Package postgres provides the PostgreSQL persistence gateway, selected
// with --db-driver postgres or a DATABASE_URL environment variable.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/webanalyst/corius/internal/persist"
	"github.com/webanalyst/corius/internal/workspace"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Gateway is the PostgreSQL implementation of persist.Gateway.
type Gateway struct {
	Pool *pgxpool.Pool
}

// Open opens a connection pool and runs migrations. dsn may be empty to use
// the DATABASE_URL env.
func Open(dsn string) (persist.Gateway, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return nil, errors.New("postgres DSN or DATABASE_URL required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 20
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	g := &Gateway{Pool: pool}
	if err := g.Migrate(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	return g, nil
}

// Close closes the connection pool.
func (g *Gateway) Close() error {
	if g == nil || g.Pool == nil {
		return nil
	}
	g.Pool.Close()
	return nil
}

// Save replaces the stored snapshot in one transaction.
func (g *Gateway) Save(ctx context.Context, snap persist.Snapshot) error {
	tx, err := g.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM items`); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM databases`); err != nil {
		return err
	}
	for _, it := range snap.Items {
		data, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("marshal item %s: %w", it.ID, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO items(id, data, updated_at) VALUES($1, $2, $3)`, it.ID, data, it.UpdatedAt.UnixNano()); err != nil {
			return err
		}
	}
	for _, d := range snap.Databases {
		data, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshal database %s: %w", d.ID, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO databases(id, data, updated_at) VALUES($1, $2, $3)`, d.ID, data, d.UpdatedAt.UnixNano()); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `INSERT INTO snapshot_meta(key, value) VALUES('saved_at', $1)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, time.Now().UnixNano()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Load returns the last saved snapshot, or nil when nothing was ever saved.
func (g *Gateway) Load(ctx context.Context) (*persist.Snapshot, error) {
	var saved int64
	err := g.Pool.QueryRow(ctx, `SELECT value FROM snapshot_meta WHERE key = 'saved_at'`).Scan(&saved)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap := &persist.Snapshot{}
	rows, err := g.Pool.Query(ctx, `SELECT data FROM items ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var it workspace.Item
		if err := json.Unmarshal(data, &it); err != nil {
			return nil, fmt.Errorf("unmarshal item: %w", err)
		}
		snap.Items = append(snap.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	dbRows, err := g.Pool.Query(ctx, `SELECT data FROM databases ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer dbRows.Close()
	for dbRows.Next() {
		var data []byte
		if err := dbRows.Scan(&data); err != nil {
			return nil, err
		}
		var d workspace.Database
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("unmarshal database: %w", err)
		}
		snap.Databases = append(snap.Databases, d)
	}
	return snap, dbRows.Err()
}

// Migrate runs pending migrations (only those not in schema_migrations).
func (g *Gateway) Migrate(ctx context.Context) error {
	if _, err := g.Pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at BIGINT NOT NULL
);`); err != nil {
		return err
	}

	applied := make(map[int]bool)
	rows, err := g.Pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var v int
			if err := rows.Scan(&v); err != nil {
				break
			}
			applied[v] = true
		}
	}

	type mig struct {
		version int
		name    string
		sql     string
	}
	var migs []mig
	files, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".sql") {
			continue
		}
		v, err := strconv.Atoi(strings.SplitN(strings.TrimSuffix(f.Name(), ".sql"), "_", 2)[0])
		if err != nil {
			continue
		}
		body, err := migrationsFS.ReadFile("migrations/" + f.Name())
		if err != nil {
			return err
		}
		migs = append(migs, mig{version: v, name: f.Name(), sql: string(body)})
	}
	sort.Slice(migs, func(i, j int) bool { return migs[i].version < migs[j].version })

	for _, m := range migs {
		if applied[m.version] {
			continue
		}
		tx, err := g.Pool.Begin(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, m.sql); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES($1, $2)`, m.version, time.Now().Unix()); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}
	return nil
}
