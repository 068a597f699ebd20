// Package postgres implements domain store interfaces using PostgreSQL via pgx.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DBTX is the subset of *pgxpool.Pool the stores use. pgxmock pools satisfy
// it as well.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ClientConfig holds connection parameters for the PostgreSQL client.
type ClientConfig struct {
	DSN      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN builds a connection string. An explicit DSN wins over the discrete
// fields.
func DSN(cfg ClientConfig) string {
	if strings.TrimSpace(cfg.DSN) != "" {
		return cfg.DSN
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, port, cfg.Database, sslMode)
}

// Client wraps a pgxpool.Pool and manages migrations.
type Client struct {
	pool *pgxpool.Pool
}

// New opens a pool configured from cfg and pings it.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	poolCfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Client{pool: pool}, nil
}

// Pool returns the underlying connection pool.
func (c *Client) Pool() *pgxpool.Pool { return c.pool }

// Ping checks the database connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (c *Client) Close() { c.pool.Close() }

// RunMigrations applies the embedded migrations that have not run yet.
func (c *Client) RunMigrations(ctx context.Context) error {
	return migrate(ctx, c.pool, migrationsFS)
}

// migrate applies every *.sql file under migrations/ in lexicographic order,
// each in its own transaction, and records it in schema_migrations.
func migrate(ctx context.Context, db DBTX, files fs.FS) error {
	const createTracker = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`
	if _, err := db.Exec(ctx, createTracker); err != nil {
		return fmt.Errorf("postgres: create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(files, "migrations")
	if err != nil {
		return fmt.Errorf("postgres: read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		var applied bool
		if err := db.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)", name,
		).Scan(&applied); err != nil {
			return fmt.Errorf("postgres: check migration %s: %w", name, err)
		}
		if applied {
			continue
		}

		body, err := fs.ReadFile(files, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("postgres: read migration %s: %w", name, err)
		}
		if err := inTx(ctx, db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(body)); err != nil {
				return fmt.Errorf("exec: %w", err)
			}
			_, err := tx.Exec(ctx, "INSERT INTO schema_migrations (filename) VALUES ($1)", name)
			return err
		}); err != nil {
			return fmt.Errorf("postgres: migration %s: %w", name, err)
		}
	}
	return nil
}

// inTx runs fn in a transaction, committing on success.
func inTx(ctx context.Context, db DBTX, fn func(pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// listClause appends the time bounds, ordering and paging of opts to query.
// col is the timestamp column the bounds apply to.
func listClause(query string, args []any, col, order string, opts domain.ListOpts) (string, []any) {
	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(" AND %s >= $%d", col, len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		query += fmt.Sprintf(" AND %s <= $%d", col, len(args))
	}
	query += " ORDER BY " + order
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}
