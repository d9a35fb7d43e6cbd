// Package database opens the SQL databases behind the document catalog.
// SQLite (modernc.org/sqlite) serves single-user installs and PostgreSQL
// (lib/pq) serves shared ones; both are reached through database/sql.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Adithya-Monish-Kumar-K/hugin/pkg/config"
)

// Dialect captures the placeholder and upsert differences between drivers.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// Client wraps the catalog's *sql.DB together with the placeholder style
// of its driver.
type Client struct {
	DB      *sql.DB
	Dialect Dialect
}

// New opens and pings the database named by cfg.Driver and cfg.DSN.
func New(cfg config.CatalogConfig) (*Client, error) {
	var (
		driver  string
		dialect Dialect
		dsn     = cfg.DSN
	)
	switch cfg.Driver {
	case "sqlite":
		driver, dialect = "sqlite", SQLite
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("creating catalog directory: %w", err)
			}
		}
		dsn = sqliteDSN(dsn)
	case "postgres":
		driver, dialect = "postgres", Postgres
	default:
		return nil, fmt.Errorf("unsupported catalog driver %q", cfg.Driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", driver, err)
	}
	if dialect == SQLite {
		// One writer at a time; extra connections only add SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s: %w", driver, err)
	}
	return &Client{DB: db, Dialect: dialect}, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.DB.Close()
}

// Rebind rewrites '?' placeholders into the driver's native form.
func (c *Client) Rebind(query string) string {
	if c.Dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// InTx runs fn in a transaction, committing when fn returns nil and rolling
// back otherwise.
func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
