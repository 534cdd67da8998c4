package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/the-ledger-must-balance/internal/common"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// DefaultTTL is how long a cached API response stays fresh.
const DefaultTTL = 24 * time.Hour

// PriceCache stores raw price API responses keyed by (function, ticker).
// Lookups are cache-aside: callers fetch on a miss and Put the response.
type PriceCache struct {
	db     *sql.DB
	now    func() time.Time
	dbPath string
}

// NewPriceCache opens (creating if needed) the cache database at dbPath.
// Call Migrate before use.
func NewPriceCache(dbPath string) (*PriceCache, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open price cache: %w", err)
	}

	// A single connection keeps an in-memory database alive between calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping price cache: %w", err)
	}

	return &PriceCache{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}, nil
}

// Path returns the database location.
func (c *PriceCache) Path() string {
	return c.dbPath
}

// Close closes the database connection.
func (c *PriceCache) Close() error {
	return c.db.Close()
}

// Get returns the cached response for (function, ticker). A missing or
// expired entry yields common.ErrNotFound.
func (c *PriceCache) Get(ctx context.Context, function, ticker string) ([]byte, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateKey(function, ticker); err != nil {
		return nil, err
	}

	var payload []byte
	var expiresAt int64
	err := c.db.QueryRowContext(ctx, `
		SELECT payload, expires_at FROM price_cache
		WHERE function = ? AND ticker = ?
	`, function, ticker).Scan(&payload, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", common.ErrNotFound, function, ticker)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read price cache: %w", err)
	}

	if !c.now().Before(time.Unix(expiresAt, 0)) {
		return nil, fmt.Errorf("%w: %s %s expired", common.ErrNotFound, function, ticker)
	}
	return payload, nil
}

// Put stores payload for (function, ticker), replacing any previous entry.
func (c *PriceCache) Put(ctx context.Context, function, ticker string, payload []byte, ttl time.Duration) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateKey(function, ticker); err != nil {
		return err
	}
	if err := validatePayload(payload); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := c.now()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO price_cache (function, ticker, payload, fetched_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(function, ticker) DO UPDATE SET
			payload = excluded.payload,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at
	`, function, ticker, payload, now.Unix(), now.Add(ttl).Unix())
	if err != nil {
		return fmt.Errorf("failed to write price cache: %w", err)
	}
	return nil
}

// Purge deletes expired entries and reports how many were removed.
func (c *PriceCache) Purge(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	result, err := c.db.ExecContext(ctx, `DELETE FROM price_cache WHERE expires_at <= ?`, c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge price cache: %w", err)
	}
	return result.RowsAffected()
}
