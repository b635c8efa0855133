// Package taxdb provides the SQLite-backed Taxonomy Store, reading the NCBI
// taxonomy layout written by ete3's NCBITaxa.
package taxdb

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// The layout matches an ete3 taxa.sqlite file, so an existing dump opens
// unchanged. track holds the node-to-root path as comma-separated taxids.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS stats (version INT PRIMARY KEY);

CREATE TABLE IF NOT EXISTS species (
	taxid  INT PRIMARY KEY,
	parent INT,
	spname VARCHAR(50) COLLATE NOCASE,
	common VARCHAR(50) COLLATE NOCASE,
	rank   VARCHAR(50),
	track  TEXT
);

CREATE TABLE IF NOT EXISTS synonym (
	taxid  INT,
	spname VARCHAR(50) COLLATE NOCASE,
	PRIMARY KEY (spname, taxid)
);

CREATE TABLE IF NOT EXISTS merged (taxid_old INT, taxid_new INT);

CREATE INDEX IF NOT EXISTS spname1 ON species (spname COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS spname2 ON synonym (spname COLLATE NOCASE);
`

// DB wraps a sql.DB with taxonomy lookups and a read cache.
type DB struct {
	path  string
	cache *cache

	// mu is held shared for the whole of a lookup, including its cache
	// writes, and exclusively while Reload swaps conn.
	mu   sync.RWMutex
	conn *sql.DB
}

// Open opens (or creates) the taxonomy database at path.
func Open(path string, opts ...Option) (*DB, error) {
	o := options{cacheSize: defaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}

	conn, err := openConn(path)
	if err != nil {
		return nil, err
	}
	return &DB{path: path, cache: newCache(o.cacheSize), conn: conn}, nil
}

func openConn(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("taxdb: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("taxdb: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("taxdb: apply schema: %w", err)
	}
	return conn, nil
}

// sql returns the current connection. Callers hold mu.
func (db *DB) sql() *sql.DB {
	return db.conn
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Reload reopens the database file and drops cached lookups. A file replaced
// by rename is only visible after Reload. Lookups in flight finish on the
// previous connection before it is closed.
func (db *DB) Reload() error {
	conn, err := openConn(db.path)
	if err != nil {
		return err
	}
	db.mu.Lock()
	old := db.conn
	db.conn = conn
	db.cache.reset()
	db.mu.Unlock()
	return old.Close()
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Option configures Open.
type Option func(*options)

type options struct {
	cacheSize int
}

// WithCacheSize bounds the number of cached lineages and ranks. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}
