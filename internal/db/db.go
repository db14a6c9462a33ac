package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// DefaultURL is used when no SQLITE_DB_URL is configured.
const DefaultURL = "sqlite:///jupiter.sqlite"

type Config struct {
	URL string
}

// PathFromURL extracts the file path of a sqlite:/// URL.
// Three slashes give a relative path, four an absolute one.
func PathFromURL(url string) (string, error) {
	if url == "" {
		url = DefaultURL
	}
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return "", fmt.Errorf("invalid database url %q", url)
	}
	if scheme != "sqlite" && !strings.HasPrefix(scheme, "sqlite+") {
		return "", fmt.Errorf("unsupported database scheme %q", scheme)
	}
	if !strings.HasPrefix(rest, "/") {
		return "", fmt.Errorf("invalid database url %q", url)
	}
	path := strings.TrimPrefix(rest, "/")
	if path == "" {
		return "", fmt.Errorf("database url %q has no path", url)
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path, nil
}

// EnsureDir creates the directory holding the database file.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Open opens the SQLite database with foreign keys, WAL and a busy timeout.
// A single connection serializes writers inside the process.
func Open(cfg Config) (*sql.DB, error) {
	path, err := PathFromURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if err := EnsureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return conn, nil
}

// Path returns the db file path for url.
func Path(url string) string {
	path, err := PathFromURL(url)
	if err != nil {
		return ""
	}
	return path
}
