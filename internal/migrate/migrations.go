package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

type Options struct {
	// Dir holds on-disk migrations replacing the embedded ones.
	Dir string
	// IniPath locates a migrations directory next to it when Dir is empty.
	IniPath string
}

// Source returns the migrations file system selected by opts.
func Source(opts Options) (fs.FS, error) {
	dir := opts.Dir
	if dir == "" && opts.IniPath != "" {
		dir = filepath.Join(filepath.Dir(opts.IniPath), "migrations")
	}
	if dir == "" {
		return fs.Sub(migrationsFS, "sql")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("migrations dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("migrations dir %s is not a directory", dir)
	}
	return os.DirFS(dir), nil
}

func provider(db *sql.DB, opts Options) (*goose.Provider, error) {
	src, err := Source(opts)
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(goose.DialectSQLite3, db, src)
}

// Migrate applies pending migrations in order.
func Migrate(db *sql.DB) error {
	return MigrateWith(context.Background(), db, Options{})
}

func MigrateWith(ctx context.Context, db *sql.DB, opts Options) error {
	p, err := provider(db, opts)
	if err != nil {
		return err
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Version reports the current schema version.
func Version(ctx context.Context, db *sql.DB, opts Options) (int64, error) {
	p, err := provider(db, opts)
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}
