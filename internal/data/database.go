package data

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go-blog-app/internal/config"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
)

// NewDB opens and pings a connection pool sized by cfg.
func NewDB(cfg config.DBConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

// ApplyMigrations brings the schema up to date from cfg.MigrationsPath and
// returns the version it ends at. Only MySQL migrations are shipped.
func ApplyMigrations(cfg config.DBConfig) (uint, error) {
	if cfg.Driver != "mysql" {
		return 0, fmt.Errorf("no migrations for driver %q", cfg.Driver)
	}
	absPath, err := filepath.Abs(cfg.MigrationsPath)
	if err != nil {
		return 0, fmt.Errorf("failed to get absolute path for migrations: %w", err)
	}

	m, err := migrate.New("file://"+filepath.ToSlash(absPath), migrateURL(cfg.DSN))
	if err != nil {
		return 0, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	case dirty:
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// mysqlDuplicateEntry is the MySQL error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a unique constraint violation from
// MySQL or SQLite.
func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// migrateURL turns a go-sql-driver DSN into the URL golang-migrate wants.
// Migration files hold several statements each.
func migrateURL(dsn string) string {
	if !strings.Contains(dsn, "multiStatements=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "multiStatements=true"
	}
	return "mysql://" + dsn
}
