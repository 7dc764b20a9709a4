package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gomigrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/mysql/*.sql sql/sqlite3/*.sql
var migrationsFS embed.FS

// Run applies pending migrations found under internal/migrate/sql/<driver>.
// Migrations are named like 0001_description.up.sql / .down.sql. For MySQL
// the DSN must include multiStatements=true.
func Run(ctx context.Context, driver, dsn string, log *slog.Logger) error {
	return withMigrator(ctx, driver, dsn, log, func(m *gomigrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, gomigrate.ErrNoChange) {
			return fmt.Errorf("migration failed: %w", err)
		}
		logVersion(m, log)
		return nil
	})
}

// Reset rolls every migration back and applies them again, leaving an
// empty schema.
func Reset(ctx context.Context, driver, dsn string, log *slog.Logger) error {
	return withMigrator(ctx, driver, dsn, log, func(m *gomigrate.Migrate) error {
		if err := m.Down(); err != nil && !errors.Is(err, gomigrate.ErrNoChange) {
			return fmt.Errorf("rollback failed: %w", err)
		}
		log.Info("dropped all tables")
		if err := m.Up(); err != nil && !errors.Is(err, gomigrate.ErrNoChange) {
			return fmt.Errorf("migration failed: %w", err)
		}
		logVersion(m, log)
		return nil
	})
}

func withMigrator(ctx context.Context, driver, dsn string, log *slog.Logger, fn func(*gomigrate.Migrate) error) error {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return err
	}

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return err
	}

	var dbDriver database.Driver
	switch driver {
	case "mysql":
		dbDriver, err = mysql.WithInstance(db, &mysql.Config{})
	case "sqlite3":
		dbDriver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	default:
		err = fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "sql/"+driver)
	if err != nil {
		db.Close()
		return err
	}
	m, err := gomigrate.NewWithInstance("iofs", src, driver, dbDriver)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	m.Log = slogAdapter{log: log}
	// Closing the migrator closes db as well.
	defer m.Close()

	return fn(m)
}

func logVersion(m *gomigrate.Migrate, log *slog.Logger) {
	v, dirty, err := m.Version()
	if err != nil {
		log.Debug("no migration version recorded", slog.String("error", err.Error()))
		return
	}
	log.Info("schema at version", slog.Int("version", int(v)), slog.Bool("dirty", dirty))
}

// slogAdapter satisfies migrate.Logger.
type slogAdapter struct{ log *slog.Logger }

func (a slogAdapter) Printf(format string, v ...interface{}) {
	a.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (a slogAdapter) Verbose() bool { return a.log.Enabled(context.Background(), slog.LevelDebug) }
