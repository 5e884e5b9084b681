package pg

import (
	"database/sql"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	_ "github.com/lib/pq"
)

// Migrate applies every pending goose migration from dir against the
// database described by cfg.
func Migrate(cfg Config, dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "set goose dialect")
	}

	db, err := sql.Open("postgres", cfg.dsn())
	if err != nil {
		return errors.Wrap(err, "open migration connection")
	}
	defer db.Close()

	if err := goose.Up(db, dir); err != nil {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}
