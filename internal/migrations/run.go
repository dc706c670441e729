// Package migrations применяет SQL-миграции схемы из каталога migrations.
package migrations

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// ErrDirty схема осталась в состоянии неудачной миграции и требует ручного force.
var ErrDirty = errors.New("schema is dirty")

// Run накатывает все новые миграции из dir. Отсутствие изменений не ошибка.
func Run(db *sql.DB, dir string) error {
	const op = "migrations.Run"
	m, err := open(db, dir)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer m.Close()

	if _, dirty, verr := m.Version(); verr == nil && dirty {
		return fmt.Errorf("%s: %w", op, ErrDirty)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Version текущая версия схемы. Для пустой базы возвращает 0.
func Version(db *sql.DB, dir string) (uint, error) {
	const op = "migrations.Version"
	m, err := open(db, dir)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer m.Close()

	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("%s: %w", op, err)
	case dirty:
		return v, fmt.Errorf("%s: %w", op, ErrDirty)
	}
	return v, nil
}

// open не закрывает db: драйвер, созданный через WithInstance, освобождает только своё соединение.
func open(db *sql.DB, dir string) (*migrate.Migrate, error) {
	driver, err := pgxv5.WithInstance(db, &pgxv5.Config{})
	if err != nil {
		return nil, err
	}
	return migrate.NewWithDatabaseInstance("file://"+dir, "pgx_v5", driver)
}
