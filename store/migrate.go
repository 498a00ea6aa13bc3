package store

import (
	"context"

	migrate "github.com/go-pg/migrations/v8"
	"github.com/go-pg/pg/v10"
	"golang.org/x/xerrors"

	// registers every migration in store/migrations with the package's
	// default collection via their init() functions.
	_ "github.com/graphops/graphix/store/migrations"
)

// Migrate brings the schema up to date. It takes SchemaLock for the
// duration so that multiple graphix processes starting concurrently
// against a fresh database don't race on CREATE TABLE, mirroring the
// teacher's SchemaLock usage in storage/migrate.go, simplified to a
// single migration collection since Graphix has no multi-major-version
// schema negotiation to perform.
func (d *DB) Migrate(ctx context.Context) error {
	if err := SchemaLock.LockExclusive(ctx, d.db); err != nil {
		return xerrors.Errorf("acquiring schema lock: %w", err)
	}
	defer func() {
		if err := SchemaLock.UnlockExclusive(ctx, d.db); err != nil {
			log.Warnf("releasing schema lock: %s", err)
		}
	}()

	if _, _, err := migrate.Run(d.db, "init"); err != nil {
		return xerrors.Errorf("initializing migrations table: %w", err)
	}

	oldVersion, newVersion, err := migrate.Run(d.db, "up")
	if err != nil {
		return xerrors.Errorf("running migrations: %w", err)
	}
	if oldVersion != newVersion {
		log.Infof("migrated schema from version %d to %d", oldVersion, newVersion)
	}
	return nil
}

// schemaVersion reports the currently applied migration version. Nothing
// in this repository calls it.
func (d *DB) schemaVersion(ctx context.Context) (int64, error) {
	var version int64
	_, err := d.db.QueryOneContext(ctx, pg.Scan(&version), `SELECT version FROM gopg_migrations ORDER BY id DESC LIMIT 1;`)
	if err != nil {
		if err == pg.ErrNoRows {
			return 0, nil
		}
		return 0, xerrors.Errorf("querying schema version: %w", err)
	}
	return version, nil
}
