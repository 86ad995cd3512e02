/**
 * @description
 * This package applies the embedded SQL migrations on startup, so the cache
 * schema is always in step with the binary that uses it.
 *
 * @dependencies
 * - database/sql + the pgx stdlib driver: goose requires a *sql.DB handle.
 * - github.com/pressly/goose/v3: Migration runner.
 */
package migrate

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/lumapay/wallet-service/migrations"
)

// Up runs all pending migrations from the embedded filesystem.
func Up(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}
