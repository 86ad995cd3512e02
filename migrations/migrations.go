/**
 * @description
 * This package embeds the SQL migration files that define the wallet-service
 * cache schema, so a deployed binary carries its own schema history.
 */
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
