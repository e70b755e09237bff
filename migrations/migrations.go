// Package migrations embeds the SQL schema for every supported dialect.
package migrations

import "embed"

// FS holds <dialect>/*.sql, applied by database.DB.RunMigrations.
//
//go:embed sqlite/*.sql postgres/*.sql mysql/*.sql
var FS embed.FS
