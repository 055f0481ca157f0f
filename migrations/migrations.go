// Package migrations embeds the versioned schema migrations, one directory
// per SQL dialect.
package migrations

import "embed"

// FS holds sqlite/, postgres/ and mysql/ migration files.
//
//go:embed sqlite/*.sql postgres/*.sql mysql/*.sql
var FS embed.FS
