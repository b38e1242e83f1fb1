// Package migrations embeds the SQL schema so the server and the migrate
// tool run the same files without a migrations directory on disk.
package migrations

import "embed"

// FS holds the versioned up/down migration pairs
//
//go:embed *.sql
var FS embed.FS
