// Package migrations embeds the SQL schema so it applies regardless of the
// working directory.
package migrations

import "embed"

// FS holds every .sql file in this directory, applied in name order.
//
//go:embed *.sql
var FS embed.FS
