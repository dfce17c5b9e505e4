package migrations

import "embed"

// FS holds the SQLite schema migrations, applied in file name order.
//
//go:embed *.sql
var FS embed.FS
