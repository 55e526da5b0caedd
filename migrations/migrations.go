// Package migrations embeds the schema files applied by the migrator.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
