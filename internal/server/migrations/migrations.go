// Package migrations embeds the goose SQL migrations that own the server
// schema. They are applied at startup by the repository manager.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
