// Package migrations embeds the SQL migrations for the service-owned
// account schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
