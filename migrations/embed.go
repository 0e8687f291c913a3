// Package migrations embeds the local store schema so the server, the migrate
// command and integration tests apply the same files.
package migrations

import "embed"

// FS holds the versioned *.up.sql / *.down.sql files
//
//go:embed *.sql
var FS embed.FS
