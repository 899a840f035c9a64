// Package appfs embeds the static assets shipped with the binaries.
package appfs

import "embed"

// FS holds the SQL migrations, email templates & the common passwords list.
//go:embed migrations/*.sql templates/email/* assets/*
var FS embed.FS
