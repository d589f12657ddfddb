package appfs

import "embed"

// FS embeds the application's static assets, mainly database
// migrations.
//
//go:embed migrations
var FS embed.FS
