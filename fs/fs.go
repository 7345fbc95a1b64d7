// Package appfs embeds the assets the app needs at runtime: database
// migrations, email templates and the common-passwords list.
package appfs

import "embed"

//go:embed migrations assets
var FS embed.FS
