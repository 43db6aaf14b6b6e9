// Package appfs embeds the assets shipped inside the binaries:
// SQL migrations, page & email templates and static files.
package appfs

import "embed"

//go:embed migrations/*.sql all:templates static
var FS embed.FS
