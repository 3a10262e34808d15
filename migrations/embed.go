// Package migrations bundles an example migration set that ships with
// the binary, usable as a starting point and in demos.
package migrations

import (
	"embed"
	"io/fs"

	"schemachain/internal/migration"
)

//go:embed *.json
var files embed.FS

func FS() fs.FS {
	return files
}

// Example returns a source for the bundled blog example set.
func Example() migration.Source {
	return migration.FSSource{FS: files, Path: "example_set.json"}
}
