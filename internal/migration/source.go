package migration

import (
	"fmt"
	"io/fs"
	"os"
)

// Source obtains the serialized bytes of a migration set. The engine
// never cares whether they came from disk, an embedded asset, or a
// network fetch.
type Source interface {
	ReadSet() ([]byte, error)
}

// FileSource reads a migration set from a path on disk.
type FileSource string

func (p FileSource) ReadSet() ([]byte, error) {
	data, err := os.ReadFile(string(p))
	if err != nil {
		return nil, fmt.Errorf("read migration set: %w", err)
	}
	return data, nil
}

// FSSource reads a migration set from a file system, typically an
// embed.FS shipped with the binary.
type FSSource struct {
	FS   fs.FS
	Path string
}

func (s FSSource) ReadSet() ([]byte, error) {
	data, err := fs.ReadFile(s.FS, s.Path)
	if err != nil {
		return nil, fmt.Errorf("read embedded migration set: %w", err)
	}
	return data, nil
}

// BytesSource serves an in-memory migration set.
type BytesSource []byte

func (b BytesSource) ReadSet() ([]byte, error) { return b, nil }

// LoadSet reads and deserializes a set from a source.
func LoadSet(src Source) (*Set, error) {
	data, err := src.ReadSet()
	if err != nil {
		return nil, err
	}
	return Deserialize(data)
}
