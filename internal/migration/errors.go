package migration

import "errors"

// Chain and format failures are all detected before any database
// mutation is attempted; callers can match them with errors.Is.
var (
	// ErrMalformed marks structurally invalid serialized input:
	// missing required fields, unknown type tags, dangling from
	// references, references to nonexistent tables or columns.
	ErrMalformed = errors.New("malformed migration")

	// ErrCycle is returned when following from links does not
	// terminate at a root.
	ErrCycle = errors.New("migration chain cycle")

	// ErrNoPath is returned when two migrations are not on the same
	// linear chain. Divergent chains are rejected, never merged.
	ErrNoPath = errors.New("no path between migrations")

	// ErrNoSuchMigration is returned for lookups of names absent from
	// the set.
	ErrNoSuchMigration = errors.New("no such migration")

	// ErrUnsupportedBackend is returned when a migration carries no
	// up or down text for the requested backend.
	ErrUnsupportedBackend = errors.New("backend not supported by migration")
)
