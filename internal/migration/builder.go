package migration

import (
	"fmt"

	"schemachain/internal/backend"
	"schemachain/internal/schema"
)

// Builder stages the next migration. It mutates only the set's
// synthetic current record; Finalize freezes the staged state into a
// named, immutable record and advances the chain head.
//
// The staged snapshot describes the complete schema the migration
// results in, not a delta; Finalize derives the delta by diffing
// against the previous head.
type Builder struct {
	set *Set
}

// NewBuilder returns a builder over the set's staging record.
func (s *Set) NewBuilder() *Builder {
	if s.Current == nil {
		s.Current = newStagingRecord()
	}
	return &Builder{set: s}
}

// AddTable registers a table in the staged snapshot.
func (b *Builder) AddTable(t schema.Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return b.set.Current.DB.AddTable(t)
}

// AddColumn appends a column to a staged table.
func (b *Builder) AddColumn(table string, c schema.Column) error {
	return b.set.Current.DB.AddColumn(table, c)
}

// AddExtraType names a custom type usable by staged columns.
func (b *Builder) AddExtraType(name string, rep schema.SQLType) error {
	if _, ok := b.set.Current.DB.ExtraTypes[name]; ok {
		return fmt.Errorf("extra type %s: %w", name, schema.ErrDuplicateName)
	}
	b.set.Current.DB.ExtraTypes[name] = rep
	return nil
}

// Diff previews the operations Finalize would encode, against the
// current chain head.
func (b *Builder) Diff() []schema.Operation {
	return schema.Diff(b.previous(), b.set.Current.DB)
}

func (b *Builder) previous() schema.Database {
	if b.set.Latest == "" {
		return schema.NewDatabase()
	}
	if prev, ok := b.set.Migrations[b.set.Latest]; ok {
		return prev.DB
	}
	return schema.NewDatabase()
}

// Finalize freezes the staged snapshot into a named record: it
// captures the diff against the previous head as per-backend up text
// and the reverse diff as down text, links the record to its
// predecessor, advances latest, and resets the staging record.
func (b *Builder) Finalize(name string) (*Record, error) {
	if name == "" || name == currentName {
		return nil, fmt.Errorf("invalid migration name %q", name)
	}
	if _, exists := b.set.Migrations[name]; exists {
		return nil, fmt.Errorf("migration %s: %w", name, schema.ErrDuplicateName)
	}
	staged := b.set.Current.DB
	if err := staged.Validate(); err != nil {
		return nil, err
	}

	prev := b.previous()
	forward := schema.Diff(prev, staged)
	reverse := schema.Diff(staged, prev)

	up := SQLMap{}
	down := SQLMap{}
	for _, id := range backend.IDs() {
		dialect, _ := backend.Get(id)
		upSQL, err := dialect.DDL(forward, staged.ExtraTypes)
		if err != nil {
			return nil, fmt.Errorf("generate %s up for %s: %w", id, name, err)
		}
		downSQL, err := dialect.DDL(reverse, staged.ExtraTypes)
		if err != nil {
			return nil, fmt.Errorf("generate %s down for %s: %w", id, name, err)
		}
		up[id] = upSQL
		down[id] = downSQL
	}

	rec := &Record{
		Name: name,
		DB:   staged.Clone(),
		From: b.set.Latest,
		Up:   up,
		Down: down,
	}
	b.set.Migrations[name] = rec
	b.set.Latest = name
	b.set.Current = newStagingRecord()
	return rec, nil
}
