package migration

import (
	"encoding/json"
	"fmt"
	"sort"

	"schemachain/internal/schema"
)

// currentName is the conventional name of the synthetic staging record.
const currentName = "current"

// Set owns every known migration record, the synthetic mutable
// staging record used while authoring the next migration, and the
// pointer to the head of the chain.
type Set struct {
	Migrations map[string]*Record
	Current    *Record
	Latest     string
}

type setJSON struct {
	Migrations map[string]*Record `json:"migrations"`
	Current    *Record            `json:"current"`
	Latest     *string            `json:"latest"`
}

// NewSet returns an empty set with a fresh staging record.
func NewSet() *Set {
	return &Set{
		Migrations: map[string]*Record{},
		Current:    newStagingRecord(),
	}
}

func newStagingRecord() *Record {
	return &Record{
		Name: currentName,
		DB:   schema.NewDatabase(),
		Up:   SQLMap{},
		Down: SQLMap{},
	}
}

// Deserialize parses and validates the boundary JSON format. Any
// structural problem yields ErrMalformed; a non-terminating from graph
// yields ErrCycle. Nothing is partially loaded on failure.
func Deserialize(data []byte) (*Set, error) {
	var in setJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	set := &Set{Migrations: in.Migrations, Current: in.Current}
	if set.Migrations == nil {
		set.Migrations = map[string]*Record{}
	}
	if set.Current == nil {
		set.Current = newStagingRecord()
	}
	if in.Latest != nil {
		set.Latest = *in.Latest
	}
	if err := set.validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// Serialize renders the set in the boundary JSON format. Map keys are
// emitted sorted, so serializing the same set twice is byte-identical.
func (s *Set) Serialize() ([]byte, error) {
	out := setJSON{Migrations: s.Migrations, Current: s.Current}
	if out.Migrations == nil {
		out.Migrations = map[string]*Record{}
	}
	if out.Current == nil {
		out.Current = newStagingRecord()
	}
	if s.Latest != "" {
		latest := s.Latest
		out.Latest = &latest
	}
	return json.MarshalIndent(out, "", "  ")
}

func (s *Set) validate() error {
	for name, rec := range s.Migrations {
		if rec == nil {
			return fmt.Errorf("%w: migration %s is null", ErrMalformed, name)
		}
		if rec.Name != name {
			return fmt.Errorf("%w: migration keyed %s but named %s", ErrMalformed, name, rec.Name)
		}
		if err := rec.DB.Validate(); err != nil {
			return fmt.Errorf("%w: migration %s: %v", ErrMalformed, name, err)
		}
		if rec.From != "" {
			if _, ok := s.Migrations[rec.From]; !ok {
				return fmt.Errorf("%w: migration %s links to unknown predecessor %s", ErrMalformed, name, rec.From)
			}
		}
	}
	if err := s.checkAcyclic(); err != nil {
		return err
	}
	if err := s.checkReferences(); err != nil {
		return err
	}
	if s.Latest != "" {
		if _, ok := s.Migrations[s.Latest]; !ok {
			return fmt.Errorf("%w: latest points at unknown migration %s", ErrMalformed, s.Latest)
		}
	}
	return nil
}

// checkAcyclic verifies every from chain terminates at a root.
func (s *Set) checkAcyclic() error {
	const (
		visiting = 1
		done     = 2
	)
	state := map[string]int{}
	for name := range s.Migrations {
		cur := name
		var trail []string
		for cur != "" && state[cur] != done {
			if state[cur] == visiting {
				return fmt.Errorf("%w: involving migration %s", ErrCycle, cur)
			}
			state[cur] = visiting
			trail = append(trail, cur)
			cur = s.Migrations[cur].From
		}
		for _, n := range trail {
			state[n] = done
		}
	}
	return nil
}

// checkReferences verifies that every column reference resolves in the
// referencing migration's snapshot or an ancestor's.
func (s *Set) checkReferences() error {
	for name, rec := range s.Migrations {
		for _, tname := range rec.DB.TableNames() {
			for _, col := range rec.DB.Tables[tname].Columns {
				if col.Reference == nil {
					continue
				}
				resolved := false
				for cur := rec; cur != nil; {
					if cur.DB.ResolveReference(*col.Reference) {
						resolved = true
						break
					}
					if cur.From == "" {
						break
					}
					cur = s.Migrations[cur.From]
				}
				if !resolved {
					return fmt.Errorf("%w: migration %s table %s column %s references unknown %s.%s",
						ErrMalformed, name, tname, col.Name, col.Reference.TableName, col.Reference.ColumnName)
				}
			}
		}
	}
	return nil
}

// Get looks up a record by name.
func (s *Set) Get(name string) (*Record, error) {
	rec, ok := s.Migrations[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNoSuchMigration)
	}
	return rec, nil
}

// LatestRecord resolves the set's latest pointer.
func (s *Set) LatestRecord() (*Record, error) {
	if s.Latest == "" {
		return nil, fmt.Errorf("set has no latest migration: %w", ErrNoSuchMigration)
	}
	return s.Get(s.Latest)
}

// Ancestry returns the chain from the root to name, inclusive,
// oldest first.
func (s *Set) Ancestry(name string) ([]*Record, error) {
	rec, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	var reversed []*Record
	seen := map[string]bool{}
	for cur := rec; ; {
		if seen[cur.Name] {
			return nil, fmt.Errorf("%w: involving migration %s", ErrCycle, cur.Name)
		}
		seen[cur.Name] = true
		reversed = append(reversed, cur)
		if cur.From == "" {
			break
		}
		next, err := s.Get(cur.From)
		if err != nil {
			return nil, fmt.Errorf("%w: migration %s links to unknown predecessor %s", ErrMalformed, cur.Name, cur.From)
		}
		cur = next
	}
	out := make([]*Record, len(reversed))
	for i, rec := range reversed {
		out[len(reversed)-1-i] = rec
	}
	return out, nil
}

// Depth returns the chain position of a migration: 1 for a root, one
// more per ancestor.
func (s *Set) Depth(name string) (int, error) {
	chain, err := s.Ancestry(name)
	if err != nil {
		return 0, err
	}
	return len(chain), nil
}

// Path computes the ordered records between two chain positions. With
// from empty, the full chain up to `to` is returned in forward order.
// When `to` is a descendant of `from`, the records strictly after
// `from` through `to` are returned in forward order. When `to` is an
// ancestor, the records from `from` back to (but excluding) `to` are
// returned newest first, to be reverted. Two migrations on divergent
// chains yield ErrNoPath.
func (s *Set) Path(from, to string) ([]*Record, Direction, error) {
	toChain, err := s.Ancestry(to)
	if err != nil {
		return nil, Up, err
	}
	if from == "" {
		return toChain, Up, nil
	}
	if from == to {
		return nil, Up, nil
	}
	if _, err := s.Get(from); err != nil {
		return nil, Up, err
	}

	// Forward: from is an ancestor of to.
	for i, rec := range toChain {
		if rec.Name == from {
			return toChain[i+1:], Up, nil
		}
	}

	// Reverse: to is an ancestor of from.
	fromChain, err := s.Ancestry(from)
	if err != nil {
		return nil, Up, err
	}
	for i, rec := range fromChain {
		if rec.Name == to {
			tail := fromChain[i+1:]
			out := make([]*Record, len(tail))
			for j, rec := range tail {
				out[len(tail)-1-j] = rec
			}
			return out, Down, nil
		}
	}

	return nil, Up, fmt.Errorf("%s and %s are not on the same chain: %w", from, to, ErrNoPath)
}

// Names returns every migration name sorted by chain depth, then
// lexically. Timestamp-prefixed names make the lexical order the
// authoring order for records at equal depth.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.Migrations))
	for name := range s.Migrations {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		di, _ := s.Depth(names[i])
		dj, _ := s.Depth(names[j])
		if di != dj {
			return di < dj
		}
		return names[i] < names[j]
	})
	return names
}
