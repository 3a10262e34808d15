package migration

import (
	"encoding/json"
	"fmt"
	"sort"

	"schemachain/internal/backend"
	"schemachain/internal/schema"
)

// SQLMap holds per-backend executable text keyed by backend
// identifier. Keys for backends this build does not know about are
// carried through untouched.
type SQLMap map[backend.ID]string

// Record is one named schema transition: the snapshot resulting from
// the migration, a link to its predecessor, and forward/backward DDL
// text per backend. Finalized records are never mutated; only a set's
// staging record changes during authoring.
type Record struct {
	Name string          `json:"name"`
	DB   schema.Database `json:"db"`
	// From names the immediate predecessor, empty for the root.
	From string `json:"-"`
	Up   SQLMap `json:"up"`
	Down SQLMap `json:"down"`
}

type recordJSON struct {
	Name string          `json:"name"`
	DB   schema.Database `json:"db"`
	From *string         `json:"from"`
	Up   SQLMap          `json:"up"`
	Down SQLMap          `json:"down"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{Name: r.Name, DB: r.DB, Up: r.Up, Down: r.Down}
	if out.Up == nil {
		out.Up = SQLMap{}
	}
	if out.Down == nil {
		out.Down = SQLMap{}
	}
	if r.From != "" {
		from := r.From
		out.From = &from
	}
	return json.Marshal(out)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Name == "" {
		return fmt.Errorf("migration record without a name")
	}
	*r = Record{Name: in.Name, DB: in.DB, Up: in.Up, Down: in.Down}
	if r.Up == nil {
		r.Up = SQLMap{}
	}
	if r.Down == nil {
		r.Down = SQLMap{}
	}
	if in.From != nil {
		r.From = *in.From
	}
	return nil
}

// SQL returns the executable text for one direction and backend.
func (r *Record) SQL(dir Direction, id backend.ID) (string, error) {
	m := r.Up
	if dir == Down {
		m = r.Down
	}
	text, ok := m[id]
	if !ok {
		return "", fmt.Errorf("migration %s has no %s text for backend %s: %w", r.Name, dir, id, ErrUnsupportedBackend)
	}
	return text, nil
}

// Backends lists, in sorted order, the backend identifiers this
// record carries forward text for.
func (r *Record) Backends() []backend.ID {
	out := make([]backend.ID, 0, len(r.Up))
	for id := range r.Up {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Direction distinguishes forward application from reversal.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)
