package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicateName is returned when a table or column name collides
// with one already present in the snapshot.
var ErrDuplicateName = errors.New("duplicate name")

// Reference points a column at a (table, column) pair it references.
type Reference struct {
	TableName  string `json:"table_name"`
	ColumnName string `json:"column_name"`
}

// columnRef carries the wire encoding of a reference, which nests the
// target under a "Literal" tag.
type columnRef struct {
	Literal Reference `json:"Literal"`
}

// Column describes one table column.
type Column struct {
	Name      string          `json:"name"`
	Type      SQLType         `json:"sqltype"`
	Nullable  bool            `json:"nullable"`
	PK        bool            `json:"pk"`
	Auto      bool            `json:"auto"`
	Unique    bool            `json:"unique"`
	Default   json.RawMessage `json:"default"`
	Reference *Reference      `json:"-"`
}

type columnJSON struct {
	Name      string          `json:"name"`
	Type      SQLType         `json:"sqltype"`
	Nullable  bool            `json:"nullable"`
	PK        bool            `json:"pk"`
	Auto      bool            `json:"auto"`
	Unique    bool            `json:"unique"`
	Default   json.RawMessage `json:"default"`
	Reference *columnRef      `json:"reference,omitempty"`
}

func (c Column) MarshalJSON() ([]byte, error) {
	out := columnJSON{
		Name:     c.Name,
		Type:     c.Type,
		Nullable: c.Nullable,
		PK:       c.PK,
		Auto:     c.Auto,
		Unique:   c.Unique,
		Default:  c.Default,
	}
	if c.Reference != nil {
		out.Reference = &columnRef{Literal: *c.Reference}
	}
	return json.Marshal(out)
}

func (c *Column) UnmarshalJSON(data []byte) error {
	var in columnJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Name == "" {
		return fmt.Errorf("column without a name")
	}
	*c = Column{
		Name:     in.Name,
		Type:     in.Type,
		Nullable: in.Nullable,
		PK:       in.PK,
		Auto:     in.Auto,
		Unique:   in.Unique,
		Default:  in.Default,
	}
	if in.Reference != nil {
		ref := in.Reference.Literal
		if ref.TableName == "" || ref.ColumnName == "" {
			return fmt.Errorf("column %s: reference missing table or column name", in.Name)
		}
		c.Reference = &ref
	}
	return nil
}

// HasDefault reports whether the column declares a non-null default.
func (c Column) HasDefault() bool {
	return len(c.Default) > 0 && string(c.Default) != "null"
}

// Equal compares two columns structurally.
func (c Column) Equal(other Column) bool {
	if c.Name != other.Name || c.Type != other.Type ||
		c.Nullable != other.Nullable || c.PK != other.PK ||
		c.Auto != other.Auto || c.Unique != other.Unique {
		return false
	}
	if normalizeDefault(c.Default) != normalizeDefault(other.Default) {
		return false
	}
	if (c.Reference == nil) != (other.Reference == nil) {
		return false
	}
	if c.Reference != nil && *c.Reference != *other.Reference {
		return false
	}
	return true
}

func normalizeDefault(d json.RawMessage) string {
	if len(d) == 0 {
		return "null"
	}
	return string(d)
}

// Table is a named, ordered sequence of columns. Column order affects
// generated DDL, not semantics.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Column looks up a column by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// AddColumn appends a column, rejecting duplicate names.
func (t *Table) AddColumn(c Column) error {
	if _, ok := t.Column(c.Name); ok {
		return fmt.Errorf("table %s column %s: %w", t.Name, c.Name, ErrDuplicateName)
	}
	t.Columns = append(t.Columns, c)
	return nil
}

// PKColumn returns the primary-key column, if the table has one.
func (t Table) PKColumn() (Column, bool) {
	for _, c := range t.Columns {
		if c.PK {
			return c, true
		}
	}
	return Column{}, false
}

// Validate checks table-level invariants: at least one column and at
// most one primary-key column.
func (t Table) Validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", t.Name)
	}
	seen := map[string]bool{}
	pk := 0
	for _, c := range t.Columns {
		if seen[c.Name] {
			return fmt.Errorf("table %s column %s: %w", t.Name, c.Name, ErrDuplicateName)
		}
		seen[c.Name] = true
		if c.PK {
			pk++
		}
	}
	if pk > 1 {
		return fmt.Errorf("table %s has %d primary key columns", t.Name, pk)
	}
	return nil
}

func (t Table) clone() Table {
	out := Table{Name: t.Name, Columns: make([]Column, len(t.Columns))}
	copy(out.Columns, t.Columns)
	for i, c := range out.Columns {
		if c.Reference != nil {
			ref := *c.Reference
			out.Columns[i].Reference = &ref
		}
	}
	return out
}

// Database is a full schema snapshot: every table plus any named
// custom types, describing the state after a migration is applied.
type Database struct {
	Tables     map[string]Table   `json:"tables"`
	ExtraTypes map[string]SQLType `json:"extra_types"`
}

// NewDatabase returns an empty snapshot.
func NewDatabase() Database {
	return Database{
		Tables:     map[string]Table{},
		ExtraTypes: map[string]SQLType{},
	}
}

// AddTable adds a table to the snapshot, rejecting duplicate names.
func (d *Database) AddTable(t Table) error {
	if d.Tables == nil {
		d.Tables = map[string]Table{}
	}
	if _, ok := d.Tables[t.Name]; ok {
		return fmt.Errorf("table %s: %w", t.Name, ErrDuplicateName)
	}
	d.Tables[t.Name] = t
	return nil
}

// AddColumn appends a column to an existing table.
func (d *Database) AddColumn(table string, c Column) error {
	t, ok := d.Tables[table]
	if !ok {
		return fmt.Errorf("no table %s in snapshot", table)
	}
	if err := t.AddColumn(c); err != nil {
		return err
	}
	d.Tables[table] = t
	return nil
}

// Clone returns a deep copy suitable for staging mutations.
func (d Database) Clone() Database {
	out := NewDatabase()
	for name, t := range d.Tables {
		out.Tables[name] = t.clone()
	}
	for name, ty := range d.ExtraTypes {
		out.ExtraTypes[name] = ty
	}
	return out
}

// Equal compares two snapshots structurally.
func (d Database) Equal(other Database) bool {
	if len(d.Tables) != len(other.Tables) || len(d.ExtraTypes) != len(other.ExtraTypes) {
		return false
	}
	for name, t := range d.Tables {
		o, ok := other.Tables[name]
		if !ok || len(t.Columns) != len(o.Columns) {
			return false
		}
		for i := range t.Columns {
			if !t.Columns[i].Equal(o.Columns[i]) {
				return false
			}
		}
	}
	for name, ty := range d.ExtraTypes {
		if o, ok := other.ExtraTypes[name]; !ok || o != ty {
			return false
		}
	}
	return true
}

// Validate checks every table and that column references resolve
// inside this snapshot.
func (d Database) Validate() error {
	for name, t := range d.Tables {
		if name != t.Name {
			return fmt.Errorf("table keyed %s but named %s", name, t.Name)
		}
		if err := t.Validate(); err != nil {
			return err
		}
		for _, c := range t.Columns {
			if c.Type.IsCustom() {
				if _, ok := d.ExtraTypes[c.Type.Custom]; !ok {
					return fmt.Errorf("table %s column %s: unknown custom type %s", t.Name, c.Name, c.Type.Custom)
				}
			}
		}
	}
	return nil
}

// ResolveReference reports whether a reference target exists in the
// snapshot.
func (d Database) ResolveReference(ref Reference) bool {
	t, ok := d.Tables[ref.TableName]
	if !ok {
		return false
	}
	_, ok = t.Column(ref.ColumnName)
	return ok
}

// TableNames returns table names in sorted order.
func (d Database) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for name := range d.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
