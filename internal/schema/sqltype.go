package schema

import (
	"encoding/json"
	"fmt"
)

// Ty identifies one of the built-in logical column types.
type Ty string

const (
	TyBool      Ty = "Bool"
	TyInt       Ty = "Int"
	TyBigInt    Ty = "BigInt"
	TyReal      Ty = "Real"
	TyText      Ty = "Text"
	TyBlob      Ty = "Blob"
	TyJSON      Ty = "Json"
	TyTimestamp Ty = "Timestamp"
)

var knownTys = map[Ty]bool{
	TyBool:      true,
	TyInt:       true,
	TyBigInt:    true,
	TyReal:      true,
	TyText:      true,
	TyBlob:      true,
	TyJSON:      true,
	TyTimestamp: true,
}

// SQLType is a tagged variant: either a known built-in type or a named
// custom type resolved through the snapshot's extra_types map. Exactly
// one of the two is set.
type SQLType struct {
	Known  Ty
	Custom string
}

// KnownType returns an SQLType for a built-in type.
func KnownType(ty Ty) SQLType { return SQLType{Known: ty} }

// CustomType returns an SQLType naming a backend-specific custom type.
func CustomType(name string) SQLType { return SQLType{Custom: name} }

// IsCustom reports whether the type is a named custom type.
func (t SQLType) IsCustom() bool { return t.Custom != "" }

func (t SQLType) String() string {
	if t.IsCustom() {
		return t.Custom
	}
	return string(t.Known)
}

type knownID struct {
	Ty Ty `json:"Ty"`
}

type customID struct {
	Name string `json:"Name"`
}

type sqlTypeJSON struct {
	KnownID *knownID  `json:"KnownId,omitempty"`
	Custom  *customID `json:"Custom,omitempty"`
}

func (t SQLType) MarshalJSON() ([]byte, error) {
	out := sqlTypeJSON{}
	if t.IsCustom() {
		out.Custom = &customID{Name: t.Custom}
	} else {
		out.KnownID = &knownID{Ty: t.Known}
	}
	return json.Marshal(out)
}

func (t *SQLType) UnmarshalJSON(data []byte) error {
	var in sqlTypeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("parse sqltype: %w", err)
	}
	switch {
	case in.KnownID != nil && in.Custom == nil:
		if !knownTys[in.KnownID.Ty] {
			return fmt.Errorf("unknown sql type tag %q", in.KnownID.Ty)
		}
		*t = SQLType{Known: in.KnownID.Ty}
		return nil
	case in.Custom != nil && in.KnownID == nil:
		if in.Custom.Name == "" {
			return fmt.Errorf("custom sql type with empty name")
		}
		*t = SQLType{Custom: in.Custom.Name}
		return nil
	default:
		return fmt.Errorf("sqltype must carry exactly one of KnownId or Custom")
	}
}
