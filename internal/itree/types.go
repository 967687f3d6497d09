package itree

import (
	"fmt"
	"strings"
)

// TypeKind is the primitive category of a Type.
type TypeKind int

const (
	KindUnknown TypeKind = iota
	KindBool
	KindInt
	KindFloat
	KindDecimal
	KindString
	KindDateTime
	KindEnum
	KindRecord
	KindCollection
)

var kindNames = map[TypeKind]string{
	KindUnknown:    "unknown",
	KindBool:       "bool",
	KindInt:        "int",
	KindFloat:      "float",
	KindDecimal:    "decimal",
	KindString:     "string",
	KindDateTime:   "datetime",
	KindEnum:       "enum",
	KindRecord:     "record",
	KindCollection: "collection",
}

func (k TypeKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("TypeKind(%d)", int(k))
}

// ParseTypeKind maps a primitive type name ("int", "string", ...) to its
// kind. Enum, record and collection kinds are not spelled directly.
func ParseTypeKind(s string) (TypeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bool", "boolean":
		return KindBool, nil
	case "int", "integer", "bigint":
		return KindInt, nil
	case "float", "double", "real":
		return KindFloat, nil
	case "decimal", "numeric", "money":
		return KindDecimal, nil
	case "string", "text", "varchar", "nvarchar":
		return KindString, nil
	case "datetime", "timestamp":
		return KindDateTime, nil
	}
	return KindUnknown, fmt.Errorf("unknown type %q", s)
}

// Type is the declared type of a Var, scalar or column map.
type Type struct {
	Kind     TypeKind
	Nullable bool

	// Name is the enum, record or collection type name.
	Name string

	// Underlying is the primitive kind an enum is stored as.
	Underlying TypeKind
}

// Primitive returns the storage type: enums resolve to their underlying
// kind, everything else is returned unchanged.
func (t Type) Primitive() Type {
	if t.Kind != KindEnum {
		return t
	}
	return Type{Kind: t.Underlying, Nullable: t.Nullable}
}

// WithNullable returns a copy of t with the given nullability.
func (t Type) WithNullable(nullable bool) Type {
	t.Nullable = nullable
	return t
}

// IsNumeric reports whether values of t support arithmetic.
func (t Type) IsNumeric() bool {
	switch t.Primitive().Kind {
	case KindInt, KindFloat, KindDecimal:
		return true
	}
	return false
}

// Comparable reports whether values of t and o can be compared with =, <
// and friends.
func (t Type) Comparable(o Type) bool {
	a, b := t.Primitive(), o.Primitive()
	if a.Kind == KindUnknown || b.Kind == KindUnknown {
		// Untyped NULL compares with anything.
		return true
	}
	if t.IsNumeric() && o.IsNumeric() {
		return true
	}
	return a.Kind == b.Kind
}

func (t Type) String() string {
	var s string
	switch t.Kind {
	case KindEnum:
		s = fmt.Sprintf("enum %s(%s)", t.Name, t.Underlying)
	case KindRecord, KindCollection:
		s = fmt.Sprintf("%s %s", t.Kind, t.Name)
	default:
		s = t.Kind.String()
	}
	if t.Nullable {
		s += "?"
	}
	return s
}

// Common types.
var (
	BoolType   = Type{Kind: KindBool}
	IntType    = Type{Kind: KindInt}
	StringType = Type{Kind: KindString}
)
