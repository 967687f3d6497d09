package ir

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"unicode/utf16"
)

// Value is a sealed interface over literal values.
// Only Null, String, Int, Bool, Decimal, List and Object implement it.
type Value interface {
	irValue()
}

// Null is the SQL NULL literal.
type Null struct{}

func (Null) irValue() {}

// String is a character string literal.
type String string

func (String) irValue() {}

// Int is an exact 64-bit integer literal.
type Int int64

func (Int) irValue() {}

// Bool is a boolean literal.
type Bool bool

func (Bool) irValue() {}

// Decimal is an exact fixed-point literal kept in its textual form,
// e.g. "12.50" or "-0.001".
type Decimal string

func (Decimal) irValue() {}

// List is an ordered sequence of values.
type List []Value

func (List) irValue() {}

// Object maps keys to values. Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) irValue() {}

var decimalPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

// ParseDecimal validates s and returns it as a Decimal.
func ParseDecimal(s string) (Decimal, error) {
	if !decimalPattern.MatchString(s) {
		return "", fmt.Errorf("invalid decimal literal %q", s)
	}
	return Decimal(s), nil
}

// SortedKeys returns keys in canonical order (UTF-16 code units).
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	for i := 0; i < len(a16) && i < len(b16); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// FromGo converts a decoded document value (as produced by encoding/json,
// yaml.v3 or CUE decoding into any) to a Value. Floats are rejected unless
// they are integral; use a decimal string for fractional values.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		if val > 1<<63-1 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return Int(val), nil
	case float64:
		if val != float64(int64(val)) {
			return nil, fmt.Errorf("fractional number %v: use a decimal string", val)
		}
		return Int(int64(val)), nil
	case fmt.Stringer:
		// json.Number, *big.Int and friends.
		s := val.String()
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(n), nil
		}
		return ParseDecimal(s)
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			iv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = iv
		}
		return list, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			iv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = iv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported literal type %T", v)
	}
}

// ToGo converts a scalar Value to the native Go value a database/sql driver
// accepts. Lists and objects have no driver representation.
func ToGo(v Value) (any, error) {
	switch val := v.(type) {
	case Null:
		return nil, nil
	case String:
		return string(val), nil
	case Int:
		return int64(val), nil
	case Bool:
		return bool(val), nil
	case Decimal:
		return string(val), nil
	case List:
		return nil, fmt.Errorf("list cannot be used as a SQL parameter")
	case Object:
		return nil, fmt.Errorf("object cannot be used as a SQL parameter")
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// Describe renders v for diagnostics and tree dumps.
func Describe(v Value) string {
	switch val := v.(type) {
	case Null:
		return "NULL"
	case String:
		return strconv.Quote(string(val))
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Bool:
		return strconv.FormatBool(bool(val))
	case Decimal:
		return string(val)
	case List:
		return fmt.Sprintf("list(%d)", len(val))
	case Object:
		return fmt.Sprintf("object(%d)", len(val))
	default:
		return fmt.Sprintf("%T", v)
	}
}
