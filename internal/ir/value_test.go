package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromGo(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"string", "x", String("x")},
		{"bool", true, Bool(true)},
		{"int", 7, Int(7)},
		{"int64", int64(-3), Int(-3)},
		{"integral float", float64(12), Int(12)},
		{"json number", json.Number("99"), Int(99)},
		{"json decimal", json.Number("1.25"), Decimal("1.25")},
		{"list", []any{1, "a"}, List{Int(1), String("a")}},
		{"object", map[string]any{"k": false}, Object{"k": Bool(false)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromGo(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromGoRejectsFractionalFloat(t *testing.T) {
	_, err := FromGo(1.5)
	assert.ErrorContains(t, err, "decimal string")
}

func TestParseDecimal(t *testing.T) {
	d, err := ParseDecimal("-10.05")
	require.NoError(t, err)
	assert.Equal(t, Decimal("-10.05"), d)

	for _, bad := range []string{"", "1.", ".5", "1e3", "abc"} {
		_, err := ParseDecimal(bad)
		assert.Error(t, err, bad)
	}
}

func TestToGo(t *testing.T) {
	v, err := ToGo(Int(5))
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	v, err = ToGo(Null{})
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = ToGo(List{})
	assert.Error(t, err)
}

func TestObjectSortedKeys(t *testing.T) {
	obj := Object{"a": Int(1), "A": Int(2), "aa": Int(3), "AA": Int(4)}
	assert.Equal(t, []string{"A", "AA", "a", "aa"}, obj.SortedKeys())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "NULL", Describe(Null{}))
	assert.Equal(t, `"it's"`, Describe(String("it's")))
	assert.Equal(t, "12.5", Describe(Decimal("12.5")))
	assert.Equal(t, "42", Describe(Int(42)))
}
