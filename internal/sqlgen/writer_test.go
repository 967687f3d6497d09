package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Indentation(t *testing.T) {
	w := NewWriter()
	w.Write("(")
	w.Newline()
	w.Indent()
	w.Write("SELECT 1\nFROM x")
	w.Dedent()
	w.Newline()
	w.Write(")")

	assert.Equal(t, "(\n    SELECT 1\n    FROM x\n)", w.String())
}

func TestWriter_ReserveBackpatch(t *testing.T) {
	w := NewWriter()
	w.Write("SELECT ")
	slot := w.Reserve()
	w.Write("a, b")

	assert.False(t, slot.Filled())
	assert.Equal(t, "SELECT a, b", w.String(), "unfilled slots render empty")

	slot.Fill("TOP (5) ")
	assert.True(t, slot.Filled())
	assert.Equal(t, "SELECT TOP (5) a, b", w.String())

	slot.Fill("DISTINCT ")
	assert.Equal(t, "SELECT DISTINCT a, b", w.String())
}

func TestWriter_ReserveAtLineStartKeepsIndent(t *testing.T) {
	w := NewWriter()
	w.Indent()
	slot := w.Reserve()
	w.Write("x")
	slot.Fill("y ")
	assert.Equal(t, "    y x", w.String())
}

func TestWriter_Params(t *testing.T) {
	w := NewWriter()
	assert.Equal(t, 1, w.Param("a"))
	assert.Equal(t, 2, w.Param("b"))
	assert.Equal(t, 1, w.Param("a"), "repeated names share an ordinal")

	s := w.Scratch()
	assert.Equal(t, 3, s.Param("c"), "scratch writers share the registry")
	assert.Equal(t, []string{"a", "b", "c"}, w.Params())
	assert.Empty(t, w.String())
}
