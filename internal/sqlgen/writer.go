package sqlgen

import "strings"

// indentUnit is the text written per nesting level.
const indentUnit = "    "

// Writer accumulates SQL text. It tracks the nesting level for derived
// tables and supports reserved slots: positions in the output whose text
// is supplied later, once the information it depends on is known.
type Writer struct {
	parts     []part
	level     int
	lineStart bool
	params    *[]string
}

type part struct {
	text strings.Builder
	slot *Slot
}

// Slot is a reserved position in a Writer's output.
type Slot struct {
	text   string
	filled bool
	indent string
}

// Fill sets the slot's text. Filling twice replaces the earlier text.
func (s *Slot) Fill(text string) {
	s.text = text
	s.filled = true
}

// Filled reports whether Fill has been called.
func (s *Slot) Filled() bool { return s.filled }

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{parts: []part{{}}, lineStart: true, params: new([]string)}
}

// Scratch returns an empty Writer sharing w's parameter registry. Text
// rendered into it can be discarded on error or copied into a slot.
func (w *Writer) Scratch() *Writer {
	return &Writer{parts: []part{{}}, lineStart: false, params: w.params}
}

// Param registers a parameter reference and returns its 1-based ordinal.
// Repeated references to one name share an ordinal.
func (w *Writer) Param(name string) int {
	for i, n := range *w.params {
		if n == name {
			return i + 1
		}
	}
	*w.params = append(*w.params, name)
	return len(*w.params)
}

// Params returns parameter names in ordinal order.
func (w *Writer) Params() []string {
	out := make([]string, len(*w.params))
	copy(out, *w.params)
	return out
}

func (w *Writer) current() *strings.Builder {
	return &w.parts[len(w.parts)-1].text
}

// Write appends s, indenting each new line to the current level.
func (w *Writer) Write(s string) {
	for len(s) > 0 {
		i := strings.IndexByte(s, '\n')
		line := s
		if i >= 0 {
			line = s[:i]
		}
		if line != "" {
			if w.lineStart {
				w.current().WriteString(strings.Repeat(indentUnit, w.level))
			}
			w.current().WriteString(line)
			w.lineStart = false
		}
		if i < 0 {
			return
		}
		w.current().WriteByte('\n')
		w.lineStart = true
		s = s[i+1:]
	}
}

// Newline ends the current line.
func (w *Writer) Newline() {
	w.Write("\n")
}

// Indent increases the nesting level for following lines.
func (w *Writer) Indent() { w.level++ }

// Dedent decreases the nesting level.
func (w *Writer) Dedent() {
	if w.level > 0 {
		w.level--
	}
}

// Reserve returns a slot at the current position. Text written afterwards
// follows the slot's eventual content.
func (w *Writer) Reserve() *Slot {
	s := &Slot{}
	if w.lineStart {
		s.indent = strings.Repeat(indentUnit, w.level)
		w.lineStart = false
	}
	w.parts = append(w.parts, part{slot: s}, part{})
	return s
}

// String returns the text written so far. Unfilled slots render as
// nothing.
func (w *Writer) String() string {
	var b strings.Builder
	for i := range w.parts {
		p := &w.parts[i]
		if p.slot != nil {
			b.WriteString(p.slot.indent)
			b.WriteString(p.slot.text)
			continue
		}
		b.WriteString(p.text.String())
	}
	return b.String()
}
