package inline

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// OffsetUnit is the unit annotation offsets are counted in.
type OffsetUnit int

const (
	// Codepoints counts Unicode scalar values.
	Codepoints OffsetUnit = iota
	// UTF16 counts UTF-16 code units, like JavaScript string indexes.
	UTF16
)

func (u OffsetUnit) String() string {
	if u == UTF16 {
		return "utf16"
	}
	return "codepoint"
}

// ParseOffsetUnit accepts "codepoint", "codepoints", "utf16" and "" (codepoints).
func ParseOffsetUnit(s string) (OffsetUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "codepoint", "codepoints", "rune", "runes":
		return Codepoints, nil
	case "utf16", "utf-16":
		return UTF16, nil
	default:
		return Codepoints, fmt.Errorf("unknown offset unit %q", s)
	}
}

// unitLen returns the length of s in unit.
func unitLen(s string, unit OffsetUnit) int {
	if unit != UTF16 {
		return utf8.RuneCountInString(s)
	}
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// textIndex maps unit offsets to byte positions in one block's text.
// Every rune start is a valid cut; for UTF-16 an offset inside a surrogate
// pair snaps down to the start of the pair.
type textIndex struct {
	text    string
	bytePos []int // byte offset of rune i; last entry is len(text)
	unitPos []int // unit offset of rune i; nil when units are code points
}

func newTextIndex(text string, unit OffsetUnit) textIndex {
	idx := textIndex{text: text}
	idx.bytePos = make([]int, 0, len(text)+1)
	if unit == UTF16 {
		idx.unitPos = make([]int, 0, len(text)+1)
	}
	u := 0
	for i, r := range text {
		idx.bytePos = append(idx.bytePos, i)
		if idx.unitPos != nil {
			idx.unitPos = append(idx.unitPos, u)
			u += utf16.RuneLen(r)
		}
	}
	idx.bytePos = append(idx.bytePos, len(text))
	if idx.unitPos != nil {
		idx.unitPos = append(idx.unitPos, u)
	}
	return idx
}

// Len is the text length in units.
func (x textIndex) Len() int {
	if x.unitPos != nil {
		return x.unitPos[len(x.unitPos)-1]
	}
	return len(x.bytePos) - 1
}

// clamp bounds off to [0, Len] and snaps it to a rune boundary.
func (x textIndex) clamp(off int) int {
	if off <= 0 {
		return 0
	}
	n := x.Len()
	if off >= n {
		return n
	}
	if x.unitPos == nil {
		return off
	}
	i := sort.SearchInts(x.unitPos, off)
	if x.unitPos[i] == off {
		return off
	}
	return x.unitPos[i-1]
}

// byteAt converts a clamped unit offset to a byte offset.
func (x textIndex) byteAt(off int) int {
	if x.unitPos == nil {
		return x.bytePos[off]
	}
	return x.bytePos[sort.SearchInts(x.unitPos, off)]
}

// slice returns the text between two clamped unit offsets.
func (x textIndex) slice(a, b int) string {
	return x.text[x.byteAt(a):x.byteAt(b)]
}
