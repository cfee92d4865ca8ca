package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// RunTypeText is the only inline node type produced by the decoder.
const RunTypeText = "text"

// StyleValue is either a single string or an ordered list of strings.
type StyleValue struct {
	text  string
	items []string
	list  bool
}

// Scalar returns a single-valued style.
func Scalar(v string) StyleValue {
	return StyleValue{text: v}
}

// List returns a list-valued style. The items are copied.
func List(items ...string) StyleValue {
	return StyleValue{items: append([]string(nil), items...), list: true}
}

func (v StyleValue) IsList() bool { return v.list }

// Text returns the scalar value, or the first item of a list.
func (v StyleValue) Text() string {
	if v.list {
		if len(v.items) == 0 {
			return ""
		}
		return v.items[0]
	}
	return v.text
}

// Items returns the list items, or the scalar as a one-item list.
func (v StyleValue) Items() []string {
	if v.list {
		return append([]string(nil), v.items...)
	}
	return []string{v.text}
}

// Equal compares scalars by value and lists as sets: item order is not
// significant.
func (v StyleValue) Equal(o StyleValue) bool {
	if v.list != o.list {
		return false
	}
	if !v.list {
		return v.text == o.text
	}
	return subset(v.items, o.items) && subset(o.items, v.items)
}

func subset(a, b []string) bool {
	for _, x := range a {
		found := false
		for _, y := range b {
			if x == y {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (v StyleValue) String() string {
	if v.list {
		return fmt.Sprint(v.items)
	}
	return v.text
}

func (v StyleValue) MarshalJSON() ([]byte, error) {
	if v.list {
		if v.items == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.items)
	}
	return json.Marshal(v.text)
}

// UnmarshalJSON accepts a string, an array of strings, a boolean or a number.
// Editors send flags as booleans; true becomes "true".
func (v *StyleValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty style value")
	}
	switch data[0] {
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("style list: %w", err)
		}
		*v = List(items...)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Scalar(s)
	default:
		*v = Scalar(string(data))
	}
	return nil
}

// Styles is the merged style set of one run.
type Styles map[string]StyleValue

// Equal reports whether both sets carry the same keys with equal values.
func (s Styles) Equal(o Styles) bool {
	if len(s) != len(o) {
		return false
	}
	for k, v := range s {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

func (s Styles) Clone() Styles {
	out := make(Styles, len(s))
	for k, v := range s {
		if v.list {
			v = List(v.items...)
		}
		out[k] = v
	}
	return out
}

// Keys returns the style names in sorted order.
func (s Styles) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UnmarshalJSON drops keys whose value is false or null.
func (s *Styles) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Styles, len(raw))
	for k, r := range raw {
		r = bytes.TrimSpace(r)
		if bytes.Equal(r, []byte("false")) || bytes.Equal(r, []byte("null")) {
			continue
		}
		var v StyleValue
		if err := v.UnmarshalJSON(r); err != nil {
			return fmt.Errorf("style %q: %w", k, err)
		}
		out[k] = v
	}
	*s = out
	return nil
}

// StyledRun is a contiguous slice of block text with one fixed style set.
type StyledRun struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Styles Styles `json:"styles"`
}

// EditorBlock is the editor-side form of a BlockNode.
type EditorBlock struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Props    map[string]string `json:"props,omitempty"`
	Content  []StyledRun       `json:"content"`
	Children []EditorBlock     `json:"children"`
}
