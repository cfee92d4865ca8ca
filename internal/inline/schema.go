package inline

import (
	"hmdoc/internal/domain"
)

// MarkKind says how a style combines when annotations overlap and how it is
// written back to the wire.
type MarkKind int

const (
	// MarkFlag is a boolean style; presence anywhere wins.
	MarkFlag MarkKind = iota
	// MarkValue is a single string; the earliest annotation wins.
	MarkValue
	// MarkSet accumulates identifiers from every covering annotation.
	MarkSet
)

func (k MarkKind) String() string {
	switch k {
	case MarkFlag:
		return "flag"
	case MarkValue:
		return "value"
	case MarkSet:
		return "set"
	default:
		return "unknown"
	}
}

// Mark binds a wire annotation type to an editor style key.
type Mark struct {
	Type      string
	Style     string
	Kind      MarkKind
	Attribute string   // wire attribute carrying the value (value and set marks)
	Aliases   []string // additional annotation types decoded as this mark
}

// Schema is the registry of known marks. It is read-only after NewSchema.
type Schema struct {
	byType  map[string]Mark
	byStyle map[string]Mark
}

// NewSchema builds a schema. Later marks override earlier ones with the
// same type or style.
func NewSchema(marks ...Mark) *Schema {
	s := &Schema{
		byType:  make(map[string]Mark, len(marks)),
		byStyle: make(map[string]Mark, len(marks)),
	}
	for _, m := range marks {
		s.byType[m.Type] = m
		for _, alias := range m.Aliases {
			s.byType[alias] = m
		}
		s.byStyle[m.Style] = m
	}
	return s
}

// DefaultSchema returns the marks understood by the hypermedia editor.
func DefaultSchema() *Schema {
	return NewSchema(
		Mark{Type: "strong", Style: "bold", Kind: MarkFlag},
		Mark{Type: "emphasis", Style: "italic", Kind: MarkFlag},
		Mark{Type: "underline", Style: "underline", Kind: MarkFlag},
		Mark{Type: "strike", Style: "strike", Kind: MarkFlag, Aliases: []string{"strikethrough"}},
		Mark{Type: "code", Style: "code", Kind: MarkFlag},
		Mark{Type: "superscript", Style: "superscript", Kind: MarkFlag},
		Mark{Type: "subscript", Style: "subscript", Kind: MarkFlag},
		Mark{Type: "link", Style: "link", Kind: MarkValue, Attribute: "url"},
		Mark{Type: "color", Style: "color", Kind: MarkValue, Attribute: "color"},
		Mark{Type: "conversation", Style: "conversations", Kind: MarkSet, Attribute: "conversationId"},
	)
}

// MarkForType looks up the mark decoded from an annotation type.
func (s *Schema) MarkForType(annotationType string) (Mark, bool) {
	m, ok := s.byType[annotationType]
	return m, ok
}

// MarkForStyle looks up the mark that encodes a style key.
func (s *Schema) MarkForStyle(style string) (Mark, bool) {
	m, ok := s.byStyle[style]
	return m, ok
}

// contribution is the style set an annotation adds to every range it covers.
func (s *Schema) contribution(a domain.Annotation) domain.Styles {
	out := domain.Styles{}
	m, known := s.byType[a.Type]
	consumed := ""
	if known {
		switch m.Kind {
		case MarkFlag:
			out[m.Style] = domain.Scalar("true")
		case MarkValue:
			v := a.Attributes[m.Attribute]
			if v == "" {
				v = a.Ref
			}
			if v != "" {
				out[m.Style] = domain.Scalar(v)
			}
			consumed = m.Attribute
		case MarkSet:
			if v := a.Attributes[m.Attribute]; v != "" {
				out[m.Style] = domain.List(v)
			}
			consumed = m.Attribute
		}
	} else if a.Type != "" {
		// Unknown types survive as a style named after the type.
		switch {
		case a.Ref != "":
			out[a.Type] = domain.Scalar(a.Ref)
		case len(a.Attributes) == 0:
			out[a.Type] = domain.Scalar("true")
		}
	}

	for k, v := range a.Attributes {
		if k == consumed {
			continue
		}
		if _, ok := out[k]; ok {
			continue
		}
		if m, ok := s.byStyle[k]; ok && m.Kind != MarkFlag && v == "" {
			continue
		}
		out[k] = s.attributeValue(k, v)
	}
	return out
}

// attributeValue converts a raw wire attribute into a style value.
func (s *Schema) attributeValue(key, value string) domain.StyleValue {
	if m, ok := s.byStyle[key]; ok {
		switch m.Kind {
		case MarkFlag:
			return domain.Scalar("true")
		case MarkSet:
			return domain.List(value)
		}
	}
	return domain.Scalar(value)
}
