// Package inline converts between wire blocks (text plus range annotations)
// and the editor's flat sequence of styled text runs.
//
// Decode and Encode are pure: they never fail and never mutate their input.
// A Codec is immutable and may be shared between goroutines.
package inline

import "hmdoc/internal/domain"

// Codec decodes and encodes blocks with one schema and one offset unit.
type Codec struct {
	schema *Schema
	unit   OffsetUnit
}

type Option func(*Codec)

// WithSchema replaces the default mark schema.
func WithSchema(s *Schema) Option {
	return func(c *Codec) {
		if s != nil {
			c.schema = s
		}
	}
}

// WithOffsetUnit sets the unit annotation offsets are counted in.
func WithOffsetUnit(u OffsetUnit) Option {
	return func(c *Codec) { c.unit = u }
}

func New(opts ...Option) *Codec {
	c := &Codec{schema: DefaultSchema(), unit: Codepoints}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codec) Schema() *Schema  { return c.schema }
func (c *Codec) Unit() OffsetUnit { return c.unit }

var defaultCodec = New()

// Decode decodes b with the default schema and code point offsets.
func Decode(b domain.Block) []domain.StyledRun {
	return defaultCodec.Decode(b)
}

// Encode encodes runs with the default schema and code point offsets.
func Encode(runs []domain.StyledRun) (string, []domain.Annotation) {
	return defaultCodec.Encode(runs)
}

// Merge merges style sets with the default schema.
func Merge(sets ...domain.Styles) domain.Styles {
	return defaultCodec.Merge(sets...)
}
