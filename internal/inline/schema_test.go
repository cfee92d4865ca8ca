package inline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hmdoc/internal/domain"
	"hmdoc/internal/inline"
)

func TestDefaultSchema_Lookup(t *testing.T) {
	s := inline.DefaultSchema()

	m, ok := s.MarkForType("strikethrough")
	require.True(t, ok)
	assert.Equal(t, "strike", m.Style)
	assert.Equal(t, inline.MarkFlag, m.Kind)

	m, ok = s.MarkForStyle("conversations")
	require.True(t, ok)
	assert.Equal(t, "conversation", m.Type)
	assert.Equal(t, "set", m.Kind.String())

	_, ok = s.MarkForType("bold")
	assert.False(t, ok, "style keys are not annotation types")
}

func TestCustomSchema(t *testing.T) {
	codec := inline.New(inline.WithSchema(inline.NewSchema(
		inline.Mark{Type: "highlight", Style: "highlight", Kind: inline.MarkValue, Attribute: "color"},
		inline.Mark{Type: "strong", Style: "bold", Kind: inline.MarkFlag},
	)))
	b := domain.Block{
		Text: "abc",
		Annotations: []domain.Annotation{
			span("highlight", 0, 2, "color", "yellow"),
			span("emphasis", 1, 3),
		},
	}

	runs := codec.Decode(b)
	assert.Equal(t, []domain.StyledRun{
		run("a", "highlight", "yellow"),
		run("b", "highlight", "yellow", "emphasis", "true"),
		run("c", "emphasis", "true"),
	}, runs)

	_, annotations := codec.Encode(runs)
	require.Len(t, annotations, 2)
	assert.Equal(t, domain.Annotation{Type: "highlight", Starts: []int{0}, Ends: []int{2}, Attributes: map[string]string{"color": "yellow"}}, annotations[0])
	assert.Equal(t, domain.Annotation{Type: "emphasis", Starts: []int{1}, Ends: []int{3}, Attributes: map[string]string{"emphasis": "true"}}, annotations[1])
}

func TestWithSchema_NilKeepsDefault(t *testing.T) {
	codec := inline.New(inline.WithSchema(nil))
	_, ok := codec.Schema().MarkForType("strong")
	assert.True(t, ok)
}

func TestParseOffsetUnit(t *testing.T) {
	tests := []struct {
		in      string
		want    inline.OffsetUnit
		wantErr bool
	}{
		{in: "", want: inline.Codepoints},
		{in: "codepoint", want: inline.Codepoints},
		{in: " Runes ", want: inline.Codepoints},
		{in: "utf16", want: inline.UTF16},
		{in: "UTF-16", want: inline.UTF16},
		{in: "bytes", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := inline.ParseOffsetUnit(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
