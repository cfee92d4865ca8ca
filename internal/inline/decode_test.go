package inline_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hmdoc/internal/domain"
	"hmdoc/internal/inline"
)

// ─────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────

func run(text string, kv ...string) domain.StyledRun {
	styles := domain.Styles{}
	for i := 0; i+1 < len(kv); i += 2 {
		styles[kv[i]] = domain.Scalar(kv[i+1])
	}
	return domain.StyledRun{Type: domain.RunTypeText, Text: text, Styles: styles}
}

func ann(typ string, starts, ends []int, attrs ...string) domain.Annotation {
	a := domain.Annotation{Type: typ, Starts: starts, Ends: ends}
	if len(attrs) > 0 {
		a.Attributes = map[string]string{}
		for i := 0; i+1 < len(attrs); i += 2 {
			a.Attributes[attrs[i]] = attrs[i+1]
		}
	}
	return a
}

func r(start, end int) ([]int, []int) { return []int{start}, []int{end} }

func span(typ string, start, end int, attrs ...string) domain.Annotation {
	s, e := r(start, end)
	return ann(typ, s, e, attrs...)
}

// assertRunInvariants checks that the runs cover text exactly and that no two
// neighbours carry equal styles.
func assertRunInvariants(t *testing.T, text string, runs []domain.StyledRun) {
	t.Helper()
	var sb strings.Builder
	for i, rn := range runs {
		sb.WriteString(rn.Text)
		assert.NotEmpty(t, rn.Text, "run %d is empty", i)
		assert.Equal(t, domain.RunTypeText, rn.Type)
		if i > 0 {
			assert.False(t, runs[i-1].Styles.Equal(rn.Styles), "runs %d and %d carry equal styles", i-1, i)
		}
	}
	assert.Equal(t, text, sb.String())
}

func assertSameRuns(t *testing.T, want, got []domain.StyledRun) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Text, got[i].Text, "run %d text", i)
		assert.True(t, want[i].Styles.Equal(got[i].Styles), "run %d styles: want %v got %v", i, want[i].Styles, got[i].Styles)
	}
}

// ─────────────────────────────────────────────────────────────
// Decode
// ─────────────────────────────────────────────────────────────

func TestDecode_OverlappingMarks(t *testing.T) {
	b := domain.Block{
		ID:   "b1",
		Text: "ABCDE",
		Annotations: []domain.Annotation{
			span("strong", 1, 3),
			span("emphasis", 2, 4),
		},
	}

	got := inline.Decode(b)

	assert.Equal(t, []domain.StyledRun{
		run("A"),
		run("B", "bold", "true"),
		run("C", "bold", "true", "italic", "true"),
		run("D", "italic", "true"),
		run("E"),
	}, got)
}

func TestDecode_Table(t *testing.T) {
	tests := []struct {
		name  string
		block domain.Block
		want  []domain.StyledRun
	}{
		{
			name:  "no annotations",
			block: domain.Block{Text: "hello"},
			want:  []domain.StyledRun{run("hello")},
		},
		{
			name:  "whole block sentinel",
			block: domain.Block{Text: "hello", Annotations: []domain.Annotation{span("strong", 0, 0)}},
			want:  []domain.StyledRun{run("hello", "bold", "true")},
		},
		{
			name:  "end past text is clamped",
			block: domain.Block{Text: "abc", Annotations: []domain.Annotation{span("strong", 1, 10)}},
			want:  []domain.StyledRun{run("a"), run("bc", "bold", "true")},
		},
		{
			name:  "negative start is clamped",
			block: domain.Block{Text: "abc", Annotations: []domain.Annotation{span("strong", -5, 2)}},
			want:  []domain.StyledRun{run("ab", "bold", "true"), run("c")},
		},
		{
			name:  "reversed range is ignored",
			block: domain.Block{Text: "abc", Annotations: []domain.Annotation{span("strong", 3, 1)}},
			want:  []domain.StyledRun{run("abc")},
		},
		{
			name:  "range entirely past text is ignored",
			block: domain.Block{Text: "abc", Annotations: []domain.Annotation{span("strong", 7, 9)}},
			want:  []domain.StyledRun{run("abc")},
		},
		{
			name: "extra starts are ignored",
			block: domain.Block{Text: "abcd", Annotations: []domain.Annotation{
				ann("strong", []int{0, 2}, []int{1}),
			}},
			want: []domain.StyledRun{run("a", "bold", "true"), run("bcd")},
		},
		{
			name: "multiple ranges in one annotation",
			block: domain.Block{Text: "abcde", Annotations: []domain.Annotation{
				ann("strong", []int{0, 3}, []int{1, 4}),
			}},
			want: []domain.StyledRun{
				run("a", "bold", "true"),
				run("bc"),
				run("d", "bold", "true"),
				run("e"),
			},
		},
		{
			name: "adjacent equal styles collapse",
			block: domain.Block{Text: "abcd", Annotations: []domain.Annotation{
				span("strong", 0, 2),
				span("strong", 2, 4),
			}},
			want: []domain.StyledRun{run("abcd", "bold", "true")},
		},
		{
			name: "strikethrough alias",
			block: domain.Block{Text: "ab", Annotations: []domain.Annotation{
				span("strikethrough", 0, 1),
			}},
			want: []domain.StyledRun{run("a", "strike", "true"), run("b")},
		},
		{
			name: "earliest scalar wins",
			block: domain.Block{Text: "abc", Annotations: []domain.Annotation{
				span("color", 0, 3, "color", "red"),
				span("color", 1, 2, "color", "green"),
			}},
			want: []domain.StyledRun{run("abc", "color", "red")},
		},
		{
			name: "untyped full span attribute",
			block: domain.Block{Text: "ABC", Annotations: []domain.Annotation{
				span("", 0, 3, "bold", "true"),
			}},
			want: []domain.StyledRun{run("ABC", "bold", "true")},
		},
		{
			name: "untyped partial attribute",
			block: domain.Block{Text: "ABC", Annotations: []domain.Annotation{
				span("", 1, 2, "bold", "true"),
			}},
			want: []domain.StyledRun{run("A"), run("B", "bold", "true"), run("C")},
		},
		{
			name: "untyped overlapping attributes",
			block: domain.Block{Text: "ABCDE", Annotations: []domain.Annotation{
				span("", 1, 3, "bold", "true"),
				span("", 2, 4, "italic", "true"),
			}},
			want: []domain.StyledRun{
				run("A"),
				run("B", "bold", "true"),
				run("C", "bold", "true", "italic", "true"),
				run("D", "italic", "true"),
				run("E"),
			},
		},
		{
			name: "untyped conflicting scalar takes the earlier annotation",
			block: domain.Block{Text: "ABC", Annotations: []domain.Annotation{
				span("", 0, 3, "author", "first"),
				span("", 0, 3, "author", "second"),
			}},
			want: []domain.StyledRun{run("ABC", "author", "first")},
		},
		{
			name: "link from url attribute",
			block: domain.Block{Text: "see docs", Annotations: []domain.Annotation{
				span("link", 4, 8, "url", "https://example.com"),
			}},
			want: []domain.StyledRun{run("see "), run("docs", "link", "https://example.com")},
		},
		{
			name: "link from ref",
			block: domain.Block{Text: "ab", Annotations: []domain.Annotation{
				{Type: "link", Ref: "hm://doc/1", Starts: []int{0}, Ends: []int{1}},
			}},
			want: []domain.StyledRun{run("a", "link", "hm://doc/1"), run("b")},
		},
		{
			name: "unknown type without attributes becomes a flag",
			block: domain.Block{Text: "ab", Annotations: []domain.Annotation{
				span("highlight", 0, 1),
			}},
			want: []domain.StyledRun{run("a", "highlight", "true"), run("b")},
		},
		{
			name: "unknown type with ref keeps the ref",
			block: domain.Block{Text: "ab", Annotations: []domain.Annotation{
				{Type: "mention", Ref: "user-1", Starts: []int{1}, Ends: []int{2}},
			}},
			want: []domain.StyledRun{run("a"), run("b", "mention", "user-1")},
		},
		{
			name: "unknown attributes pass through",
			block: domain.Block{Text: "ab", Annotations: []domain.Annotation{
				span("comment", 0, 2, "author", "ann", "thread", "t1"),
			}},
			want: []domain.StyledRun{run("ab", "author", "ann", "thread", "t1")},
		},
		{
			name: "registered mark passes extra attributes through",
			block: domain.Block{Text: "ab", Annotations: []domain.Annotation{
				span("link", 0, 2, "url", "https://x", "title", "X"),
			}},
			want: []domain.StyledRun{run("ab", "link", "https://x", "title", "X")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := inline.Decode(tt.block)
			assert.Equal(t, tt.want, got)
			assertRunInvariants(t, tt.block.Text, got)
		})
	}
}

func TestDecode_ConcurrentSharedCodec(t *testing.T) {
	b := domain.Block{
		Text: "ABCDE",
		Annotations: []domain.Annotation{
			span("strong", 1, 3),
			span("emphasis", 2, 4),
			span("conversation", 0, 5, "conversationId", "c1"),
		},
	}
	want := inline.Decode(b)

	for i := 0; i < 8; i++ {
		t.Run(fmt.Sprintf("worker-%d", i), func(t *testing.T) {
			t.Parallel()
			for n := 0; n < 200; n++ {
				got := inline.Decode(b)
				assertSameRuns(t, want, got)
				text, anns := inline.Encode(got)
				assert.Equal(t, b.Text, text)
				assertSameRuns(t, want, inline.Decode(domain.Block{Text: text, Annotations: anns}))
			}
		})
	}
}

func TestDecode_EmptyText(t *testing.T) {
	got := inline.Decode(domain.Block{Annotations: []domain.Annotation{span("strong", 0, 0)}})
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDecode_Conversations(t *testing.T) {
	b := domain.Block{
		Text: "abcde",
		Annotations: []domain.Annotation{
			span("conversation", 0, 3, "conversationId", "c1"),
			span("conversation", 2, 5, "conversationId", "c2"),
		},
	}

	got := inline.Decode(b)

	require.Len(t, got, 3)
	assert.Equal(t, "ab", got[0].Text)
	assert.Equal(t, domain.List("c1"), got[0].Styles["conversations"])
	assert.Equal(t, "c", got[1].Text)
	assert.Equal(t, []string{"c1", "c2"}, got[1].Styles["conversations"].Items())
	assert.Equal(t, "de", got[2].Text)
	assert.Equal(t, []string{"c2"}, got[2].Styles["conversations"].Items())
}

func TestDecode_CodePointOffsets(t *testing.T) {
	b := domain.Block{
		Text:        "a😀b",
		Annotations: []domain.Annotation{span("strong", 1, 2)},
	}

	got := inline.Decode(b)

	assert.Equal(t, []domain.StyledRun{
		run("a"),
		run("😀", "bold", "true"),
		run("b"),
	}, got)
}

func TestDecode_UTF16Offsets(t *testing.T) {
	codec := inline.New(inline.WithOffsetUnit(inline.UTF16))

	t.Run("surrogate pair counts as two units", func(t *testing.T) {
		got := codec.Decode(domain.Block{
			Text:        "a😀b",
			Annotations: []domain.Annotation{span("strong", 1, 3)},
		})
		assert.Equal(t, []domain.StyledRun{
			run("a"),
			run("😀", "bold", "true"),
			run("b"),
		}, got)
	})

	t.Run("offset inside a pair snaps down", func(t *testing.T) {
		got := codec.Decode(domain.Block{
			Text:        "a😀b",
			Annotations: []domain.Annotation{span("strong", 2, 4)},
		})
		assert.Equal(t, []domain.StyledRun{
			run("a"),
			run("😀b", "bold", "true"),
		}, got)
	})

	t.Run("second pair", func(t *testing.T) {
		got := codec.Decode(domain.Block{
			Text:        "😀😀",
			Annotations: []domain.Annotation{span("emphasis", 2, 4)},
		})
		assert.Equal(t, []domain.StyledRun{
			run("😀"),
			run("😀", "italic", "true"),
		}, got)
	})
}

func TestDecode_DoesNotMutateInput(t *testing.T) {
	b := domain.Block{
		Text: "abcdef",
		Annotations: []domain.Annotation{
			ann("strong", []int{4, 0}, []int{6, 2}),
			span("color", 1, 5, "color", "red"),
		},
	}

	_ = inline.Decode(b)

	assert.Equal(t, []int{4, 0}, b.Annotations[0].Starts)
	assert.Equal(t, []int{6, 2}, b.Annotations[0].Ends)
	assert.Equal(t, map[string]string{"color": "red"}, b.Annotations[1].Attributes)
}

func TestDecode_Deterministic(t *testing.T) {
	b := domain.Block{
		Text: "the quick brown fox",
		Annotations: []domain.Annotation{
			span("comment", 0, 9, "author", "ann", "thread", "t1"),
			span("conversation", 4, 15, "conversationId", "c1"),
			span("conversation", 0, 19, "conversationId", "c2"),
			span("color", 2, 12, "color", "blue"),
			span("strong", 10, 19),
		},
	}

	first := inline.Decode(b)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, inline.Decode(b))
	}
}
