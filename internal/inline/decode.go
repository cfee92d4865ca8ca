package inline

import (
	"sort"

	"hmdoc/internal/domain"
)

// span is one normalised, non-empty range of annotation ann.
type span struct {
	start, end int
	ann        int
}

// Decode splits b.Text into runs of constant style.
//
// Offsets outside the text are clamped, reversed ranges are ignored and a
// [0, 0) range covers the whole block. The concatenated run texts always
// equal b.Text, and no two adjacent runs carry equal styles.
func (c *Codec) Decode(b domain.Block) []domain.StyledRun {
	idx := newTextIndex(b.Text, c.unit)
	n := idx.Len()
	if n == 0 {
		return []domain.StyledRun{}
	}

	spans := normalizeSpans(b.Annotations, idx)
	contribs := make([]domain.Styles, len(b.Annotations))
	for _, sp := range spans {
		if contribs[sp.ann] == nil {
			contribs[sp.ann] = c.schema.contribution(b.Annotations[sp.ann])
		}
	}

	opens := make(map[int][]int)
	closes := make(map[int][]int)
	cuts := []int{0, n}
	for _, sp := range spans {
		opens[sp.start] = append(opens[sp.start], sp.ann)
		closes[sp.end] = append(closes[sp.end], sp.ann)
		cuts = append(cuts, sp.start, sp.end)
	}
	cuts = uniqueSorted(cuts)

	var (
		runs   []domain.StyledRun
		bounds [][2]int
		active = make([]int, len(b.Annotations))
	)
	for k := 0; k+1 < len(cuts); k++ {
		a, z := cuts[k], cuts[k+1]
		for _, i := range closes[a] {
			active[i]--
		}
		for _, i := range opens[a] {
			active[i]++
		}

		var covering []domain.Styles
		for i, count := range active {
			if count > 0 {
				covering = append(covering, contribs[i])
			}
		}
		styles := c.Merge(covering...)

		if last := len(runs) - 1; last >= 0 && runs[last].Styles.Equal(styles) {
			bounds[last][1] = z
			continue
		}
		runs = append(runs, domain.StyledRun{Type: domain.RunTypeText, Styles: styles})
		bounds = append(bounds, [2]int{a, z})
	}

	for i := range runs {
		runs[i].Text = idx.slice(bounds[i][0], bounds[i][1])
	}
	return runs
}

// normalizeSpans clamps every range and drops the empty ones.
func normalizeSpans(annotations []domain.Annotation, idx textIndex) []span {
	n := idx.Len()
	var spans []span
	for ai, a := range annotations {
		count := len(a.Starts)
		if len(a.Ends) < count {
			count = len(a.Ends)
		}
		for i := 0; i < count; i++ {
			s, e := a.Starts[i], a.Ends[i]
			if s == 0 && e == 0 {
				e = n
			}
			s, e = idx.clamp(s), idx.clamp(e)
			if s >= e {
				continue
			}
			spans = append(spans, span{start: s, end: e, ann: ai})
		}
	}
	return spans
}

func uniqueSorted(xs []int) []int {
	sort.Ints(xs)
	out := xs[:0]
	for _, x := range xs {
		if len(out) == 0 || x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}
