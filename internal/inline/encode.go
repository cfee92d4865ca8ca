package inline

import (
	"strings"

	"hmdoc/internal/domain"
)

// groupKey identifies one output annotation.
type groupKey struct {
	style string
	value string
}

// placement is where one style value of a run lands on the wire.
type placement struct {
	key   groupKey
	typ   string
	attrs map[string]string
}

type spanGroup struct {
	typ    string
	attrs  map[string]string
	starts []int
	ends   []int
}

// add extends the last range when [start, end) continues it.
func (g *spanGroup) add(start, end int) {
	if last := len(g.ends) - 1; last >= 0 && g.ends[last] == start {
		g.ends[last] = end
		return
	}
	g.starts = append(g.starts, start)
	g.ends = append(g.ends, end)
}

// Encode serialises runs back to block text and annotations.
//
// Flags coalesce by style name, value styles by (name, value), and set styles
// fan out into one annotation per identifier. Annotations are ordered by
// first appearance; runs with empty text contribute nothing.
func (c *Codec) Encode(runs []domain.StyledRun) (string, []domain.Annotation) {
	var (
		sb     strings.Builder
		groups = make(map[groupKey]*spanGroup)
		order  []groupKey
		pos    int
	)
	for _, r := range runs {
		sb.WriteString(r.Text)
		width := unitLen(r.Text, c.unit)
		if width == 0 {
			continue
		}
		start, end := pos, pos+width
		pos = end

		for _, style := range r.Styles.Keys() {
			for _, p := range c.placements(style, r.Styles[style]) {
				g, ok := groups[p.key]
				if !ok {
					g = &spanGroup{typ: p.typ, attrs: p.attrs}
					groups[p.key] = g
					order = append(order, p.key)
				}
				g.add(start, end)
			}
		}
	}

	if len(order) == 0 {
		return sb.String(), nil
	}
	annotations := make([]domain.Annotation, 0, len(order))
	for _, k := range order {
		g := groups[k]
		annotations = append(annotations, domain.Annotation{
			Type:       g.typ,
			Starts:     g.starts,
			Ends:       g.ends,
			Attributes: g.attrs,
		})
	}
	return sb.String(), annotations
}

func (c *Codec) placements(style string, v domain.StyleValue) []placement {
	m, known := c.schema.MarkForStyle(style)
	if !known {
		// A style named like a registered annotation type would decode as
		// that mark, so it travels as an untyped attribute.
		typ := style
		if _, clash := c.schema.MarkForType(style); clash {
			typ = ""
		}
		var out []placement
		for _, item := range distinct(v.Items()) {
			out = append(out, placement{
				key:   groupKey{style, item},
				typ:   typ,
				attrs: map[string]string{style: item},
			})
		}
		return out
	}

	switch m.Kind {
	case MarkFlag:
		return []placement{{key: groupKey{style: style}, typ: m.Type}}
	case MarkValue:
		val := v.Text()
		if val == "" {
			return nil
		}
		return []placement{{
			key:   groupKey{style, val},
			typ:   m.Type,
			attrs: map[string]string{m.Attribute: val},
		}}
	default:
		var out []placement
		for _, id := range distinct(v.Items()) {
			if id == "" {
				continue
			}
			out = append(out, placement{
				key:   groupKey{style, id},
				typ:   m.Type,
				attrs: map[string]string{m.Attribute: id},
			})
		}
		return out
	}
}

func distinct(items []string) []string {
	var out []string
	for _, it := range items {
		if !contains(out, it) {
			out = append(out, it)
		}
	}
	return out
}
