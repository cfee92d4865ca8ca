package inline

import "hmdoc/internal/domain"

// Merge combines the style sets of every annotation covering one run.
// sets must be in annotation input order:
//   - flags are present if any set has them
//   - set styles and list values are unioned in first-seen order
//   - other scalars keep the value from the earliest set
func (c *Codec) Merge(sets ...domain.Styles) domain.Styles {
	out := domain.Styles{}
	for _, set := range sets {
		for k, v := range set {
			prev, seen := out[k]
			m, known := c.schema.MarkForStyle(k)
			switch {
			case known && m.Kind == MarkFlag:
				out[k] = domain.Scalar("true")
			case (known && m.Kind == MarkSet) || v.IsList() || (seen && prev.IsList()):
				out[k] = union(prev, seen, v)
			case !seen:
				out[k] = v
			}
		}
	}
	return out
}

// MergeAttributes merges raw wire attribute maps, as found on annotations.
func (c *Codec) MergeAttributes(sets ...map[string]string) domain.Styles {
	styles := make([]domain.Styles, len(sets))
	for i, attrs := range sets {
		s := make(domain.Styles, len(attrs))
		for k, v := range attrs {
			s[k] = c.schema.attributeValue(k, v)
		}
		styles[i] = s
	}
	return c.Merge(styles...)
}

func union(prev domain.StyleValue, seen bool, next domain.StyleValue) domain.StyleValue {
	var items []string
	if seen {
		items = prev.Items()
	}
	for _, it := range next.Items() {
		if !contains(items, it) {
			items = append(items, it)
		}
	}
	return domain.List(items...)
}

func contains(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}
