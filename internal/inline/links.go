package inline

import "hmdoc/internal/domain"

// linkTypes are the annotation types that point at another resource.
var linkTypes = map[string]bool{
	"link":         true,
	"embed":        true,
	"inline-embed": true,
}

// Links returns the distinct targets a block points at, in order of
// appearance: the block's own ref first, then every link or embed annotation
// with a url attribute or a ref. Annotations without a target are skipped.
func Links(b domain.Block) []string {
	var out []string
	add := func(target string) {
		if target != "" && !contains(out, target) {
			out = append(out, target)
		}
	}
	add(b.Ref)
	for _, a := range b.Annotations {
		if !linkTypes[a.Type] {
			continue
		}
		if url := a.Attributes["url"]; url != "" {
			add(url)
			continue
		}
		add(a.Ref)
	}
	return out
}

// TreeLinks walks nodes depth first and collects the links of every block.
func TreeLinks(nodes []domain.BlockNode) []string {
	var out []string
	var walk func([]domain.BlockNode)
	walk = func(ns []domain.BlockNode) {
		for _, n := range ns {
			for _, l := range Links(n.Block) {
				if !contains(out, l) {
					out = append(out, l)
				}
			}
			walk(n.Children)
		}
	}
	walk(nodes)
	return out
}
