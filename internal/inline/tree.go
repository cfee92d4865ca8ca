package inline

import "hmdoc/internal/domain"

// BlockTypeParagraph is the editor type for plain text blocks.
const BlockTypeParagraph = "paragraph"

// propRef is the editor prop that carries Block.Ref.
const propRef = "ref"

// editorType maps a wire block type to the editor's block type.
func editorType(t string) string {
	switch t {
	case "", "section", "statement", BlockTypeParagraph:
		return BlockTypeParagraph
	default:
		return t
	}
}

// DecodeNode converts one block and its subtree to editor form.
func (c *Codec) DecodeNode(n domain.BlockNode) domain.EditorBlock {
	eb := domain.EditorBlock{
		ID:       n.Block.ID,
		Type:     editorType(n.Block.Type),
		Content:  c.Decode(n.Block),
		Children: c.DecodeTree(n.Children),
	}
	if len(n.Block.Attributes) > 0 || n.Block.Ref != "" {
		eb.Props = make(map[string]string, len(n.Block.Attributes)+1)
		for k, v := range n.Block.Attributes {
			eb.Props[k] = v
		}
		if n.Block.Ref != "" {
			eb.Props[propRef] = n.Block.Ref
		}
	}
	return eb
}

// DecodeTree converts a list of sibling blocks. The result is never nil.
func (c *Codec) DecodeTree(nodes []domain.BlockNode) []domain.EditorBlock {
	out := make([]domain.EditorBlock, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, c.DecodeNode(n))
	}
	return out
}

// EncodeNode converts an editor block and its subtree back to wire form.
func (c *Codec) EncodeNode(eb domain.EditorBlock) domain.BlockNode {
	text, annotations := c.Encode(eb.Content)
	b := domain.Block{
		ID:          eb.ID,
		Type:        eb.Type,
		Text:        text,
		Annotations: annotations,
	}
	if b.Type == "" {
		b.Type = BlockTypeParagraph
	}
	for k, v := range eb.Props {
		if k == propRef {
			b.Ref = v
			continue
		}
		if b.Attributes == nil {
			b.Attributes = make(map[string]string, len(eb.Props))
		}
		b.Attributes[k] = v
	}
	return domain.BlockNode{Block: b, Children: c.EncodeTree(eb.Children)}
}

// EncodeTree converts a list of sibling editor blocks.
func (c *Codec) EncodeTree(blocks []domain.EditorBlock) []domain.BlockNode {
	if len(blocks) == 0 {
		return nil
	}
	out := make([]domain.BlockNode, 0, len(blocks))
	for _, eb := range blocks {
		out = append(out, c.EncodeNode(eb))
	}
	return out
}
