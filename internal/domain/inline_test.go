package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hmdoc/internal/domain"
)

func TestStyledRun_MarshalJSON(t *testing.T) {
	r := domain.StyledRun{
		Type: domain.RunTypeText,
		Text: "hi",
		Styles: domain.Styles{
			"bold":          domain.Scalar("true"),
			"conversations": domain.List("c1", "c2"),
			"tags":          domain.List(),
		},
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"text","text":"hi","styles":{"bold":"true","conversations":["c1","c2"],"tags":[]}}`, string(data))
}

func TestStyles_UnmarshalJSON(t *testing.T) {
	var s domain.Styles
	err := json.Unmarshal([]byte(`{"bold":true,"italic":false,"code":null,"link":"https://x","conversations":["a","b"],"level":2}`), &s)
	require.NoError(t, err)

	assert.Equal(t, domain.Styles{
		"bold":          domain.Scalar("true"),
		"link":          domain.Scalar("https://x"),
		"conversations": domain.List("a", "b"),
		"level":         domain.Scalar("2"),
	}, s)
}

func TestStyles_UnmarshalJSON_RejectsBadList(t *testing.T) {
	var s domain.Styles
	err := json.Unmarshal([]byte(`{"conversations":[1,2]}`), &s)
	assert.Error(t, err)
}

func TestStyleValue_Equal(t *testing.T) {
	assert.True(t, domain.Scalar("a").Equal(domain.Scalar("a")))
	assert.False(t, domain.Scalar("a").Equal(domain.List("a")))
	assert.True(t, domain.List("a", "b").Equal(domain.List("b", "a")))
	assert.False(t, domain.List("a").Equal(domain.List("a", "b")))
	assert.Equal(t, "a", domain.List("a", "b").Text())
	assert.Equal(t, []string{"x"}, domain.Scalar("x").Items())
}

func TestBlockNode_JSONShape(t *testing.T) {
	var n domain.BlockNode
	err := json.Unmarshal([]byte(`{
		"block": {"id":"b1","text":"ABCDE","annotations":[{"type":"strong","starts":[1],"ends":[3]}]},
		"children": [{"block":{"id":"b2","text":""}}]
	}`), &n)
	require.NoError(t, err)

	assert.Equal(t, "b1", n.Block.ID)
	require.Len(t, n.Block.Annotations, 1)
	assert.Equal(t, []int{1}, n.Block.Annotations[0].Starts)
	require.Len(t, n.Children, 1)
	assert.Equal(t, "b2", n.Children[0].Block.ID)
}
