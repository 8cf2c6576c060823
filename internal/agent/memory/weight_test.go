package memory

import (
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textOf(n int) string { return strings.Repeat("字", n) }

func weighted(ws ...int) []*schema.Message {
	out := make([]*schema.Message, len(ws))
	for i, w := range ws {
		role := schema.Assistant
		if i == 0 {
			role = schema.User
		}
		out[i] = &schema.Message{Role: role, Content: textOf(w)}
	}
	return out
}

func weightsOf(msgs []*schema.Message) []int {
	out := make([]int, len(msgs))
	for i, m := range msgs {
		out[i] = Weight(m)
	}
	return out
}

func TestWeight(t *testing.T) {
	assert.Equal(t, 0, Weight(nil))
	assert.Equal(t, 7, Weight(schema.UserMessage("你好hello")))
	callOnly := &schema.Message{Role: schema.Assistant, ToolCalls: []schema.ToolCall{{ID: "c1", Function: schema.FunctionCall{Name: "searchImage", Arguments: `{"query":"cat"}`}}}}
	assert.Equal(t, 0, Weight(callOnly))
	result := schema.ToolMessage("https://a,https://b", "c1")
	assert.Equal(t, 19, Weight(result))
}

func TestBoundHistory_UnderBudgetIsIdentity(t *testing.T) {
	history := weighted(10, 20, 30)
	got := BoundHistory(history, 60)
	require.Len(t, got, 3)
	for i := range history {
		assert.Same(t, history[i], got[i])
	}
	assert.Nil(t, BoundHistory(nil, 10))
}

func TestBoundHistory_Idempotent(t *testing.T) {
	history := weighted(50, 300, 200, 100, 400)
	once := BoundHistory(history, 600)
	twice := BoundHistory(once, 600)
	assert.Equal(t, weightsOf(once), weightsOf(twice))
	assert.LessOrEqual(t, TotalWeight(once), 600)
}

func TestBoundHistory_AnchorAndNewestSuffix(t *testing.T) {
	// 从最新往前：500000 放得下，下一条 400000 超出，停止
	history := weighted(50, 400000, 400000, 500000)
	got := BoundHistory(history, DefaultBudget)
	assert.Equal(t, []int{50, 500000}, weightsOf(got))
	assert.Same(t, history[0], got[0])
	assert.Same(t, history[3], got[1])
}

func TestBoundHistory_StopsAtFirstOverflow(t *testing.T) {
	// 100 放不下后即使更旧的 10 放得下也不再保留
	history := weighted(5, 10, 100, 40, 30)
	got := BoundHistory(history, 80)
	assert.Equal(t, []int{5, 40, 30}, weightsOf(got))
}

func TestBoundHistory_OrderPreservedSubsequence(t *testing.T) {
	history := weighted(7, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	got := BoundHistory(history, 30)
	assert.LessOrEqual(t, TotalWeight(got), 30)
	assert.Same(t, history[0], got[0])
	j := 0
	for _, m := range got {
		for j < len(history) && history[j] != m {
			j++
		}
		require.Less(t, j, len(history), "result must be a subsequence of the input")
	}
	assert.Equal(t, []int{7, 8, 9}, weightsOf(got))
}

func TestBoundHistory_ToolCallOnlyMessagesAreFree(t *testing.T) {
	callOnly := &schema.Message{Role: schema.Assistant, ToolCalls: []schema.ToolCall{{ID: "c1"}}}
	history := []*schema.Message{
		schema.UserMessage(textOf(10)),
		schema.AssistantMessage(textOf(100), nil),
		callOnly,
		schema.ToolMessage(textOf(20), "c1"),
	}
	got := BoundHistory(history, 40)
	require.Len(t, got, 3)
	assert.Same(t, callOnly, got[1])
}

func TestDropOrphanToolResults(t *testing.T) {
	call := &schema.Message{Role: schema.Assistant, ToolCalls: []schema.ToolCall{{ID: "c2"}}}
	history := []*schema.Message{
		schema.UserMessage("hi"),
		schema.ToolMessage("orphan", "c1"),
		call,
		schema.ToolMessage("paired", "c2"),
	}
	got := DropOrphanToolResults(history)
	require.Len(t, got, 3)
	assert.Equal(t, "paired", got[2].Content)
	assert.Len(t, history, 4)
}
