package acceptance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/chapterforge/internal/agent"
)

func request() Request {
	return Request{
		Genre:    "Fantasy",
		Title:    "Kindling",
		Summary:  "Ash meets Wren.",
		Criteria: "Include a twist",
		Content:  "Ash met Wren. They talked.",
	}
}

func TestCheck_Failing(t *testing.T) {
	mock := agent.NewMockClient().On("Include a twist", "```json\n{\"passed\": false, \"feedback\": \" no twist present \"}\n```")
	v := New(agent.NewGateway(mock), "judge")

	verdict, err := v.Check(context.Background(), request())
	require.NoError(t, err)
	assert.False(t, verdict.Passed)
	assert.Equal(t, "no twist present", verdict.Feedback)

	call, _ := mock.LastCall()
	assert.True(t, call.JSON)
	assert.Same(t, agent.VerdictSchema, call.Schema)
	assert.Contains(t, call.User, "Ash met Wren. They talked.")

	res := v.Result(verdict)
	assert.False(t, res.Passed)
	assert.False(t, res.Accepted)
	assert.False(t, res.Timestamp.IsZero())
}

func TestCheck_NoCriteria(t *testing.T) {
	mock := agent.NewMockClient()
	req := request()
	req.Criteria = "  \n"

	_, err := New(agent.NewGateway(mock), "").Check(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoCriteria)
	assert.Empty(t, mock.Calls())
}

func TestCheck_MalformedVerdict(t *testing.T) {
	mock := agent.NewMockClient().Default("looks fine to me")
	_, err := New(agent.NewGateway(mock), "").Check(context.Background(), request())
	assert.ErrorIs(t, err, agent.ErrInvalidOutput)
}
