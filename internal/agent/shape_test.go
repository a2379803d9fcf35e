package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeList_AcceptedShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"bare array", `[{"title":"A"},{"title":"B"}]`, 2},
		{"chapters key", `{"chapters":[{"title":"A"}]}`, 1},
		{"outline key", `{"outline":[{"title":"A"},{"title":"B"},{"title":"C"}]}`, 3},
		{"preferred key beside others", `{"note":"x","chapters":[{"title":"A"}]}`, 1},
		{"single unknown key", `{"items":[{"title":"A"},{"title":"B"}]}`, 2},
		{"code fence", "```json\n[{\"title\":\"A\"}]\n```", 1},
		{"prose around json", "Here is your outline:\n{\"chapters\":[{\"title\":\"A [draft]\"}]}\nEnjoy!", 1},
		{"empty array", `[]`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := NormalizeList(tt.raw, "chapters", "outline")
			require.NoError(t, err)
			assert.Len(t, items, tt.want)
		})
	}
}

func TestNormalizeList_Rejected(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind ErrorKind
	}{
		{"multi key object without list", `{"a":1,"b":2}`, KindShape},
		{"single key non array", `{"chapters":5}`, KindShape},
		{"number", `42`, KindShape},
		{"string", `"just text"`, KindShape},
		{"plain prose", `I could not write an outline.`, KindMalformed},
		{"truncated", `[{"title":"A"},`, KindMalformed},
		{"blank", "   ", KindEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeList(tt.raw, "chapters", "outline")
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			if tt.kind != KindEmpty {
				assert.True(t, errors.Is(err, ErrInvalidOutput))
			}
		})
	}
}

func TestDecodeObject(t *testing.T) {
	var v struct {
		Passed   bool   `json:"passed"`
		Feedback string `json:"feedback"`
	}
	require.NoError(t, DecodeObject("```json\n{\"passed\": false, \"feedback\": \"no twist present\"}\n```", &v))
	assert.False(t, v.Passed)
	assert.Equal(t, "no twist present", v.Feedback)

	err := DecodeObject(`[1,2]`, &v)
	assert.Equal(t, KindShape, KindOf(err))
	err = DecodeObject(`{"passed": maybe}`, &v)
	assert.Equal(t, KindMalformed, KindOf(err))
}

func TestCleanJSON_IgnoresBracketsInStrings(t *testing.T) {
	got := CleanJSON(`noise {"a":"}{][","b":[1]} trailing`)
	assert.Equal(t, `{"a":"}{][","b":[1]}`, got)
}
