package mcpclient

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "absent",
			raw:  `null`,
			want: "",
		},
		{
			name: "text fragments",
			raw:  `{"content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}`,
			want: "a\nb",
		},
		{
			name: "fragments are trimmed and empty ones dropped",
			raw:  `{"content":[{"type":"text","text":"  a \n"},{"type":"text","text":""},{"type":"image","data":"xx"},{"type":"text","text":"b"}]}`,
			want: "a\nb",
		},
		{
			name: "content list without text fragments falls through",
			raw:  `{"content":[{"type":"image","data":"xx"}],"message":"m"}`,
			want: "m",
		},
		{
			name: "string content",
			raw:  `{"content":"hello world","other":1}`,
			want: "hello world",
		},
		{
			name: "message",
			raw:  `{"message":"x"}`,
			want: "x",
		},
		{
			name: "non-string message",
			raw:  `{"message":{"code":3}}`,
			want: `{"code":3}`,
		},
		{
			name: "other object is pretty printed",
			raw:  `{"b":1,"a":"<x>"}`,
			want: "{\n  \"a\": \"<x>\",\n  \"b\": 1\n}",
		},
		{
			name: "list of numbers",
			raw:  `[1,2,3]`,
			want: "1\n2\n3",
		},
		{
			name: "mixed list",
			raw:  `["a",1.5,true,{"k":"v"}]`,
			want: "a\n1.5\ntrue\n{\"k\":\"v\"}",
		},
		{
			name: "string scalar",
			raw:  `"plain"`,
			want: "plain",
		},
		{
			name: "number scalar",
			raw:  `42`,
			want: "42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := decode(t, tt.raw)
			res := Normalize(raw)
			assert.Equal(t, tt.want, res.Content)
			assert.Equal(t, raw, res.Raw)
			assert.True(t, res.Success)
		})
	}
}

func TestNormalizeTypedValues(t *testing.T) {
	type fragment struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	raw := struct {
		Content []fragment `json:"content"`
	}{Content: []fragment{{Type: "text", Text: "typed"}}}

	res := Normalize(raw)
	assert.Equal(t, "typed", res.Content)
	assert.Equal(t, raw, res.Raw)

	assert.Equal(t, "1\n2", Normalize([]int{1, 2}).Content)
}

func TestNormalizeListFallback(t *testing.T) {
	// channels cannot be encoded, so the whole list is printed once
	ch := make(chan int)
	res := Normalize([]any{map[string]any{"c": ch}})
	assert.NotEmpty(t, res.Content)
}

func TestResultForIsError(t *testing.T) {
	raw := decode(t, `{"content":[{"type":"text","text":"file not found"}],"isError":true}`)

	res, err := resultFor("read_file", raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvocation)
	assert.False(t, res.Success)
	assert.Equal(t, "file not found", res.Content)
	assert.Equal(t, "file not found", res.Error)
	assert.Equal(t, "read_file", res.Tool)
}
