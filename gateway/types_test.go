// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, c Content)
	}{
		{
			name:  "plain string",
			input: `"hello"`,
			check: func(t *testing.T, c Content) {
				assert.False(t, c.Empty())
				assert.Equal(t, "hello", c.PlainText())
			},
		},
		{
			name:  "null content is empty",
			input: `null`,
			check: func(t *testing.T, c Content) {
				assert.True(t, c.Empty())
			},
		},
		{
			name:  "empty string is empty",
			input: `""`,
			check: func(t *testing.T, c Content) {
				assert.True(t, c.Empty())
			},
		},
		{
			name:  "part list",
			input: `[{"type":"text","text":"look at"},{"type":"image","image":"data:..."},{"type":"text","text":"this"}]`,
			check: func(t *testing.T, c Content) {
				assert.False(t, c.Empty())
				assert.Len(t, c.Parts, 3)
				assert.Equal(t, "look at this", c.PlainText())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Content
			require.NoError(t, json.Unmarshal([]byte(tt.input), &c))
			tt.check(t, c)
		})
	}
}

func TestContentUnmarshalRejectsObjects(t *testing.T) {
	var c Content
	assert.Error(t, json.Unmarshal([]byte(`{"text":"x"}`), &c))
}

func TestContentMarshalRoundTrip(t *testing.T) {
	original := PartsContent([]Part{
		{Type: PartText, Text: "caption"},
		{Type: PartImage, Image: "data:image/png;base64,AAAA"},
	})

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Content
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original.Parts, decoded.Parts)
}

func TestMessageJSONShape(t *testing.T) {
	msg := Message{Role: RoleUser, Content: TextContent("hi")}
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":"hi"}`, string(data))
}

func TestRequestPromptTexts(t *testing.T) {
	req := Request{Messages: []Message{
		{Role: RoleSystem, Content: TextContent("be brief")},
		{Role: RoleUser, Content: PartsContent([]Part{
			{Type: PartText, Text: "what is"},
			{Type: PartImage, Image: "ignored"},
			{Type: PartText, Text: "this"},
		})},
		{Role: RoleAssistant, Content: Content{}}, // absent content skipped
	}}

	assert.Equal(t, []string{"be brief", "what is this"}, req.PromptTexts())
}

func TestChunkTerminal(t *testing.T) {
	delta := &Chunk{Choices: []ChunkChoice{{Delta: Delta{Content: "x"}}}}
	assert.False(t, delta.Terminal())

	terminal := &Chunk{Choices: []ChunkChoice{}, Usage: &Usage{TotalTokens: 5}}
	assert.True(t, terminal.Terminal())

	withBoth := &Chunk{Choices: []ChunkChoice{{}}, Usage: &Usage{}}
	assert.False(t, withBoth.Terminal())
}
