// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package openai

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseBody(events ...string) io.ReadCloser {
	var builder strings.Builder
	for _, event := range events {
		builder.WriteString("data: ")
		builder.WriteString(event)
		builder.WriteString("\n\n")
	}
	return io.NopCloser(strings.NewReader(builder.String()))
}

func TestStreamRecv(t *testing.T) {
	stream := NewStream(sseBody(
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":"hel"},"finish_reason":null}]}`,
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","model":"gpt-4o","choices":[{"index":0,"delta":{"content":"lo"},"finish_reason":"stop"}]}`,
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","model":"gpt-4o","choices":[],"usage":{"prompt_tokens":9,"completion_tokens":2,"total_tokens":11}}`,
		`[DONE]`,
	))
	defer stream.Close()

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "hel", first.Choices[0].Delta.Content)
	assert.Equal(t, "assistant", first.Choices[0].Delta.Role)

	second, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "lo", second.Choices[0].Delta.Content)
	require.NotNil(t, second.Choices[0].FinishReason)
	assert.Equal(t, "stop", *second.Choices[0].FinishReason)

	terminal, err := stream.Recv()
	require.NoError(t, err)
	assert.True(t, terminal.Terminal())
	assert.Equal(t, 11, terminal.Usage.TotalTokens)

	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)

	// Recv after EOF stays EOF.
	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestStreamSkipsNoise(t *testing.T) {
	body := io.NopCloser(strings.NewReader(strings.Join([]string{
		": keep-alive comment",
		"",
		"event: message",
		"data: not json at all",
		`data: {"id":"c","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"ok"},"finish_reason":null}]}`,
		"data: [DONE]",
		"",
	}, "\n")))

	stream := NewStream(body)
	defer stream.Close()

	chunk, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "ok", chunk.Choices[0].Delta.Content)

	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestStreamEndsWithoutDone(t *testing.T) {
	// A body truncated before [DONE] still terminates cleanly; the
	// relay's estimator covers the missing usage.
	stream := NewStream(sseBody(
		`{"id":"c","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"part"},"finish_reason":null}]}`,
	))
	defer stream.Close()

	_, err := stream.Recv()
	require.NoError(t, err)
	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestStreamCloseIdempotent(t *testing.T) {
	stream := NewStream(sseBody(`[DONE]`))
	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())
}
