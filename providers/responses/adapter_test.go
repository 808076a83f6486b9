// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"educhat/platform/gateway"
)

type mockHTTPClient struct {
	DoFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.DoFunc(req)
}

func testConfig() gateway.ModelConfig {
	return gateway.ModelConfig{
		ID:      "o4-mini",
		Vendor:  gateway.VendorOpenAIResponses,
		Model:   "o4-mini",
		BaseURL: "https://api.openai.com/v1",
		APIKey:  "test-key",
		Settings: gateway.Settings{
			ReasoningEffort: "medium",
		},
	}
}

func okResponse(v any) *http.Response {
	body, _ := json.Marshal(v)
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Header:     make(http.Header),
	}
}

func completedResponse() *http.Response {
	return okResponse(map[string]any{
		"id":         "resp_abc",
		"model":      "o4-mini-2025-04-16",
		"status":     "completed",
		"created_at": 1234567890,
		"output": []map[string]any{
			{"type": "reasoning", "content": []any{}},
			{
				"type": "message",
				"role": "assistant",
				"content": []map[string]any{
					{"type": "output_text", "text": "the answer "},
					{"type": "output_text", "text": "is 42"},
				},
			},
		},
		"usage": map[string]int{"input_tokens": 30, "output_tokens": 12, "total_tokens": 42},
	})
}

func TestBuildRequestReshapesInput(t *testing.T) {
	temp := 0.5
	req := gateway.Request{
		Messages: []gateway.Message{
			{Role: gateway.RoleDeveloper, Content: gateway.TextContent("stay factual")},
			{Role: gateway.RoleUser, Content: gateway.PartsContent([]gateway.Part{
				{Type: gateway.PartText, Text: "describe"},
				{Type: gateway.PartImage, Image: "data:image/png;base64,AAAA"},
			})},
			{Role: gateway.RoleAssistant, Content: gateway.TextContent("a photo of")},
			{Role: gateway.RoleAssistant, Content: gateway.Content{}}, // null content dropped
			{Role: "tool", Content: gateway.TextContent("lookup result")},
		},
		Temperature: &temp,
		MaxTokens:   256,
	}

	wire := buildRequest("o4-mini", "low", req, true)

	assert.Equal(t, "o4-mini", wire.Model)
	assert.True(t, wire.Stream)
	assert.Equal(t, 256, wire.MaxOutputTokens)
	require.NotNil(t, wire.Reasoning)
	assert.Equal(t, "low", wire.Reasoning.Effort)

	require.Len(t, wire.Input, 3, "absent-content and non-canonical-role messages must be dropped")

	assert.Equal(t, gateway.RoleDeveloper, wire.Input[0].Role)
	assert.Equal(t, []inputPart{{Type: "input_text", Text: "stay factual"}}, wire.Input[0].Content)

	assert.Equal(t, []inputPart{
		{Type: "input_text", Text: "describe"},
		{Type: "input_image", ImageURL: "data:image/png;base64,AAAA"},
	}, wire.Input[1].Content)

	// Prior assistant turns are output, not input.
	assert.Equal(t, []inputPart{{Type: "output_text", Text: "a photo of"}}, wire.Input[2].Content)
}

func TestBuildRequestOmitsReasoningWhenUnset(t *testing.T) {
	wire := buildRequest("o4-mini", "", gateway.Request{}, false)
	assert.Nil(t, wire.Reasoning)
}

func TestCompleteMapsResponse(t *testing.T) {
	var captured *http.Request

	adapter, err := New(testConfig())
	require.NoError(t, err)
	adapter.SetHTTPClient(&mockHTTPClient{DoFunc: func(req *http.Request) (*http.Response, error) {
		captured = req
		return completedResponse(), nil
	}})

	completion, err := adapter.Complete(context.Background(), gateway.Request{
		Messages: []gateway.Message{{Role: gateway.RoleUser, Content: gateway.TextContent("what is the answer?")}},
	})
	require.NoError(t, err)

	assert.Equal(t, "https://api.openai.com/v1/responses", captured.URL.String())
	assert.Equal(t, "Bearer test-key", captured.Header.Get("Authorization"))

	assert.Equal(t, "resp_abc", completion.ID)
	require.Len(t, completion.Choices, 1)
	assert.Equal(t, "the answer is 42", completion.Choices[0].Message.Content)
	assert.Equal(t, "stop", completion.Choices[0].FinishReason)
	assert.Equal(t, 30, completion.Usage.PromptTokens)
	assert.Equal(t, 12, completion.Usage.CompletionTokens)
	assert.Equal(t, 42, completion.Usage.TotalTokens)
}

func TestCompleteIncompleteStatusMapsToLength(t *testing.T) {
	adapter, err := New(testConfig())
	require.NoError(t, err)
	adapter.SetHTTPClient(&mockHTTPClient{DoFunc: func(req *http.Request) (*http.Response, error) {
		return okResponse(map[string]any{
			"id":     "resp_cut",
			"status": "incomplete",
			"output": []map[string]any{
				{"type": "message", "role": "assistant", "content": []map[string]any{
					{"type": "output_text", "text": "truncat"},
				}},
			},
		}), nil
	}})

	completion, err := adapter.Complete(context.Background(), gateway.Request{})
	require.NoError(t, err)
	assert.Equal(t, "length", completion.Choices[0].FinishReason)
}

func TestCompleteStreamTranslatesEvents(t *testing.T) {
	body := strings.Join([]string{
		`event: response.created`,
		`data: {"type":"response.created","response":{"id":"resp_s1"}}`,
		``,
		`event: response.output_text.delta`,
		`data: {"type":"response.output_text.delta","delta":"hel"}`,
		``,
		`data: {"type":"response.output_text.delta","delta":"lo"}`,
		``,
		`data: {"type":"response.completed","response":{"id":"resp_s1","model":"o4-mini-2025-04-16","usage":{"input_tokens":8,"output_tokens":2,"total_tokens":10}}}`,
		``,
	}, "\n")

	adapter, err := New(testConfig())
	require.NoError(t, err)
	adapter.SetHTTPClient(&mockHTTPClient{DoFunc: func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
		}, nil
	}})

	stream, err := adapter.CompleteStream(context.Background(), gateway.Request{Stream: true})
	require.NoError(t, err)
	defer stream.Close()

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "hel", first.Choices[0].Delta.Content)

	second, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "lo", second.Choices[0].Delta.Content)

	terminal, err := stream.Recv()
	require.NoError(t, err)
	assert.True(t, terminal.Terminal())
	assert.Equal(t, "resp_s1", terminal.ID)
	assert.Equal(t, "o4-mini-2025-04-16", terminal.Model)
	assert.Equal(t, 10, terminal.Usage.TotalTokens)

	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestCompleteStreamOmittedUsageLeavesChunkUsageNil(t *testing.T) {
	body := strings.Join([]string{
		`data: {"type":"response.output_text.delta","delta":"hello"}`,
		``,
		`data: {"type":"response.completed","response":{"id":"resp_nu","model":"o4-mini-2025-04-16"}}`,
		``,
	}, "\n")

	adapter, err := New(testConfig())
	require.NoError(t, err)
	adapter.SetHTTPClient(&mockHTTPClient{DoFunc: func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
		}, nil
	}})

	stream, err := adapter.CompleteStream(context.Background(), gateway.Request{Stream: true})
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Recv()
	require.NoError(t, err)

	final, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "resp_nu", final.ID)
	assert.Nil(t, final.Usage, "completed event without usage must not fabricate a zero tuple")
	assert.False(t, final.Terminal())
}

type fieldEstimator struct{}

func (fieldEstimator) EstimateTokens(text string) int {
	return len(strings.Fields(text))
}

func TestCompleteStreamOmittedUsageFallsBackToEstimate(t *testing.T) {
	body := strings.Join([]string{
		`data: {"type":"response.output_text.delta","delta":"one two "}`,
		``,
		`data: {"type":"response.output_text.delta","delta":"three four"}`,
		``,
		`data: {"type":"response.completed","response":{"id":"resp_nu","model":"o4-mini-2025-04-16"}}`,
		``,
	}, "\n")

	adapter, err := New(testConfig())
	require.NoError(t, err)
	adapter.SetHTTPClient(&mockHTTPClient{DoFunc: func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
		}, nil
	}})

	stream, err := adapter.CompleteStream(context.Background(), gateway.Request{Stream: true})
	require.NoError(t, err)

	relay := gateway.NewRelay(fieldEstimator{}, nil)
	var out bytes.Buffer
	usage, err := relay.Run(context.Background(), "req-nu", stream, &out, "count these three words")

	require.NoError(t, err)
	assert.True(t, usage.Estimated, "omitted vendor usage must be estimated, not billed as zero")
	assert.Equal(t, 4, usage.PromptTokens)
	assert.Equal(t, 4, usage.CompletionTokens)
	assert.Equal(t, 8, usage.TotalTokens)

	// The relay appends its own terminal line carrying the estimate,
	// reusing the vendor's response id.
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	var terminal gateway.Chunk
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &terminal))
	assert.True(t, terminal.Terminal())
	assert.Equal(t, "resp_nu", terminal.ID)
	assert.Equal(t, 8, terminal.Usage.TotalTokens)
}

func TestCompleteStreamFailureEvent(t *testing.T) {
	body := `data: {"type":"response.failed","response":{"id":"resp_f"}}` + "\n"

	adapter, err := New(testConfig())
	require.NoError(t, err)
	adapter.SetHTTPClient(&mockHTTPClient{DoFunc: func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
		}, nil
	}})

	stream, err := adapter.CompleteStream(context.Background(), gateway.Request{Stream: true})
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Recv()
	var vendorErr *gateway.VendorError
	require.ErrorAs(t, err, &vendorErr)
}

func TestCompleteVendorError(t *testing.T) {
	adapter, err := New(testConfig())
	require.NoError(t, err)
	adapter.SetHTTPClient(&mockHTTPClient{DoFunc: func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusBadRequest,
			Status:     "400 Bad Request",
			Body:       io.NopCloser(strings.NewReader(`{"error":{"message":"unsupported parameter"}}`)),
			Header:     make(http.Header),
		}, nil
	}})

	_, err = adapter.Complete(context.Background(), gateway.Request{})
	var vendorErr *gateway.VendorError
	require.ErrorAs(t, err, &vendorErr)
	assert.Equal(t, gateway.VendorOpenAIResponses, vendorErr.Vendor)
}
