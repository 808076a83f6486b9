// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// textAdapter supports completions only.
type textAdapter struct {
	modelID string
	calls   int
}

func (a *textAdapter) Vendor() VendorType { return VendorOpenAI }
func (a *textAdapter) ModelID() string    { return a.modelID }

func (a *textAdapter) Complete(ctx context.Context, req Request) (*Completion, error) {
	a.calls++
	return &Completion{ID: "cmpl-1", Model: a.modelID}, nil
}

func (a *textAdapter) CompleteStream(ctx context.Context, req Request) (ChunkStream, error) {
	a.calls++
	return &fakeStream{}, nil
}

// imageAdapter supports image generation only.
type imageAdapter struct {
	modelID string
}

func (a *imageAdapter) Vendor() VendorType { return VendorVertex }
func (a *imageAdapter) ModelID() string    { return a.modelID }

func (a *imageAdapter) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	return &ImageResponse{Data: []ImageData{{B64JSON: "AAAA"}}}, nil
}

func newTestRouter(t *testing.T) (*Router, *textAdapter) {
	t.Helper()
	text := &textAdapter{modelID: "gpt-4o"}
	return NewRouter(map[string]Adapter{
		"gpt-4o":  text,
		"imagist": &imageAdapter{modelID: "imagist"},
	}, nil), text
}

func TestRouterModelsSorted(t *testing.T) {
	router, _ := newTestRouter(t)
	assert.Equal(t, []string{"gpt-4o", "imagist"}, router.Models())
}

func TestRouterUnknownModel(t *testing.T) {
	router, _ := newTestRouter(t)

	_, err := router.Completion(context.Background(), "nope", Request{})
	var unknown *UnknownModelError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope", unknown.ModelID)
}

func TestRouterDispatchesToConfiguredAdapter(t *testing.T) {
	router, text := newTestRouter(t)

	resp, err := router.Completion(context.Background(), "gpt-4o", Request{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", resp.Model)
	assert.Equal(t, 1, text.calls)

	stream, err := router.StreamCompletion(context.Background(), "gpt-4o", Request{Stream: true})
	require.NoError(t, err)
	require.NoError(t, stream.Close())
	assert.Equal(t, 2, text.calls)
}

func TestRouterUnsupportedOperation(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name string
		call func() error
	}{
		{"image generation on a text model", func() error {
			_, err := router.ImageGeneration(context.Background(), "gpt-4o", ImageRequest{Prompt: "a cat"})
			return err
		}},
		{"embedding on a text model", func() error {
			_, err := router.Embedding(context.Background(), "gpt-4o", EmbeddingRequest{Input: []string{"x"}})
			return err
		}},
		{"completion on an image model", func() error {
			_, err := router.Completion(context.Background(), "imagist", Request{})
			return err
		}},
		{"streaming on an image model", func() error {
			_, err := router.StreamCompletion(context.Background(), "imagist", Request{})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var unsupported *UnsupportedOperationError
			require.ErrorAs(t, err, &unsupported)
		})
	}
}

func TestRouterImageGeneration(t *testing.T) {
	router, _ := newTestRouter(t)

	resp, err := router.ImageGeneration(context.Background(), "imagist", ImageRequest{Prompt: "a cat"})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "AAAA", resp.Data[0].B64JSON)
}
