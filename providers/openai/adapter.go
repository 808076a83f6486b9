// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

// Package openai provides the adapter for OpenAI-compatible
// chat-completions endpoints, including third-party hosts exposing the
// same API surface. Its wire types and SSE stream reader are reused by
// the azure adapter, whose payloads are identical once the URL and
// auth header are in place.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"educhat/platform/gateway"
)

// DefaultTimeout is the default HTTP timeout for vendor calls.
const DefaultTimeout = 120 * time.Second

// HTTPClient is an interface for HTTP client operations (enables testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Adapter calls a direct OpenAI-compatible endpoint.
type Adapter struct {
	modelID string
	model   string
	baseURL string
	apiKey  string
	client  HTTPClient
}

var (
	_ gateway.Adapter            = (*Adapter)(nil)
	_ gateway.Completer          = (*Adapter)(nil)
	_ gateway.StreamingCompleter = (*Adapter)(nil)
	_ gateway.Embedder           = (*Adapter)(nil)
)

// New creates an OpenAI-compatible adapter from a model configuration.
func New(cfg gateway.ModelConfig) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, gateway.NewConfigError(cfg.ID, "base_url is required")
	}
	if cfg.APIKey == "" {
		return nil, gateway.NewConfigError(cfg.ID, "api_key is required")
	}
	return &Adapter{
		modelID: cfg.ID,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: DefaultTimeout},
	}, nil
}

// SetHTTPClient replaces the HTTP client, for testing.
func (a *Adapter) SetHTTPClient(client HTTPClient) {
	a.client = client
}

// Vendor returns the adapter's vendor type.
func (a *Adapter) Vendor() gateway.VendorType {
	return gateway.VendorOpenAI
}

// ModelID returns the configured model identifier.
func (a *Adapter) ModelID() string {
	return a.modelID
}

func (a *Adapter) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
}

// Complete generates a non-streaming completion.
func (a *Adapter) Complete(ctx context.Context, req gateway.Request) (*gateway.Completion, error) {
	body, err := json.Marshal(BuildChatRequest(a.model, req, false))
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	a.setHeaders(httpReq)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, gateway.NewVendorError(a.Vendor(), resp.StatusCode, resp.Status, errBody)
	}

	var completion gateway.Completion
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, gateway.NewVendorError(a.Vendor(), resp.StatusCode, resp.Status,
			[]byte("failed to decode response: "+err.Error()))
	}
	return &completion, nil
}

// CompleteStream starts a streaming completion and returns an SSE-backed
// chunk stream.
func (a *Adapter) CompleteStream(ctx context.Context, req gateway.Request) (gateway.ChunkStream, error) {
	body, err := json.Marshal(BuildChatRequest(a.model, req, true))
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	a.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, gateway.NewVendorError(a.Vendor(), resp.StatusCode, resp.Status, errBody)
	}

	return NewStream(resp.Body), nil
}

// Embed computes embedding vectors via the /embeddings endpoint.
func (a *Adapter) Embed(ctx context.Context, req gateway.EmbeddingRequest) (*gateway.EmbeddingResponse, error) {
	wire := embeddingRequest{Input: req.Input, Model: a.model}
	body, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	a.setHeaders(httpReq)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, gateway.NewVendorError(a.Vendor(), resp.StatusCode, resp.Status, errBody)
	}

	var embResp gateway.EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, gateway.NewVendorError(a.Vendor(), resp.StatusCode, resp.Status,
			[]byte("failed to decode response: "+err.Error()))
	}
	return &embResp, nil
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}
