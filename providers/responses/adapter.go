// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

// Package responses provides the adapter for model families served
// only through the OpenAI Responses API. Canonical chat requests are
// reshaped into the Responses input format, and the event-typed SSE
// stream is translated back into canonical chunks, so callers see the
// same wire format regardless of which API family served them.
package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"educhat/platform/gateway"
	"educhat/platform/providers/openai"
)

// Adapter calls a Responses API endpoint.
type Adapter struct {
	modelID         string
	model           string
	baseURL         string
	apiKey          string
	reasoningEffort string
	client          openai.HTTPClient
}

var (
	_ gateway.Adapter            = (*Adapter)(nil)
	_ gateway.Completer          = (*Adapter)(nil)
	_ gateway.StreamingCompleter = (*Adapter)(nil)
)

// New creates a Responses API adapter.
func New(cfg gateway.ModelConfig) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, gateway.NewConfigError(cfg.ID, "base_url is required")
	}
	if cfg.APIKey == "" {
		return nil, gateway.NewConfigError(cfg.ID, "api_key is required")
	}
	return &Adapter{
		modelID:         cfg.ID,
		model:           cfg.Model,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:          cfg.APIKey,
		reasoningEffort: cfg.Settings.ReasoningEffort,
		client:          &http.Client{Timeout: openai.DefaultTimeout},
	}, nil
}

// SetHTTPClient replaces the HTTP client, for testing.
func (a *Adapter) SetHTTPClient(client openai.HTTPClient) {
	a.client = client
}

// Vendor returns the adapter's vendor type.
func (a *Adapter) Vendor() gateway.VendorType {
	return gateway.VendorOpenAIResponses
}

// ModelID returns the configured model identifier.
func (a *Adapter) ModelID() string {
	return a.modelID
}

func (a *Adapter) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
}

func (a *Adapter) post(ctx context.Context, req gateway.Request, stream bool) (*http.Response, error) {
	body, err := json.Marshal(buildRequest(a.model, a.reasoningEffort, req, stream))
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	a.setHeaders(httpReq)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, gateway.NewVendorError(a.Vendor(), resp.StatusCode, resp.Status, errBody)
	}
	return resp, nil
}

// Complete generates a non-streaming completion.
func (a *Adapter) Complete(ctx context.Context, req gateway.Request) (*gateway.Completion, error) {
	resp, err := a.post(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var wire responseBody
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, gateway.NewVendorError(a.Vendor(), resp.StatusCode, resp.Status,
			[]byte("failed to decode response: "+err.Error()))
	}
	return wire.toCompletion(), nil
}

// CompleteStream starts a streaming completion and returns the
// translated event stream.
func (a *Adapter) CompleteStream(ctx context.Context, req gateway.Request) (gateway.ChunkStream, error) {
	resp, err := a.post(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return newStream(resp.Body, a.model), nil
}
