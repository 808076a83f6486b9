// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

// Package azure provides the adapter for Azure OpenAI endpoints. Azure
// addresses models through a deployment path baked into the configured
// base URL rather than a model field in the request body; payloads are
// otherwise the chat-completions wire format, so the openai package's
// wire types and stream reader are reused.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"educhat/platform/gateway"
	"educhat/platform/providers/openai"
)

// DefaultAPIVersion is used when the model configuration does not pin
// an api-version.
const DefaultAPIVersion = "2024-08-01-preview"

// Adapter calls an Azure OpenAI deployment.
type Adapter struct {
	modelID    string
	baseURL    string
	deployment string
	apiKey     string
	apiVersion string
	client     openai.HTTPClient
}

var (
	_ gateway.Adapter            = (*Adapter)(nil)
	_ gateway.Completer          = (*Adapter)(nil)
	_ gateway.StreamingCompleter = (*Adapter)(nil)
)

// New creates an Azure adapter. The base URL must carry the deployment
// path (".../openai/deployments/{deployment}"); a URL without one is a
// configuration error caught here, before any network call.
func New(cfg gateway.ModelConfig) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, gateway.NewConfigError(cfg.ID, "base_url is required")
	}
	if cfg.APIKey == "" {
		return nil, gateway.NewConfigError(cfg.ID, "api_key is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	deployment, err := parseDeployment(baseURL)
	if err != nil {
		return nil, gateway.NewConfigError(cfg.ID, "%v", err)
	}

	apiVersion := cfg.Settings.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	return &Adapter{
		modelID:    cfg.ID,
		baseURL:    baseURL,
		deployment: deployment,
		apiKey:     cfg.APIKey,
		apiVersion: apiVersion,
		client:     &http.Client{Timeout: openai.DefaultTimeout},
	}, nil
}

// parseDeployment extracts the deployment name from the base URL path.
func parseDeployment(baseURL string) (string, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("base_url is not a valid URL: %v", err)
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i, segment := range segments {
		if segment == "deployments" && i+1 < len(segments) && segments[i+1] != "" {
			return segments[i+1], nil
		}
	}
	return "", fmt.Errorf("base_url %q does not contain a /deployments/{name} path segment", baseURL)
}

// SetHTTPClient replaces the HTTP client, for testing.
func (a *Adapter) SetHTTPClient(client openai.HTTPClient) {
	a.client = client
}

// Vendor returns the adapter's vendor type.
func (a *Adapter) Vendor() gateway.VendorType {
	return gateway.VendorAzure
}

// ModelID returns the configured model identifier.
func (a *Adapter) ModelID() string {
	return a.modelID
}

// Deployment returns the deployment name parsed from the base URL.
func (a *Adapter) Deployment() string {
	return a.deployment
}

// buildURL appends the chat-completions operation and api-version to
// the deployment URL.
func (a *Adapter) buildURL() string {
	return a.baseURL + "/chat/completions?api-version=" + url.QueryEscape(a.apiVersion)
}

func (a *Adapter) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", a.apiKey)
}

// Complete generates a non-streaming completion.
func (a *Adapter) Complete(ctx context.Context, req gateway.Request) (*gateway.Completion, error) {
	// The deployment path selects the model; the body's model field
	// stays empty.
	body, err := json.Marshal(openai.BuildChatRequest("", req, false))
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.buildURL(), bytes.NewReader(body))
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

// CompleteStream starts a streaming completion.
func (a *Adapter) CompleteStream(ctx context.Context, req gateway.Request) (gateway.ChunkStream, error) {
	body, err := json.Marshal(openai.BuildChatRequest("", req, true))
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.buildURL(), bytes.NewReader(body))
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

	return openai.NewStream(resp.Body), nil
}
