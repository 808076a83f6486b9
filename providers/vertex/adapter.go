// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

// Package vertex provides the image-generation adapter for Google
// Vertex AI. It is the only vendor without static API-key auth: each
// call carries a short-lived bearer token obtained by exchanging a
// signed service-account assertion at the OAuth token endpoint.
package vertex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"educhat/platform/gateway"
)

// DefaultTimeout is the default HTTP timeout; image rendering is slow
// compared to text calls.
const DefaultTimeout = 180 * time.Second

// defaultSampleCount is used when the request does not ask for a
// specific number of images.
const defaultSampleCount = 1

// HTTPClient is an interface for HTTP client operations (enables testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Adapter generates images through a Vertex AI publisher model.
type Adapter struct {
	modelID   string
	model     string
	projectID string
	location  string
	tokens    *tokenSource
	client    HTTPClient
}

var (
	_ gateway.Adapter        = (*Adapter)(nil)
	_ gateway.ImageGenerator = (*Adapter)(nil)
)

// New creates a Vertex adapter. Token sources are shared through the
// cache so several models in one project/location reuse bearer tokens;
// a nil cache gets a private one.
func New(cfg gateway.ModelConfig, cache *ClientCache) (*Adapter, error) {
	settings := cfg.Settings
	if settings.ProjectID == "" {
		return nil, gateway.NewConfigError(cfg.ID, "settings.project_id is required")
	}
	if settings.Location == "" {
		return nil, gateway.NewConfigError(cfg.ID, "settings.location is required")
	}
	if settings.ClientEmail == "" {
		return nil, gateway.NewConfigError(cfg.ID, "settings.client_email is required")
	}
	if settings.PrivateKey == "" {
		return nil, gateway.NewConfigError(cfg.ID, "settings.private_key is required")
	}
	if cache == nil {
		cache = NewClientCache()
	}

	client := &http.Client{Timeout: DefaultTimeout}
	tokens := cache.getOrCreate(
		cacheKey{projectID: settings.ProjectID, location: settings.Location},
		func() *tokenSource {
			return newTokenSource(settings.ClientEmail, settings.PrivateKey, settings.TokenURI, client)
		},
	)

	return &Adapter{
		modelID:   cfg.ID,
		model:     cfg.Model,
		projectID: settings.ProjectID,
		location:  settings.Location,
		tokens:    tokens,
		client:    client,
	}, nil
}

// SetHTTPClient replaces the HTTP client for both prediction calls and
// token exchange, for testing.
func (a *Adapter) SetHTTPClient(client HTTPClient) {
	a.client = client
	a.tokens.client = client
}

// Vendor returns the adapter's vendor type.
func (a *Adapter) Vendor() gateway.VendorType {
	return gateway.VendorVertex
}

// ModelID returns the configured model identifier.
func (a *Adapter) ModelID() string {
	return a.modelID
}

// predictURL builds the regional publisher-model predict endpoint.
func (a *Adapter) predictURL() string {
	return fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		a.location, a.projectID, a.location, a.model)
}

// predictRequest is the Vertex predict body for image models.
type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt string `json:"prompt"`
}

type predictParameters struct {
	SampleCount int    `json:"sampleCount"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type predictResponse struct {
	Predictions []prediction `json:"predictions"`
}

type prediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

// GenerateImage renders images for the prompt and returns them
// base64-encoded in the canonical shape.
func (a *Adapter) GenerateImage(ctx context.Context, req gateway.ImageRequest) (*gateway.ImageResponse, error) {
	sampleCount := req.N
	if sampleCount <= 0 {
		sampleCount = defaultSampleCount
	}

	body, err := json.Marshal(predictRequest{
		Instances: []predictInstance{{Prompt: req.Prompt}},
		Parameters: predictParameters{
			SampleCount: sampleCount,
			AspectRatio: aspectRatio(req.Size),
		},
	})
	if err != nil {
		return nil, err
	}

	token, err := a.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.predictURL(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

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

	var predResp predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&predResp); err != nil {
		return nil, gateway.NewVendorError(a.Vendor(), resp.StatusCode, resp.Status,
			[]byte("failed to decode response: "+err.Error()))
	}

	out := &gateway.ImageResponse{
		Created: time.Now().Unix(),
		Data:    make([]gateway.ImageData, 0, len(predResp.Predictions)),
	}
	for _, p := range predResp.Predictions {
		out.Data = append(out.Data, gateway.ImageData{
			B64JSON:  p.BytesBase64Encoded,
			MimeType: p.MimeType,
		})
	}
	return out, nil
}

// aspectRatio maps WxH size strings onto the ratio parameter Vertex
// expects. Unknown sizes fall back to square.
func aspectRatio(size string) string {
	switch size {
	case "", "1024x1024", "512x512", "256x256":
		return "1:1"
	case "1792x1024", "1536x1024":
		return "16:9"
	case "1024x1792", "1024x1536":
		return "9:16"
	default:
		return "1:1"
	}
}
