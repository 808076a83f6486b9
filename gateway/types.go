// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

// Package gateway defines the canonical, vendor-agnostic request,
// response, and stream-chunk representations used across all vendor
// adapters, plus the router and the stream relay that tie them
// together. Vendor-specific translation lives in the providers
// subpackages; everything here is wire-format and dispatch logic only.
package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
)

// VendorType identifies which adapter implementation serves a model.
type VendorType string

const (
	// VendorOpenAI is a direct OpenAI-compatible chat-completions
	// endpoint (includes compatible third-party hosts).
	VendorOpenAI VendorType = "openai"

	// VendorAzure is an Azure OpenAI endpoint addressed through a
	// deployment-path indirection.
	VendorAzure VendorType = "azure"

	// VendorOpenAIResponses is the agentic response-format API used by
	// model families without a chat-completions endpoint.
	VendorOpenAIResponses VendorType = "openai-responses"

	// VendorVertex is the image-only REST vendor requiring
	// bearer-token exchange.
	VendorVertex VendorType = "vertex"
)

// Role kinds of canonical messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleDeveloper = "developer"
)

// Part is one element of multi-part message content.
type Part struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// Part types.
const (
	PartText  = "text"
	PartImage = "image"
)

// Content is either plain text or an ordered list of parts. Absent or
// null content is represented by the zero value.
type Content struct {
	Text  string
	Parts []Part

	set bool
}

// TextContent builds plain-text content.
func TextContent(text string) Content {
	return Content{Text: text, set: true}
}

// PartsContent builds multi-part content.
func PartsContent(parts []Part) Content {
	return Content{Parts: parts, set: true}
}

// Empty reports whether the content is absent or null.
func (c Content) Empty() bool {
	return !c.set || (c.Parts == nil && c.Text == "")
}

// PlainText flattens the content to text. Image parts contribute
// nothing; text parts are joined with single spaces.
func (c Content) PlainText() string {
	if c.Parts == nil {
		return c.Text
	}
	texts := make([]string, 0, len(c.Parts))
	for _, part := range c.Parts {
		if part.Type == PartText && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, " ")
}

// MarshalJSON renders plain text as a JSON string and parts as an array.
func (c Content) MarshalJSON() ([]byte, error) {
	if !c.set {
		return []byte("null"), nil
	}
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts a string, an array of parts, or null.
func (c *Content) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Content{}
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*c = TextContent(text)
		return nil
	}
	var parts []Part
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("content must be a string or a list of parts: %w", err)
	}
	*c = PartsContent(parts)
	return nil
}

// Message is one canonical chat message.
type Message struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// Request is the canonical completion request accepted by every
// adapter. Vendor peculiarities are handled behind this type.
type Request struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// PromptTexts returns the text content of all messages in order,
// used by the token-estimation fallback.
func (r Request) PromptTexts() []string {
	texts := make([]string, 0, len(r.Messages))
	for _, msg := range r.Messages {
		if t := msg.Content.PlainText(); t != "" {
			texts = append(texts, t)
		}
	}
	return texts
}

// Usage is the token usage attributable to one request. Estimated
// marks values produced by the heuristic token estimator rather than
// reported by the vendor; it never appears on the wire.
type Usage struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	TotalTokens      int  `json:"total_tokens"`
	Estimated        bool `json:"-"`
}

// Completion is the canonical non-streaming response.
type Completion struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   Usage              `json:"usage"`
}

// CompletionChoice is one generated alternative.
type CompletionChoice struct {
	Index        int               `json:"index"`
	Message      CompletionMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

// CompletionMessage is the assistant message of a completion choice.
type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chunk is one unit of streamed output in the canonical wire format:
// either a content delta or the terminal usage record. Exactly one
// terminal chunk (empty choices, non-nil usage) ends every stream.
type Chunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// ChunkObject is the object tag of every streamed chunk.
const ChunkObject = "chat.completion.chunk"

// ChunkChoice is one delta entry of a streamed chunk.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta is the incremental message payload of a streamed chunk.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Terminal reports whether the chunk is the stream's usage record.
func (c *Chunk) Terminal() bool {
	return c.Usage != nil && len(c.Choices) == 0
}

// EmbeddingRequest is the canonical embedding request.
type EmbeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// EmbeddingResponse is the canonical embedding response.
type EmbeddingResponse struct {
	Object string          `json:"object"`
	Data   []EmbeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  Usage           `json:"usage"`
}

// EmbeddingData is one embedding vector.
type EmbeddingData struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// ImageRequest is the canonical image-generation request.
type ImageRequest struct {
	Prompt string `json:"prompt"`
	N      int    `json:"n,omitempty"`
	Size   string `json:"size,omitempty"`
}

// ImageResponse is the canonical image-generation response.
type ImageResponse struct {
	Created int64       `json:"created"`
	Data    []ImageData `json:"data"`
}

// ImageData is one generated image, base64-encoded.
type ImageData struct {
	B64JSON  string `json:"b64_json"`
	MimeType string `json:"mime_type,omitempty"`
}

// ModelConfig describes one routable model. It is immutable once
// loaded; the configuration storage owns it.
type ModelConfig struct {
	ID       string     `json:"id" yaml:"id"`
	Vendor   VendorType `json:"vendor" yaml:"vendor"`
	Model    string     `json:"model" yaml:"model"`
	BaseURL  string     `json:"base_url" yaml:"base_url"`
	APIKey   string     `json:"api_key" yaml:"api_key"`
	Settings Settings   `json:"settings" yaml:"settings"`
}

// Settings carries vendor-specific parameters. The Vendor field is a
// discriminator: when set, it must match the declared vendor of the
// ModelConfig, and a mismatch is a configuration error caught at
// adapter construction, before any network call.
type Settings struct {
	Vendor VendorType `json:"vendor,omitempty" yaml:"vendor,omitempty"`

	// APIVersion selects the API version for deployment-addressed
	// endpoints.
	APIVersion string `json:"api_version,omitempty" yaml:"api_version,omitempty"`

	// ReasoningEffort tunes reasoning models (e.g. "low", "medium").
	ReasoningEffort string `json:"reasoning_effort,omitempty" yaml:"reasoning_effort,omitempty"`

	// Vertex image generation.
	ProjectID   string `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	Location    string `json:"location,omitempty" yaml:"location,omitempty"`
	ClientEmail string `json:"client_email,omitempty" yaml:"client_email,omitempty"`
	PrivateKey  string `json:"private_key,omitempty" yaml:"private_key,omitempty"`
	TokenURI    string `json:"token_uri,omitempty" yaml:"token_uri,omitempty"`
}
