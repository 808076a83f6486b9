// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package openai

import "educhat/platform/gateway"

// ChatRequest is the chat-completions request body. The azure adapter
// reuses it unchanged.
type ChatRequest struct {
	Model         string         `json:"model,omitempty"`
	Messages      []ChatMessage  `json:"messages"`
	Temperature   *float64       `json:"temperature,omitempty"`
	MaxTokens     int            `json:"max_tokens,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`
}

// StreamOptions asks the vendor to include a usage record on streams.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// ChatMessage is one wire message. Content is either a string or a
// list of content parts.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is one element of multi-part wire content.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL wraps an image reference (https URL or data URL).
type ImageURL struct {
	URL string `json:"url"`
}

// BuildChatRequest translates a canonical request into the wire shape.
// Streaming requests also ask for a usage record, which compatible
// hosts may or may not honor.
func BuildChatRequest(model string, req gateway.Request, stream bool) ChatRequest {
	wire := ChatRequest{
		Model:       model,
		Messages:    translateMessages(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
	if stream {
		wire.StreamOptions = &StreamOptions{IncludeUsage: true}
	}
	return wire
}

func translateMessages(msgs []gateway.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, ChatMessage{Role: msg.Role, Content: translateContent(msg.Content)})
	}
	return out
}

// translateContent maps canonical content to the wire representation:
// plain text stays a string, parts become typed objects, absent
// content becomes null.
func translateContent(c gateway.Content) any {
	if c.Empty() {
		return nil
	}
	if c.Parts == nil {
		return c.Text
	}
	parts := make([]ContentPart, 0, len(c.Parts))
	for _, part := range c.Parts {
		switch part.Type {
		case gateway.PartImage:
			parts = append(parts, ContentPart{
				Type:     "image_url",
				ImageURL: &ImageURL{URL: part.Image},
			})
		default:
			parts = append(parts, ContentPart{Type: "text", Text: part.Text})
		}
	}
	return parts
}
