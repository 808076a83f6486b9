// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package responses

import (
	"strings"

	"educhat/platform/gateway"
)

// request is the Responses API request body.
type request struct {
	Model           string         `json:"model"`
	Input           []inputMessage `json:"input"`
	Temperature     *float64       `json:"temperature,omitempty"`
	MaxOutputTokens int            `json:"max_output_tokens,omitempty"`
	Reasoning       *reasoning     `json:"reasoning,omitempty"`
	Stream          bool           `json:"stream,omitempty"`
}

type reasoning struct {
	Effort string `json:"effort"`
}

// inputMessage is one Responses input item. Content is always a part
// list; the API has no plain-string form.
type inputMessage struct {
	Role    string      `json:"role"`
	Content []inputPart `json:"content"`
}

type inputPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// buildRequest reshapes a canonical chat request into Responses input.
// Messages with absent content are dropped entirely rather than sent
// as empty items, and each message's content becomes a typed part
// list: input_text/input_image for prompt roles, output_text for prior
// assistant turns.
func buildRequest(model, reasoningEffort string, req gateway.Request, stream bool) request {
	wire := request{
		Model:           model,
		Input:           make([]inputMessage, 0, len(req.Messages)),
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxTokens,
		Stream:          stream,
	}
	if reasoningEffort != "" {
		wire.Reasoning = &reasoning{Effort: reasoningEffort}
	}

	for _, msg := range req.Messages {
		if msg.Content.Empty() || !inputRole(msg.Role) {
			continue
		}
		wire.Input = append(wire.Input, inputMessage{
			Role:    msg.Role,
			Content: translateParts(msg.Role, msg.Content),
		})
	}
	return wire
}

// inputRole reports whether a canonical role has a Responses input
// equivalent. Anything else (tool turns, vendor extensions) is dropped
// rather than forwarded to fail with a vendor 400.
func inputRole(role string) bool {
	switch role {
	case gateway.RoleSystem, gateway.RoleUser, gateway.RoleAssistant, gateway.RoleDeveloper:
		return true
	}
	return false
}

func translateParts(role string, c gateway.Content) []inputPart {
	textType := "input_text"
	if role == gateway.RoleAssistant {
		textType = "output_text"
	}

	if c.Parts == nil {
		return []inputPart{{Type: textType, Text: c.Text}}
	}

	parts := make([]inputPart, 0, len(c.Parts))
	for _, part := range c.Parts {
		switch part.Type {
		case gateway.PartImage:
			parts = append(parts, inputPart{Type: "input_image", ImageURL: part.Image})
		default:
			parts = append(parts, inputPart{Type: textType, Text: part.Text})
		}
	}
	return parts
}

// responseBody is the non-streaming Responses API response.
type responseBody struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Status  string       `json:"status"`
	Created int64        `json:"created_at"`
	Output  []outputItem `json:"output"`
	Usage   *usage       `json:"usage"`
}

type outputItem struct {
	Type    string       `json:"type"`
	Role    string       `json:"role"`
	Content []outputPart `json:"content"`
}

type outputPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// usage is the Responses token accounting, which names its fields
// differently from the chat-completions format.
type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

func (u *usage) toGateway() gateway.Usage {
	if u == nil {
		return gateway.Usage{}
	}
	return gateway.Usage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.TotalTokens,
	}
}

// text concatenates all output_text parts across message items.
func (r *responseBody) text() string {
	var builder strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				builder.WriteString(part.Text)
			}
		}
	}
	return builder.String()
}

func (r *responseBody) finishReason() string {
	switch r.Status {
	case "incomplete":
		return "length"
	default:
		return "stop"
	}
}

// toCompletion maps the response into the canonical completion shape.
func (r *responseBody) toCompletion() *gateway.Completion {
	return &gateway.Completion{
		ID:      r.ID,
		Object:  "chat.completion",
		Created: r.Created,
		Model:   r.Model,
		Choices: []gateway.CompletionChoice{{
			Index: 0,
			Message: gateway.CompletionMessage{
				Role:    gateway.RoleAssistant,
				Content: r.text(),
			},
			FinishReason: r.finishReason(),
		}},
		Usage: r.Usage.toGateway(),
	}
}
