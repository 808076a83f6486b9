// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package responses

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"educhat/platform/gateway"
)

const maxLineSize = 1024 * 1024

// stream translates Responses API events into canonical chunks. Text
// deltas become delta chunks; the response.completed event becomes the
// terminal chunk, carrying usage only when the vendor reported it.
// All other event types are skipped.
type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	model   string
	done    bool

	closeOnce sync.Once
	closeErr  error
}

var _ gateway.ChunkStream = (*stream)(nil)

func newStream(body io.ReadCloser, model string) *stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &stream{body: body, scanner: scanner, model: model}
}

// event is the envelope of one streamed Responses event. Each event
// names its own type in the data payload, so the SSE "event:" lines
// can be ignored.
type event struct {
	Type     string `json:"type"`
	Delta    string `json:"delta"`
	Response *struct {
		ID    string `json:"id"`
		Model string `json:"model"`
		Usage *usage `json:"usage"`
	} `json:"response"`
}

func (s *stream) Recv() (*gateway.Chunk, error) {
	if s.done {
		return nil, io.EOF
	}

	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") || !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			s.done = true
			return nil, io.EOF
		}

		var ev event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "response.output_text.delta":
			return &gateway.Chunk{
				Object: gateway.ChunkObject,
				Model:  s.model,
				Choices: []gateway.ChunkChoice{{
					Delta: gateway.Delta{Content: ev.Delta},
				}},
			}, nil

		case "response.completed":
			s.done = true
			chunk := &gateway.Chunk{
				Object:  gateway.ChunkObject,
				Model:   s.model,
				Choices: []gateway.ChunkChoice{},
			}
			if ev.Response != nil {
				chunk.ID = ev.Response.ID
				if ev.Response.Model != "" {
					chunk.Model = ev.Response.Model
				}
				if ev.Response.Usage != nil {
					reported := ev.Response.Usage.toGateway()
					chunk.Usage = &reported
				}
			}
			// Usage stays nil when the event omits it; downstream
			// falls back to estimation instead of billing zero.
			return chunk, nil

		case "response.failed", "error":
			s.done = true
			return nil, gateway.NewVendorError(gateway.VendorOpenAIResponses, 0, "stream failed", []byte(data))
		}
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
