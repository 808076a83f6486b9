// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package openai

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"educhat/platform/gateway"
)

// maxLineSize bounds a single SSE line; large vision chunks can exceed
// bufio.Scanner's 64K default.
const maxLineSize = 1024 * 1024

// Stream reads server-sent events from a chat-completions response body
// and surfaces them as canonical chunks. It is a forward-only reader;
// Recv returns io.EOF after the [DONE] sentinel or when the body ends.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool

	closeOnce sync.Once
	closeErr  error
}

var _ gateway.ChunkStream = (*Stream)(nil)

// NewStream wraps an SSE response body. The stream takes ownership of
// the body and closes it on Close.
func NewStream(body io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Stream{body: body, scanner: scanner}
}

// Recv returns the next chunk, or io.EOF at end of stream. Malformed
// event lines are skipped rather than failing the whole stream.
func (s *Stream) Recv() (*gateway.Chunk, error) {
	if s.done {
		return nil, io.EOF
	}

	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			s.done = true
			return nil, io.EOF
		}

		var chunk gateway.Chunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		return &chunk, nil
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Close releases the underlying response body. Safe to call twice.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
