// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"educhat/platform/shared/logger"
)

// TokenEstimator approximates token counts for streams whose vendor
// did not report usage.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// Relay pulls canonical chunks from a vendor adapter's stream and
// writes them to an outbound byte stream, one JSON object per line, in
// arrival order. It holds at most one chunk at a time, so memory use is
// bounded regardless of response length.
type Relay struct {
	est TokenEstimator
	log *logger.Logger
}

// NewRelay creates a stream relay.
func NewRelay(est TokenEstimator, log *logger.Logger) *Relay {
	if log == nil {
		log = logger.New("relay")
	}
	return &Relay{est: est, log: log}
}

// relayError is the error object written to the outbound stream when
// the adapter fails mid-stream, so the caller can tell a failed stream
// from one that merely ended.
type relayError struct {
	Error relayErrorBody `json:"error"`
}

type relayErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Run relays the chunk sequence to w until it ends, fails, or ctx is
// canceled. It returns the request's usage: the vendor-reported values
// when the stream carried a terminal usage chunk, otherwise a
// synthesized estimate over promptText and everything streamed (the
// returned Usage has Estimated set, and a terminal usage line is
// appended before the stream closes).
//
// On adapter error or cancellation the outbound stream is put into an
// error state by a final error line, and a best-effort usage estimate
// of the work performed so far is still returned alongside the error,
// since the vendor may already have billed for generated tokens.
func (r *Relay) Run(ctx context.Context, requestID string, stream ChunkStream, w io.Writer, promptText string) (Usage, error) {
	defer stream.Close()

	var (
		streamed  strings.Builder
		lastID    string
		lastModel string
		usage     *Usage
	)

	for {
		select {
		case <-ctx.Done():
			r.writeLine(w, relayError{Error: relayErrorBody{
				Message: "request canceled",
				Type:    "canceled",
			}})
			return r.estimate(promptText, streamed.String()), ctx.Err()
		default:
		}

		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			r.writeLine(w, relayError{Error: relayErrorBody{
				Message: err.Error(),
				Type:    "vendor_error",
			}})
			return r.estimate(promptText, streamed.String()), err
		}

		if chunk.ID != "" {
			lastID = chunk.ID
		}
		if chunk.Model != "" {
			lastModel = chunk.Model
		}
		for _, choice := range chunk.Choices {
			streamed.WriteString(choice.Delta.Content)
		}
		if chunk.Usage != nil {
			reported := *chunk.Usage
			usage = &reported
		}

		if err := r.writeLine(w, chunk); err != nil {
			return r.estimate(promptText, streamed.String()), fmt.Errorf("failed to write chunk: %w", err)
		}
	}

	if usage == nil {
		estimated := r.estimate(promptText, streamed.String())
		usage = &estimated

		if lastID == "" {
			lastID = "chatcmpl-" + uuid.NewString()
		}
		terminal := &Chunk{
			ID:      lastID,
			Object:  ChunkObject,
			Created: time.Now().Unix(),
			Model:   lastModel,
			Choices: []ChunkChoice{},
			Usage:   usage,
		}
		if err := r.writeLine(w, terminal); err != nil {
			return *usage, fmt.Errorf("failed to write terminal chunk: %w", err)
		}

		r.log.Info(requestID, "vendor omitted usage, synthesized estimate", map[string]interface{}{
			"model":             lastModel,
			"prompt_tokens":     usage.PromptTokens,
			"completion_tokens": usage.CompletionTokens,
		})
	}

	return *usage, nil
}

// writeLine encodes v as one JSON line and flushes it immediately so
// the caller sees each chunk as it arrives.
func (r *Relay) writeLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// estimate builds an estimated usage tuple from the prompt text and the
// streamed completion text.
func (r *Relay) estimate(promptText, completion string) Usage {
	prompt := r.est.EstimateTokens(promptText)
	completed := r.est.EstimateTokens(completion)
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: completed,
		TotalTokens:      prompt + completed,
		Estimated:        true,
	}
}
