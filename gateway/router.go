// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"context"
	"sort"

	"educhat/platform/shared/logger"
)

// Router dispatches gateway calls to the vendor adapter configured for
// a model. Adapters are built once at configuration-load time; the
// router never constructs adapters per call. Operations a vendor does
// not support surface as UnsupportedOperationError.
//
// The router is safe for concurrent use: the adapter map is read-only
// after construction and adapters themselves are concurrency-safe.
type Router struct {
	adapters map[string]Adapter
	log      *logger.Logger
}

// NewRouter creates a router over a fixed set of adapters keyed by
// model id.
func NewRouter(adapters map[string]Adapter, log *logger.Logger) *Router {
	if log == nil {
		log = logger.New("router")
	}
	return &Router{adapters: adapters, log: log}
}

// Models returns the configured model ids, sorted.
func (r *Router) Models() []string {
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Adapter resolves the adapter for a model id.
func (r *Router) Adapter(modelID string) (Adapter, error) {
	a, ok := r.adapters[modelID]
	if !ok {
		return nil, &UnknownModelError{ModelID: modelID}
	}
	return a, nil
}

// Completion dispatches a non-streaming completion.
func (r *Router) Completion(ctx context.Context, modelID string, req Request) (*Completion, error) {
	a, err := r.Adapter(modelID)
	if err != nil {
		return nil, err
	}
	completer, ok := a.(Completer)
	if !ok {
		return nil, &UnsupportedOperationError{ModelID: modelID, Operation: "completion"}
	}
	return completer.Complete(ctx, req)
}

// StreamCompletion dispatches a streaming completion and returns the
// adapter's chunk sequence for the relay to consume.
func (r *Router) StreamCompletion(ctx context.Context, modelID string, req Request) (ChunkStream, error) {
	a, err := r.Adapter(modelID)
	if err != nil {
		return nil, err
	}
	streamer, ok := a.(StreamingCompleter)
	if !ok {
		return nil, &UnsupportedOperationError{ModelID: modelID, Operation: "streaming completion"}
	}
	return streamer.CompleteStream(ctx, req)
}

// Embedding dispatches an embedding call.
func (r *Router) Embedding(ctx context.Context, modelID string, req EmbeddingRequest) (*EmbeddingResponse, error) {
	a, err := r.Adapter(modelID)
	if err != nil {
		return nil, err
	}
	embedder, ok := a.(Embedder)
	if !ok {
		return nil, &UnsupportedOperationError{ModelID: modelID, Operation: "embedding"}
	}
	return embedder.Embed(ctx, req)
}

// ImageGeneration dispatches an image-generation call.
func (r *Router) ImageGeneration(ctx context.Context, modelID string, req ImageRequest) (*ImageResponse, error) {
	a, err := r.Adapter(modelID)
	if err != nil {
		return nil, err
	}
	generator, ok := a.(ImageGenerator)
	if !ok {
		return nil, &UnsupportedOperationError{ModelID: modelID, Operation: "image generation"}
	}
	return generator.GenerateImage(ctx, req)
}
