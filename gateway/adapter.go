// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package gateway

import "context"

// Adapter is the minimal surface every vendor adapter exposes. The
// operations a vendor actually supports are modeled as separate
// capability interfaces; the router type-asserts for them, so an
// adapter implements exactly the set its vendor offers.
type Adapter interface {
	// Vendor returns the adapter's vendor type.
	Vendor() VendorType

	// ModelID returns the configured model identifier this adapter
	// serves.
	ModelID() string
}

// Completer generates a single canonical completion.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// StreamingCompleter generates a lazy, single-pass chunk sequence.
// The sequence is not restartable; a retry requires a fresh call.
type StreamingCompleter interface {
	CompleteStream(ctx context.Context, req Request) (ChunkStream, error)
}

// Embedder computes embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error)
}

// ImageGenerator renders images from a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error)
}

// ChunkStream is a forward-only sequence of canonical chunks. Recv
// returns io.EOF after the last chunk. Close releases the underlying
// connection and is safe to call more than once.
type ChunkStream interface {
	Recv() (*Chunk, error)
	Close() error
}
