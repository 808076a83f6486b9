// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

// Package providers builds vendor adapters from model configuration.
// All construction-time validation lives here and in the vendor
// packages, so a bad configuration fails at load, never mid-request.
package providers

import (
	"educhat/platform/gateway"
	"educhat/platform/providers/azure"
	"educhat/platform/providers/openai"
	"educhat/platform/providers/responses"
	"educhat/platform/providers/vertex"
)

// Factory builds adapters. It owns the shared vertex client cache so
// repeated builds reuse token sources.
type Factory struct {
	vertexCache *vertex.ClientCache
}

// NewFactory creates a factory.
func NewFactory() *Factory {
	return &Factory{vertexCache: vertex.NewClientCache()}
}

// Build constructs the adapter for one model configuration. A settings
// block declaring a different vendor than the model's own is rejected:
// it means credentials were pasted under the wrong model.
func (f *Factory) Build(cfg gateway.ModelConfig) (gateway.Adapter, error) {
	if cfg.ID == "" {
		return nil, gateway.NewConfigError(cfg.ID, "model id is required")
	}
	if settingsVendor := cfg.Settings.Vendor; settingsVendor != "" && settingsVendor != cfg.Vendor {
		return nil, gateway.NewConfigError(cfg.ID,
			"settings declare vendor %q but model is configured for vendor %q",
			settingsVendor, cfg.Vendor)
	}

	switch cfg.Vendor {
	case gateway.VendorOpenAI:
		return openai.New(cfg)
	case gateway.VendorAzure:
		return azure.New(cfg)
	case gateway.VendorOpenAIResponses:
		return responses.New(cfg)
	case gateway.VendorVertex:
		return vertex.New(cfg, f.vertexCache)
	default:
		return nil, gateway.NewConfigError(cfg.ID, "unknown vendor %q", cfg.Vendor)
	}
}

// BuildAll constructs adapters for every configured model, keyed by
// model id. The first invalid configuration fails the whole build;
// a gateway with a partially wired model table is worse than one that
// refuses to start.
func (f *Factory) BuildAll(configs []gateway.ModelConfig) (map[string]gateway.Adapter, error) {
	adapters := make(map[string]gateway.Adapter, len(configs))
	for _, cfg := range configs {
		if _, exists := adapters[cfg.ID]; exists {
			return nil, gateway.NewConfigError(cfg.ID, "duplicate model id")
		}
		adapter, err := f.Build(cfg)
		if err != nil {
			return nil, err
		}
		adapters[cfg.ID] = adapter
	}
	return adapters, nil
}
