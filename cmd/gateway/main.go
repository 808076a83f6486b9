// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

// Package main is the entry point for the LLM gateway service.
//
// The gateway fronts multiple LLM vendors behind one OpenAI-style API,
// authenticates callers with API keys, and meters every request's
// token usage and cost against per-key budget windows.
//
// Usage:
//
//	./gateway
//
// Environment Variables:
//
//	GATEWAY_CONFIG - path to the YAML configuration file (default: gateway.yaml)
package main

import (
	"log"

	"educhat/platform/server"
)

func main() {
	if err := server.Run(); err != nil {
		log.Fatal(err)
	}
}
