// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

package metering

import "strings"

// subwordLen is the assumed average length of one subword token.
const subwordLen = 4

// Estimator approximates token counts for vendors that do not report
// usage. The heuristic splits text on whitespace and charges one token
// per started run of subwordLen characters within each word, which
// tracks common subword tokenizers closely enough for budgeting.
//
// Estimates are explicitly not authoritative: they may diverge from a
// vendor's true count and must only feed approximate budget math.
type Estimator struct{}

// NewEstimator creates a token estimator.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// EstimateTokens returns the approximate token count of text.
func (e *Estimator) EstimateTokens(text string) int {
	tokens := 0
	for _, word := range strings.Fields(text) {
		tokens += (len(word) + subwordLen - 1) / subwordLen
	}
	return tokens
}

// EstimateUsage estimates a full usage tuple from the prompt message
// texts and the produced completion text. Message texts are joined with
// single spaces before tokenizing, matching how the prompt was sent.
func (e *Estimator) EstimateUsage(promptTexts []string, completion string) Measured {
	prompt := e.EstimateTokens(strings.Join(promptTexts, " "))
	completed := e.EstimateTokens(completion)
	return Measured{
		PromptTokens:     prompt,
		CompletionTokens: completed,
	}
}
