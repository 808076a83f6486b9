// Copyright 2025 EduChat
// SPDX-License-Identifier: BUSL-1.1

// Package metering computes token usage and monetary cost for gateway
// requests and enforces spending budgets over time windows.
//
// All prices are stored as non-negative integers denominated in
// hundredths of a cent per million tokens (or per image). Costs are
// computed with integer arithmetic and truncated toward zero; no
// floating point touches currency values.
package metering

import "fmt"

// PriceKind discriminates how a model is billed.
type PriceKind string

const (
	// PriceKindText bills prompt and completion tokens separately.
	PriceKindText PriceKind = "text"

	// PriceKindEmbedding bills prompt tokens only.
	PriceKindEmbedding PriceKind = "embedding"

	// PriceKindImage bills a flat price per generated image.
	PriceKindImage PriceKind = "image"
)

// MTok is the per-million-token normalizing constant.
const MTok = 1_000_000

// hundredthsPerCent converts hundredths of a cent into whole cents.
const hundredthsPerCent = 100

// PriceModel describes how one model is priced. Exactly the fields
// relevant for Kind are consulted; the rest are ignored.
type PriceModel struct {
	Kind PriceKind `json:"kind" yaml:"kind"`

	// PromptPerMTok is the price of one million prompt tokens,
	// in hundredths of a cent. Used for text and embedding kinds.
	PromptPerMTok int64 `json:"prompt_per_mtok" yaml:"prompt_per_mtok"`

	// CompletionPerMTok is the price of one million completion tokens,
	// in hundredths of a cent. Used for the text kind only.
	CompletionPerMTok int64 `json:"completion_per_mtok" yaml:"completion_per_mtok"`

	// PerImage is the price of a single generated image,
	// in hundredths of a cent. Used for the image kind only.
	PerImage int64 `json:"per_image" yaml:"per_image"`
}

// Known reports whether the price kind is one the calculator can bill.
func (p PriceModel) Known() bool {
	switch p.Kind {
	case PriceKindText, PriceKindEmbedding, PriceKindImage:
		return true
	}
	return false
}

// Validate checks the non-negativity invariant on all prices.
func (p PriceModel) Validate() error {
	if p.PromptPerMTok < 0 || p.CompletionPerMTok < 0 || p.PerImage < 0 {
		return fmt.Errorf("price model %q has negative prices", p.Kind)
	}
	return nil
}

// Measured is the billable quantity of one request.
type Measured struct {
	PromptTokens     int
	CompletionTokens int
	Images           int
}

// Cost converts a measured usage tuple and a price model into a cost in
// whole cents, truncated toward zero. An unknown price kind yields 0:
// the request is treated as not billable, not as an error. Callers that
// persist usage should log unknown kinds for operator review.
func Cost(price PriceModel, m Measured) int64 {
	switch price.Kind {
	case PriceKindText:
		hundredths := int64(m.PromptTokens)*price.PromptPerMTok +
			int64(m.CompletionTokens)*price.CompletionPerMTok
		return hundredths / MTok / hundredthsPerCent

	case PriceKindEmbedding:
		return int64(m.PromptTokens) * price.PromptPerMTok / MTok / hundredthsPerCent

	case PriceKindImage:
		return int64(m.Images) * price.PerImage / hundredthsPerCent

	default:
		return 0
	}
}

// FormatCents renders a cent amount as a dollar string, e.g. 135 -> "$1.35".
func FormatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
