// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pricing holds the per-model USD pricing table used for cost metering.
package pricing

import (
	"sort"
	"strings"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UnknownModelError is returned when a model identifier has no pricing entry.
// Pricing lookups fail loudly rather than default to a wrong cost.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return "no pricing entry for model: " + e.Model
}

// =============================================================================
// PRICING TABLE
// =============================================================================

// costPer1K maps a model identifier to USD per 1,000 tokens.
//
// Prompt and completion tokens are priced identically per base entry; the
// "-completion" suffixed entries carry the differing completion rates for the
// models that have them. Updating prices means updating this table only.
var costPer1K = map[string]float64{
	"gpt-4":                     0.03,
	"gpt-4-0314":                0.03,
	"gpt-4-completion":          0.06,
	"gpt-4-0314-completion":     0.06,
	"gpt-4-32k":                 0.06,
	"gpt-4-32k-0314":            0.06,
	"gpt-4-32k-completion":      0.12,
	"gpt-4-32k-0314-completion": 0.12,
	"gpt-3.5-turbo":             0.002,
	"gpt-3.5-turbo-0301":        0.002,
	"text-ada-001":              0.0004,
	"ada":                       0.0004,
	"text-babbage-001":          0.0005,
	"babbage":                   0.0005,
	"text-curie-001":            0.002,
	"curie":                     0.002,
	"text-davinci-003":          0.02,
	"text-davinci-002":          0.02,
	"code-davinci-002":          0.02,
}

// =============================================================================
// LOOKUPS
// =============================================================================

// CostPer1K returns the USD cost per 1,000 tokens for the given model.
// Returns an UnknownModelError if the model has no pricing entry.
func CostPer1K(model string) (float64, error) {
	rate, ok := costPer1K[model]
	if !ok {
		return 0, &UnknownModelError{Model: model}
	}
	return rate, nil
}

// Cost returns the USD cost of the given token count for a model.
func Cost(model string, tokens int) (float64, error) {
	rate, err := CostPer1K(model)
	if err != nil {
		return 0, err
	}
	return rate * float64(tokens) / 1000, nil
}

// Known reports whether the model has a pricing entry.
func Known(model string) bool {
	_, ok := costPer1K[model]
	return ok
}

// Models returns the selectable model identifiers with pricing entries,
// sorted. The "-completion" entries are internal rate rows for completion
// pricing, not models a user can pick, so they are excluded here.
func Models() []string {
	models := make([]string, 0, len(costPer1K))
	for id := range costPer1K {
		if strings.HasSuffix(id, "-completion") {
			continue
		}
		models = append(models, id)
	}
	sort.Strings(models)
	return models
}
