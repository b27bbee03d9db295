// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides token and cost accounting for chat requests.
package telemetry

import (
	"fmt"

	"github.com/mfaulds/chatspend/internal/pricing"
)

// =============================================================================
// COST METER
// =============================================================================

// CostMeter accumulates token counts and request counts for exactly one
// model-completion request.
//
// A fresh meter is created per request and discarded after its total cost is
// read; reuse across requests would contaminate per-turn costs. Counters only
// grow — a failed request leaves already-counted tokens in place, because the
// provider already generated (and billed) them.
//
// The meter is not safe for concurrent use; stream events arrive sequentially
// on one goroutine.
type CostMeter struct {
	model              string
	promptTokens       int
	completionTokens   int
	totalTokens        int
	successfulRequests int
}

// NewCostMeter creates a meter for one request against the given model.
// Fails with a pricing.UnknownModelError before any tokens are counted, so a
// mispriced model can never produce a silently wrong cost.
func NewCostMeter(model string) (*CostMeter, error) {
	if !pricing.Known(model) {
		return nil, &pricing.UnknownModelError{Model: model}
	}
	return &CostMeter{model: model}, nil
}

// Model returns the model identifier the meter prices against.
func (m *CostMeter) Model() string {
	return m.model
}

// =============================================================================
// ACCUMULATION
// =============================================================================

// AddPromptTokens adds n prompt tokens. Negative n is ignored.
func (m *CostMeter) AddPromptTokens(n int) {
	if n < 0 {
		return
	}
	m.promptTokens += n
	m.totalTokens += n
}

// AddCompletionTokens adds n completion tokens. Negative n is ignored.
func (m *CostMeter) AddCompletionTokens(n int) {
	if n < 0 {
		return
	}
	m.completionTokens += n
	m.totalTokens += n
}

// AddSuccessfulRequest records n completed requests. Negative n is ignored.
func (m *CostMeter) AddSuccessfulRequest(n int) {
	if n < 0 {
		return
	}
	m.successfulRequests += n
}

// =============================================================================
// READOUT
// =============================================================================

// PromptTokens returns the accumulated prompt token count.
func (m *CostMeter) PromptTokens() int {
	return m.promptTokens
}

// CompletionTokens returns the accumulated completion token count.
func (m *CostMeter) CompletionTokens() int {
	return m.completionTokens
}

// TotalTokens returns prompt plus completion tokens.
func (m *CostMeter) TotalTokens() int {
	return m.totalTokens
}

// SuccessfulRequests returns the number of completed requests.
func (m *CostMeter) SuccessfulRequests() int {
	return m.successfulRequests
}

// TotalCost returns the USD cost of all accumulated tokens.
// The model was validated against the pricing table at construction.
func (m *CostMeter) TotalCost() float64 {
	rate, err := pricing.CostPer1K(m.model)
	if err != nil {
		return 0
	}
	return rate * float64(m.totalTokens) / 1000
}

// Summary returns a human-readable breakdown of the meter.
func (m *CostMeter) Summary() string {
	return fmt.Sprintf(
		"Tokens Used: %d\n"+
			"\tPrompt Tokens: %d\n"+
			"\tCompletion Tokens: %d\n"+
			"Successful Requests: %d\n"+
			"Total Cost (USD): $%.5f",
		m.totalTokens,
		m.promptTokens,
		m.completionTokens,
		m.successfulRequests,
		m.TotalCost(),
	)
}
