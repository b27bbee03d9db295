// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides per-request token and cost accounting.
//
// A CostMeter accumulates token counts for one API request and prices
// them from the model's per-1K rate. A CostListener feeds a meter from
// streaming events: the prompt is counted when the request starts, each
// streamed token as it arrives, and the request is marked successful only
// when the stream completes cleanly. Non-streaming responses are metered
// after the fact with MeterCompletion.
//
// # Usage
//
// Stream with live accounting:
//
//	meter, err := telemetry.NewCostMeter("gpt-4")
//	if err != nil {
//	    return err // model has no pricing entry
//	}
//	listener := telemetry.NewCostListener(meter, tokenizer.New("gpt-4"))
//	result, err := client.ChatStream(ctx, openai.ChatRequest{
//	    Model:    "gpt-4",
//	    Messages: messages,
//	}, listener)
//	fmt.Println(meter.Summary())
//
// Accounting is local-only and never transmitted. Message content is not
// retained here - only token counts and derived costs.
package telemetry
