// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Concurrency tests for the chat session's turn cancellation, which is
// shared between the REPL goroutine and the signal handler goroutine.
package cli

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestChatSession_CancelTurn tests the basic install/cancel/clear cycle.
func TestChatSession_CancelTurn(t *testing.T) {
	session := &ChatSession{}

	// Nothing in flight
	require.False(t, session.cancelTurn())

	var fired atomic.Int32
	session.setCancel(func() { fired.Add(1) })

	require.True(t, session.cancelTurn())
	require.Equal(t, int32(1), fired.Load())

	// Consumed: a second cancel is a no-op
	require.False(t, session.cancelTurn())
	require.Equal(t, int32(1), fired.Load())
}

// TestChatSession_ConcurrentCancel tests that concurrent setCancel and
// cancelTurn calls from racing goroutines do not panic or double-fire.
func TestChatSession_ConcurrentCancel(t *testing.T) {
	session := &ChatSession{}

	var fired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 3 {
			case 0:
				session.setCancel(func() { fired.Add(1) })
			case 1:
				session.cancelTurn()
			case 2:
				session.setCancel(nil)
			}
		}(i)
	}
	wg.Wait()

	// Each installed function fires at most once
	installed := int32(34) // ceil(100/3) setCancel calls with a function
	require.LessOrEqual(t, fired.Load(), installed)
}

// TestChatSession_CancelStopsContext tests the wiring a turn actually uses:
// a context.CancelFunc installed before the call and cleared after.
func TestChatSession_CancelStopsContext(t *testing.T) {
	session := &ChatSession{}

	ctx, cancel := context.WithCancel(context.Background())
	session.setCancel(cancel)

	require.True(t, session.cancelTurn())
	select {
	case <-ctx.Done():
	default:
		t.Fatal("context should be cancelled after cancelTurn")
	}
}
