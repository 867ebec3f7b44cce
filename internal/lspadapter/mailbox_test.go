// Copyright 2024 Upbound Inc
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lspadapter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestMailboxSerializesConcurrentCalls is §4.C's per-URI ordering rule:
// two calls against the same mailbox never run concurrently.
func TestMailboxSerializesConcurrentCalls(t *testing.T) {
	mb := newMailbox()
	var inFlight int32
	var maxObserved int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mb.withLock(context.Background(), func() error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					cur := atomic.LoadInt32(&maxObserved)
					if n <= cur || atomic.CompareAndSwapInt32(&maxObserved, cur, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if maxObserved != 1 {
		t.Fatalf("expected at most one holder of the mailbox at a time, observed %d", maxObserved)
	}
}

// TestMailboxWithLockReturnsContextErrorOnCancellation: a canceled
// context must not block forever waiting for the mailbox token.
func TestMailboxWithLockReturnsContextErrorOnCancellation(t *testing.T) {
	mb := newMailbox()
	<-mb.ch // drain the single token so the mailbox is "held"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := mb.withLock(ctx, func() error {
		t.Fatalf("fn should not run when the context is already canceled and no token is available")
		return nil
	})
	if err == nil {
		t.Fatalf("expected withLock to return the context's cancellation error")
	}
}

func TestMailboxWithLockPropagatesFnError(t *testing.T) {
	mb := newMailbox()
	want := context.Canceled
	got := mb.withLock(context.Background(), func() error { return want })
	if got != want {
		t.Fatalf("expected withLock to propagate fn's error, got %v", got)
	}
}
