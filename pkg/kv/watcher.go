/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package kv

import (
	"context"
	"errors"
	"sync"

	"github.com/carverauto/natskv/pkg/logger"
)

// Observer receives entries and the one-shot end-of-initial-data signal
// from a Watcher (spec.md §4.6: "Observer callbacks replace
// inheritance-based watcher classes; deliver order is guaranteed per
// watcher"). Implementations must not block longer than necessary: a
// Watcher delivers to its Observer on a single goroutine, in stream
// order, and a slow Observer stalls that watcher's own delivery only.
type Observer interface {
	// OnEntry is called once per delivered entry, in ascending revision
	// order.
	OnEntry(e *Entry)
	// OnEndOfInitialData is called exactly once: after the initial
	// snapshot and before any live entry under default options
	// (spec.md §7 invariant 7), or before any entry at all under
	// UPDATES_ONLY (invariant 8).
	OnEndOfInitialData()
}

// WatcherState is a Watcher's position in the state machine described by
// spec.md §4.6.
type WatcherState int

const (
	// WatcherOpening is the state between construction and the
	// underlying consumer being created.
	WatcherOpening WatcherState = iota
	// WatcherCatchingUp is replaying retained data; OnEndOfInitialData
	// has not yet fired.
	WatcherCatchingUp
	// WatcherLive has finished any initial replay and is delivering
	// newly published entries as they arrive.
	WatcherLive
	// WatcherClosed is terminal: Unsubscribe was called, or a fatal
	// transport error ended delivery.
	WatcherClosed
)

// Watcher is a long-lived consumer feeding an Observer (spec.md §4.6).
// A Watcher is created live by Store.Watch/WatchAll and torn down by
// Unsubscribe; it never needs to be constructed directly.
type Watcher struct {
	mu     sync.Mutex
	state  WatcherState
	it     MessageIterator
	cancel context.CancelFunc
	done   chan struct{}
	log    logger.Logger
}

func newWatcher(ctx context.Context, bucket string, it MessageIterator, o watchOptions, obs Observer, hasInitialData bool, l logger.Logger) *Watcher {
	wctx, cancel := context.WithCancel(ctx)

	w := &Watcher{
		state:  WatcherOpening,
		it:     it,
		cancel: cancel,
		done:   make(chan struct{}),
		log:    l,
	}

	go w.run(wctx, bucket, o, obs, hasInitialData)

	return w
}

// State reports the watcher's current position in the state machine.
func (w *Watcher) State() WatcherState {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.state
}

func (w *Watcher) setState(s WatcherState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Unsubscribe stops delivery and releases the underlying consumer. It
// is idempotent and blocks until the delivery goroutine has returned,
// so no further Observer calls occur after it returns (spec.md §4.6:
// "expose an unsubscribe that is idempotent and synchronous").
func (w *Watcher) Unsubscribe() error {
	w.mu.Lock()
	alreadyClosed := w.state == WatcherClosed
	w.mu.Unlock()

	if alreadyClosed {
		return nil
	}

	w.cancel()
	<-w.done

	return mapTransportError(w.it.Stop())
}

func (w *Watcher) run(ctx context.Context, bucket string, o watchOptions, obs Observer, hasInitialData bool) {
	defer close(w.done)
	defer w.setState(WatcherClosed)

	catchingUp := hasInitialData

	if catchingUp {
		w.setState(WatcherCatchingUp)
	} else {
		w.setState(WatcherLive)
		obs.OnEndOfInitialData()
	}

	for {
		raw, err := w.it.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrIteratorStopped) || ctx.Err() != nil {
				return
			}

			w.log.Warn().Str("bucket", bucket).Err(err).Msg("watcher stopped on transport error")

			return
		}

		entry, err := decodeEntry(bucket, raw)
		if err != nil {
			w.log.Warn().Str("bucket", bucket).Err(err).Msg("watcher dropped undecodable message")

			continue
		}

		deliver := !(o.ignoreDeletes && entry.Operation.IsTombstone())
		if deliver {
			obs.OnEntry(entry)
		}

		if catchingUp && raw.Pending == 0 {
			catchingUp = false

			w.setState(WatcherLive)
			obs.OnEndOfInitialData()
		}
	}
}
