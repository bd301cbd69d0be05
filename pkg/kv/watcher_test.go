package kv

import (
	"context"
	"testing"
	"time"
)

func TestWatcherStateReachesLiveThenClosed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Config{Bucket: "b", MaxHistory: 5})

	if _, err := s.Put(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	obs := newCollectingObserver()

	w, err := s.WatchAll(ctx, obs, IncludeHistory())
	if err != nil {
		t.Fatalf("WatchAll() error: %v", err)
	}

	waitForEndOfData(t, obs)

	if got := w.State(); got != WatcherLive {
		t.Fatalf("State() after endOfData = %v, want WatcherLive", got)
	}

	if err := w.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe() error: %v", err)
	}

	if got := w.State(); got != WatcherClosed {
		t.Fatalf("State() after Unsubscribe() = %v, want WatcherClosed", got)
	}
}

func TestWatcherDeliversInStreamOrderAcrossKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Config{Bucket: "b", MaxHistory: 10})

	obs := newCollectingObserver()

	w, err := s.WatchAll(ctx, obs)
	if err != nil {
		t.Fatalf("WatchAll() error: %v", err)
	}
	defer func() { _ = w.Unsubscribe() }()

	waitForEndOfData(t, obs)

	for i := 0; i < 5; i++ {
		key := "k1"
		if i%2 == 0 {
			key = "k2"
		}

		if _, err := s.Put(ctx, key, []byte{byte(i)}); err != nil {
			t.Fatalf("Put(%d) error: %v", i, err)
		}
	}

	deadline := time.Now().Add(time.Second)
	for obs.len() < 5 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	entries := obs.snapshot()
	for i := 1; i < len(entries); i++ {
		if entries[i].Revision <= entries[i-1].Revision {
			t.Fatalf("entries out of stream order: %+v", entries)
		}
	}
}

func TestNewManagerAndWatchRejectsNilObserver(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Config{Bucket: "b", MaxHistory: 5})

	if _, err := s.WatchAll(ctx, nil); !isCode(err, CodeInvalidArgument) {
		t.Fatalf("WatchAll(nil) error = %v, want CodeInvalidArgument", err)
	}
}

func TestWatchRejectsIncludeHistoryAndUpdatesOnlyTogether(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, Config{Bucket: "b", MaxHistory: 5})

	_, err := s.WatchAll(ctx, newCollectingObserver(), IncludeHistory(), UpdatesOnly())
	if !isCode(err, CodeInvalidArgument) {
		t.Fatalf("WatchAll(IncludeHistory, UpdatesOnly) error = %v, want CodeInvalidArgument", err)
	}
}
