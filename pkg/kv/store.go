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
	"time"

	"github.com/nats-io/nats.go"
)

const defaultDeleteThreshold = 30 * time.Minute

// Store performs entry operations (get/put/create/update/delete/purge,
// keys/history, purge-deletes) against one open bucket (spec.md §4.4).
// It is safe for concurrent use; every method is an independent
// request/reply or a short-lived consumer drain.
type Store struct {
	js         JetStreamContext
	stream     StreamHandle
	bucket     string
	streamName string
	maxHistory uint8
	opts       managerOptions
}

// Bucket returns the name of the bucket this Store was opened against.
func (s *Store) Bucket() string { return s.bucket }

// Status returns the current status of the bucket.
func (s *Store) Status(ctx context.Context) (*Status, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.requestTimeout)
	defer cancel()

	info, err := s.stream.Info(ctx)
	if err != nil {
		return nil, mapTransportError(err)
	}

	return statusFromStreamInfo(s.bucket, info), nil
}

// Get resolves the current value of key. A missing key, or a key whose
// head is a DELETE/PURGE tombstone, resolves to (nil, nil) rather than
// an error (spec.md §3 invariant 4, §7).
func (s *Store) Get(ctx context.Context, key string) (*Entry, error) {
	return s.get(ctx, key, 0)
}

// GetRevision resolves key as of exactly revision. If the message at
// that sequence does not belong to key, or is not a PUT, it resolves to
// (nil, nil) (spec.md §4.4).
func (s *Store) GetRevision(ctx context.Context, key string, revision uint64) (*Entry, error) {
	if revision == 0 {
		return nil, newValidationError("revision must be positive")
	}

	return s.get(ctx, key, revision)
}

func (s *Store) get(ctx context.Context, key string, revision uint64) (*Entry, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.requestTimeout)
	defer cancel()

	var (
		raw *RawMessage
		err error
	)

	if revision == 0 {
		raw, err = s.stream.GetLastMsgForSubject(ctx, Subject(s.bucket, key))
	} else {
		raw, err = s.stream.GetMsg(ctx, revision)
	}

	if err != nil {
		if isNotFound(err) {
			return nil, nil //nolint:nilnil // absent key is a successful result, spec.md §7
		}

		return nil, mapTransportError(err)
	}

	if revision != 0 {
		wantSubject := Subject(s.bucket, key)
		if raw.Subject != wantSubject {
			return nil, nil //nolint:nilnil // revision belongs to a different key
		}
	}

	entry, err := decodeEntry(s.bucket, raw)
	if err != nil {
		return nil, err
	}

	if entry.Operation != OpPut {
		return nil, nil //nolint:nilnil // tombstone head resolves to absent
	}

	return entry, nil
}

func isNotFound(err error) bool {
	var kvErr *Error
	if errors.As(err, &kvErr) {
		return kvErr.Code == CodeNotFound
	}

	return false
}

// Put stores value under key unconditionally and returns the assigned
// revision, or 0 if the Store was opened with WithPublishNoAck: the
// publish does not wait for the server's acknowledgement, so no
// revision is available (spec.md §6 "publish-no-ack").
func (s *Store) Put(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}

	return s.publish(ctx, key, nil, value, PublishOpts{})
}

// Create stores value under key only if it is currently absent. If the
// key's current head is a DELETE/PURGE tombstone, Create retries once as
// Update at the tombstone's revision (spec.md §4.4, §9 open question);
// if the key is live, it fails with *Error{Code: CodeWrongLastSequence}.
func (s *Store) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}

	zero := uint64(0)

	rev, err := s.publish(ctx, key, nil, value, PublishOpts{ExpectedLastSubjectSequence: &zero})
	if err == nil {
		return rev, nil
	}

	var kvErr *Error
	if !errors.As(err, &kvErr) || kvErr.Code != CodeWrongLastSequence {
		return 0, err
	}

	head, getErr := s.get(ctx, key, 0)
	if getErr != nil {
		return 0, getErr
	}

	if head != nil {
		// Live key: the original WrongLastSequence stands.
		return 0, err
	}

	headRevision, tombstoneErr := s.headRevision(ctx, key)
	if tombstoneErr != nil {
		return 0, err
	}

	return s.Update(ctx, key, value, headRevision)
}

// headRevision returns the revision of the current head message for
// key, tombstone or not, or *Error{Code: CodeNotFound} if the key has
// never been written.
func (s *Store) headRevision(ctx context.Context, key string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.requestTimeout)
	defer cancel()

	raw, err := s.stream.GetLastMsgForSubject(ctx, Subject(s.bucket, key))
	if err != nil {
		return 0, mapTransportError(err)
	}

	return raw.Sequence, nil
}

// Update stores value under key only if the current head revision is
// exactly expectedRevision (spec.md §4.4).
func (s *Store) Update(ctx context.Context, key string, value []byte, expectedRevision uint64) (uint64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}

	exp := expectedRevision

	return s.publish(ctx, key, nil, value, PublishOpts{ExpectedLastSubjectSequence: &exp})
}

// Delete marks key as deleted. It always succeeds; there is no
// expected-sequence precondition (spec.md §4.4).
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	hdr := nats.Header{HeaderOperation: []string{opValueDelete}}

	_, err := s.publish(ctx, key, hdr, nil, PublishOpts{})

	return err
}

// Purge collapses all prior history of key into a single tombstone
// message (spec.md §4.4).
func (s *Store) Purge(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	hdr := nats.Header{
		HeaderOperation: []string{opValuePurge},
		HeaderRollup:    []string{rollupValue},
	}

	_, err := s.publish(ctx, key, hdr, nil, PublishOpts{})

	return err
}

func (s *Store) publish(ctx context.Context, key string, hdr nats.Header, value []byte, opts PublishOpts) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.requestTimeout)
	defer cancel()

	// A concurrency-checked publish always needs the ack to learn
	// whether ExpectedLastSubjectSequence held; NoAck only applies to
	// unconditional writes (Put, Delete, Purge).
	if s.opts.publishNoAck && opts.ExpectedLastSubjectSequence == nil {
		opts.NoAck = true
	}

	ack, err := s.js.Publish(ctx, Subject(s.bucket, key), hdr, value, opts)
	if err != nil {
		return 0, mapTransportError(err)
	}

	return ack.Sequence, nil
}

// Keys returns every key in the bucket whose current head is a PUT,
// via a short-lived last-per-subject consumer scan (spec.md §4.4). An
// empty bucket returns an empty, non-error result.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	entries, err := s.scan(ctx, AllKeysFilter(s.bucket), DeliverLastPerSubject, true)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.Operation == OpPut {
			keys = append(keys, e.Key)
		}
	}

	return keys, nil
}

// History returns every retained entry for key in ascending revision
// order, via a short-lived deliver-all consumer scan (spec.md §4.4). A
// PURGE, if present, is always the first surviving element (spec.md §3
// invariant 5) because the server has already collapsed everything
// before it.
func (s *Store) History(ctx context.Context, key string) ([]*Entry, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	return s.scan(ctx, Subject(s.bucket, key), DeliverAll, false)
}

// scan drains a short-lived ephemeral consumer to completion (delta==0)
// and returns every entry observed, headers-only when headersOnly is
// set (spec.md §4.4, §9: "a short-lived consumer rather than the admin
// API because only per-subject heads are required").
func (s *Store) scan(ctx context.Context, filter string, policy DeliverPolicy, headersOnly bool) ([]*Entry, error) {
	singleKey := ""
	if filter != AllKeysFilter(s.bucket) {
		singleKey, _ = KeyFromSubject(s.bucket, filter)
	}

	// A consumer over a filter with no messages never delivers one to end
	// the drain, so an empty result is detected before it is opened.
	hasData, err := s.hasInitialData(ctx, singleKey, policy)
	if err != nil {
		return nil, err
	}

	if !hasData {
		return nil, nil
	}

	it, err := s.stream.Consume(ctx, ConsumerConfig{
		FilterSubject: filter,
		DeliverPolicy: policy,
		HeadersOnly:   headersOnly,
	})
	if err != nil {
		return nil, mapTransportError(err)
	}
	defer func() { _ = it.Stop() }()

	var entries []*Entry

	for {
		raw, err := it.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrIteratorStopped) {
				break
			}

			return nil, mapTransportError(err)
		}

		entry, err := decodeEntry(s.bucket, raw)
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)

		if raw.Pending == 0 {
			break
		}
	}

	return entries, nil
}

// PurgeDeletes scans every key's head via the same short-lived consumer
// keys() uses, and issues a subject-scoped stream purge for every key
// whose head is a DELETE/PURGE older than the threshold (spec.md §4.4).
// Processing halts and returns the first failure (spec.md §7).
func (s *Store) PurgeDeletes(ctx context.Context, opts ...PurgeDeletesOption) error {
	var o purgeDeletesOptions
	for _, opt := range opts {
		opt(&o)
	}

	threshold := s.resolveDeleteThreshold(o)

	heads, err := s.scan(ctx, AllKeysFilter(s.bucket), DeliverLastPerSubject, false)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-threshold)
	unconditional := threshold < 0

	for _, head := range heads {
		if !head.Operation.IsTombstone() {
			continue
		}

		if !unconditional && head.Created.After(cutoff) {
			continue
		}

		ctx, cancel := context.WithTimeout(ctx, s.opts.requestTimeout)
		err := s.stream.Purge(ctx, PurgeOpts{Subject: Subject(s.bucket, head.Key), Keep: 0})
		cancel()

		if err != nil {
			return mapTransportError(err)
		}
	}

	return nil
}

func (s *Store) resolveDeleteThreshold(o purgeDeletesOptions) time.Duration {
	if o.thresholdSet {
		return normalizeThreshold(o.threshold)
	}

	if s.opts.deleteThresholdSet {
		return normalizeThreshold(s.opts.deleteThreshold)
	}

	return defaultDeleteThreshold
}

// normalizeThreshold applies the §4.4 threshold rules: null/0 -> default,
// positive -> as-is, negative -> unconditional (returned as -1 so the
// caller's cutoff comparison is skipped entirely).
func normalizeThreshold(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return defaultDeleteThreshold
	case d < 0:
		return -1
	default:
		return d
	}
}

// WatchAll attaches obs to every key in the bucket (subject pattern ">",
// spec.md §4.6). The returned Watcher runs until its context is done or
// Unsubscribe is called.
func (s *Store) WatchAll(ctx context.Context, obs Observer, opts ...WatchOption) (*Watcher, error) {
	return s.watch(ctx, AllKeysFilter(s.bucket), "", obs, opts...)
}

// Watch attaches obs to keyPattern, which may be an exact key or a
// wildcarded pattern ("cfg.*", "cfg.>") per spec.md §4.6.
func (s *Store) Watch(ctx context.Context, keyPattern string, obs Observer, opts ...WatchOption) (*Watcher, error) {
	if keyPattern == "" {
		return nil, newValidationError("key pattern must not be empty")
	}

	return s.watch(ctx, KeyFilter(s.bucket, keyPattern), keyPattern, obs, opts...)
}

func (s *Store) watch(ctx context.Context, filter, singleKey string, obs Observer, opts ...WatchOption) (*Watcher, error) {
	if obs == nil {
		return nil, newValidationError("observer must not be nil")
	}

	o, err := resolveWatchOptions(opts...)
	if err != nil {
		return nil, err
	}

	policy := o.deliverPolicy()

	hasInitialData, err := s.hasInitialData(ctx, singleKey, policy)
	if err != nil {
		return nil, err
	}

	it, err := s.stream.Consume(ctx, ConsumerConfig{
		FilterSubject: filter,
		DeliverPolicy: policy,
		HeadersOnly:   o.metaOnly,
	})
	if err != nil {
		return nil, mapTransportError(err)
	}

	return newWatcher(ctx, s.bucket, it, o, obs, hasInitialData, s.opts.logger), nil
}

// hasInitialData reports whether a newly created watcher over policy has
// any retained data to replay, so newWatcher knows whether to enter
// CatchingUp or go straight to Live (spec.md §4.6). DeliverNew never
// replays. A bucket-wide watch checks the stream's total message count;
// a single-key watch checks that key's current head directly, since the
// stream total says nothing about one subject.
func (s *Store) hasInitialData(ctx context.Context, singleKey string, policy DeliverPolicy) (bool, error) {
	if policy == DeliverNew {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.requestTimeout)
	defer cancel()

	if singleKey == "" {
		info, err := s.stream.Info(ctx)
		if err != nil {
			return false, mapTransportError(err)
		}

		return info.Messages > 0, nil
	}

	_, err := s.stream.GetLastMsgForSubject(ctx, Subject(s.bucket, singleKey))
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}

		return false, mapTransportError(err)
	}

	return true, nil
}
