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
	"strings"
)

// Manager creates, updates, deletes, lists, and inspects KV buckets
// (spec.md §4.2). It is safe for concurrent use.
type Manager struct {
	js   JetStreamContext
	opts managerOptions
}

// NewManager wraps js (the underlying JetStream administration and
// publish surface, spec.md §6) into a bucket manager.
func NewManager(js JetStreamContext, opts ...Option) *Manager {
	o := defaultManagerOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Manager{js: js, opts: o}
}

// CreateBucket creates a new bucket, translating cfg into a backing
// stream configuration (spec.md §3, §4.2). It fails with
// *Error{Code: CodeAlreadyExists} if the stream already exists.
func (m *Manager) CreateBucket(ctx context.Context, cfg Config) (*Status, error) {
	if err := ValidateBucketName(cfg.Bucket); err != nil {
		return nil, err
	}

	cfg = cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	scfg := streamConfigFromKV(cfg, m.opts.maxDupWindow)

	ctx, cancel := context.WithTimeout(ctx, m.opts.requestTimeout)
	defer cancel()

	handle, err := m.js.AddStream(ctx, scfg)
	if err != nil {
		return nil, mapTransportError(err)
	}

	info, err := handle.Info(ctx)
	if err != nil {
		return nil, mapTransportError(err)
	}

	m.opts.logger.Info().Str("bucket", cfg.Bucket).Msg("created bucket")

	return statusFromStreamInfo(cfg.Bucket, info), nil
}

// UpdateBucket updates an existing bucket's configuration. Storage type
// changes are rejected client-side (spec.md §3 invariant 6, §4.2)
// before the request is ever sent.
func (m *Manager) UpdateBucket(ctx context.Context, cfg Config) (*Status, error) {
	if err := ValidateBucketName(cfg.Bucket); err != nil {
		return nil, err
	}

	cfg = cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.requestTimeout)
	defer cancel()

	current, err := m.js.Stream(ctx, StreamName(cfg.Bucket))
	if err != nil {
		return nil, mapTransportError(err)
	}

	currentInfo, err := current.Info(ctx)
	if err != nil {
		return nil, mapTransportError(err)
	}

	if currentInfo.Config.Storage != cfg.Storage {
		return nil, newValidationError("storage type is immutable after bucket creation")
	}

	scfg := streamConfigFromKV(cfg, m.opts.maxDupWindow)

	handle, err := m.js.UpdateStream(ctx, scfg)
	if err != nil {
		return nil, mapTransportError(err)
	}

	info, err := handle.Info(ctx)
	if err != nil {
		return nil, mapTransportError(err)
	}

	return statusFromStreamInfo(cfg.Bucket, info), nil
}

// DeleteBucket deletes bucket's backing stream, returning
// *Error{Code: CodeNotFound} if it does not exist.
func (m *Manager) DeleteBucket(ctx context.Context, bucket string) error {
	if err := ValidateBucketName(bucket); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.requestTimeout)
	defer cancel()

	if err := m.js.DeleteStream(ctx, StreamName(bucket)); err != nil {
		return mapTransportError(err)
	}

	m.opts.logger.Info().Str("bucket", bucket).Msg("deleted bucket")

	return nil
}

// BucketInfo returns the current status of bucket.
func (m *Manager) BucketInfo(ctx context.Context, bucket string) (*Status, error) {
	if err := ValidateBucketName(bucket); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.requestTimeout)
	defer cancel()

	handle, err := m.js.Stream(ctx, StreamName(bucket))
	if err != nil {
		return nil, mapTransportError(err)
	}

	info, err := handle.Info(ctx)
	if err != nil {
		return nil, mapTransportError(err)
	}

	return statusFromStreamInfo(bucket, info), nil
}

// ListBuckets returns every KV-backed bucket name known to the account
// (spec.md §4.2: streams whose name begins with "KV_", prefix
// stripped).
func (m *Manager) ListBuckets(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.requestTimeout)
	defer cancel()

	names, err := m.js.StreamNames(ctx)
	if err != nil {
		return nil, mapTransportError(err)
	}

	buckets := make([]string, 0, len(names))

	for _, name := range names {
		if !strings.HasPrefix(name, streamPrefix) {
			continue
		}

		bucket, ok := BucketFromStreamName(name)
		if ok {
			buckets = append(buckets, bucket)
		}
	}

	return buckets, nil
}

// KeyValue opens an existing bucket for entry operations (spec.md §4.4).
// The bucket's current configuration is read once to learn its history
// cap.
func (m *Manager) KeyValue(ctx context.Context, bucket string) (*Store, error) {
	if err := ValidateBucketName(bucket); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.requestTimeout)
	defer cancel()

	streamName := StreamName(bucket)

	handle, err := m.js.Stream(ctx, streamName)
	if err != nil {
		return nil, mapTransportError(err)
	}

	info, err := handle.Info(ctx)
	if err != nil {
		return nil, mapTransportError(err)
	}

	return &Store{
		js:         m.js,
		stream:     handle,
		bucket:     bucket,
		streamName: streamName,
		maxHistory: uint8(info.Config.MaxMsgsPerSubject), //nolint:gosec // bounded 1-64 by validate()
		opts:       m.opts,
	}, nil
}
