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
	"time"

	"github.com/carverauto/natskv/pkg/logger"
)

const defaultRequestTimeout = 5 * time.Second

// managerOptions holds the option set for Manager and, once a bucket is
// opened, the Store built on top of it (spec.md §6: "API subject prefix,
// domain, request timeout, delete-marker threshold, publish-no-ack").
type managerOptions struct {
	domain            string
	apiPrefix         string
	requestTimeout    time.Duration
	maxDupWindow      time.Duration
	publishNoAck      bool
	deleteThreshold   time.Duration
	deleteThresholdSet bool
	logger            logger.Logger
}

func defaultManagerOptions() managerOptions {
	return managerOptions{
		requestTimeout: defaultRequestTimeout,
		maxDupWindow:   maxDefaultDupWindow,
		logger:         logger.NewTestLogger(),
	}
}

// Option configures a Manager or a Store opened from one.
type Option func(*managerOptions)

// WithDomain records a JetStream domain in the option set. Manager and
// Store do not read it: the domain their calls go to is fixed by the
// JetStreamContext passed to NewManager (see NewJetStreamContext).
func WithDomain(domain string) Option {
	return func(o *managerOptions) { o.domain = domain }
}

// WithAPIPrefix records a $JS.API.* subject prefix in the option set.
// Manager and Store do not read it: the prefix their calls use is fixed
// by the JetStreamContext passed to NewManager (see NewJetStreamContext).
func WithAPIPrefix(prefix string) Option {
	return func(o *managerOptions) { o.apiPrefix = prefix }
}

// WithRequestTimeout overrides the default per-request timeout used by
// administrative calls and direct gets.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *managerOptions) { o.requestTimeout = d }
}

// WithMaxDuplicateWindow caps the duplicate window derived from a
// bucket's TTL (SPEC_FULL.md supplement 1). Zero disables capping.
func WithMaxDuplicateWindow(d time.Duration) Option {
	return func(o *managerOptions) { o.maxDupWindow = d }
}

// WithPublishNoAck skips waiting for a publish acknowledgement on
// mutations where the caller does not need the assigned revision.
func WithPublishNoAck(noAck bool) Option {
	return func(o *managerOptions) { o.publishNoAck = noAck }
}

// WithDeleteMarkerThreshold sets the default tombstone age PurgeDeletes
// uses when none is passed to the call itself (spec.md §4.4).
func WithDeleteMarkerThreshold(d time.Duration) Option {
	return func(o *managerOptions) {
		o.deleteThreshold = d
		o.deleteThresholdSet = true
	}
}

// WithLogger attaches a structured logger; defaults to a disabled
// logger.NewTestLogger().
func WithLogger(l logger.Logger) Option {
	return func(o *managerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// watchOptions selects a watcher's replay/filter behavior (spec.md
// §4.6).
type watchOptions struct {
	includeHistory bool
	updatesOnly    bool
	ignoreDeletes  bool
	metaOnly       bool
}

// WatchOption configures a call to Store.Watch/WatchAll.
type WatchOption func(*watchOptions)

// IncludeHistory replays full retained history before switching to live
// tail. Incompatible with UpdatesOnly.
func IncludeHistory() WatchOption {
	return func(o *watchOptions) { o.includeHistory = true }
}

// UpdatesOnly skips all retained data; the observer only sees messages
// arriving after subscription. Incompatible with IncludeHistory.
func UpdatesOnly() WatchOption {
	return func(o *watchOptions) { o.updatesOnly = true }
}

// IgnoreDeletes filters out DELETE and PURGE entries before delivery.
func IgnoreDeletes() WatchOption {
	return func(o *watchOptions) { o.ignoreDeletes = true }
}

// MetaOnly requests headers-only delivery from the server; the observer
// receives entries with an empty Value but a correct Delta/Revision.
func MetaOnly() WatchOption {
	return func(o *watchOptions) { o.metaOnly = true }
}

func resolveWatchOptions(opts ...WatchOption) (watchOptions, error) {
	var o watchOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.includeHistory && o.updatesOnly {
		return o, newValidationError("INCLUDE_HISTORY and UPDATES_ONLY are mutually exclusive")
	}

	return o, nil
}

func (o watchOptions) deliverPolicy() DeliverPolicy {
	switch {
	case o.includeHistory:
		return DeliverAll
	case o.updatesOnly:
		return DeliverNew
	default:
		return DeliverLastPerSubject
	}
}

// PurgeDeletesOption configures a call to Store.PurgeDeletes.
type PurgeDeletesOption func(*purgeDeletesOptions)

type purgeDeletesOptions struct {
	threshold    time.Duration
	thresholdSet bool
}

// WithPurgeDeletesThreshold overrides the tombstone age threshold for a
// single PurgeDeletes call (spec.md §4.4): zero means the default
// (30 minutes), negative means no threshold (purge all tombstones
// regardless of age), positive is used as-is.
func WithPurgeDeletesThreshold(d time.Duration) PurgeDeletesOption {
	return func(o *purgeDeletesOptions) {
		o.threshold = d
		o.thresholdSet = true
	}
}
