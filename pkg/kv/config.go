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

import "time"

// StorageType selects the backing stream's storage engine. It is
// immutable after bucket creation (spec.md §3 invariant 6).
type StorageType int

const (
	FileStorage StorageType = iota
	MemoryStorage
)

func (s StorageType) String() string {
	if s == MemoryStorage {
		return "Memory"
	}

	return "File"
}

// Placement pins the backing stream to a cluster/tag set.
type Placement struct {
	Cluster string
	Tags    []string
}

// RePublish mirrors every stored message onto another subject, useful
// for fanning KV writes out to a notification subject.
type RePublish struct {
	Source      string
	Destination string
	HeadersOnly bool
}

const (
	minHistory        = 1
	maxHistory        = 64
	defaultHistory    = 1
	defaultDupWindow  = 2 * time.Minute
	maxDefaultDupWindow = 2 * time.Minute
)

// Config describes a bucket's observable options (spec.md §3).
type Config struct {
	Bucket        string
	Description   string
	MaxHistory    uint8 // maxHistoryPerKey, 1-64
	MaxValueSize  int32
	MaxBucketSize int64
	TTL           time.Duration
	Storage       StorageType
	Replicas      int
	Placement     *Placement
	RePublish     *RePublish
}

// applyDefaults fills unset fields with their documented defaults and
// returns the (possibly modified) config for chaining.
func (c Config) applyDefaults() Config {
	if c.MaxHistory == 0 {
		c.MaxHistory = defaultHistory
	}

	if c.Replicas == 0 {
		c.Replicas = 1
	}

	return c
}

// validate checks the bucket configuration per spec.md §3; it does not
// perform name validation (callers already ran ValidateBucketName).
func (c Config) validate() error {
	if c.MaxHistory < minHistory || c.MaxHistory > maxHistory {
		return newValidationError("maxHistoryPerKey must be between %d and %d, got %d", minHistory, maxHistory, c.MaxHistory)
	}

	if c.MaxBucketSize < 0 {
		return newValidationError("maxBucketSize must not be negative")
	}

	if c.MaxValueSize < 0 {
		return newValidationError("maxValueSize must not be negative")
	}

	if c.TTL < 0 {
		return newValidationError("ttl must not be negative")
	}

	if c.Replicas < 0 {
		return newValidationError("replicas must not be negative")
	}

	return nil
}

// Status is a read-only snapshot of a bucket's state, projected from
// the backing stream's StreamInfo (spec.md §4.2 info()).
type Status struct {
	Bucket      string
	Description string
	Values      uint64
	History     uint8
	TTL         time.Duration
	Bytes       uint64
	Replicas    int
	Backend     string
	Placement   *Placement
	Mirror      *MirrorStatus
}

// streamConfigFromKV translates a bucket Config into the backing stream
// configuration per spec.md §3/§6. maxDupWindow caps DuplicateWindow at
// the server-advertised maximum (SPEC_FULL.md supplement 1); a zero
// maxDupWindow disables capping.
func streamConfigFromKV(cfg Config, maxDupWindow time.Duration) StreamConfig {
	dupWindow := cfg.TTL
	if dupWindow <= 0 {
		dupWindow = defaultDupWindow
	}

	if maxDupWindow > 0 && dupWindow > maxDupWindow {
		dupWindow = maxDupWindow
	}

	return StreamConfig{
		Name:              StreamName(cfg.Bucket),
		Subjects:          StreamSubjects(cfg.Bucket),
		Description:       cfg.Description,
		MaxMsgsPerSubject: int64(cfg.MaxHistory),
		MaxBytes:          cfg.MaxBucketSize,
		MaxMsgSize:        cfg.MaxValueSize,
		MaxAge:            cfg.TTL,
		DuplicateWindow:   dupWindow,
		Storage:           cfg.Storage,
		Replicas:          cfg.Replicas,
		AllowRollup:       true,
		DenyDelete:        true,
		DenyPurge:         false,
		Placement:         cfg.Placement,
		RePublish:         cfg.RePublish,
	}
}

// statusFromStreamInfo re-projects a StreamInfo into a bucket Status
// (spec.md §4.2 info()).
func statusFromStreamInfo(bucket string, info *StreamInfo) *Status {
	return &Status{
		Bucket:      bucket,
		Description: info.Config.Description,
		Values:      info.Messages,
		History:     uint8(info.Config.MaxMsgsPerSubject), //nolint:gosec // bounded 1-64 by validate()
		TTL:         info.Config.MaxAge,
		Bytes:       info.Bytes,
		Replicas:    info.Config.Replicas,
		Backend:     info.Config.Storage.String(),
		Placement:   info.Config.Placement,
		Mirror:      info.Mirror,
	}
}
