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

//go:generate mockgen -destination=mock_transport.go -package=kv github.com/carverauto/natskv/pkg/kv JetStreamContext

package kv

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
)

// JetStreamContext is the subset of the JetStream stream administration
// and publish surface the KV subsystem depends on (spec.md §6: "the
// generic JetStream stream/consumer administration surface ... consumed
// through the interfaces described in §6"). In production it is
// satisfied by natsContext (jsadapter.go), backed by
// github.com/nats-io/nats.go/jetstream; in tests it is satisfied by
// fakeJetStream (fake_jetstream_test.go).
type JetStreamContext interface {
	// AddStream creates a new backing stream. Returns *Error{Code:
	// CodeAlreadyExists} if a stream by that name already exists.
	AddStream(ctx context.Context, cfg StreamConfig) (StreamHandle, error)
	// UpdateStream updates an existing stream's configuration.
	UpdateStream(ctx context.Context, cfg StreamConfig) (StreamHandle, error)
	// Stream returns a handle to an existing stream, or *Error{Code:
	// CodeNotFound}.
	Stream(ctx context.Context, name string) (StreamHandle, error)
	// DeleteStream removes a stream, or *Error{Code: CodeNotFound} if
	// absent.
	DeleteStream(ctx context.Context, name string) error
	// StreamNames lists every stream name known to the account.
	StreamNames(ctx context.Context) ([]string, error)
	// Publish sends payload with hdr to subject, honoring opts (in
	// particular an expected-last-subject-sequence precondition).
	Publish(ctx context.Context, subject string, hdr nats.Header, payload []byte, opts PublishOpts) (*PubAck, error)
}

// StreamHandle is the subset of per-stream operations the KV subsystem
// needs: direct get by subject/sequence, subject-scoped purge, and
// ephemeral ordered consumers for keys/history/watch scans.
type StreamHandle interface {
	Info(ctx context.Context) (*StreamInfo, error)
	// GetLastMsgForSubject returns the newest message on subject, or
	// *Error{Code: CodeNotFound} if the subject has no messages.
	GetLastMsgForSubject(ctx context.Context, subject string) (*RawMessage, error)
	// GetMsg returns the message at sequence seq, or *Error{Code:
	// CodeNotFound}.
	GetMsg(ctx context.Context, seq uint64) (*RawMessage, error)
	// Purge removes messages per opts (subject filter and/or keep count).
	Purge(ctx context.Context, opts PurgeOpts) error
	// Consume opens a short-lived or long-lived ephemeral, ack-none,
	// ordered consumer over cfg's filter and delivery policy.
	Consume(ctx context.Context, cfg ConsumerConfig) (MessageIterator, error)
}

// MessageIterator drains an ephemeral consumer created via
// StreamHandle.Consume. Next blocks until a message arrives, the
// context is done, or Stop has been called; in the last two cases it
// returns the context's error or ErrIteratorStopped. Callers read
// RawMessage.Pending, not a separate iterator-level count, to learn how
// many matching messages remain undelivered.
type MessageIterator interface {
	Next(ctx context.Context) (*RawMessage, error)
	Stop() error
}

// ErrIteratorStopped is returned by MessageIterator.Next after Stop has
// been called.
var ErrIteratorStopped = newError(CodeTransport, "message iterator stopped")

// DeliverPolicy selects which messages an ephemeral consumer replays
// before switching to live delivery.
type DeliverPolicy int

const (
	// DeliverAll replays every retained message on the filter (used by
	// History and watchers with INCLUDE_HISTORY).
	DeliverAll DeliverPolicy = iota
	// DeliverLastPerSubject replays only the newest retained message per
	// subject (used by Keys and the default watcher mode).
	DeliverLastPerSubject
	// DeliverNew skips all retained data (used by watchers with
	// UPDATES_ONLY).
	DeliverNew
)

// ConsumerConfig describes an ephemeral, ack-none ordered consumer.
type ConsumerConfig struct {
	FilterSubject string
	DeliverPolicy DeliverPolicy
	HeadersOnly   bool
}

// PublishOpts carries per-publish preconditions.
type PublishOpts struct {
	// ExpectedLastSubjectSequence, when non-nil, is sent as
	// Nats-Expected-Last-Subject-Sequence.
	ExpectedLastSubjectSequence *uint64
	// NoAck publishes without waiting for the server's PubAck (spec.md
	// §6 "publish-no-ack"). The returned *PubAck carries Sequence 0.
	// Only meaningful when ExpectedLastSubjectSequence is nil: a
	// concurrency-checked publish always needs the ack to learn whether
	// the precondition held.
	NoAck bool
}

// PurgeOpts restricts a stream purge to a subject, optionally keeping
// the newest Keep messages (see SPEC_FULL.md's PurgeOptions supplement).
type PurgeOpts struct {
	Subject string
	Keep    uint64
}

// PubAck is the server's acknowledgement of a successful publish.
type PubAck struct {
	Stream   string
	Sequence uint64
}

// RawMessage is a decoded stream message as delivered by a direct get or
// a consumer, before entry-codec projection (see entry.go).
type RawMessage struct {
	Subject   string
	Header    nats.Header
	Data      []byte
	Sequence  uint64
	Timestamp time.Time
	// Pending is the number of matching messages left undelivered after
	// this one, as reported by the transport (only meaningful for
	// messages delivered by a consumer, not direct gets).
	Pending uint64
}

// StreamConfig is the backing-stream configuration derived from a
// bucket Config by streamConfigFromKV (config.go).
type StreamConfig struct {
	Name              string
	Subjects          []string
	Description       string
	MaxMsgsPerSubject int64
	MaxBytes          int64
	MaxMsgSize        int32
	MaxAge            time.Duration
	DuplicateWindow   time.Duration
	Storage           StorageType
	Replicas          int
	AllowRollup       bool
	DenyDelete        bool
	DenyPurge         bool
	Placement         *Placement
	RePublish         *RePublish
}

// StreamInfo is a read-only projection of a backing stream's state.
type StreamInfo struct {
	Config   StreamConfig
	Messages uint64
	Bytes    uint64
	// Mirror is non-nil when the backing stream mirrors another stream
	// (SPEC_FULL.md supplement 2); Manager never creates mirrored
	// buckets itself, this is a read-only projection.
	Mirror *MirrorStatus
}

// MirrorStatus reports mirror-source lag for a mirrored backing stream.
type MirrorStatus struct {
	Name   string
	Lag    uint64
	Active bool
}
