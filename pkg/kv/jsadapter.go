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
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// natsContext adapts a real github.com/nats-io/nats.go/jetstream context
// to JetStreamContext (transport.go). It is the only file in this
// package that imports jetstream directly; everything else depends on
// the narrow interfaces so it can be exercised against fakeJetStream in
// tests (spec.md §6).
type natsContext struct {
	js jetstream.JetStream
}

// NewJetStreamContext wraps nc's JetStream context for use with
// NewManager. A non-empty domain selects that JetStream domain;
// otherwise a non-empty apiPrefix replaces the $JS.API prefix (spec.md
// §4.5).
func NewJetStreamContext(nc *nats.Conn, domain, apiPrefix string) (JetStreamContext, error) {
	var (
		js  jetstream.JetStream
		err error
	)

	switch {
	case domain != "":
		js, err = jetstream.NewWithDomain(nc, domain)
	case apiPrefix != "":
		js, err = jetstream.NewWithAPIPrefix(nc, apiPrefix)
	default:
		js, err = jetstream.New(nc)
	}

	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &natsContext{js: js}, nil
}

func (c *natsContext) AddStream(ctx context.Context, cfg StreamConfig) (StreamHandle, error) {
	s, err := c.js.CreateStream(ctx, toJSStreamConfig(cfg))
	if err != nil {
		return nil, translateJSError(err)
	}

	return &natsStream{stream: s}, nil
}

func (c *natsContext) UpdateStream(ctx context.Context, cfg StreamConfig) (StreamHandle, error) {
	s, err := c.js.UpdateStream(ctx, toJSStreamConfig(cfg))
	if err != nil {
		return nil, translateJSError(err)
	}

	return &natsStream{stream: s}, nil
}

func (c *natsContext) Stream(ctx context.Context, name string) (StreamHandle, error) {
	s, err := c.js.Stream(ctx, name)
	if err != nil {
		return nil, translateJSError(err)
	}

	return &natsStream{stream: s}, nil
}

func (c *natsContext) DeleteStream(ctx context.Context, name string) error {
	return translateJSError(c.js.DeleteStream(ctx, name))
}

func (c *natsContext) StreamNames(ctx context.Context) ([]string, error) {
	lister := c.js.StreamNames(ctx)

	var names []string
	for name := range lister.Name() {
		names = append(names, name)
	}

	if err := lister.Err(); err != nil && !errors.Is(err, jetstream.ErrEndOfData) {
		return nil, translateJSError(err)
	}

	return names, nil
}

func (c *natsContext) Publish(
	ctx context.Context, subject string, hdr nats.Header, payload []byte, opts PublishOpts,
) (*PubAck, error) {
	msg := &nats.Msg{Subject: subject, Header: hdr, Data: payload}

	var jsOpts []jetstream.PublishOpt
	if opts.ExpectedLastSubjectSequence != nil {
		jsOpts = append(jsOpts, jetstream.WithExpectLastSequencePerSubject(*opts.ExpectedLastSubjectSequence))
	}

	if opts.NoAck {
		if _, err := c.js.PublishMsgAsync(msg, jsOpts...); err != nil {
			return nil, translateJSError(err)
		}

		return &PubAck{}, nil
	}

	ack, err := c.js.PublishMsg(ctx, msg, jsOpts...)
	if err != nil {
		return nil, translateJSError(err)
	}

	return &PubAck{Stream: ack.Stream, Sequence: ack.Sequence}, nil
}

type natsStream struct {
	stream jetstream.Stream
}

func (s *natsStream) Info(ctx context.Context) (*StreamInfo, error) {
	info, err := s.stream.Info(ctx)
	if err != nil {
		return nil, translateJSError(err)
	}

	return fromJSStreamInfo(info), nil
}

func (s *natsStream) GetLastMsgForSubject(ctx context.Context, subject string) (*RawMessage, error) {
	msg, err := s.stream.GetLastMsgForSubject(ctx, subject)
	if err != nil {
		return nil, translateJSError(err)
	}

	return fromJSRawStreamMsg(msg), nil
}

func (s *natsStream) GetMsg(ctx context.Context, seq uint64) (*RawMessage, error) {
	msg, err := s.stream.GetMsg(ctx, seq)
	if err != nil {
		return nil, translateJSError(err)
	}

	return fromJSRawStreamMsg(msg), nil
}

func (s *natsStream) Purge(ctx context.Context, opts PurgeOpts) error {
	var jsOpts []jetstream.StreamPurgeOpt

	if opts.Subject != "" {
		jsOpts = append(jsOpts, jetstream.WithPurgeSubject(opts.Subject))
	}

	if opts.Keep > 0 {
		jsOpts = append(jsOpts, jetstream.WithPurgeKeep(opts.Keep))
	}

	return translateJSError(s.stream.Purge(ctx, jsOpts...))
}

func (s *natsStream) Consume(ctx context.Context, cfg ConsumerConfig) (MessageIterator, error) {
	consumer, err := s.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{cfg.FilterSubject},
		DeliverPolicy:  toJSDeliverPolicy(cfg.DeliverPolicy),
		HeadersOnly:    cfg.HeadersOnly,
	})
	if err != nil {
		return nil, translateJSError(err)
	}

	msgs, err := consumer.Messages()
	if err != nil {
		return nil, translateJSError(err)
	}

	return &natsIterator{msgs: msgs}, nil
}

type natsIterator struct {
	msgs jetstream.MessagesContext
}

func (it *natsIterator) Next(ctx context.Context) (*RawMessage, error) {
	// msgs.Next takes no context; stopping the iterator when ctx is done
	// is what unblocks it.
	stop := context.AfterFunc(ctx, it.msgs.Stop)
	defer stop()

	msg, err := it.msgs.Next()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if errors.Is(err, jetstream.ErrMsgIteratorClosed) {
			return nil, ErrIteratorStopped
		}

		return nil, translateJSError(err)
	}

	if err := msg.Ack(); err != nil {
		// AckNonePolicy consumers don't require acks; a failure here
		// never affects delivery correctness.
		_ = err
	}

	meta, err := msg.Metadata()
	if err != nil {
		return nil, translateJSError(err)
	}

	return &RawMessage{
		Subject:   msg.Subject(),
		Header:    msg.Headers(),
		Data:      msg.Data(),
		Sequence:  meta.Sequence.Stream,
		Timestamp: meta.Timestamp,
		Pending:   meta.NumPending,
	}, nil
}

func (it *natsIterator) Stop() error {
	it.msgs.Stop()

	return nil
}

func toJSStreamConfig(cfg StreamConfig) jetstream.StreamConfig {
	scfg := jetstream.StreamConfig{
		Name:              cfg.Name,
		Subjects:          cfg.Subjects,
		Description:       cfg.Description,
		MaxMsgsPerSubject: cfg.MaxMsgsPerSubject,
		MaxBytes:          cfg.MaxBytes,
		MaxMsgSize:        cfg.MaxMsgSize,
		MaxAge:            cfg.MaxAge,
		Duplicates:        cfg.DuplicateWindow,
		Storage:           toJSStorageType(cfg.Storage),
		Replicas:          cfg.Replicas,
		AllowRollup:       cfg.AllowRollup,
		DenyDelete:        cfg.DenyDelete,
		DenyPurge:         cfg.DenyPurge,
		AllowDirect:       true,
	}

	if cfg.Placement != nil {
		scfg.Placement = &jetstream.Placement{Cluster: cfg.Placement.Cluster, Tags: cfg.Placement.Tags}
	}

	if cfg.RePublish != nil {
		scfg.RePublish = &jetstream.RePublish{
			Source:      cfg.RePublish.Source,
			Destination: cfg.RePublish.Destination,
			HeadersOnly: cfg.RePublish.HeadersOnly,
		}
	}

	return scfg
}

func toJSStorageType(s StorageType) jetstream.StorageType {
	if s == MemoryStorage {
		return jetstream.MemoryStorage
	}

	return jetstream.FileStorage
}

func toJSDeliverPolicy(p DeliverPolicy) jetstream.DeliverPolicy {
	switch p {
	case DeliverLastPerSubject:
		return jetstream.DeliverLastPerSubjectPolicy
	case DeliverNew:
		return jetstream.DeliverNewPolicy
	default:
		return jetstream.DeliverAllPolicy
	}
}

func fromJSStreamInfo(info *jetstream.StreamInfo) *StreamInfo {
	si := &StreamInfo{
		Config: StreamConfig{
			Name:              info.Config.Name,
			Subjects:          info.Config.Subjects,
			Description:       info.Config.Description,
			MaxMsgsPerSubject: info.Config.MaxMsgsPerSubject,
			MaxBytes:          info.Config.MaxBytes,
			MaxMsgSize:        info.Config.MaxMsgSize,
			MaxAge:            info.Config.MaxAge,
			DuplicateWindow:   info.Config.Duplicates,
			Replicas:          info.Config.Replicas,
			AllowRollup:       info.Config.AllowRollup,
			DenyDelete:        info.Config.DenyDelete,
			DenyPurge:         info.Config.DenyPurge,
		},
		Messages: info.State.Msgs,
		Bytes:    info.State.Bytes,
	}

	if info.Config.Storage == jetstream.MemoryStorage {
		si.Config.Storage = MemoryStorage
	} else {
		si.Config.Storage = FileStorage
	}

	if info.Mirror != nil {
		si.Mirror = &MirrorStatus{
			Name:   info.Mirror.Name,
			Lag:    info.Mirror.Lag,
			Active: info.Mirror.Active >= 0,
		}
	}

	return si
}

func fromJSRawStreamMsg(msg *jetstream.RawStreamMsg) *RawMessage {
	return &RawMessage{
		Subject:   msg.Subject,
		Header:    msg.Header,
		Data:      msg.Data,
		Sequence:  msg.Sequence,
		Timestamp: msg.Time,
	}
}

// translateJSError funnels a jetstream package error into the taxonomy
// via mapAPIError. jetstream.APIError carries the same
// {code, err_code, description} shape as the raw JSON envelope
// apiErrorEnvelope models; anything else is passed to mapTransportError.
func translateJSError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return mapAPIError(apiErrorEnvelope{
			Status:      int(apiErr.Code),
			APICode:     int(apiErr.ErrorCode),
			Description: apiErr.Description,
		})
	}

	switch {
	case errors.Is(err, jetstream.ErrStreamNotFound), errors.Is(err, jetstream.ErrMsgNotFound),
		errors.Is(err, jetstream.ErrConsumerNotFound):
		return &Error{Code: CodeNotFound, Description: err.Error(), Cause: err}
	case errors.Is(err, jetstream.ErrStreamNameAlreadyInUse):
		return &Error{Code: CodeAlreadyExists, Description: err.Error(), Cause: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, nats.ErrTimeout):
		return ErrTimeout
	}

	return mapTransportError(err)
}
