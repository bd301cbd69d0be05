package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// fakeJetStream is an in-memory JetStreamContext used by every test in
// this package. It reimplements just enough of JetStream's semantics
// (per-subject expected-sequence preconditions, rollup-on-publish,
// max-messages-per-subject trimming, ordered ephemeral consumers with
// a snapshot-then-live delivery split) to exercise pkg/kv without a
// running server (spec.md §6: "consumed through interfaces ... so the
// core logic is testable without a live JetStream server").
type fakeJetStream struct {
	mu      sync.Mutex
	streams map[string]*fakeStream
}

func newFakeJetStream() *fakeJetStream {
	return &fakeJetStream{streams: make(map[string]*fakeStream)}
}

type fakeMsg struct {
	subject string
	header  nats.Header
	data    []byte
	seq     uint64
	ts      time.Time
}

type fakeStream struct {
	mu        sync.Mutex
	cfg       StreamConfig
	msgs      []*fakeMsg // ascending by seq
	lastSeq   map[string]uint64
	nextSeq   uint64
	consumers []*fakeConsumer
}

func (fs *fakeStream) bySubjectCount(subject string) int {
	n := 0

	for _, m := range fs.msgs {
		if m.subject == subject {
			n++
		}
	}

	return n
}

func (fs *fakeStream) removeOldestForSubject(subject string) {
	for i, m := range fs.msgs {
		if m.subject == subject {
			fs.msgs = append(fs.msgs[:i], fs.msgs[i+1:]...)
			return
		}
	}
}

func (fs *fakeStream) removeAllForSubjectFilter(filter string) {
	kept := fs.msgs[:0]

	for _, m := range fs.msgs {
		if !subjectMatches(filter, m.subject) {
			kept = append(kept, m)
		}
	}

	fs.msgs = kept
}

func (fs *fakeStream) notifyConsumers(msg *fakeMsg) {
	raw := &RawMessage{
		Subject:   msg.subject,
		Header:    msg.header,
		Data:      msg.data,
		Sequence:  msg.seq,
		Timestamp: msg.ts,
		Pending:   0,
	}

	for _, c := range fs.consumers {
		if subjectMatches(c.filter, msg.subject) {
			c.push(headerFilter(raw, c.headersOnly))
		}
	}
}

func headerFilter(raw *RawMessage, headersOnly bool) *RawMessage {
	if !headersOnly {
		return raw
	}

	clone := *raw
	clone.Data = nil

	return &clone
}

func (f *fakeJetStream) AddStream(_ context.Context, cfg StreamConfig) (StreamHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.streams[cfg.Name]; ok {
		return nil, &Error{Code: CodeAlreadyExists, APICode: 10058, Description: "stream name already in use"}
	}

	fs := &fakeStream{cfg: cfg, lastSeq: make(map[string]uint64), nextSeq: 1}
	f.streams[cfg.Name] = fs

	return &fakeStreamHandle{fs: fs}, nil
}

func (f *fakeJetStream) UpdateStream(_ context.Context, cfg StreamConfig) (StreamHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fs, ok := f.streams[cfg.Name]
	if !ok {
		return nil, &Error{Code: CodeNotFound, Description: "stream not found"}
	}

	fs.mu.Lock()
	fs.cfg = cfg
	fs.mu.Unlock()

	return &fakeStreamHandle{fs: fs}, nil
}

func (f *fakeJetStream) Stream(_ context.Context, name string) (StreamHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fs, ok := f.streams[name]
	if !ok {
		return nil, &Error{Code: CodeNotFound, Description: "stream not found"}
	}

	return &fakeStreamHandle{fs: fs}, nil
}

func (f *fakeJetStream) DeleteStream(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.streams[name]; !ok {
		return &Error{Code: CodeNotFound, Description: "stream not found"}
	}

	delete(f.streams, name)

	return nil
}

func (f *fakeJetStream) StreamNames(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.streams))
	for name := range f.streams {
		names = append(names, name)
	}

	sort.Strings(names)

	return names, nil
}

func (f *fakeJetStream) Publish(
	_ context.Context, subject string, hdr nats.Header, payload []byte, opts PublishOpts,
) (*PubAck, error) {
	streamName, fs := f.streamForSubject(subject)
	if fs == nil {
		return nil, &Error{Code: CodeNotFound, Description: "no stream matches subject " + subject}
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	last := fs.lastSeq[subject]

	if opts.ExpectedLastSubjectSequence != nil && *opts.ExpectedLastSubjectSequence != last {
		return nil, &Error{
			Code:        CodeWrongLastSequence,
			APICode:     10071,
			Description: "wrong last sequence",
		}
	}

	if isRollup(hdr) {
		fs.removeAllForSubjectFilter(subject)
	}

	seq := fs.nextSeq
	fs.nextSeq++

	msg := &fakeMsg{subject: subject, header: hdr, data: payload, seq: seq, ts: time.Now()}
	fs.msgs = append(fs.msgs, msg)
	fs.lastSeq[subject] = seq

	if fs.cfg.MaxMsgsPerSubject > 0 {
		for int64(fs.bySubjectCount(subject)) > fs.cfg.MaxMsgsPerSubject {
			fs.removeOldestForSubject(subject)
		}
	}

	fs.notifyConsumers(msg)

	if opts.NoAck {
		return &PubAck{}, nil
	}

	return &PubAck{Stream: streamName, Sequence: seq}, nil
}

func (f *fakeJetStream) streamForSubject(subject string) (string, *fakeStream) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for name, fs := range f.streams {
		for _, filter := range fs.cfg.Subjects {
			if subjectMatches(filter, subject) {
				return name, fs
			}
		}
	}

	return "", nil
}

func isRollup(hdr nats.Header) bool {
	if hdr == nil {
		return false
	}

	values := hdr[HeaderRollup]

	return len(values) > 0 && values[0] == rollupValue
}

type fakeStreamHandle struct {
	fs *fakeStream
}

func (h *fakeStreamHandle) Info(_ context.Context) (*StreamInfo, error) {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()

	var bytes uint64
	for _, m := range h.fs.msgs {
		bytes += uint64(len(m.data))
	}

	return &StreamInfo{
		Config:   h.fs.cfg,
		Messages: uint64(len(h.fs.msgs)),
		Bytes:    bytes,
	}, nil
}

func (h *fakeStreamHandle) GetLastMsgForSubject(_ context.Context, subject string) (*RawMessage, error) {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()

	for i := len(h.fs.msgs) - 1; i >= 0; i-- {
		m := h.fs.msgs[i]
		if subjectMatches(subject, m.subject) {
			return rawFromFake(m), nil
		}
	}

	return nil, &Error{Code: CodeNotFound, Description: "no message found on subject " + subject}
}

func (h *fakeStreamHandle) GetMsg(_ context.Context, seq uint64) (*RawMessage, error) {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()

	for _, m := range h.fs.msgs {
		if m.seq == seq {
			return rawFromFake(m), nil
		}
	}

	return nil, &Error{Code: CodeNotFound, Description: "no message at that sequence"}
}

func (h *fakeStreamHandle) Purge(_ context.Context, opts PurgeOpts) error {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()

	filter := opts.Subject
	if filter == "" {
		filter = ">"
	}

	var matching []*fakeMsg

	for _, m := range h.fs.msgs {
		if subjectMatches(filter, m.subject) {
			matching = append(matching, m)
		}
	}

	remove := make(map[uint64]bool)

	switch {
	case opts.Keep > 0:
		if uint64(len(matching)) > opts.Keep {
			for _, m := range matching[:uint64(len(matching))-opts.Keep] {
				remove[m.seq] = true
			}
		}
	default:
		for _, m := range matching {
			remove[m.seq] = true
		}
	}

	kept := h.fs.msgs[:0]

	for _, m := range h.fs.msgs {
		if !remove[m.seq] {
			kept = append(kept, m)
		}
	}

	h.fs.msgs = kept

	return nil
}

func (h *fakeStreamHandle) Consume(_ context.Context, cfg ConsumerConfig) (MessageIterator, error) {
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()

	snapshot := h.snapshotLocked(cfg)

	c := &fakeConsumer{
		ch:          make(chan *RawMessage, len(snapshot)+64),
		stopCh:      make(chan struct{}),
		filter:      cfg.FilterSubject,
		headersOnly: cfg.HeadersOnly,
	}

	for i, raw := range snapshot {
		raw.Pending = uint64(len(snapshot) - i - 1)
		c.ch <- raw
	}

	h.fs.consumers = append(h.fs.consumers, c)

	return c, nil
}

func (h *fakeStreamHandle) snapshotLocked(cfg ConsumerConfig) []*RawMessage {
	if cfg.DeliverPolicy == DeliverNew {
		return nil
	}

	var matching []*fakeMsg

	for _, m := range h.fs.msgs {
		if subjectMatches(cfg.FilterSubject, m.subject) {
			matching = append(matching, m)
		}
	}

	if cfg.DeliverPolicy == DeliverLastPerSubject {
		latest := make(map[string]*fakeMsg)

		for _, m := range matching {
			latest[m.subject] = m
		}

		matching = matching[:0]

		for _, m := range latest {
			matching = append(matching, m)
		}

		sort.Slice(matching, func(i, j int) bool { return matching[i].seq < matching[j].seq })
	}

	raws := make([]*RawMessage, 0, len(matching))
	for _, m := range matching {
		raws = append(raws, headerFilter(rawFromFake(m), cfg.HeadersOnly))
	}

	return raws
}

func rawFromFake(m *fakeMsg) *RawMessage {
	return &RawMessage{
		Subject:   m.subject,
		Header:    m.header,
		Data:      m.data,
		Sequence:  m.seq,
		Timestamp: m.ts,
	}
}

type fakeConsumer struct {
	ch          chan *RawMessage
	stopCh      chan struct{}
	stopOnce    sync.Once
	filter      string
	headersOnly bool
}

func (c *fakeConsumer) push(raw *RawMessage) {
	select {
	case c.ch <- raw:
	case <-c.stopCh:
	default:
		// Buffer exhausted; the fake favors test determinism over
		// unbounded memory, this should never trigger at test scale.
	}
}

func (c *fakeConsumer) Next(ctx context.Context) (*RawMessage, error) {
	select {
	case raw, ok := <-c.ch:
		if !ok {
			return nil, ErrIteratorStopped
		}

		return raw, nil
	case <-c.stopCh:
		return nil, ErrIteratorStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConsumer) Stop() error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	return nil
}

// subjectMatches reports whether subject matches an ordinary NATS
// subject filter (literal, "*" single-token wildcard, ">" trailing
// wildcard).
func subjectMatches(filter, subject string) bool {
	if filter == subject {
		return true
	}

	ft := strings.Split(filter, ".")
	st := strings.Split(subject, ".")

	for i, tok := range ft {
		if tok == ">" {
			return true
		}

		if i >= len(st) {
			return false
		}

		if tok != "*" && tok != st[i] {
			return false
		}
	}

	return len(ft) == len(st)
}
