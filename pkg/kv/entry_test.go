package kv

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestDecodeEntryPut(t *testing.T) {
	raw := &RawMessage{
		Subject:   "$KV.cfg.app.timeout",
		Data:      []byte("30s"),
		Sequence:  5,
		Pending:   2,
		Timestamp: time.Unix(0, 0),
	}

	entry, err := decodeEntry("cfg", raw)
	if err != nil {
		t.Fatalf("decodeEntry() error: %v", err)
	}

	if entry.Key != "app.timeout" || entry.Operation != OpPut || string(entry.Value) != "30s" {
		t.Fatalf("decodeEntry() = %+v", entry)
	}

	if entry.Revision != 5 || entry.Delta != 2 {
		t.Fatalf("decodeEntry() revision/delta = %d/%d", entry.Revision, entry.Delta)
	}
}

func TestDecodeEntryTombstoneHasNoValue(t *testing.T) {
	raw := &RawMessage{
		Subject: "$KV.cfg.app.timeout",
		Data:    []byte("should be dropped"),
		Header:  nats.Header{HeaderOperation: []string{opValueDelete}},
	}

	entry, err := decodeEntry("cfg", raw)
	if err != nil {
		t.Fatalf("decodeEntry() error: %v", err)
	}

	if entry.Operation != OpDelete {
		t.Fatalf("decodeEntry() Operation = %v, want OpDelete", entry.Operation)
	}

	if entry.Value != nil {
		t.Fatalf("decodeEntry() Value = %v, want nil for a tombstone", entry.Value)
	}
}

func TestOperationIsTombstone(t *testing.T) {
	if OpPut.IsTombstone() {
		t.Fatal("OpPut should not be a tombstone")
	}

	if !OpDelete.IsTombstone() || !OpPurge.IsTombstone() {
		t.Fatal("OpDelete and OpPurge should both be tombstones")
	}
}
