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

// Operation identifies the kind of mutation an Entry records.
type Operation int

const (
	OpPut Operation = iota
	OpDelete
	OpPurge
)

func (o Operation) String() string {
	switch o {
	case OpDelete:
		return "DEL"
	case OpPurge:
		return "PURGE"
	default:
		return "PUT"
	}
}

// IsTombstone reports whether o marks a deleted or purged key.
func (o Operation) IsTombstone() bool {
	return o == OpDelete || o == OpPurge
}

// Entry is an immutable snapshot of one revision of one key (spec.md
// §3).
type Entry struct {
	Bucket    string
	Key       string
	Value     []byte
	Revision  uint64
	Delta     uint64
	Created   time.Time
	Operation Operation
}

// decodeEntry projects a RawMessage from bucket's backing stream into an
// Entry, per spec.md §4.3. It never returns an error for a well-formed
// subject; malformed subjects (not under the bucket's prefix) are a
// caller programming error and map to CodeInvalidArgument.
func decodeEntry(bucket string, raw *RawMessage) (*Entry, error) {
	key, err := KeyFromSubject(bucket, raw.Subject)
	if err != nil {
		return nil, err
	}

	op := operationFromHeader(raw.Header)

	value := raw.Data
	if op != OpPut {
		value = nil
	}

	return &Entry{
		Bucket:    bucket,
		Key:       key,
		Value:     value,
		Revision:  raw.Sequence,
		Delta:     raw.Pending,
		Created:   raw.Timestamp,
		Operation: op,
	}, nil
}

func operationFromHeader(hdr map[string][]string) Operation {
	if hdr == nil {
		return OpPut
	}

	values := hdr[HeaderOperation]
	if len(values) == 0 {
		return OpPut
	}

	switch values[0] {
	case opValueDelete:
		return OpDelete
	case opValuePurge:
		return OpPurge
	default:
		return OpPut
	}
}
