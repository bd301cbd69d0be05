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

// Package kv implements a versioned, per-key history key/value store on
// top of a JetStream-style persistent stream: bucket lifecycle, entry
// mutation with optimistic concurrency, history/keys enumeration, and a
// long-lived watcher subsystem.
package kv

import (
	"strings"
)

const (
	streamPrefix  = "KV_"
	subjectPrefix = "$KV."

	// HeaderOperation carries the KV mutation kind on a stream message.
	// Absent, or PUT, means a normal value write.
	HeaderOperation = "KV-Operation"
	// HeaderRollup instructs the server to collapse prior history for the
	// subject into the message carrying it.
	HeaderRollup = "Nats-Rollup"
	// HeaderExpectedLastSubjSeq carries the optimistic-concurrency
	// precondition for Create/Update.
	HeaderExpectedLastSubjSeq = "Nats-Expected-Last-Subject-Sequence"

	opValueDelete = "DEL"
	opValuePurge  = "PURGE"
	rollupValue   = "sub"
)

// StreamName returns the backing stream name for bucket.
func StreamName(bucket string) string {
	return streamPrefix + bucket
}

// BucketFromStreamName recovers a bucket name from a stream name,
// reporting false if stream does not look like a KV-backed stream.
func BucketFromStreamName(stream string) (string, bool) {
	if !strings.HasPrefix(stream, streamPrefix) {
		return "", false
	}

	return strings.TrimPrefix(stream, streamPrefix), true
}

// StreamSubjects returns the single subject filter backing bucket.
func StreamSubjects(bucket string) []string {
	return []string{subjectPrefix + bucket + ".>"}
}

// AllKeysFilter returns the wildcard filter matching every key in bucket.
func AllKeysFilter(bucket string) string {
	return subjectPrefix + bucket + ".>"
}

// Subject returns the wire subject for key in bucket.
func Subject(bucket, key string) string {
	return subjectPrefix + bucket + "." + key
}

// KeyFilter returns the wire subject filter for a (possibly wildcarded)
// key pattern in bucket, e.g. "config.*" or "config.>".
func KeyFilter(bucket, keyPattern string) string {
	return subjectPrefix + bucket + "." + keyPattern
}

// KeyFromSubject recovers key from a raw stream subject belonging to
// bucket, stripping the "$KV.<bucket>." prefix.
func KeyFromSubject(bucket, subject string) (string, error) {
	prefix := subjectPrefix + bucket + "."
	if !strings.HasPrefix(subject, prefix) {
		return "", newValidationError("subject %q does not belong to bucket %q", subject, bucket)
	}

	return strings.TrimPrefix(subject, prefix), nil
}

// validNameByte reports whether b is allowed in a bucket name or a
// single key segment: ASCII letters, digits, '-', '_', '/', '='.
func validNameByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '_' || b == '/' || b == '=':
		return true
	default:
		return false
	}
}

// ValidateBucketName rejects bucket names outside the conservative
// alphabet: bucket names never contain '.', which is reserved as the
// key-segment separator.
func ValidateBucketName(name string) error {
	if name == "" {
		return newValidationError("bucket name must not be empty")
	}

	for i := 0; i < len(name); i++ {
		if !validNameByte(name[i]) {
			return newValidationError("bucket name %q contains invalid character %q", name, name[i])
		}
	}

	return nil
}

// ValidateKey rejects keys outside the conservative alphabet or
// containing empty dot-separated segments.
func ValidateKey(key string) error {
	if key == "" {
		return newValidationError("key must not be empty")
	}

	if key[0] == '.' || key[len(key)-1] == '.' {
		return newValidationError("key %q must not start or end with '.'", key)
	}

	segment := 0

	for i := 0; i < len(key); i++ {
		b := key[i]
		if b == '.' {
			if segment == 0 {
				return newValidationError("key %q contains an empty segment", key)
			}

			segment = 0

			continue
		}

		if !validNameByte(b) {
			return newValidationError("key %q contains invalid character %q", key, b)
		}

		segment++
	}

	if segment == 0 {
		return newValidationError("key %q contains an empty segment", key)
	}

	return nil
}
