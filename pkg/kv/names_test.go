package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamName(t *testing.T) {
	assert.Equal(t, "KV_cfg", StreamName("cfg"))
}

func TestBucketFromStreamName(t *testing.T) {
	bucket, ok := BucketFromStreamName("KV_cfg")
	require.True(t, ok)
	assert.Equal(t, "cfg", bucket)

	_, ok = BucketFromStreamName("EVENTS_cfg")
	assert.False(t, ok, "BucketFromStreamName() should reject non-KV stream names")
}

func TestSubjectAndKeyFromSubject(t *testing.T) {
	subj := Subject("cfg", "app.timeout")
	assert.Equal(t, "$KV.cfg.app.timeout", subj)

	key, err := KeyFromSubject("cfg", subj)
	require.NoError(t, err)
	assert.Equal(t, "app.timeout", key)

	_, err = KeyFromSubject("other", subj)
	assert.Error(t, err, "KeyFromSubject() should reject a subject from a different bucket")
}

func TestValidateBucketName(t *testing.T) {
	cases := []struct {
		name    string
		wantErr bool
	}{
		{"cfg", false},
		{"cfg-01_v2", false},
		{"", true},
		{"has.dot", true},
		{"has space", true},
	}

	for _, tc := range cases {
		err := ValidateBucketName(tc.name)
		if tc.wantErr {
			assert.Error(t, err, tc.name)
		} else {
			assert.NoError(t, err, tc.name)
		}
	}
}

func TestValidateKey(t *testing.T) {
	cases := []struct {
		key     string
		wantErr bool
	}{
		{"app.timeout", false},
		{"app", false},
		{"", true},
		{".app", true},
		{"app.", true},
		{"app..timeout", true},
		{"app timeout", true},
	}

	for _, tc := range cases {
		err := ValidateKey(tc.key)
		if tc.wantErr {
			assert.Error(t, err, tc.key)
		} else {
			assert.NoError(t, err, tc.key)
		}
	}
}
