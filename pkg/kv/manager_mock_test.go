package kv

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/mock/gomock"
)

func TestCreateBucketWrapsTransportFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	js := NewMockJetStreamContext(ctrl)
	js.EXPECT().
		AddStream(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("dial tcp: connection refused"))

	mgr := NewManager(js)

	_, err := mgr.CreateBucket(context.Background(), Config{Bucket: "cfg"})
	if !isCode(err, CodeTransport) {
		t.Fatalf("CreateBucket() error = %v, want CodeTransport", err)
	}
}

func TestListBucketsWrapsTransportFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	js := NewMockJetStreamContext(ctrl)
	js.EXPECT().
		StreamNames(gomock.Any()).
		Return(nil, errors.New("i/o timeout"))

	mgr := NewManager(js)

	_, err := mgr.ListBuckets(context.Background())
	if !isCode(err, CodeTransport) {
		t.Fatalf("ListBuckets() error = %v, want CodeTransport", err)
	}
}
