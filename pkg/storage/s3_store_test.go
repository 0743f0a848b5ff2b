package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	buckets map[string]bool
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), buckets: make(map[string]bool)}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(v))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[aws.ToString(in.Bucket)] = true
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	runStorageContract(t, func(*testing.T) Storage {
		return NewS3Store(newFakeS3(), "bucket", "sf/")
	})
}

func TestS3StoreKeysAndBucket(t *testing.T) {
	fake := newFakeS3()
	s := NewS3Store(fake, "market-state", "sf/")
	if err := s.SetItem(context.Background(), "cart", []byte("[]")); err != nil {
		t.Fatal(err)
	}
	if _, ok := fake.objects["sf/cart"]; !ok {
		t.Errorf("objects = %v, want sf/cart", fake.objects)
	}
	if !fake.buckets["market-state"] {
		t.Errorf("bucket not used: %v", fake.buckets)
	}
}

func TestS3StorePutError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("access denied")
	s := NewS3Store(fake, "b", "")
	err := s.SetItem(context.Background(), "cart", []byte("[]"))
	if err == nil || !errors.Is(err, fake.putErr) {
		t.Errorf("SetItem error = %v, want wrapped put error", err)
	}
}
