package store

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordstore/recordstore/pkg/errors"
	"github.com/recordstore/recordstore/pkg/retry"
)

// fakeS3 is an in-memory object store implementing the s3API slice.
type fakeS3 struct {
	objects map[string][]byte
	modTime time.Time

	getErr  error
	putErr  error
	headErr error

	gets  int
	puts  int
	heads int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects: make(map[string][]byte),
		modTime: time.Unix(1000, 0).UTC(),
	}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:         io.NopCloser(bytes.NewReader(data)),
		LastModified: aws.Time(f.modTime),
	}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts++
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.modTime = f.modTime.Add(time.Second)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.heads++
	if f.headErr != nil {
		return nil, f.headErr
	}
	if _, ok := f.objects[aws.ToString(in.Key)]; !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{LastModified: aws.Time(f.modTime)}, nil
}

func newTestS3Store(f *fakeS3) *S3Store {
	return &S3Store{
		client: f,
		bucket: "test-bucket",
		key:    "records.json",
		retryer: retry.New(retry.Config{
			MaxAttempts:  2,
			InitialDelay: time.Millisecond,
			MaxDelay:     time.Millisecond,
			Multiplier:   1.0,
		}),
	}
}

func TestS3StoreRoundTrip(t *testing.T) {
	f := newFakeS3()
	s := newTestS3Store(f)
	ctx := context.Background()

	content := []byte(`[{"id": 1}]`)
	require.NoError(t, s.WriteAll(ctx, content))

	got, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	mt, err := s.ModTime(ctx)
	require.NoError(t, err)
	assert.False(t, mt.IsZero())
}

func TestS3StoreMissingObject(t *testing.T) {
	f := newFakeS3()
	s := newTestS3Store(f)
	ctx := context.Background()

	_, err := s.ReadAll(ctx)
	assert.ErrorIs(t, err, errors.ErrStoreNotExist)

	_, err = s.ModTime(ctx)
	assert.ErrorIs(t, err, errors.ErrStoreNotExist)

	// Missing objects are terminal, not retried.
	assert.Equal(t, 1, f.gets)
	assert.Equal(t, 1, f.heads)
}

func TestS3StoreModTimeAdvancesOnWrite(t *testing.T) {
	f := newFakeS3()
	s := newTestS3Store(f)
	ctx := context.Background()

	require.NoError(t, s.WriteAll(ctx, []byte(`[]`)))
	first, err := s.ModTime(ctx)
	require.NoError(t, err)

	require.NoError(t, s.WriteAll(ctx, []byte(`[{"id": 1}]`)))
	second, err := s.ModTime(ctx)
	require.NoError(t, err)
	assert.True(t, second.After(first))
}

func TestS3StoreRetriesTransientFailures(t *testing.T) {
	f := newFakeS3()
	f.objects["records.json"] = []byte(`[]`)
	s := newTestS3Store(f)

	f.putErr = errors.New(errors.ErrCodeStoreWrite, "throttled")
	err := s.WriteAll(context.Background(), []byte(`[]`))
	require.Error(t, err)
	assert.Equal(t, 2, f.puts)
}

func TestNewS3StoreValidation(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{}, nil)
	assert.ErrorIs(t, err, errors.New(errors.ErrCodeInvalidConfig, ""))
}
