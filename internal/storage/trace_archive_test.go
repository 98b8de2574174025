package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockObjectAPI is a mock implementation of ObjectAPI
type MockObjectAPI struct {
	mock.Mock
}

func (m *MockObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func (m *MockObjectAPI) GetObject(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func (m *MockObjectAPI) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.HeadBucketOutput), args.Error(1)
}

func (m *MockObjectAPI) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.CreateBucketOutput), args.Error(1)
}

// MockPresigner is a mock implementation of Presigner
type MockPresigner struct {
	mock.Mock
}

func (m *MockPresigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*aws.PresignedHTTPRequest, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*aws.PresignedHTTPRequest), args.Error(1)
}

func TestTraceArchive_PutTrace(t *testing.T) {
	api := new(MockObjectAPI)
	api.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Bucket) == "traces" &&
			aws.ToString(in.Key) == "traces/org-1/2026/01/02/x.json" &&
			aws.ToString(in.ContentType) == "application/json" &&
			aws.ToInt64(in.ContentLength) == 2
	})).Return(&s3.PutObjectOutput{}, nil)

	archive := NewTraceArchive(NewS3ClientWithAPI(api, new(MockPresigner), "traces"))
	require.NoError(t, archive.PutTrace(context.Background(), "traces/org-1/2026/01/02/x.json", []byte("{}")))
	api.AssertExpectations(t)
}

func TestTraceArchive_PutTraceError(t *testing.T) {
	api := new(MockObjectAPI)
	api.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("denied"))

	archive := NewTraceArchive(NewS3ClientWithAPI(api, new(MockPresigner), "traces"))
	err := archive.PutTrace(context.Background(), "traces/a.json", []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}

func TestTraceArchive_RejectsBadKeys(t *testing.T) {
	archive := NewTraceArchive(NewS3ClientWithAPI(new(MockObjectAPI), new(MockPresigner), "traces"))
	ctx := context.Background()

	for _, key := range []string{"", "/abs.json", "traces/../secret"} {
		assert.Error(t, archive.PutTrace(ctx, key, nil), key)
		_, err := archive.GetTrace(ctx, key)
		assert.Error(t, err, key)
		_, err = archive.TraceURL(ctx, key)
		assert.Error(t, err, key)
	}
}

func TestTraceArchive_GetTraceAndURL(t *testing.T) {
	api := new(MockObjectAPI)
	api.On("GetObject", mock.Anything, mock.Anything).
		Return(&s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(`{"mode":"vector"}`))}, nil)
	presigner := new(MockPresigner)
	presigner.On("PresignGetObject", mock.Anything, mock.Anything).
		Return(&aws.PresignedHTTPRequest{URL: "https://s3.local/traces/a.json?sig=1"}, nil)

	archive := NewTraceArchive(NewS3ClientWithAPI(api, presigner, "traces"))

	data, err := archive.GetTrace(context.Background(), "traces/a.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"vector"}`, string(data))

	url, err := archive.TraceURL(context.Background(), "traces/a.json")
	require.NoError(t, err)
	assert.Equal(t, "https://s3.local/traces/a.json?sig=1", url)
}

func TestS3Client_EnsureBucket(t *testing.T) {
	t.Run("exists", func(t *testing.T) {
		api := new(MockObjectAPI)
		api.On("HeadBucket", mock.Anything, mock.Anything).Return(&s3.HeadBucketOutput{}, nil)

		require.NoError(t, NewS3ClientWithAPI(api, nil, "b").EnsureBucket(context.Background()))
		api.AssertNotCalled(t, "CreateBucket", mock.Anything, mock.Anything)
	})

	t.Run("created", func(t *testing.T) {
		api := new(MockObjectAPI)
		api.On("HeadBucket", mock.Anything, mock.Anything).Return(nil, errors.New("not found"))
		api.On("CreateBucket", mock.Anything, mock.Anything).Return(&s3.CreateBucketOutput{}, nil)

		require.NoError(t, NewS3ClientWithAPI(api, nil, "b").EnsureBucket(context.Background()))
		api.AssertExpectations(t)
	})
}
