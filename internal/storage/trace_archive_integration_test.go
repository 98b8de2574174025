//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/knowctx/internal/testutil"
)

func TestIntegration_TraceArchive(t *testing.T) {
	ctx := context.Background()
	sc := testutil.NewS3Container(ctx, t)
	defer sc.Terminate(ctx)

	client, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        sc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     sc.AccessKey,
		SecretAccessKey: sc.SecretKey,
		Bucket:          "knowctx-traces",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))

	archive := NewTraceArchive(client)
	key := "traces/org-1/2026/01/02/trace.json"
	require.NoError(t, archive.PutTrace(ctx, key, []byte(`{"decisions":[]}`)))

	data, err := archive.GetTrace(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"decisions":[]}`, string(data))

	url, err := archive.TraceURL(ctx, key)
	require.NoError(t, err)
	assert.Contains(t, url, "trace.json")
}
