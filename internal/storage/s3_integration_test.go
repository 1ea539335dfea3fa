//go:build integration

package storage

import (
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiumlab/studium/internal/testutil"
)

func newTestClient(ctx context.Context, t *testing.T) (*S3Client, func()) {
	t.Helper()
	rc := testutil.NewRustFSContainer(ctx, t)

	client, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "document-archive",
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	return client, func() { rc.Terminate(ctx) }
}

func TestS3Client_StoreAndDelete(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newTestClient(ctx, t)
	defer cleanup()

	require.NoError(t, client.EnsureBucket(ctx))
	// Idempotent when the bucket already exists.
	require.NoError(t, client.EnsureBucket(ctx))

	key := "modules/cs-101/recursion.txt"
	content := []byte("Recursion is a function calling itself.")
	require.NoError(t, client.Store(ctx, key, content, "text/plain"))

	obj, err := client.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(client.bucket),
		Key:    aws.String(key),
	})
	require.NoError(t, err)
	defer obj.Body.Close()

	got, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, "text/plain", aws.ToString(obj.ContentType))

	require.NoError(t, client.Delete(ctx, key))

	_, err = client.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(client.bucket),
		Key:    aws.String(key),
	})
	assert.Error(t, err)
}
