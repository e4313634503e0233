package blobstore

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listBucketResultXML is a minimal ListObjectsV2 XML response shape, the
// format the minio-go SDK expects back from a real S3/MinIO endpoint.
const listBucketResultXML = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>%s</Name>
  <Prefix>%s</Prefix>
  <KeyCount>2</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents>
    <Key>%sexit_code</Key>
    <LastModified>2026-01-01T00:00:00.000Z</LastModified>
    <ETag>"a"</ETag>
    <Size>1</Size>
    <StorageClass>STANDARD</StorageClass>
  </Contents>
  <Contents>
    <Key>%sstdout.log</Key>
    <LastModified>2026-01-01T00:00:00.000Z</LastModified>
    <ETag>"b"</ETag>
    <Size>42</Size>
    <StorageClass>STANDARD</StorageClass>
  </Contents>
</ListBucketResult>`

func TestMinIOStoreListFilesFromPathUsesSignedSDKCall(t *testing.T) {
	const bucket = "jobs"
	const prefix = "job-123/"

	var sawAuthHeader bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			sawAuthHeader = true
		}
		assert.Equal(t, "2", r.URL.Query().Get("list-type"))
		assert.Equal(t, prefix, r.URL.Query().Get("prefix"))

		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, listBucketResultXML, bucket, prefix, prefix, prefix)
	}))
	defer server.Close()

	endpoint := strings.TrimPrefix(server.URL, "http://")
	store := NewMinIOStore(map[string]ProviderConfig{
		"minio.default": {
			Endpoint:  endpoint,
			AccessKey: "test-access",
			SecretKey: "test-secret",
			Region:    "us-east-1",
			Verify:    false,
			Bucket:    bucket,
		},
	})

	entries, err := store.ListFilesFromPath(context.Background(), "minio.default", prefix)
	require.NoError(t, err)
	require.True(t, sawAuthHeader, "expected the request to carry SigV4 Authorization, not an unauthenticated GET")

	require.Len(t, entries, 2)
	assert.Equal(t, prefix+"exit_code", entries[0].Key)
	assert.Equal(t, int64(1), entries[0].Size)
	assert.Equal(t, prefix+"stdout.log", entries[1].Key)
	assert.Equal(t, int64(42), entries[1].Size)
}

func TestMinIOStoreListFilesFromPathUnknownProvider(t *testing.T) {
	store := NewMinIOStore(map[string]ProviderConfig{})
	_, err := store.ListFilesFromPath(context.Background(), "minio.missing", "job-123/")
	assert.Error(t, err)
}
