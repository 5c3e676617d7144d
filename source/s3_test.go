package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestS3Source(t *testing.T, fake *fakeS3) *S3Source {
	t.Helper()
	src, err := NewS3Source(fake)
	require.NoError(t, err)
	return src
}

func TestNewS3Source_RequiresClient(t *testing.T) {
	_, err := NewS3Source(nil)
	assert.ErrorIs(t, err, ErrClientRequired)
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		url    string
		bucket string
		key    string
		err    bool
	}{
		{url: "s3://bucket/folder/x.pdf", bucket: "bucket", key: "folder/x.pdf"},
		{url: "s3://bucket", bucket: "bucket"},
		{url: "s3://bucket/", bucket: "bucket"},
		{url: "s3:///key", err: true},
		{url: "file:///tmp", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			bucket, key, err := ParseS3URL(tt.url)
			if tt.err {
				assert.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestS3Source_Matching(t *testing.T) {
	src := newTestS3Source(t, newFakeS3("bucket"))

	assert.True(t, src.IsMatch("s3://bucket/key"))
	assert.True(t, src.IsCloudURL("s3://bucket/key"))
	assert.False(t, src.IsMatch("file:///tmp"))
	assert.False(t, src.IsMatch("gs://bucket/key"))
}

func TestS3Source_ListNonRecursive(t *testing.T) {
	fake := newFakeS3("bucket", "folder/x.pdf", "folder/y.txt", "folder/sub/z.pdf")
	src := newTestS3Source(t, fake)

	urls, err := src.List(context.Background(), "s3://bucket/folder/", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://bucket/folder/x.pdf", "s3://bucket/folder/y.txt"}, urls)
	assert.Equal(t, 2, fake.listCalls)
}

func TestS3Source_ListRecursive(t *testing.T) {
	fake := newFakeS3("bucket", "folder/x.pdf", "folder/y.txt", "folder/sub/z.pdf", "other/w.pdf")
	src := newTestS3Source(t, fake)

	urls, err := src.List(context.Background(), "s3://bucket/folder/", true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"s3://bucket/folder/x.pdf",
		"s3://bucket/folder/y.txt",
		"s3://bucket/folder/sub/z.pdf",
	}, urls)
}

func TestS3Source_ListPrefixIsFolderBoundary(t *testing.T) {
	fake := newFakeS3("bucket", "folder/x.pdf", "folder2/y.pdf", "folder.pdf", "folder/sub/z.pdf")
	src := newTestS3Source(t, fake)

	urls, err := src.List(context.Background(), "s3://bucket/folder", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://bucket/folder/x.pdf"}, urls)

	urls, err = src.List(context.Background(), "s3://bucket/folder.pdf", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://bucket/folder.pdf"}, urls)
}

func TestS3Source_ListWholeBucket(t *testing.T) {
	fake := newFakeS3("bucket", "a.pdf", "dir/", "dir/b.pdf")
	src := newTestS3Source(t, fake)

	urls, err := src.List(context.Background(), "s3://bucket", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://bucket/a.pdf"}, urls)

	urls, err = src.List(context.Background(), "s3://bucket/", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://bucket/a.pdf", "s3://bucket/dir/b.pdf"}, urls)
}

func TestS3Source_ListWrapsProviderError(t *testing.T) {
	fake := newFakeS3("bucket")
	cause := errors.New("AccessDenied")
	fake.listErr = cause
	src := newTestS3Source(t, fake)

	_, err := src.List(context.Background(), "s3://bucket/folder/", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageIO)
	assert.ErrorIs(t, err, cause)

	var ioErr *StorageIOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "list", ioErr.Op)
	assert.Equal(t, "s3://bucket/folder/", ioErr.URL)
}

func TestS3Source_Fetch(t *testing.T) {
	fake := newFakeS3("bucket", "folder/x.pdf")
	src := newTestS3Source(t, fake)
	dst := filepath.Join(t.TempDir(), "nested", "x.pdf")

	path, err := src.Fetch(context.Background(), "s3://bucket/folder/x.pdf", dst)
	require.NoError(t, err)
	assert.Equal(t, dst, path)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "content of folder/x.pdf", string(data))
}

func TestS3Source_FetchMissingObject(t *testing.T) {
	fake := newFakeS3("bucket")
	src := newTestS3Source(t, fake)
	dst := filepath.Join(t.TempDir(), "x.pdf")

	_, err := src.Fetch(context.Background(), "s3://bucket/missing.pdf", dst)
	assert.ErrorIs(t, err, ErrStorageIO)

	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))
}

func TestS3Source_FetchRequiresKey(t *testing.T) {
	src := newTestS3Source(t, newFakeS3("bucket"))

	_, err := src.Fetch(context.Background(), "s3://bucket/", filepath.Join(t.TempDir(), "x"))
	assert.ErrorIs(t, err, ErrInvalidURL)
}
