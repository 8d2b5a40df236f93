package mirror

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewFileStore(root)

	keys, err := s.List(ctx, "asset/")
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, s.Put(ctx, "asset/index.mpd", []byte("<MPD/>"), "application/dash+xml"))
	require.NoError(t, s.Put(ctx, "asset/v/init.mp4", []byte("init"), "video/mp4"))
	require.NoError(t, s.Put(ctx, "other/x.m4s", []byte("x"), "video/mp4"))

	keys, err = s.List(ctx, "asset/")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"index.mpd", "v/init.mp4"}, keys)

	assert.Equal(t, filepath.Join(root, "asset", "v", "init.mp4"), s.Location("asset/v/init.mp4"))
	assert.Error(t, s.Put(ctx, "", []byte("x"), ""))
	assert.Error(t, s.Put(ctx, "../", []byte("x"), ""))

	require.NoError(t, s.Put(ctx, "../../escape.txt", []byte("x"), ""))
	assert.FileExists(t, filepath.Join(root, "escape.txt"))
}

// fakeS3 serves ListObjectsV2 in pages of two keys.
type fakeS3 struct {
	keys []string
	puts []*s3.PutObjectInput
	data map[string][]byte
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	start := 0
	if in.ContinuationToken != nil {
		for i, k := range f.keys {
			if k == *in.ContinuationToken {
				start = i
			}
		}
	}
	end := start + 2
	out := &s3.ListObjectsV2Output{}
	if end < len(f.keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(f.keys[end])
	} else {
		end = len(f.keys)
	}
	for _, k := range f.keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.data == nil {
		f.data = make(map[string][]byte)
	}
	f.data[aws.ToString(in.Key)] = body
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	api := &fakeS3{keys: []string{"dest/a", "dest/b", "dest/c/d", "dest/e", "dest/f"}}
	s := NewS3Store(api, "bucket")

	keys, err := s.List(ctx, "dest/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c/d", "e", "f"}, keys)

	require.NoError(t, s.Put(ctx, "dest/index.m3u8", []byte("#EXTM3U"), "application/x-mpegURL"))
	require.Len(t, api.puts, 1)
	put := api.puts[0]
	assert.Equal(t, "bucket", aws.ToString(put.Bucket))
	assert.Equal(t, types.ObjectCannedACLPrivate, put.ACL)
	assert.Equal(t, "application/x-mpegURL", aws.ToString(put.ContentType))
	assert.Equal(t, []byte("#EXTM3U"), api.data["dest/index.m3u8"])

	assert.Equal(t, "s3://bucket/dest/index.m3u8", s.Location("dest/index.m3u8"))
}
