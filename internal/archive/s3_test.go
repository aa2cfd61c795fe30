package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestKey(t *testing.T) {
	day := time.Date(2024, 3, 13, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024/03/13/7/abc.html", Key(7, "abc", day))
}

func TestStore(t *testing.T) {
	api := &fakeS3{}
	s := newS3(api, S3Config{Bucket: "docs", Prefix: "inkpost/"}, nil)

	require.NoError(t, s.Store(context.Background(), "2024/03/13/7/abc.html", []byte("<html></html>")))
	assert.Equal(t, "docs", aws.ToString(api.input.Bucket))
	assert.Equal(t, "inkpost/2024/03/13/7/abc.html", aws.ToString(api.input.Key))
	assert.Equal(t, "text/html", aws.ToString(api.input.ContentType))
	assert.Equal(t, []byte("<html></html>"), api.body)
}

func TestStoreCompressed(t *testing.T) {
	api := &fakeS3{}
	s := newS3(api, S3Config{Bucket: "docs", Compress: true}, nil)

	require.NoError(t, s.Store(context.Background(), "a.html", []byte("<html>hello</html>")))
	assert.Equal(t, "a.html.gz", aws.ToString(api.input.Key))
	assert.Equal(t, "gzip", aws.ToString(api.input.ContentEncoding))

	zr, err := gzip.NewReader(bytes.NewReader(api.body))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "<html>hello</html>", string(plain))
}

func TestStoreError(t *testing.T) {
	boom := errors.New("access denied")
	s := newS3(&fakeS3{err: boom}, S3Config{Bucket: "docs"}, nil)

	assert.ErrorIs(t, s.Store(context.Background(), "a.html", []byte("x")), boom)
}
