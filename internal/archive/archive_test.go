package archive

import (
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
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Archive_Put(t *testing.T) {
	fake := &fakeS3{}
	a := &S3Archive{client: fake, bucket: "plate-recordings"}

	require.NoError(t, a.Put(context.Background(), "recordings/2026/01/02/abc.webm", []byte("opus"), "audio/webm"))
	assert.Equal(t, "plate-recordings", aws.ToString(fake.in.Bucket))
	assert.Equal(t, "recordings/2026/01/02/abc.webm", aws.ToString(fake.in.Key))
	assert.Equal(t, "audio/webm", aws.ToString(fake.in.ContentType))
	assert.Equal(t, []byte("opus"), fake.body)

	fake.err = errors.New("access denied")
	assert.ErrorContains(t, a.Put(context.Background(), "k", nil, "audio/webm"), "access denied")
}

func TestKey(t *testing.T) {
	at := time.Date(2026, 3, 9, 23, 30, 0, 0, time.FixedZone("PDT", -7*3600))
	assert.Equal(t, "recordings/2026/03/10/sess-1.webm", Key("/recordings/", at, "sess-1", ".webm"))
	assert.Equal(t, "2026/03/10/sess-1.wav", Key("", at, "sess-1", "wav"))
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "webm", Extension("audio/webm;codecs=opus"))
	assert.Equal(t, "wav", Extension("audio/wav"))
	assert.Equal(t, "pcm", Extension("audio/pcm"))
	assert.Equal(t, "m4a", Extension("audio/mp4"))
	assert.Equal(t, "webm", Extension(""))
}
