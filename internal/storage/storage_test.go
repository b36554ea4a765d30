package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-tracker/internal/config"
	"github.com/ignite/campaign-tracker/internal/domain"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(in.Body)
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestAppendWritesHeaderOnce(t *testing.T) {
	s := New(config.StorageConfig{BackupDir: t.TempDir()}, "spring", nil)
	header := []string{"Ref", "Name"}
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, domain.KindCourseSuccess, header, [][]string{{"1", "Asha"}}))
	require.NoError(t, s.Append(ctx, domain.KindCourseSuccess, header, [][]string{{"2", "Ravi, Jr"}}))
	require.NoError(t, s.Append(ctx, domain.KindCourseSuccess, header, nil))

	data, err := os.ReadFile(s.Path(domain.KindCourseSuccess))
	require.NoError(t, err)
	assert.Equal(t, "Ref,Name\n1,Asha\n2,\"Ravi, Jr\"\n", string(data))
	assert.True(t, strings.HasSuffix(s.Path(domain.KindCourseSuccess), "spring/course_success.csv"))
}

func TestAppendMirrorsToS3(t *testing.T) {
	fake := newFakeS3()
	mirror := NewAWSStorageWithClient(fake, "backups", "us-west-2")
	s := New(config.StorageConfig{BackupDir: t.TempDir(), S3Prefix: "tracker"}, "spring", mirror)

	require.NoError(t, s.Append(context.Background(), domain.KindAdFailed, []string{"Ref"}, [][]string{{"7"}}))

	assert.Equal(t, "Ref\n7\n", string(fake.objects["backups/tracker/spring/ad_failed.csv"]))
	assert.Equal(t, "text/csv", fake.types["backups/tracker/spring/ad_failed.csv"])

	got, err := mirror.GetFile(context.Background(), "tracker/spring/ad_failed.csv")
	require.NoError(t, err)
	assert.Equal(t, "Ref\n7\n", string(got))
}

func TestMirrorFailureDoesNotFailAppend(t *testing.T) {
	fake := newFakeS3()
	fake.err = errors.New("access denied")
	s := New(config.StorageConfig{BackupDir: t.TempDir()}, "spring", NewAWSStorageWithClient(fake, "b", "r"))

	require.NoError(t, s.Append(context.Background(), domain.KindAdSuccess, nil, [][]string{{"1"}}))
	_, err := os.Stat(s.Path(domain.KindAdSuccess))
	assert.NoError(t, err)
}

func TestMirrorFile(t *testing.T) {
	fake := newFakeS3()
	dir := t.TempDir()
	path := dir + "/counters.json"
	require.NoError(t, os.WriteFile(path, []byte(`{"total_processed":3}`), 0644))

	s := New(config.StorageConfig{BackupDir: dir}, "spring", NewAWSStorageWithClient(fake, "b", "r"))
	require.NoError(t, s.MirrorFile(context.Background(), "counters.json", path, "application/json"))
	assert.Equal(t, `{"total_processed":3}`, string(fake.objects["b/spring/counters.json"]))

	assert.NoError(t, New(config.StorageConfig{}, "spring", nil).MirrorFile(context.Background(), "x", "/nonexistent", ""))
}
