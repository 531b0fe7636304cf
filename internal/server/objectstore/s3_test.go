package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/rdkeeper/internal/common"
	"github.com/dmitrijs2005/rdkeeper/internal/cryptox"
	"github.com/dmitrijs2005/rdkeeper/internal/logging"
	srvconfig "github.com/dmitrijs2005/rdkeeper/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 records calls; unset handlers fail the call.
type fakeS3 struct {
	S3API

	putObject      func(*s3.PutObjectInput) (*s3.PutObjectOutput, error)
	uploadPart     func(*s3.UploadPartInput) (*s3.UploadPartOutput, error)
	complete       func(*s3.CompleteMultipartUploadInput) (*s3.CompleteMultipartUploadOutput, error)
	getObject      func(*s3.GetObjectInput) (*s3.GetObjectOutput, error)
	listVersions   func(*s3.ListObjectVersionsInput) (*s3.ListObjectVersionsOutput, error)
	deleteObjects  func(*s3.DeleteObjectsInput) (*s3.DeleteObjectsOutput, error)
	headBucket     func(*s3.HeadBucketInput) (*s3.HeadBucketOutput, error)
	createdBuckets []string
	versioningOn   bool
	aborted        []string
	partSizes      []int
	deleted        [][]types.ObjectIdentifier
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return f.putObject(in)
}

func (f *fakeS3) CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String("up-1")}, nil
}

func (f *fakeS3) UploadPart(ctx context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	b, _ := io.ReadAll(in.Body)
	f.partSizes = append(f.partSizes, len(b))
	if f.uploadPart != nil {
		return f.uploadPart(in)
	}
	return &s3.UploadPartOutput{ETag: aws.String("etag")}, nil
}

func (f *fakeS3) CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return f.complete(in)
}

func (f *fakeS3) AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.aborted = append(f.aborted, aws.ToString(in.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return f.getObject(in)
}

func (f *fakeS3) ListObjectVersions(ctx context.Context, in *s3.ListObjectVersionsInput, _ ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
	return f.listVersions(in)
}

func (f *fakeS3) DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.deleted = append(f.deleted, in.Delete.Objects)
	if f.deleteObjects != nil {
		return f.deleteObjects(in)
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return f.headBucket(in)
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.createdBuckets = append(f.createdBuckets, aws.ToString(in.Bucket))
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) PutBucketVersioning(ctx context.Context, in *s3.PutBucketVersioningInput, _ ...func(*s3.Options)) (*s3.PutBucketVersioningOutput, error) {
	f.versioningOn = in.VersioningConfiguration.Status == types.BucketVersioningStatusEnabled
	return &s3.PutBucketVersioningOutput{}, nil
}

type fakePresigner struct{}

func (fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var o s3.PresignOptions
	for _, fn := range optFns {
		fn(&o)
	}
	return &v4.PresignedHTTPRequest{
		URL: "https://s3/" + aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key) + "?versionId=" + aws.ToString(in.VersionId) + "&ttl=" + o.Expires.String(),
	}, nil
}

func newTestStore(api S3API) *S3Store {
	return NewS3StoreWithClient(api, fakePresigner{}, "bucket", "us-east-1", srvconfig.MinUploadChunkSize, logging.Nop{})
}

func TestPut_SmallObjectUsesSingleRequest(t *testing.T) {
	api := &fakeS3{
		putObject: func(in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
			assert.Equal(t, "f1", aws.ToString(in.Key))
			assert.Equal(t, int64(5), aws.ToInt64(in.ContentLength))
			return &s3.PutObjectOutput{VersionId: aws.String("v1")}, nil
		},
	}

	res, err := newTestStore(api).Put(context.Background(), "f1", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "v1", res.VersionID)
	assert.Equal(t, int64(5), res.Size)
	assert.Equal(t, cryptox.Digest([]byte("hello")), res.Digest)
}

func TestPut_LargeObjectUsesMultipart(t *testing.T) {
	chunk := int(srvconfig.MinUploadChunkSize)
	content := bytes.Repeat([]byte("x"), 2*chunk+10)

	api := &fakeS3{
		complete: func(in *s3.CompleteMultipartUploadInput) (*s3.CompleteMultipartUploadOutput, error) {
			require.Len(t, in.MultipartUpload.Parts, 3)
			for i, p := range in.MultipartUpload.Parts {
				assert.Equal(t, int32(i+1), aws.ToInt32(p.PartNumber))
			}
			return &s3.CompleteMultipartUploadOutput{VersionId: aws.String("v9")}, nil
		},
	}

	res, err := newTestStore(api).Put(context.Background(), "f1", bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "v9", res.VersionID)
	assert.Equal(t, int64(len(content)), res.Size)
	assert.Equal(t, []int{chunk, chunk, 10}, api.partSizes)
	assert.Empty(t, api.aborted)
}

func TestPut_ExactMultipleOfChunkSize(t *testing.T) {
	chunk := int(srvconfig.MinUploadChunkSize)
	api := &fakeS3{
		complete: func(in *s3.CompleteMultipartUploadInput) (*s3.CompleteMultipartUploadOutput, error) {
			return &s3.CompleteMultipartUploadOutput{VersionId: aws.String("v2")}, nil
		},
	}

	_, err := newTestStore(api).Put(context.Background(), "f1", bytes.NewReader(make([]byte, chunk)))
	require.NoError(t, err)
	assert.Equal(t, []int{chunk}, api.partSizes)
}

func TestPut_PartFailureAbortsUpload(t *testing.T) {
	chunk := int(srvconfig.MinUploadChunkSize)
	calls := 0
	api := &fakeS3{
		uploadPart: func(in *s3.UploadPartInput) (*s3.UploadPartOutput, error) {
			calls++
			if calls == 2 {
				return nil, errors.New("connection reset")
			}
			return &s3.UploadPartOutput{ETag: aws.String("e")}, nil
		},
		complete: func(in *s3.CompleteMultipartUploadInput) (*s3.CompleteMultipartUploadOutput, error) {
			t.Fatal("complete must not be called")
			return nil, nil
		},
	}

	_, err := newTestStore(api).Put(context.Background(), "f1", bytes.NewReader(make([]byte, 3*chunk)))
	require.ErrorIs(t, err, common.ErrStorageTransport)
	assert.Equal(t, []string{"up-1"}, api.aborted)
}

func TestPut_SourceReadFailureAbortsUpload(t *testing.T) {
	chunk := int(srvconfig.MinUploadChunkSize)
	r := io.MultiReader(bytes.NewReader(make([]byte, chunk)), &failingReader{err: errors.New("client gone")})
	api := &fakeS3{}

	_, err := newTestStore(api).Put(context.Background(), "f1", r)
	require.ErrorIs(t, err, common.ErrStorageTransport)
	assert.Equal(t, []string{"up-1"}, api.aborted)
}

func TestPut_MissingVersionIDIsAnError(t *testing.T) {
	api := &fakeS3{
		putObject: func(in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
			return &s3.PutObjectOutput{}, nil
		},
	}

	_, err := newTestStore(api).Put(context.Background(), "f1", strings.NewReader("x"))
	require.ErrorIs(t, err, common.ErrStorageTransport)
}

func TestGet_PassesVersionAndMapsNotFound(t *testing.T) {
	api := &fakeS3{
		getObject: func(in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
			if aws.ToString(in.VersionId) == "v1" {
				return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("old"))}, nil
			}
			return nil, &types.NoSuchKey{}
		},
	}
	st := newTestStore(api)

	rc, err := st.Get(context.Background(), "f1", "v1")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "old", string(b))

	_, err = st.Get(context.Background(), "f1", "v2")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGet_TransportError(t *testing.T) {
	api := &fakeS3{
		getObject: func(in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
			return nil, errors.New("dial tcp: refused")
		},
	}

	_, err := newTestStore(api).Get(context.Background(), "f1", "")
	require.ErrorIs(t, err, common.ErrStorageTransport)
}

func TestDelete_RemovesAllVersionsAcrossPages(t *testing.T) {
	pages := []*s3.ListObjectVersionsOutput{
		{
			Versions: []types.ObjectVersion{
				{Key: aws.String("f1"), VersionId: aws.String("v1")},
				{Key: aws.String("f10"), VersionId: aws.String("other")},
			},
			IsTruncated:         aws.Bool(true),
			NextKeyMarker:       aws.String("f1"),
			NextVersionIdMarker: aws.String("v1"),
		},
		{
			Versions:      []types.ObjectVersion{{Key: aws.String("f1"), VersionId: aws.String("v2")}},
			DeleteMarkers: []types.DeleteMarkerEntry{{Key: aws.String("f1"), VersionId: aws.String("dm")}},
		},
	}
	var seenMarkers []string
	api := &fakeS3{
		listVersions: func(in *s3.ListObjectVersionsInput) (*s3.ListObjectVersionsOutput, error) {
			seenMarkers = append(seenMarkers, aws.ToString(in.VersionIdMarker))
			p := pages[0]
			pages = pages[1:]
			return p, nil
		},
	}

	require.NoError(t, newTestStore(api).Delete(context.Background(), "f1"))
	assert.Equal(t, []string{"", "v1"}, seenMarkers)
	require.Len(t, api.deleted, 1)

	var ids []string
	for _, o := range api.deleted[0] {
		ids = append(ids, aws.ToString(o.VersionId))
	}
	assert.ElementsMatch(t, []string{"v1", "v2", "dm"}, ids)
}

func TestDelete_MissingKeyIsNoop(t *testing.T) {
	api := &fakeS3{
		listVersions: func(in *s3.ListObjectVersionsInput) (*s3.ListObjectVersionsOutput, error) {
			return &s3.ListObjectVersionsOutput{}, nil
		},
	}

	require.NoError(t, newTestStore(api).Delete(context.Background(), "f1"))
	assert.Empty(t, api.deleted)
}

func TestDelete_ReportsPerObjectErrors(t *testing.T) {
	api := &fakeS3{
		listVersions: func(in *s3.ListObjectVersionsInput) (*s3.ListObjectVersionsOutput, error) {
			return &s3.ListObjectVersionsOutput{
				Versions: []types.ObjectVersion{{Key: aws.String("f1"), VersionId: aws.String("v1")}},
			}, nil
		},
		deleteObjects: func(in *s3.DeleteObjectsInput) (*s3.DeleteObjectsOutput, error) {
			return &s3.DeleteObjectsOutput{Errors: []types.Error{{Key: aws.String("f1"), Message: aws.String("denied")}}}, nil
		},
	}

	err := newTestStore(api).Delete(context.Background(), "f1")
	require.ErrorIs(t, err, common.ErrStorageTransport)
}

func TestVersions(t *testing.T) {
	ts := time.Unix(100, 0)
	api := &fakeS3{
		listVersions: func(in *s3.ListObjectVersionsInput) (*s3.ListObjectVersionsOutput, error) {
			return &s3.ListObjectVersionsOutput{
				Versions: []types.ObjectVersion{
					{Key: aws.String("f1"), VersionId: aws.String("v2"), IsLatest: aws.Bool(true), Size: aws.Int64(3), LastModified: &ts},
					{Key: aws.String("f1"), VersionId: aws.String("v1"), Size: aws.Int64(1), LastModified: &ts},
				},
			}, nil
		},
	}

	got, err := newTestStore(api).Versions(context.Background(), "f1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].IsLatest)
	assert.Equal(t, int64(1), got[1].Size)
}

func TestEnsureBucket_CreatesAndEnablesVersioning(t *testing.T) {
	api := &fakeS3{
		headBucket: func(in *s3.HeadBucketInput) (*s3.HeadBucketOutput, error) {
			return nil, &types.NotFound{}
		},
	}

	require.NoError(t, newTestStore(api).EnsureBucket(context.Background()))
	assert.Equal(t, []string{"bucket"}, api.createdBuckets)
	assert.True(t, api.versioningOn)
}

func TestEnsureBucket_ExistingBucket(t *testing.T) {
	api := &fakeS3{
		headBucket: func(in *s3.HeadBucketInput) (*s3.HeadBucketOutput, error) {
			return &s3.HeadBucketOutput{}, nil
		},
	}

	require.NoError(t, newTestStore(api).EnsureBucket(context.Background()))
	assert.Empty(t, api.createdBuckets)
	assert.True(t, api.versioningOn)
}

func TestPresignGet(t *testing.T) {
	u, err := newTestStore(&fakeS3{}).PresignGet(context.Background(), "f1", "v3", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://s3/bucket/f1?versionId=v3&ttl=15m0s", u)
}

func TestNewS3Store_LoadConfigError(t *testing.T) {
	orig := loadDefaultAWSConfig
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}
	defer func() { loadDefaultAWSConfig = orig }()

	cfg := &srvconfig.Config{}
	cfg.LoadDefaults()

	_, err := NewS3Store(context.Background(), cfg, logging.Nop{})
	require.Error(t, err)
}

func TestNewS3Store_ClampsChunkSize(t *testing.T) {
	orig := loadDefaultAWSConfig
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		var o config.LoadOptions
		for _, fn := range optFns {
			if err := fn(&o); err != nil {
				return aws.Config{}, err
			}
		}
		return aws.Config{Region: o.Region, Credentials: o.Credentials}, nil
	}
	defer func() { loadDefaultAWSConfig = orig }()

	cfg := &srvconfig.Config{}
	cfg.LoadDefaults()
	cfg.UploadChunkSize = 1

	st, err := NewS3Store(context.Background(), cfg, logging.Nop{})
	require.NoError(t, err)
	assert.Equal(t, int64(srvconfig.MinUploadChunkSize), st.chunkSize)
	assert.Equal(t, cfg.S3Bucket, st.bucket)
}

type failingReader struct {
	err error
}

func (r *failingReader) Read(p []byte) (int, error) {
	return 0, r.err
}
