package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/rdkeeper/internal/common"
	"github.com/dmitrijs2005/rdkeeper/internal/cryptox"
	"github.com/dmitrijs2005/rdkeeper/internal/logging"
	srvconfig "github.com/dmitrijs2005/rdkeeper/internal/server/config"
)

// maxDeleteBatch is the S3 limit of keys per DeleteObjects call.
const maxDeleteBatch = 1000

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectVersions(ctx context.Context, in *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutBucketVersioning(ctx context.Context, in *s3.PutBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.PutBucketVersioningOutput, error)
}

// GetPresigner is the subset of *s3.PresignClient used by S3Store.
type GetPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Store stores content in a versioned S3 bucket. Objects at or above the
// chunk size are sent with multipart upload.
type S3Store struct {
	api       S3API
	presigner GetPresigner
	bucket    string
	region    string
	chunkSize int64
	logger    logging.Logger
}

// NewS3Store builds an S3 client from the server configuration.
func NewS3Store(ctx context.Context, cfg *srvconfig.Config, logger logging.Logger) (*S3Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	return NewS3StoreWithClient(client, s3.NewPresignClient(client), cfg.S3Bucket, cfg.S3Region, cfg.UploadChunkSize, logger), nil
}

func NewS3StoreWithClient(api S3API, presigner GetPresigner, bucket, region string, chunkSize int64, logger logging.Logger) *S3Store {
	if chunkSize < srvconfig.MinUploadChunkSize {
		chunkSize = srvconfig.MinUploadChunkSize
	}
	return &S3Store{
		api:       api,
		presigner: presigner,
		bucket:    bucket,
		region:    region,
		chunkSize: chunkSize,
		logger:    logging.Module(logger, "s3_store"),
	}
}

// EnsureBucket creates the bucket when missing and turns on versioning.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		if !isNotFound(err) {
			return transportError("head bucket", err)
		}
		in := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
		if s.region != "" && s.region != "us-east-1" {
			in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
				LocationConstraint: types.BucketLocationConstraint(s.region),
			}
		}
		if _, err := s.api.CreateBucket(ctx, in); err != nil {
			return transportError("create bucket", err)
		}
		s.logger.Info(ctx, "bucket created", "bucket", s.bucket)
	}

	_, err = s.api.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: aws.String(s.bucket),
		VersioningConfiguration: &types.VersioningConfiguration{
			Status: types.BucketVersioningStatusEnabled,
		},
	})
	if err != nil {
		return transportError("enable versioning", err)
	}
	return nil
}

func (s *S3Store) Put(ctx context.Context, key string, r io.Reader) (*PutResult, error) {
	dr := cryptox.NewDigestReader(r)
	buf := make([]byte, s.chunkSize)

	n, err := io.ReadFull(dr, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, transportError("read content", err)
	}
	if err != nil {
		out, err := s.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(buf[:n]),
			ContentLength: aws.Int64(int64(n)),
		})
		if err != nil {
			return nil, transportError("put object", err)
		}
		return s.result(key, out.VersionId, dr)
	}

	versionID, err := s.putMultipart(ctx, key, dr, buf)
	if err != nil {
		return nil, err
	}
	return s.result(key, versionID, dr)
}

// putMultipart uploads buf, which already holds the first full chunk, and the
// rest of r as parts. The upload is aborted on any failure.
func (s *S3Store) putMultipart(ctx context.Context, key string, r io.Reader, buf []byte) (*string, error) {
	created, err := s.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, transportError("create multipart upload", err)
	}
	uploadID := created.UploadId

	abort := func(op string, cause error) error {
		_, aerr := s.api.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(s.bucket),
			Key:      aws.String(key),
			UploadId: uploadID,
		})
		if aerr != nil {
			s.logger.Error(ctx, "abort multipart upload failed", "key", key, "error", aerr)
		}
		return transportError(op, cause)
	}

	var parts []types.CompletedPart
	chunk := buf
	for part := int32(1); ; part++ {
		if err := ctx.Err(); err != nil {
			return nil, abort("upload part", err)
		}
		out, err := s.api.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			UploadId:      uploadID,
			PartNumber:    aws.Int32(part),
			Body:          bytes.NewReader(chunk),
			ContentLength: aws.Int64(int64(len(chunk))),
		})
		if err != nil {
			return nil, abort("upload part", err)
		}
		parts = append(parts, types.CompletedPart{ETag: out.ETag, PartNumber: aws.Int32(part)})

		n, err := io.ReadFull(r, buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, abort("read content", err)
		}
		chunk = buf[:n]
	}

	done, err := s.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		UploadId:        uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		return nil, abort("complete multipart upload", err)
	}
	return done.VersionId, nil
}

func (s *S3Store) result(key string, versionID *string, dr *cryptox.DigestReader) (*PutResult, error) {
	if aws.ToString(versionID) == "" {
		return nil, fmt.Errorf("%w: bucket %s returned no version id for %s", common.ErrStorageTransport, s.bucket, key)
	}
	return &PutResult{VersionID: aws.ToString(versionID), Digest: dr.Sum(), Size: dr.Size()}, nil
}

func (s *S3Store) Get(ctx context.Context, key, versionID string) (io.ReadCloser, error) {
	in := &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}
	if versionID != "" {
		in.VersionId = aws.String(versionID)
	}
	out, err := s.api.GetObject(ctx, in)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrorNotFound
		}
		return nil, transportError("get object", err)
	}
	return out.Body, nil
}

func (s *S3Store) Versions(ctx context.Context, key string) ([]ObjectVersion, error) {
	var result []ObjectVersion
	err := s.listVersions(ctx, key, func(out *s3.ListObjectVersionsOutput) {
		for _, v := range out.Versions {
			if aws.ToString(v.Key) != key {
				continue
			}
			result = append(result, ObjectVersion{
				VersionID:    aws.ToString(v.VersionId),
				Size:         aws.ToInt64(v.Size),
				IsLatest:     aws.ToBool(v.IsLatest),
				LastModified: aws.ToTime(v.LastModified),
			})
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	var ids []types.ObjectIdentifier
	err := s.listVersions(ctx, key, func(out *s3.ListObjectVersionsOutput) {
		for _, v := range out.Versions {
			if aws.ToString(v.Key) == key {
				ids = append(ids, types.ObjectIdentifier{Key: v.Key, VersionId: v.VersionId})
			}
		}
		for _, m := range out.DeleteMarkers {
			if aws.ToString(m.Key) == key {
				ids = append(ids, types.ObjectIdentifier{Key: m.Key, VersionId: m.VersionId})
			}
		}
	})
	if err != nil {
		return err
	}

	for start := 0; start < len(ids); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(ids))
		out, err := s.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids[start:end], Quiet: aws.Bool(true)},
		})
		if err != nil {
			return transportError("delete objects", err)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return fmt.Errorf("%w: delete %s@%s: %s", common.ErrStorageTransport,
				aws.ToString(e.Key), aws.ToString(e.VersionId), aws.ToString(e.Message))
		}
	}
	return nil
}

func (s *S3Store) listVersions(ctx context.Context, key string, visit func(*s3.ListObjectVersionsOutput)) error {
	in := &s3.ListObjectVersionsInput{Bucket: aws.String(s.bucket), Prefix: aws.String(key)}
	for {
		out, err := s.api.ListObjectVersions(ctx, in)
		if err != nil {
			return transportError("list object versions", err)
		}
		visit(out)
		if !aws.ToBool(out.IsTruncated) {
			return nil
		}
		in.KeyMarker = out.NextKeyMarker
		in.VersionIdMarker = out.NextVersionIdMarker
	}
}

func (s *S3Store) PresignGet(ctx context.Context, key, versionID string, ttl time.Duration) (string, error) {
	in := &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}
	if versionID != "" {
		in.VersionId = aws.String(versionID)
	}
	req, err := s.presigner.PresignGetObject(ctx, in, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", transportError("presign get", err)
	}
	return req.URL, nil
}

func transportError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrStorageTransport, op, err)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchVersion", "NotFound":
			return true
		}
	}
	return false
}
