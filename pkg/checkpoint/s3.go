package checkpoint

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options configure access to an S3-compatible object store
type S3Options struct {
	Endpoint  string
	Region    string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Secure    bool
}

// S3 is a client for snapshots kept as objects in one bucket
type S3 struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3 makes a client, it does not contact the server
func NewS3(opts S3Options) (*S3, error) {
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("make s3 client: %w", err)
	}
	return &S3{client: client, bucket: opts.Bucket, prefix: opts.Prefix}, nil
}

// Backend returns a backend for the named snapshot
func (s *S3) Backend(name string) *S3Backend {
	return &S3Backend{client: s.client, bucket: s.bucket, key: path.Join(s.prefix, name)}
}

// S3Backend keeps a snapshot as a single object
type S3Backend struct {
	client *minio.Client
	bucket string
	key    string
}

// Read returns object content or nil when the object does not exist
func (s *S3Backend) Read(ctx context.Context) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", s.key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read object %s: %w", s.key, err)
	}
	return data, nil
}

// Write replaces the object, single PUT requests are atomic for readers
func (s *S3Backend) Write(ctx context.Context, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("put object %s: %w", s.key, err)
	}
	return nil
}

func (s *S3Backend) String() string { return "s3:" + s.bucket + "/" + s.key }

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
