package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3Client archives exports and uploads to a bucket.
type S3Client struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucketName string
	prefix     string
	password   string
}

// S3Options configures NewS3Client. Empty keys fall back to the default
// AWS credential chain.
type S3Options struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
	// Password seals archived objects when set.
	Password string
}

// NewS3Client creates a new S3 client
func NewS3Client(ctx context.Context, opts S3Options) (*S3Client, error) {
	var loaders []func(*awscfg.LoadOptions) error
	if opts.Region != "" {
		loaders = append(loaders, awscfg.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loaders = append(loaders, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cli := s3.NewFromConfig(cfg)
	return &S3Client{
		client:     cli,
		uploader:   manager.NewUploader(cli),
		bucketName: opts.Bucket,
		prefix:     opts.Prefix,
		password:   opts.Password,
	}, nil
}

// Key builds the object key for a job artifact.
func (s *S3Client) Key(jobID, name string) string {
	return ObjectKey(s.prefix, jobID, name)
}

// ObjectKey joins prefix/jobID/name.
func ObjectKey(prefix, jobID, name string) string {
	return path.Join(prefix, jobID, name)
}

// Save uploads data under the job's prefix and returns its s3:// URI.
func (s *S3Client) Save(ctx context.Context, jobID, name string, data []byte, contentType string) (string, error) {
	key := s.Key(jobID, name)
	meta := map[string]string{"job-id": jobID}
	if s.password != "" {
		sealed, err := Seal(data, s.password)
		if err != nil {
			return "", err
		}
		data = sealed
		meta["encryption-format"] = sealFormat
		contentType = "application/octet-stream"
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata:    meta,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Debug().Str("bucket", s.bucketName).Str("key", key).Int("size", len(data)).Msg("uploaded to s3")
	return fmt.Sprintf("s3://%s/%s", s.bucketName, key), nil
}

// Open downloads an artifact saved by Save.
func (s *S3Client) Open(ctx context.Context, jobID, name string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(s.Key(jobID, name)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	if IsSealed(data) {
		if s.password == "" {
			return nil, fmt.Errorf("object %s is sealed and no password is configured", s.Key(jobID, name))
		}
		return Unseal(data, s.password)
	}
	return data, nil
}

// Ping checks the bucket is reachable.
func (s *S3Client) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucketName)})
	return err
}
