package keystore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

// ObjectAPI is the subset of the S3 client the key store uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3 key store configuration
type S3Config struct {
	Bucket         string
	Prefix         string
	Endpoint       string
	Region         string
	AccessKeyID    string
	SecretKey      string
	ForcePathStyle bool
}

// S3Store keeps each key as its own object with server-side encryption
// requested.
type S3Store struct {
	api    ObjectAPI
	bucket string
	prefix string
	logger *logrus.Entry
}

// NewS3Store builds an AWS S3 client from cfg. Static credentials are used
// when both are set, the default AWS chain otherwise.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("keystore bucket is required")
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return NewS3StoreWithAPI(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3StoreWithAPI wraps an existing S3 API implementation.
func NewS3StoreWithAPI(api ObjectAPI, bucket, prefix string) *S3Store {
	return &S3Store{
		api:    api,
		bucket: bucket,
		prefix: prefix,
		logger: logrus.WithField("component", "s3-keystore"),
	}
}

func (s *S3Store) objectKey(id string) string {
	return s.prefix + id + ".key"
}

func (s *S3Store) PutKey(ctx context.Context, id, rawKey string) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(s.objectKey(id)),
		Body:                 bytes.NewReader([]byte(rawKey)),
		ContentType:          aws.String("text/plain"),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return fmt.Errorf("failed to put key %s: %w", id, err)
	}

	s.logger.WithFields(logrus.Fields{
		"bucket": s.bucket,
		"key":    s.objectKey(id),
	}).Debug("Stored vault key")
	return nil
}

func (s *S3Store) GetKey(ctx context.Context, id string) (string, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(id)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return "", fmt.Errorf("key %s: %w", id, ErrKeyNotFound)
		}
		return "", fmt.Errorf("failed to get key %s: %w", id, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(io.LimitReader(out.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("failed to read key %s: %w", id, err)
	}
	return strings.TrimSpace(string(body)), nil
}

func (s *S3Store) DeleteKey(ctx context.Context, id string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", id, err)
	}
	return nil
}
