package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/grachmannico95/invoice-proof/internal/domain"
)

type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

// objectAPI is the part of *s3.Client the store uses.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type S3Store struct {
	client objectAPI
	bucket string
	prefix string
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Store(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3Store(client objectAPI, bucket, prefix string) *S3Store {
	if prefix == "" {
		prefix = "documents/"
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) key(hash string) string {
	return s.prefix + hash
}

func (s *S3Store) Put(ctx context.Context, contents []byte, contentType string) (string, error) {
	if len(contents) == 0 {
		return "", domain.NewError(domain.KindMalformedInput, "document is empty")
	}

	hash := Hash(contents)

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(hash)),
	})
	if err == nil {
		return hash, nil
	}
	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return "", domain.WrapError(domain.KindUnreachable, err, "head document")
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(hash)),
		Body:          bytes.NewReader(contents),
		ContentLength: aws.Int64(int64(len(contents))),
		ContentType:   aws.String(contentType),
		Metadata:      map[string]string{"sha256": hash},
	})
	if err != nil {
		return "", domain.WrapError(domain.KindUnreachable, err, "put document")
	}
	return hash, nil
}

func (s *S3Store) Get(ctx context.Context, hash string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(hash)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, domain.Errorf(domain.KindNotFound, "document %s", hash)
		}
		return nil, domain.WrapError(domain.KindUnreachable, err, "get document")
	}
	defer out.Body.Close()

	contents, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, domain.WrapError(domain.KindUnreachable, err, "read document")
	}
	if Hash(contents) != hash {
		return nil, domain.Errorf(domain.KindInternal, "document %s failed integrity check", hash)
	}
	return contents, nil
}
