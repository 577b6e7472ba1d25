package export

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"yggharvest/pkg/config"
	"yggharvest/pkg/logger"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads exports to s3://bucket/prefix/name.
type S3Sink struct {
	client putObjectAPI
	bucket string
	prefix string
	logger logger.Logger
}

// NewS3Sink builds a sink from cfg. Credentials come from cfg when set,
// otherwise from the default AWS chain.
func NewS3Sink(ctx context.Context, cfg config.S3Config, log logger.Logger) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newS3Sink(client, cfg.Bucket, cfg.Prefix, log), nil
}

func newS3Sink(client putObjectAPI, bucket, prefix string, log logger.Logger) *S3Sink {
	if log == nil {
		log = logger.GetLogger()
	}
	return &S3Sink{client: client, bucket: bucket, prefix: prefix, logger: log}
}

func (s *S3Sink) key(name string) string {
	return path.Join(s.prefix, name)
}

// Put uploads data under the sink prefix.
func (s *S3Sink) Put(ctx context.Context, name string, data []byte, contentType string) error {
	key := s.key(name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}

	s.logger.InfoWithFields("Export uploaded", map[string]interface{}{
		"bucket":     s.bucket,
		"key":        key,
		"size_bytes": len(data),
	})
	return nil
}

func (s *S3Sink) String() string {
	return "s3://" + s.bucket + "/" + s.key("")
}
