package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"messenger/internal/config"
	"messenger/internal/logger"
)

// AvatarStore turns avatar object keys stored on profiles into presigned
// download URLs. Values that already are URLs are returned as is.
type AvatarStore struct {
	cfg     config.StorageConfig
	presign *s3.PresignClient
	log     *logger.Logger
}

func NewAvatarStore(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (*AvatarStore, error) {
	if !cfg.Enabled() {
		return nil, errors.New("s3 region and bucket are required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &AvatarStore{
		cfg:     cfg,
		presign: s3.NewPresignClient(client),
		log:     log.Named("avatars"),
	}, nil
}

// ResolveAvatar presigns ref when it is an object key. On failure the
// original value is returned.
func (s *AvatarStore) ResolveAvatar(ctx context.Context, ref string) string {
	if s == nil || !IsObjectKey(ref) {
		return ref
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(strings.TrimPrefix(ref, "/")),
	}, func(po *s3.PresignOptions) {
		if s.cfg.PresignTTL > 0 {
			po.Expires = s.cfg.PresignTTL
		}
	})
	if err != nil {
		s.log.Warn("presign avatar", zap.String("key", ref), zap.Error(err))
		return ref
	}
	return req.URL
}

// IsObjectKey reports whether ref names a bucket object rather than a URL.
func IsObjectKey(ref string) bool {
	if ref == "" {
		return false
	}
	return !strings.Contains(ref, "://") && !strings.HasPrefix(ref, "data:")
}
