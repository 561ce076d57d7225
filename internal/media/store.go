// Package media uploads account images to S3-compatible object storage and
// hands back their public URLs.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// objectAPI is the subset of *s3.Client the store calls.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	KeyPrefix     string
}

type S3Store struct {
	client        objectAPI
	bucket        string
	publicBaseURL string
	keyPrefix     string
	logger        *zap.Logger
	now           func() time.Time
}

func NewS3Store(ctx context.Context, cfg Config, logger *zap.Logger) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config failed")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Store(client, cfg, logger), nil
}

func newS3Store(client objectAPI, cfg Config, logger *zap.Logger) *S3Store {
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	prefix := strings.Trim(cfg.KeyPrefix, "/")
	if prefix == "" {
		prefix = "accounts"
	}
	return &S3Store{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: base,
		keyPrefix:     prefix,
		logger:        logger,
		now:           time.Now,
	}
}

// Upload stores the file at localPath and returns its public URL. An empty
// path uploads nothing and returns "". The local file is removed whether or
// not the upload succeeds.
func (s *S3Store) Upload(ctx context.Context, localPath string) (string, error) {
	if localPath == "" {
		return "", nil
	}
	defer s.removeLocal(localPath)

	file, err := os.Open(localPath)
	if err != nil {
		return "", errors.Wrap(err, "open upload failed")
	}
	defer file.Close()

	contentType, err := sniffContentType(file)
	if err != nil {
		return "", errors.Wrap(err, "read upload failed")
	}

	key := s.objectKey(filepath.Ext(localPath))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.logger.Warn("media upload failed", zap.String("key", key), zap.Error(err))
		return "", errors.Wrap(err, "put object failed")
	}

	url := s.publicBaseURL + "/" + key
	s.logger.Debug("media uploaded", zap.String("url", url))
	return url, nil
}

// Delete removes an object previously returned by Upload. URLs that do not
// belong to this store are ignored.
func (s *S3Store) Delete(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, s.publicBaseURL+"/")
	if !ok || key == "" {
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrap(err, "delete object failed")
	}
	return nil
}

func (s *S3Store) objectKey(ext string) string {
	d := s.now().UTC()
	return fmt.Sprintf("%s/%d/%02d/%02d/%s%s", s.keyPrefix, d.Year(), d.Month(), d.Day(), uuid.New(), strings.ToLower(ext))
}

func (s *S3Store) removeLocal(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("remove temporary upload failed", zap.String("path", path), zap.Error(err))
	}
}

func sniffContentType(file *os.File) (string, error) {
	head := make([]byte, 512)
	n, err := file.Read(head)
	if err != nil && err != io.EOF {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}
