package recordstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/bigkaa/chanstore/internal/domain/model"
)

// S3Config — параметры объекта коллекции в S3-совместимом хранилище.
type S3Config struct {
	Bucket string
	Key    string
	Region string
	// Endpoint — адрес MinIO или другого S3-совместимого сервиса (пустой — AWS)
	Endpoint  string
	AccessKey string
	SecretKey string
}

// objectAPI — используемое подмножество s3.Client.
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 — коллекция записей в одном объекте bucket/key.
// PutObject заменяет объект целиком, частичной записи не бывает.
type S3 struct {
	client objectAPI
	bucket string
	key    string
}

// NewS3 создаёт клиент S3 из статических учётных данных.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("конфигурация S3: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO и большинство совместимых сервисов требуют path-style
			o.UsePathStyle = true
		}
	})

	return newS3WithClient(client, cfg.Bucket, cfg.Key), nil
}

func newS3WithClient(client objectAPI, bucket, key string) *S3 {
	return &S3{client: client, bucket: bucket, key: key}
}

// LoadAll читает объект. Отсутствующий объект — пустая коллекция.
func (s *S3) LoadAll(ctx context.Context) ([]model.FileRecord, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return []model.FileRecord{}, nil
		}
		return nil, fmt.Errorf("чтение s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("чтение s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return decodeRecords(data)
}

// ReplaceAll перезаписывает объект.
func (s *S3) ReplaceAll(ctx context.Context, records []model.FileRecord) error {
	data, err := encodeRecords(records)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("запись s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

// Close ничего не делает: у клиента S3 нет состояния для освобождения.
func (s *S3) Close() error {
	return nil
}

// isNoSuchKey распознаёт отсутствующий объект (NoSuchKey у AWS и MinIO,
// NotFound у части совместимых сервисов).
func isNoSuchKey(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
