// Package filestore persists original uploaded files so a carga can be
// reprocessed later from its stored path. Local disk by default; S3 when
// ARCHIVOS_S3_BUCKET is set.
package filestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const s3Prefix = "s3://"

// Store saves and reloads uploaded file bytes by opaque path.
type Store interface {
	Save(ctx context.Context, key string, data []byte) (string, error)
	Load(ctx context.Context, path string) ([]byte, error)
}

// New picks the backend from the environment.
func New() Store {
	if bucket := strings.TrimSpace(os.Getenv("ARCHIVOS_S3_BUCKET")); bucket != "" {
		return &S3Store{
			Bucket: bucket,
			Region: envOrDefault("ARCHIVOS_S3_REGION", "us-east-1"),
		}
	}
	return &LocalStore{Root: envOrDefault("ARCHIVOS_RUTA", "./archivos")}
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// LocalStore keeps files under a root directory.
type LocalStore struct {
	Root string
}

func (s *LocalStore) Save(ctx context.Context, key string, data []byte) (string, error) {
	path := filepath.Join(s.Root, key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("crear directorio de archivos: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("guardar archivo %s: %w", key, err)
	}
	return path, nil
}

func (s *LocalStore) Load(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("leer archivo %s: %w", path, err)
	}
	return data, nil
}

// S3Store keeps files in an S3 bucket; paths are s3://bucket/key.
type S3Store struct {
	Bucket string
	Region string
}

func (s *S3Store) client(ctx context.Context) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(s.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

func (s *S3Store) Save(ctx context.Context, key string, data []byte) (string, error) {
	client, err := s.client(ctx)
	if err != nil {
		return "", err
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(detectContentType(data)),
	})
	if err != nil {
		return "", fmt.Errorf("subir a s3 (bucket %s, key %s): %w", s.Bucket, key, err)
	}
	return s3Prefix + s.Bucket + "/" + key, nil
}

func (s *S3Store) Load(ctx context.Context, path string) ([]byte, error) {
	key := strings.TrimPrefix(path, s3Prefix+s.Bucket+"/")
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("leer de s3 (bucket %s, key %s): %w", s.Bucket, key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func detectContentType(data []byte) string {
	if len(data) == 0 {
		return "application/octet-stream"
	}
	if len(data) > 512 {
		return http.DetectContentType(data[:512])
	}
	return http.DetectContentType(data)
}
