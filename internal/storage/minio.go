package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// MinioStore range les photos de retour et les logos dans un seul bucket
type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioStore : publicURL sert de préfixe aux URLs retournées (CDN ou reverse proxy).
// Vide, on retombe sur l'endpoint MinIO.
func NewMinioStore(client *minio.Client, bucket, publicURL string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket, publicURL: strings.TrimSuffix(publicURL, "/")}
}

func (s *MinioStore) Upload(ctx context.Context, objectPath string, body io.Reader, size int64, contentType string) (string, error) {
	if s == nil || s.client == nil {
		return "", fmt.Errorf("MinIO non initialisé")
	}
	_, err := s.client.PutObject(ctx, s.bucket, objectPath, body, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", err
	}
	zap.S().Infof("📷 Fichier envoyé dans %s : %s", s.bucket, objectPath)
	return s.ObjectURL(objectPath), nil
}

func (s *MinioStore) Remove(ctx context.Context, objectPath string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("MinIO non initialisé")
	}
	return s.client.RemoveObject(ctx, s.bucket, strings.TrimPrefix(objectPath, "/"), minio.RemoveObjectOptions{})
}

func (s *MinioStore) ObjectURL(objectPath string) string {
	base := s.publicURL
	if base == "" {
		scheme := "http"
		if s.client.EndpointURL().Scheme == "https" {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, s.client.EndpointURL().Host, s.bucket)
	}
	return base + "/" + strings.TrimPrefix(objectPath, "/")
}

// SignedURL génère une URL temporaire à partir d'une URL publique ou d'un chemin d'objet
func (s *MinioStore) SignedURL(ctx context.Context, objectURL string, duration time.Duration) (string, error) {
	key := s.objectKey(objectURL)
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, duration, make(url.Values))
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// objectKey retire le préfixe public pour ne garder que le chemin relatif au bucket
func (s *MinioStore) objectKey(objectURL string) string {
	key := strings.TrimPrefix(objectURL, s.ObjectURL(""))
	return strings.TrimPrefix(key, "/")
}
