package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const maxPortraitBytes int64 = 10 * 1024 * 1024

const (
	portraitKeyPrefix = "portraits"
	thumbKeyPrefix    = "portraits/thumbs"
	thumbSize         = 256
)

// PortraitStorage provides helpers for storing generated portrait images in MinIO/S3.
type PortraitStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewPortraitStorageFromEnv initialises PortraitStorage using MINIO_* environment
// variables. It returns (nil, nil) when the storage is not configured; uploads
// against a nil storage fail at call time.
func NewPortraitStorageFromEnv() (*PortraitStorage, error) {
	endpoint := strings.TrimSpace(os.Getenv("MINIO_ENDPOINT"))
	accessKey := strings.TrimSpace(os.Getenv("MINIO_ACCESS_KEY"))
	secretKey := strings.TrimSpace(os.Getenv("MINIO_SECRET_KEY"))
	bucket := strings.TrimSpace(os.Getenv("MINIO_BUCKET"))
	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, nil
	}

	useSSL := strings.EqualFold(strings.TrimSpace(os.Getenv("MINIO_USE_SSL")), "true")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	publicURL := strings.TrimSpace(os.Getenv("MINIO_PUBLIC_URL"))
	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, endpoint)
	}

	return &PortraitStorage{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

// UploadPortrait stores the provided PNG bytes under a fresh date-based key and
// returns the public URL. A 256px square thumbnail is uploaded alongside it on a
// best-effort basis; thumbnail failures leave thumbURL empty and never fail the
// upload.
func (s *PortraitStorage) UploadPortrait(ctx context.Context, img []byte) (imageURL, thumbURL string, err error) {
	imageURL, err = s.putPNG(ctx, img, portraitKeyPrefix)
	if err != nil {
		return "", "", err
	}

	thumb, err := Thumbnail(img, thumbSize)
	if err != nil {
		log.Printf("storage: render portrait thumbnail failed: %v", err)
		return imageURL, "", nil
	}
	thumbURL, err = s.putPNG(ctx, thumb, thumbKeyPrefix)
	if err != nil {
		log.Printf("storage: upload portrait thumbnail failed: %v", err)
		return imageURL, "", nil
	}

	return imageURL, thumbURL, nil
}

func (s *PortraitStorage) putPNG(ctx context.Context, img []byte, keyPrefix string) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("portrait storage not configured")
	}
	if len(img) == 0 {
		return "", errors.New("portrait image is empty")
	}
	if int64(len(img)) > maxPortraitBytes {
		return "", fmt.Errorf("portrait size exceeds %d bytes", maxPortraitBytes)
	}

	now := time.Now().UTC()
	objectName := path.Join(keyPrefix, now.Format("2006/01/02"), fmt.Sprintf("%s.png", uuid.NewString()))

	uploadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	reader := bytes.NewReader(img)
	_, err := s.client.PutObject(uploadCtx, s.bucket, objectName, reader, int64(len(img)), minio.PutObjectOptions{
		ContentType:  "image/png",
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return "", fmt.Errorf("upload portrait: %w", err)
	}

	return s.buildPublicURL(objectName), nil
}

// Remove deletes the object pointed to by the provided URL/object path. URLs
// that do not belong to this storage are ignored.
func (s *PortraitStorage) Remove(ctx context.Context, rawURL string) error {
	if s == nil || s.client == nil {
		return nil
	}
	objectName, ok := s.objectNameFromURL(rawURL)
	if !ok {
		return nil
	}

	removeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.client.RemoveObject(removeCtx, s.bucket, objectName, minio.RemoveObjectOptions{})
}

func (s *PortraitStorage) buildPublicURL(objectName string) string {
	base := strings.TrimSuffix(s.publicURL, "/")
	object := strings.TrimPrefix(objectName, "/")
	return fmt.Sprintf("%s/%s/%s", base, s.bucket, object)
}

func (s *PortraitStorage) objectNameFromURL(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	base := strings.TrimSuffix(s.publicURL, "/")
	if base != "" && strings.HasPrefix(trimmed, base) {
		candidate := strings.TrimPrefix(trimmed, base)
		candidate = strings.TrimPrefix(candidate, "/")
		candidate = strings.TrimPrefix(candidate, s.bucket+"/")
		if candidate != "" {
			return candidate, true
		}
	}

	target, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}
	baseURL, err := url.Parse(base)
	if err == nil && baseURL.Host != "" && baseURL.Host == target.Host {
		candidate := strings.TrimPrefix(target.Path, "/")
		candidate = strings.TrimPrefix(candidate, s.bucket+"/")
		candidate = strings.TrimPrefix(candidate, "/")
		if candidate != "" {
			return candidate, true
		}
	}

	if !strings.Contains(trimmed, "://") {
		candidate := strings.TrimPrefix(trimmed, "/")
		candidate = strings.TrimPrefix(candidate, s.bucket+"/")
		if candidate != "" {
			return candidate, true
		}
	}

	return "", false
}
