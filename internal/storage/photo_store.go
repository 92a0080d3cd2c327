package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
)

const (
	maxPhotoBytes = 10 * 1024 * 1024 // policy bound, client compresses first
	maxPhotoEdge  = 1024
	keyPrefix     = "photos"
)

// PhotoStore is the blob-store capability the profile layer consumes.
// Object paths are namespaced by owner identity so deletion stays
// self-service-safe.
type PhotoStore interface {
	Upload(ctx context.Context, ownerID string, data []byte, contentType string) (publicURL string, err error)
	Delete(ctx context.Context, ownerID, publicURL string) error
}

var allowedContentTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// AllowedContentType reports whether ct may be uploaded as a profile photo.
func AllowedContentType(ct string) bool {
	_, ok := allowedContentTypes[ct]
	return ok
}

type S3Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	PublicURL string
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// custom endpoint for R2-compatible storage
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &S3Store{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}, nil
}

// Upload validates, normalizes and stores a profile photo under the owner's
// namespace, returning its public URL.
func (s *S3Store) Upload(ctx context.Context, ownerID string, data []byte, contentType string) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("missing owner id")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty image data")
	}
	if len(data) > maxPhotoBytes {
		return "", fmt.Errorf("image too large: %d bytes", len(data))
	}
	ext, ok := allowedContentTypes[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported content type: %s", contentType)
	}

	normalized, err := normalizePhoto(data, contentType)
	if err != nil {
		return "", err
	}

	key := buildObjectKey(ownerID, ext)

	uploadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err = s.client.PutObject(uploadCtx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(normalized),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"owner_id": ownerID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload photo: %w", err)
	}

	return s.urlForKey(key), nil
}

// Delete removes a previously uploaded photo. The object key must live under
// the caller's own namespace; anything else is refused.
func (s *S3Store) Delete(ctx context.Context, ownerID, publicURL string) error {
	key, err := keyFromURL(publicURL)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(key, fmt.Sprintf("%s/%s/", keyPrefix, ownerID)) {
		return fmt.Errorf("object %s is outside the caller's namespace", key)
	}

	deleteCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err = s.client.DeleteObject(deleteCtx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	return nil
}

func (s *S3Store) urlForKey(key string) string {
	if s.publicURL != "" {
		return fmt.Sprintf("%s/%s", s.publicURL, key)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
}

// normalizePhoto re-encodes the image, bounding the longest edge. GIFs pass
// through untouched to preserve animation; webp passes through because
// imaging has no webp codec.
func normalizePhoto(data []byte, contentType string) ([]byte, error) {
	if contentType == "image/gif" || contentType == "image/webp" {
		return data, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	img = imaging.Fit(img, maxPhotoEdge, maxPhotoEdge, imaging.Lanczos)

	format := imaging.JPEG
	if contentType == "image/png" {
		format = imaging.PNG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func buildObjectKey(ownerID, ext string) string {
	var nonce [8]byte
	_, _ = rand.Read(nonce[:])
	return fmt.Sprintf("%s/%s/%s.%s", keyPrefix, ownerID, hex.EncodeToString(nonce[:]), ext)
}

// keyFromURL extracts the object key from a public URL by locating the
// photos/ prefix.
func keyFromURL(publicURL string) (string, error) {
	idx := strings.Index(publicURL, "/"+keyPrefix+"/")
	if idx < 0 {
		return "", fmt.Errorf("unrecognized photo url")
	}
	return publicURL[idx+1:], nil
}
