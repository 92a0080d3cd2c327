package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Simulator is an in-memory PhotoStore for tests and local development.
type Simulator struct {
	mu       sync.Mutex
	endpoint string
	bucket   string
	objects  map[string][]byte
}

func NewSimulator(bucket, endpoint string) *Simulator {
	return &Simulator{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		bucket:   strings.TrimSpace(bucket),
		objects:  make(map[string][]byte),
	}
}

func (s *Simulator) Upload(_ context.Context, ownerID string, data []byte, contentType string) (string, error) {
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

	key := buildObjectKey(ownerID, ext)

	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()

	return fmt.Sprintf("%s/%s/%s", s.baseURL(), s.bucketName(), key), nil
}

func (s *Simulator) Delete(_ context.Context, ownerID, publicURL string) error {
	key, err := keyFromURL(publicURL)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(key, fmt.Sprintf("%s/%s/", keyPrefix, ownerID)) {
		return fmt.Errorf("object %s is outside the caller's namespace", key)
	}

	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Stored reports whether an object for publicURL is held in memory.
func (s *Simulator) Stored(publicURL string) bool {
	key, err := keyFromURL(publicURL)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *Simulator) baseURL() string {
	if s.endpoint == "" {
		return "https://storage.example.invalid"
	}
	return s.endpoint
}

func (s *Simulator) bucketName() string {
	if s.bucket == "" {
		return "profile-photos"
	}
	return s.bucket
}
