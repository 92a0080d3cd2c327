// Package slug generates and validates the human-readable identifiers that
// address profiles publicly, independently of their internal ids.
package slug

import (
	"context"
	"crypto/rand"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	MinLength = 3
	MaxLength = 30

	suffixLength   = 4
	suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// Valid reports whether s satisfies the slug contract: lowercase letters,
// digits and hyphens only, length within [MinLength, MaxLength].
func Valid(s string) bool {
	if len(s) < MinLength || len(s) > MaxLength {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return false
		}
	}
	return true
}

// Normalize transliterates a display name into a slug candidate: diacritics
// stripped, lowercased, runs of anything else collapsed to single hyphens,
// leading/trailing hyphens trimmed. Pure; may return the empty string for
// names with no ASCII-representable content (callers must reject those).
func Normalize(raw string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, err := transform.String(t, raw)
	if err != nil {
		ascii = raw
	}

	var b strings.Builder
	b.Grow(len(ascii))
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(ascii) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	return strings.TrimRight(b.String(), "-")
}

// Index answers who currently holds a slug. Backed by the profile table.
type Index interface {
	// OwnerOf returns the identity id owning the profile that holds slug.
	// exists=false means no profile holds it; owner may be empty for
	// unclaimed (seed) profiles.
	OwnerOf(ctx context.Context, slug string) (owner string, exists bool, err error)
}

// Service checks slug availability and generates unique candidates. Results
// are advisory: the storage layer's uniqueness constraint is the arbiter
// under concurrent writers.
type Service struct {
	index Index
	rand  func(n int) string
}

func NewService(index Index) *Service {
	return &Service{index: index, rand: randomSuffix}
}

// WithRand overrides the suffix randomness source; test harnesses inject a
// deterministic one.
func (s *Service) WithRand(fn func(n int) string) *Service {
	s.rand = fn
	return s
}

// IsAvailable reports whether slug is free, or held only by the profile
// owned by excludingIdentityID (the self-edit case).
func (s *Service) IsAvailable(ctx context.Context, slug, excludingIdentityID string) (bool, error) {
	owner, exists, err := s.index.OwnerOf(ctx, slug)
	if err != nil {
		return false, err
	}
	if !exists {
		return true, nil
	}
	if excludingIdentityID != "" && owner == excludingIdentityID {
		return true, nil
	}
	return false, nil
}

// GenerateUnique normalizes rawName and, if the base candidate is taken,
// appends a short random suffix. Suffix collisions are not retried.
func (s *Service) GenerateUnique(ctx context.Context, rawName string) (string, error) {
	base := Normalize(rawName)

	// keep room for "-xxxx"
	if len(base) > MaxLength-suffixLength-1 {
		base = strings.TrimRight(base[:MaxLength-suffixLength-1], "-")
	}

	available, err := s.IsAvailable(ctx, base, "")
	if err != nil {
		return "", err
	}
	if available && Valid(base) {
		return base, nil
	}

	return base + "-" + s.rand(suffixLength), nil
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	for i := range buf {
		buf[i] = suffixAlphabet[int(buf[i])%len(suffixAlphabet)]
	}
	return string(buf)
}
