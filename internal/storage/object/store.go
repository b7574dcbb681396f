package object

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/tcthien/ada-wacg-compliance-sub004/internal/interfaces"
)

const defaultURLLifetime = 24 * time.Hour

// Store is a filesystem-backed object store for report artifacts. Read
// URLs are presigned with an HMAC over (key, expiry) so artifact links can
// be handed to email recipients without authentication.
type Store struct {
	baseDir  string
	baseURL  string
	secret   []byte
	lifetime time.Duration
	logger   arbor.ILogger
}

// NewStore creates an object store rooted at baseDir.
func NewStore(baseDir, baseURL, secret string, logger arbor.ILogger) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create object store directory: %w", err)
	}
	return &Store{
		baseDir:  baseDir,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		secret:   []byte(secret),
		lifetime: defaultURLLifetime,
		logger:   logger,
	}, nil
}

// Put writes the artifact and returns its presigned URL.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (*interfaces.StoredObject, error) {
	cleanKey, err := s.cleanKey(key)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(s.baseDir, cleanKey)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write artifact %s: %w", cleanKey, err)
	}

	expiresAt := time.Now().UTC().Add(s.lifetime)
	s.logger.Debug().
		Str("key", cleanKey).
		Int("bytes", len(data)).
		Str("content_type", contentType).
		Msg("Artifact stored")

	return &interfaces.StoredObject{
		Key:       cleanKey,
		URL:       s.SignURL(cleanKey, expiresAt),
		ExpiresAt: expiresAt,
	}, nil
}

// Get reads an artifact by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cleanKey, err := s.cleanKey(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.baseDir, cleanKey))
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", cleanKey, err)
	}
	return data, nil
}

// SignURL builds a presigned read URL embedding the expiry and signature.
func (s *Store) SignURL(key string, expiresAt time.Time) string {
	expires := strconv.FormatInt(expiresAt.Unix(), 10)
	return fmt.Sprintf("%s/reports/%s?expires=%s&sig=%s", s.baseURL, key, expires, s.sign(key, expires))
}

// VerifyURL checks a presigned URL's signature and expiry.
func (s *Store) VerifyURL(key, expires, sig string) bool {
	expiry, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || time.Now().Unix() > expiry {
		return false
	}
	expected := s.sign(key, expires)
	return hmac.Equal([]byte(expected), []byte(sig))
}

func (s *Store) sign(key, expires string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key + "\n" + expires))
	return hex.EncodeToString(mac.Sum(nil))
}

// cleanKey rejects traversal outside the store root.
func (s *Store) cleanKey(key string) (string, error) {
	clean := filepath.ToSlash(filepath.Clean("/" + key))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid object key: %s", key)
	}
	return clean, nil
}

var _ interfaces.ObjectStore = (*Store)(nil)
