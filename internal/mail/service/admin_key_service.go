package service

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/allisson/go-pwdhash"

	apperrors "github.com/allisson/mailqueue/internal/errors"
)

// AdminKeyService hashes and verifies the admin API key using Argon2id.
type AdminKeyService interface {
	// Enabled reports whether an admin key hash is configured.
	Enabled() bool
	// Verify performs a constant-time check of plainKey against the configured hash.
	Verify(plainKey string) bool
	// Generate returns a new random key and its hash.
	Generate() (plainKey string, hashedKey string, err error)
	// Hash hashes plainKey for storage in ADMIN_API_KEY_HASH.
	Hash(plainKey string) (string, error)
}

type adminKeyService struct {
	hasher    *pwdhash.PasswordHasher
	hashedKey string
}

func (s *adminKeyService) Enabled() bool {
	return s.hashedKey != ""
}

func (s *adminKeyService) Verify(plainKey string) bool {
	if !s.Enabled() || plainKey == "" {
		return false
	}
	ok, err := s.hasher.Verify([]byte(plainKey), s.hashedKey)
	if err != nil {
		return false
	}
	return ok
}

func (s *adminKeyService) Generate() (string, string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", apperrors.Wrap(err, "failed to generate admin key")
	}
	plainKey := base64.RawURLEncoding.EncodeToString(randomBytes)

	hashedKey, err := s.Hash(plainKey)
	if err != nil {
		return "", "", err
	}
	return plainKey, hashedKey, nil
}

func (s *adminKeyService) Hash(plainKey string) (string, error) {
	if plainKey == "" {
		return "", apperrors.Wrap(apperrors.ErrInvalidInput, "admin key cannot be empty")
	}
	hashedKey, err := s.hasher.Hash([]byte(plainKey))
	if err != nil {
		return "", apperrors.Wrap(err, "failed to hash admin key")
	}
	return hashedKey, nil
}

// NewAdminKeyService creates an AdminKeyService for hashedKey. An empty hashedKey yields a
// service that rejects every key.
func NewAdminKeyService(hashedKey string) AdminKeyService {
	hasher, err := pwdhash.New(
		pwdhash.WithPolicy(pwdhash.PolicyModerate),
	)
	if err != nil {
		// This should never happen with valid policy
		panic(err)
	}

	return &adminKeyService{
		hasher:    hasher,
		hashedKey: hashedKey,
	}
}
