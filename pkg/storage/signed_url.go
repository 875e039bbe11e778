package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken is returned for malformed or tampered download tokens.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrTokenExpired is returned when a token is past its expiry.
	ErrTokenExpired = errors.New("download token expired")
)

// SignedFile is the metadata embedded in a download token.
type SignedFile struct {
	Subject   string
	Path      string
	ExpiresAt time.Time
}

// SignedURLSigner creates and validates signed download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Sign returns a token binding subject (the course a gradebook belongs to) to a stored file.
func (s *SignedURLSigner) Sign(subject, relPath string) (string, time.Time, error) {
	if subject == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("subject and path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	encodedSubject := base64.RawURLEncoding.EncodeToString([]byte(subject))
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	signature := s.sign(encodedSubject, ts, encodedPath)
	return strings.Join([]string{encodedSubject, ts, encodedPath, signature}, "."), expiresAt, nil
}

// Verify validates a token and returns the embedded metadata.
func (s *SignedURLSigner) Verify(token string) (SignedFile, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return SignedFile{}, ErrInvalidToken
	}
	encodedSubject, ts, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	expected := s.sign(encodedSubject, ts, encodedPath)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return SignedFile{}, ErrInvalidToken
	}

	subject, err := base64.RawURLEncoding.DecodeString(encodedSubject)
	if err != nil {
		return SignedFile{}, fmt.Errorf("%w: subject", ErrInvalidToken)
	}
	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return SignedFile{}, fmt.Errorf("%w: path", ErrInvalidToken)
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return SignedFile{}, fmt.Errorf("%w: timestamp", ErrInvalidToken)
	}
	expiresAt := time.Unix(expUnix, 0)
	if s.now().After(expiresAt) {
		return SignedFile{}, ErrTokenExpired
	}
	return SignedFile{Subject: string(subject), Path: string(rawPath), ExpiresAt: expiresAt}, nil
}

func (s *SignedURLSigner) sign(parts ...string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}
