package blob

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const signerIssuer = "health-docs-platform"

// DownloadClaims are the claims embedded in a signed download token. The
// token grants read access to exactly one blob until it expires.
type DownloadClaims struct {
	BlobName string `json:"blob_name"`
	UserID   string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Signer mints time-limited read tokens for individual blobs. A signed URL is
// the durable blob URI with a token query parameter appended; the files
// endpoint validates the token before streaming bytes.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl}
}

// TTL reports the lifetime applied to newly signed tokens.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Sign returns a read token for the named blob.
func (s *Signer) Sign(blobName, userID string) (string, error) {
	now := time.Now()
	claims := DownloadClaims{
		BlobName: blobName,
		UserID:   userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    signerIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// SignedURL appends a fresh read token to the blob's durable URI.
func (s *Signer) SignedURL(blobURI, blobName, userID string) (string, error) {
	token, err := s.Sign(blobName, userID)
	if err != nil {
		return "", err
	}

	sep := "?"
	if strings.Contains(blobURI, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%stoken=%s", blobURI, sep, url.QueryEscape(token)), nil
}

// Verify parses and validates a download token.
func (s *Signer) Verify(tokenString string) (*DownloadClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DownloadClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %v", err)
	}

	claims, ok := token.Claims.(*DownloadClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.BlobName == "" {
		return nil, fmt.Errorf("token carries no blob name")
	}

	return claims, nil
}

// BlobNameFromURI derives the blob name from a blob URI's final path
// segment, ignoring any query string.
func BlobNameFromURI(uri string) string {
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		uri = uri[:i]
	}
	if i := strings.LastIndexByte(uri, '/'); i >= 0 {
		uri = uri[i+1:]
	}
	return uri
}
