package wildberries

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAPIKeyExpired is returned when the key's embedded expiry has passed.
var ErrAPIKeyExpired = errors.New("API key has expired")

// DefaultExpiryBuffer is how early a key is reported as expiring.
const DefaultExpiryBuffer = 72 * time.Hour

// APIKey is a seller's Wildberries API key. Keys are issued as JWTs; the
// payload is read for the expiry and seller id but never verified here.
type APIKey struct {
	value     string
	expiresAt time.Time
	sellerID  string
}

type apiKeyClaims struct {
	jwt.RegisteredClaims
	Sid string `json:"sid"`
}

// NewAPIKey creates an APIKey value object. Opaque keys are accepted; only
// JWT-shaped keys carry an expiry.
func NewAPIKey(value string) (*APIKey, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrAPIKeyEmpty
	}

	key := &APIKey{value: value}
	if claims, ok := decodeClaims(value); ok {
		if claims.ExpiresAt != nil {
			key.expiresAt = claims.ExpiresAt.Time.UTC()
		}
		key.sellerID = claims.Sid
	}
	return key, nil
}

func decodeClaims(value string) (apiKeyClaims, bool) {
	var claims apiKeyClaims
	if strings.Count(value, ".") != 2 {
		return claims, false
	}
	if _, _, err := jwt.NewParser().ParseUnverified(value, &claims); err != nil {
		return claims, false
	}
	return claims, true
}

// Value returns the raw key for the Authorization header.
func (k *APIKey) Value() string {
	return k.value
}

// ExpiresAt returns the expiry, or the zero time for keys without one.
func (k *APIKey) ExpiresAt() time.Time {
	return k.expiresAt
}

// SellerID returns the seller id claim, if any.
func (k *APIKey) SellerID() string {
	return k.sellerID
}

// IsExpired returns true if the key has a known expiry in the past.
func (k *APIKey) IsExpired() bool {
	return !k.expiresAt.IsZero() && time.Now().After(k.expiresAt)
}

// ExpiresWithin returns true if the key will expire within d.
func (k *APIKey) ExpiresWithin(d time.Duration) bool {
	return !k.expiresAt.IsZero() && time.Now().Add(d).After(k.expiresAt)
}

// Masked returns the key with everything but the last four characters hidden.
func (k *APIKey) Masked() string {
	if len(k.value) <= 4 {
		return "****"
	}
	return "****" + k.value[len(k.value)-4:]
}

// Fingerprint returns a stable hash of the key, safe to use in cache keys and logs.
func (k *APIKey) Fingerprint() string {
	sum := sha256.Sum256([]byte(k.value))
	return hex.EncodeToString(sum[:8])
}

// Validate checks if the key is usable.
func (k *APIKey) Validate() error {
	if k.value == "" {
		return ErrAPIKeyEmpty
	}
	if k.IsExpired() {
		return ErrAPIKeyExpired
	}
	return nil
}
