package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenExpired means the access token was valid but is past its
	// expiry. This is the only verification failure a client may recover
	// from by renewing.
	ErrTokenExpired = errors.New("access token expired")

	// ErrTokenMalformed means the presented value is not a well-formed
	// access token (or carries wrong claims). Terminal.
	ErrTokenMalformed = errors.New("access token malformed")

	// ErrTokenSignatureInvalid means the token was signed with a different
	// key. Terminal; must never trigger a renewal attempt.
	ErrTokenSignatureInvalid = errors.New("access token signature invalid")

	// ErrSigningKeyTooShort rejects weak HS256 signing keys at construction.
	ErrSigningKeyTooShort = errors.New("jwt signing key too short (min 32 bytes)")
)

// Claims is the verified identity carried by an access token.
type Claims struct {
	UserID    string
	Role      string
	TokenID   string
	ExpiresAt time.Time
}

type accessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies short-lived HS256 access tokens.
//
// Tokens are self-contained: subject, role, jti, issuer, and expiry.
// They are never persisted server-side.
type Issuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
}

// NewIssuer builds an Issuer with a process-wide signing key.
func NewIssuer(key []byte, issuer string, ttl time.Duration) (*Issuer, error) {
	if len(key) < 32 {
		return nil, ErrSigningKeyTooShort
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Issuer{key: k, issuer: issuer, ttl: ttl}, nil
}

// TTL returns the configured access token lifetime.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue signs a fresh access token for the given subject and role.
func (i *Issuer) Issue(userID, role string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.ttl)

	claims := accessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify parses and validates an access token.
//
// Failures are distinguishable via errors.Is: ErrTokenExpired,
// ErrTokenSignatureInvalid, ErrTokenMalformed. Callers must only treat
// ErrTokenExpired as renewable.
func (i *Issuer) Verify(tokenStr string) (Claims, error) {
	var claims accessClaims

	_, err := jwt.ParseWithClaims(tokenStr, &claims,
		func(*jwt.Token) (any, error) { return i.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrTokenSignatureInvalid
		default:
			return Claims{}, ErrTokenMalformed
		}
	}

	if claims.Subject == "" {
		return Claims{}, ErrTokenMalformed
	}

	role := claims.Role
	if role == "" {
		role = "user"
	}

	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}

	return Claims{
		UserID:    claims.Subject,
		Role:      role,
		TokenID:   claims.ID,
		ExpiresAt: exp,
	}, nil
}
