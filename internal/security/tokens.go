package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	identitydomain "field-sales-platform/backend/internal/identity/domain"
)

var (
	// ErrInvalidToken is returned when a token is malformed or invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSigningDisabled is returned by IssueAccess when the provider only holds a public key.
	ErrSigningDisabled = errors.New("token signing disabled: no private key")
)

// AccessClaims holds JWT claims for the access token. Subject is the decimal user id.
type AccessClaims struct {
	jwt.RegisteredClaims
	TenantID  int64  `json:"tenant_id"`
	Role      string `json:"role"`
	SessionID string `json:"session_id,omitempty"`
}

// AccessIdentity is what a validated access token asserts about its bearer.
type AccessIdentity struct {
	Principal identitydomain.Principal
	Role      identitydomain.Role
	// SessionID is the device session bound at login, if the issuer included one.
	SessionID string
}

// TokenProvider validates (and, with a private key, issues) access JWTs using RS256 or ES256.
// The server only verifies; issuance belongs to the auth collaborator and is used here by seed and tests.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
}

// NewTokenProvider returns a TokenProvider. privateKey may be nil for a verify-only provider.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL time.Duration) *TokenProvider {
	if publicKey == nil && privateKey != nil {
		publicKey = privateKey.Public()
	}
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
	}
}

// IssueAccess issues an access JWT for the principal, optionally bound to a device session.
// Returns the token string, its jti, and expiration time.
func (p *TokenProvider) IssueAccess(principal identitydomain.Principal, role identitydomain.Role, sessionID string) (token string, jti string, expiresAt time.Time, err error) {
	if p.privateKey == nil {
		return "", "", time.Time{}, ErrSigningDisabled
	}
	jti, err = generateJTI()
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatInt(principal.UserID, 10),
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TenantID:  principal.TenantID,
		Role:      string(role),
		SessionID: sessionID,
	}
	token, err = p.sign(claims)
	return token, jti, expiresAt, err
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(p.privateKey)
}

// ValidateAccess parses and validates the access token (signature, exp, iss, aud) and
// returns the identity it asserts. A token without a positive tenant and user is invalid.
func (p *TokenProvider) ValidateAccess(tokenString string) (*AccessIdentity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return p.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	}, jwt.WithIssuer(p.issuer), jwt.WithAudience(p.audience), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 || claims.TenantID <= 0 {
		return nil, ErrInvalidToken
	}
	role := identitydomain.Role(claims.Role)
	return &AccessIdentity{
		Principal: identitydomain.Principal{
			TenantID: claims.TenantID,
			UserID:   userID,
			IsAdmin:  role.IsAdmin(),
		},
		Role:      role,
		SessionID: claims.SessionID,
	}, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
