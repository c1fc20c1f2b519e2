// Package security implements token issuance and verification, password
// hashing, and key material handling for the session gate.
package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenMalformed is returned when a token fails signature, format,
	// issuer, or audience checks.
	ErrTokenMalformed = errors.New("token malformed or signature invalid")
	// ErrTokenExpired is returned when a structurally valid token is past exp.
	ErrTokenExpired = errors.New("token expired")
	// ErrKeyMaterial is returned by the codec constructors on key
	// misconfiguration. Fatal at startup; never produced per request.
	ErrKeyMaterial = errors.New("invalid signing key material")
)

// Token use values distinguish the two halves of an issued pair.
const (
	TokenUseAccess  = "access"
	TokenUseRefresh = "refresh"
)

// SessionClaims is the signed payload carried by both access and refresh
// tokens. Fingerprint is identical across a pair issued together and fresh on
// every issuance.
type SessionClaims struct {
	jwt.RegisteredClaims
	DisplayName string   `json:"name,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Fingerprint string   `json:"fpt"`
	TokenUse    string   `json:"use"`
}

// IssuedPair holds a freshly signed access/refresh pair. The server keeps no
// copy of the raw token strings after handing the pair to the caller.
type IssuedPair struct {
	AccessToken      string
	RefreshToken     string
	Fingerprint      string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Identity is the principal description embedded into issued claims.
type Identity struct {
	Subject     string
	DisplayName string
	Roles       []string
}

// TokenCodec signs, verifies, and decodes session tokens. It knows nothing
// about revocation; the session service composes that on top.
type TokenCodec struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
	audience  string
	nowF      func() time.Time
}

// NewHMACCodec returns a codec signing with HS256 and the given shared secret.
// Secrets shorter than 32 bytes are rejected.
func NewHMACCodec(secret []byte, issuer, audience string) (*TokenCodec, error) {
	if len(secret) < 32 {
		return nil, ErrKeyMaterial
	}
	return &TokenCodec{
		method:    jwt.SigningMethodHS256,
		signKey:   secret,
		verifyKey: secret,
		issuer:    issuer,
		audience:  audience,
		nowF:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// NewKeyPairCodec returns a codec signing with RS256 or ES256 depending on the
// key type. Any other key type is a configuration error.
func NewKeyPairCodec(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string) (*TokenCodec, error) {
	var method jwt.SigningMethod
	switch publicKey.(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return nil, ErrKeyMaterial
	}
	return &TokenCodec{
		method:    method,
		signKey:   privateKey,
		verifyKey: publicKey,
		issuer:    issuer,
		audience:  audience,
		nowF:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// IssuePair signs an access/refresh pair for id. Both tokens carry the same
// fresh 256-bit fingerprint, so two calls never produce equal pairs.
func (c *TokenCodec) IssuePair(id Identity, accessTTL, refreshTTL time.Duration) (*IssuedPair, error) {
	fp, err := generateFingerprint()
	if err != nil {
		return nil, err
	}
	now := c.nowF()
	accessExp := now.Add(accessTTL)
	refreshExp := now.Add(refreshTTL)

	access, err := c.sign(id, fp, TokenUseAccess, now, accessExp)
	if err != nil {
		return nil, err
	}
	refresh, err := c.sign(id, fp, TokenUseRefresh, now, refreshExp)
	if err != nil {
		return nil, err
	}
	return &IssuedPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		Fingerprint:      fp,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (c *TokenCodec) sign(id Identity, fingerprint, use string, now, exp time.Time) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		DisplayName: id.DisplayName,
		Roles:       id.Roles,
		Fingerprint: fingerprint,
		TokenUse:    use,
	}
	t := jwt.NewWithClaims(c.method, claims)
	return t.SignedString(c.signKey)
}

// Verify validates signature, issuer, audience, and expiry, and returns the
// claims. Returns ErrTokenExpired past exp and ErrTokenMalformed for every
// other failure. Tokens without an exp claim are rejected; callers may rely
// on verified claims carrying ExpiresAt.
func (c *TokenCodec) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != c.method.Alg() {
			return nil, ErrTokenMalformed
		}
		return c.verifyKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return c.nowF() }), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Issuer != c.issuer {
		return nil, ErrTokenMalformed
	}
	audOk := false
	for _, a := range claims.Audience {
		if a == c.audience {
			audOk = true
			break
		}
	}
	if !audOk {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// DecodeUnverified parses the claims without checking the signature. Only for
// expiry heuristics where trust is not required.
func (c *TokenCodec) DecodeUnverified(tokenString string) (*SessionClaims, bool) {
	var claims SessionClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, &claims); err != nil {
		return nil, false
	}
	return &claims, true
}

// ExpiringSoon reports whether the token expires within threshold. Unparsable
// input and tokens without exp report false.
func (c *TokenCodec) ExpiringSoon(tokenString string, threshold time.Duration) bool {
	claims, ok := c.DecodeUnverified(tokenString)
	if !ok || claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Sub(c.nowF()) <= threshold
}

func generateFingerprint() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
