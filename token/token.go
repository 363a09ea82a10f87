// Package token produces and verifies the compact, expiry-bound credential
// tokens issued by the session manager. Tokens are signed JWTs carrying the
// login name as subject and the serialized principal as an opaque payload.
// An optional obfuscation layer hides the token shape in transit; it adds no
// integrity guarantee beyond the inner signature.
package token

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for every validation failure: bad signature,
// malformed structure or expired token. Callers must not learn which.
var ErrInvalidToken = errors.New("invalidtoken")

type Options struct {
	// Secret is the shared key for HS256 signing. Also required when
	// Encrypt is set, even with an RSA key pair configured.
	Secret []byte
	// PrivateKeyPEM/PublicKeyPEM switch the codec to RS256. Both must be
	// provided together.
	PrivateKeyPEM []byte
	PublicKeyPEM  []byte
	// Encrypt wraps the signed token in a stream cipher keyed by Secret.
	Encrypt bool
}

// Codec signs and verifies credential tokens. The signing algorithm is
// chosen once at construction: RS256 when a key pair is configured, HS256
// over the shared secret otherwise.
type Codec struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	cipherKey []byte
}

func NewCodec(opts Options) (*Codec, error) {
	codec := &Codec{}

	hasPriv := len(opts.PrivateKeyPEM) > 0
	hasPub := len(opts.PublicKeyPEM) > 0
	if hasPriv != hasPub {
		return nil, errors.New("token: private and public key must be configured together")
	}

	if hasPriv {
		priv, err := jwt.ParseRSAPrivateKeyFromPEM(opts.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("token: invalid private key: %w", err)
		}
		pub, err := jwt.ParseRSAPublicKeyFromPEM(opts.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("token: invalid public key: %w", err)
		}
		codec.method = jwt.SigningMethodRS256
		codec.signKey = priv
		codec.verifyKey = pub
	} else {
		if len(opts.Secret) == 0 {
			return nil, errors.New("token: a shared secret or an RSA key pair is required")
		}
		codec.method = jwt.SigningMethodHS256
		codec.signKey = opts.Secret
		codec.verifyKey = opts.Secret
	}

	if opts.Encrypt {
		if len(opts.Secret) == 0 {
			return nil, errors.New("token: obfuscation requires a shared secret")
		}
		sum := sha256.Sum256(opts.Secret)
		codec.cipherKey = sum[:]
	}

	return codec, nil
}

// Claims are the decoded contents of a validated token.
type Claims struct {
	Subject string
	Expiry  int64
	Payload json.RawMessage
}

// DecodePayload unmarshals the opaque principal payload into v.
func (c *Claims) DecodePayload(v any) error {
	if len(c.Payload) == 0 {
		return nil
	}
	return sonic.Unmarshal(c.Payload, v)
}

type tokenClaims struct {
	Sub     string          `json:"sub"`
	Exp     int64           `json:"exp"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (c tokenClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	if c.Exp == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.Exp, 0)), nil
}
func (c tokenClaims) GetIssuedAt() (*jwt.NumericDate, error)  { return nil, nil }
func (c tokenClaims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c tokenClaims) GetIssuer() (string, error)              { return "", nil }
func (c tokenClaims) GetSubject() (string, error)             { return c.Sub, nil }
func (c tokenClaims) GetAudience() (jwt.ClaimStrings, error)  { return nil, nil }

// Generate signs a token for the given subject. The principal is serialized
// into the payload claim and reproduced verbatim by Validate. expiry is a
// Unix timestamp in seconds.
func (cd *Codec) Generate(subject string, principal any, expiry int64) (string, error) {
	var payload json.RawMessage
	if principal != nil {
		data, err := sonic.Marshal(principal)
		if err != nil {
			return "", fmt.Errorf("token: cannot serialize principal: %w", err)
		}
		payload = data
	}

	signed, err := jwt.NewWithClaims(cd.method, tokenClaims{
		Sub:     subject,
		Exp:     expiry,
		Payload: payload,
	}).SignedString(cd.signKey)
	if err != nil {
		return "", err
	}

	if cd.cipherKey != nil {
		return cd.seal(signed)
	}
	return signed, nil
}

// Validate reverses obfuscation if enabled, verifies the signature and
// checks the expiry. The boundary is strict: exp == now is expired. It never
// panics on malformed input; every failure is ErrInvalidToken.
func (cd *Codec) Validate(tok string) (*Claims, error) {
	if cd.cipherKey != nil {
		var err error
		tok, err = cd.open(tok)
		if err != nil {
			return nil, ErrInvalidToken
		}
	}

	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return cd.verifyKey, nil
	}, jwt.WithValidMethods([]string{cd.method.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Exp <= time.Now().Unix() {
		return nil, ErrInvalidToken
	}

	return &Claims{
		Subject: claims.Sub,
		Expiry:  claims.Exp,
		Payload: claims.Payload,
	}, nil
}

// Asymmetric reports whether the codec signs with an RSA key pair.
func (cd *Codec) Asymmetric() bool {
	_, ok := cd.signKey.(*rsa.PrivateKey)
	return ok
}
