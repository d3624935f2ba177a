package token

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

const (
	// Algorithm is the only JWS algorithm this server signs and accepts.
	Algorithm = "RS256"
	// KeyUse is the JWK "use" value for signing keys.
	KeyUse = "sig"

	rsaKeyBits = 2048
)

// ErrNoSigningKey is returned when no key material has been configured.
var ErrNoSigningKey = errors.New("no signing key configured")

// KeyProvider supplies the key used to sign new tokens and every public key
// that is still accepted for verification. Several public keys may be
// returned while a rotation is in progress.
type KeyProvider interface {
	SigningKey(ctx context.Context) (*SigningKey, error)
	PublicKeys(ctx context.Context) ([]*PublicKey, error)
}

// SigningKey is an RSA private key tagged with its key id.
type SigningKey struct {
	KeyID     string
	Algorithm string
	Key       *rsa.PrivateKey
}

// PublicKey is the verification half of a SigningKey.
type PublicKey struct {
	KeyID     string
	Algorithm string
	Key       *rsa.PublicKey
}

// GenerateSigningKey creates a fresh RS256 key pair with a random key id.
func GenerateSigningKey() (*SigningKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	return &SigningKey{
		KeyID:     uuid.New().String(),
		Algorithm: Algorithm,
		Key:       priv,
	}, nil
}

// Public returns the public half of the key.
func (k *SigningKey) Public() *PublicKey {
	return &PublicKey{
		KeyID:     k.KeyID,
		Algorithm: k.Algorithm,
		Key:       &k.Key.PublicKey,
	}
}

// JWK returns the private key as a JSON Web Key.
func (k *SigningKey) JWK() (jwk.Key, error) {
	return toJWK(k.Key, k.KeyID, k.Algorithm)
}

// MarshalJWK returns the private key as JWK JSON.
func (k *SigningKey) MarshalJWK() ([]byte, error) {
	key, err := k.JWK()
	if err != nil {
		return nil, err
	}
	return json.Marshal(key)
}

// JWK returns the public key as a JSON Web Key.
func (k *PublicKey) JWK() (jwk.Key, error) {
	return toJWK(k.Key, k.KeyID, k.Algorithm)
}

// MarshalJWK returns the public key as JWK JSON.
func (k *PublicKey) MarshalJWK() ([]byte, error) {
	key, err := k.JWK()
	if err != nil {
		return nil, err
	}
	return json.Marshal(key)
}

func toJWK(raw any, kid, alg string) (jwk.Key, error) {
	key, err := jwk.Import(raw)
	if err != nil {
		return nil, fmt.Errorf("import key: %w", err)
	}
	if alg == "" {
		alg = Algorithm
	}
	if err := key.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, fmt.Errorf("set kid: %w", err)
	}
	if err := key.Set(jwk.AlgorithmKey, alg); err != nil {
		return nil, fmt.Errorf("set alg: %w", err)
	}
	if err := key.Set(jwk.KeyUsageKey, KeyUse); err != nil {
		return nil, fmt.Errorf("set use: %w", err)
	}
	return key, nil
}

// jwkHeader holds the JWK members read without going through the key type.
type jwkHeader struct {
	KeyID     string `json:"kid"`
	Algorithm string `json:"alg"`
	KeyType   string `json:"kty"`
}

func parseJWK(data []byte) (any, jwkHeader, error) {
	var hdr jwkHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		return nil, hdr, fmt.Errorf("decode jwk: %w", err)
	}
	if hdr.KeyType != "RSA" {
		return nil, hdr, fmt.Errorf("unsupported key type %q", hdr.KeyType)
	}
	if hdr.Algorithm != "" && hdr.Algorithm != Algorithm {
		return nil, hdr, fmt.Errorf("unsupported algorithm %q", hdr.Algorithm)
	}

	key, err := jwk.ParseKey(data)
	if err != nil {
		return nil, hdr, fmt.Errorf("parse jwk: %w", err)
	}
	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, hdr, fmt.Errorf("export jwk: %w", err)
	}
	return raw, hdr, nil
}

// ParseSigningKey reads an RSA private key from JWK JSON.
func ParseSigningKey(data []byte) (*SigningKey, error) {
	raw, hdr, err := parseJWK(data)
	if err != nil {
		return nil, err
	}
	priv, ok := raw.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("jwk is not an rsa private key (%T)", raw)
	}
	return &SigningKey{KeyID: hdr.KeyID, Algorithm: Algorithm, Key: priv}, nil
}

// ParsePublicKey reads an RSA public key from JWK JSON. A private JWK is
// accepted and reduced to its public half.
func ParsePublicKey(data []byte) (*PublicKey, error) {
	raw, hdr, err := parseJWK(data)
	if err != nil {
		return nil, err
	}
	switch k := raw.(type) {
	case *rsa.PublicKey:
		return &PublicKey{KeyID: hdr.KeyID, Algorithm: Algorithm, Key: k}, nil
	case *rsa.PrivateKey:
		return &PublicKey{KeyID: hdr.KeyID, Algorithm: Algorithm, Key: &k.PublicKey}, nil
	default:
		return nil, fmt.Errorf("jwk is not an rsa key (%T)", raw)
	}
}

// StaticProvider serves keys loaded once at startup.
type StaticProvider struct {
	signing *SigningKey
	public  []*PublicKey
}

// NewStaticProvider returns a provider signing with signing (may be nil) and
// publishing its public half followed by any extra verification-only keys.
func NewStaticProvider(signing *SigningKey, extra ...*PublicKey) *StaticProvider {
	p := &StaticProvider{signing: signing}
	seen := make(map[string]bool)
	add := func(k *PublicKey) {
		if k == nil || seen[k.KeyID] {
			return
		}
		seen[k.KeyID] = true
		p.public = append(p.public, k)
	}
	if signing != nil {
		add(signing.Public())
	}
	for _, k := range extra {
		add(k)
	}
	return p
}

// NewProviderFromJWK builds a StaticProvider from JWK JSON strings as they
// appear in configuration. Empty strings are skipped.
func NewProviderFromJWK(privateJWK, publicJWK string, fallbackJWKs ...string) (*StaticProvider, error) {
	var signing *SigningKey
	if strings.TrimSpace(privateJWK) != "" {
		k, err := ParseSigningKey([]byte(privateJWK))
		if err != nil {
			return nil, fmt.Errorf("private signing key: %w", err)
		}
		signing = k
	}

	var extra []*PublicKey
	for i, raw := range append([]string{publicJWK}, fallbackJWKs...) {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		k, err := ParsePublicKey([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("public key %d: %w", i, err)
		}
		extra = append(extra, k)
	}
	return NewStaticProvider(signing, extra...), nil
}

// SigningKey returns the active signing key.
func (p *StaticProvider) SigningKey(_ context.Context) (*SigningKey, error) {
	if p.signing == nil {
		return nil, ErrNoSigningKey
	}
	return p.signing, nil
}

// PublicKeys returns the active public key first, then the rotation keys.
func (p *StaticProvider) PublicKeys(_ context.Context) ([]*PublicKey, error) {
	if len(p.public) == 0 {
		return nil, ErrNoSigningKey
	}
	return append([]*PublicKey(nil), p.public...), nil
}
