package engine

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer signs and verifies JWTs with an ECDSA key persisted as PEM on disk.
// The key is generated on first use so deployments don't need any provisioning
// beyond a writable data directory.
type TokenIssuer struct {
	key *ecdsa.PrivateKey
}

func NewTokenIssuer(path string) *TokenIssuer {
	key, err := loadOrCreateKey(path)
	if err != nil {
		panic(fmt.Errorf("initializing token signing key: %w", err))
	}
	return &TokenIssuer{key: key}
}

func (t *TokenIssuer) Sign(claims *jwt.RegisteredClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(t.key)
}

func (t *TokenIssuer) Verify(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return &t.key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}))
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func loadOrCreateKey(path string) (*ecdsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return createKey(path)
	}
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}
	return x509.ParseECPrivateKey(block.Bytes)
}

func createKey(path string) (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, err
	}
	raw := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(path, raw, 0600); err != nil {
		return nil, err
	}
	return key, nil
}
