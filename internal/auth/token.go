// internal/auth/token.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// privateKey and publicKey sign and verify admin tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenTTL is the admin-token lifetime; zero means no exp claim.
	tokenTTL time.Duration
)

func parseTokenTTL() error {
	ttl := os.Getenv("ADMIN_TOKEN_TTL")
	if ttl == "" || ttl == "0" || ttl == "never" {
		tokenTTL = 0
		return nil
	}
	d, err := time.ParseDuration(ttl)
	if err != nil {
		return fmt.Errorf("failed to parse ADMIN_TOKEN_TTL: %w", err)
	}
	tokenTTL = d
	return nil
}

// Init generates a fresh ed25519 key pair at runtime. Tokens issued
// before a restart do not survive it; admins re-authenticate.
func Init() error {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return parseTokenTTL()
}

// InitFromPath loads a persisted ed25519 key pair so admin tokens stay
// valid across restarts.
func InitFromPath(privatePath, publicPath string) error {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}

	privateKey = ed25519.PrivateKey(privateKeyData)
	publicKey = ed25519.PublicKey(publicKeyData)
	return parseTokenTTL()
}

// CreateAdminJWT issues a signed token for one admin operator.
func CreateAdminJWT(operator string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  operator,
		"role": "admin",
	}
	if tokenTTL > 0 {
		claims["exp"] = time.Now().Add(tokenTTL).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateAdminJWT verifies a token string and returns the operator
// name, rejecting tokens without the admin role claim.
func AuthenticateAdminJWT(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid jwt claims")
	}
	if role, _ := claims["role"].(string); role != "admin" {
		return "", fmt.Errorf("missing admin role")
	}
	operator, ok := claims["sub"].(string)
	if !ok {
		return "", fmt.Errorf("missing sub in jwt")
	}
	return operator, nil
}
