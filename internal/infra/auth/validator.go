package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/mapasculturais/internal/domain"
)

var ErrTokenRejected = errors.New("token rejected")

// RS256Verifier проверяет токены, выпущенные консолью: подпись RS256,
// издатель, срок действия и наличие пользователя.
type RS256Verifier struct {
	publicKey *rsa.PublicKey
	parser    *jwt.Parser
}

func NewRS256Verifier(pubKey *rsa.PublicKey, issuer string) *RS256Verifier {
	return &RS256Verifier{
		publicKey: pubKey,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(5*time.Second),
		),
	}
}

// VerifyToken принимает значение заголовка Authorization или голый токен
func (v *RS256Verifier) VerifyToken(raw string) (*domain.CustomClaims, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenRejected)
	}

	claims := &domain.CustomClaims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, v.key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenRejected, err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: no user in claims", ErrTokenRejected)
	}
	return claims, nil
}

func (v *RS256Verifier) key(*jwt.Token) (any, error) {
	return v.publicKey, nil
}

// ParseRSAPublicKey ключ проверки подписи из PEM
func ParseRSAPublicKey(data []byte) (*rsa.PublicKey, error) {
	return parsePEM("public", data, jwt.ParseRSAPublicKeyFromPEM)
}

// ParseRSAPrivateKey ключ подписи токенов из PEM
func ParseRSAPrivateKey(data []byte) (*rsa.PrivateKey, error) {
	return parsePEM("private", data, jwt.ParseRSAPrivateKeyFromPEM)
}

func parsePEM[K any](kind string, data []byte, parse func([]byte) (K, error)) (K, error) {
	var zero K
	if len(data) == 0 {
		return zero, fmt.Errorf("%s key data is empty", kind)
	}
	key, err := parse(data)
	if err != nil {
		return zero, fmt.Errorf("failed to parse %s key: %w", kind, err)
	}
	return key, nil
}
