package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/mapasculturais/internal/access"
	"github.com/xela07ax/mapasculturais/internal/domain"
	"go.uber.org/zap"
)

func signToken(t *testing.T, key *rsa.PrivateKey, claims *domain.CustomClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func newClaims(userID string, ttl time.Duration) *domain.CustomClaims {
	return &domain.CustomClaims{
		UserID:    userID,
		ProfileID: 7,
		Roles:     []string{domain.RoleAdmin},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    domain.TokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
}

func TestRS256Verifier_VerifyToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewRS256Verifier(&key.PublicKey, domain.TokenIssuer)

	claims, err := v.VerifyToken("Bearer " + signToken(t, key, newClaims("u1", time.Hour)))
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, int64(7), claims.User().ProfileID)

	_, err = v.VerifyToken(signToken(t, key, newClaims("u1", -time.Hour)))
	require.Error(t, err, "expired token must be rejected")

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	_, err = v.VerifyToken(signToken(t, other, newClaims("u1", time.Hour)))
	require.Error(t, err, "foreign signature must be rejected")

	foreign := newClaims("u1", time.Hour)
	foreign.Issuer = "another-service"
	_, err = v.VerifyToken(signToken(t, key, foreign))
	require.ErrorIs(t, err, ErrTokenRejected)

	noExp := newClaims("u1", time.Hour)
	noExp.ExpiresAt = nil
	_, err = v.VerifyToken(signToken(t, key, noExp))
	require.ErrorIs(t, err, ErrTokenRejected)

	_, err = v.VerifyToken(signToken(t, key, newClaims("", time.Hour)))
	require.ErrorIs(t, err, ErrTokenRejected)

	// чужой алгоритм подписи
	hs, err := jwt.NewWithClaims(jwt.SigningMethodHS256, newClaims("u1", time.Hour)).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = v.VerifyToken(hs)
	require.ErrorIs(t, err, ErrTokenRejected)
}

func TestNewMiddleware(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	mw := NewMiddleware(NewRS256Verifier(&key.PublicKey, domain.TokenIssuer), zap.NewNop())

	var actor *domain.User
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor = access.ActorFrom(r.Context())
	}))

	// гость
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, actor)

	// валидный токен
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, key, newClaims("u1", time.Hour)))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, actor)
	require.Equal(t, "u1", actor.ID)

	// мусор
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireUser(t *testing.T) {
	h := RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(access.WithActor(req.Context(), &domain.User{ID: "u1"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
