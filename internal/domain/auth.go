package domain

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer издатель токенов консоли, проверяется при каждом запросе
const TokenIssuer = "mapas-console"

const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superAdmin"
	RoleGuest      = "guest"
)

type CustomClaims struct {
	UserID    string   `json:"user_id"`
	ProfileID int64    `json:"profile_id"`
	Roles     []string `json:"roles"`
	jwt.RegisteredClaims
}

// User восстанавливает актора из токена без обращения к БД
func (c *CustomClaims) User() *User {
	return &User{ID: c.UserID, ProfileID: c.ProfileID, Roles: c.Roles}
}

// Secure Token Issuing
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // Всегда "Bearer"
	ExpiresIn   int64  `json:"expires_in"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Никогда не отправляем на фронт
	Roles        []string  `json:"roles"`
	ProfileID    int64     `json:"profile_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Is проверка роли. nil-пользователь — гость.
func (u *User) Is(role string) bool {
	if u == nil {
		return role == RoleGuest
	}
	if role == RoleAdmin && slices.Contains(u.Roles, RoleSuperAdmin) {
		return true
	}
	return slices.Contains(u.Roles, role)
}

// IsGuest неаутентифицированный актор
func (u *User) IsGuest() bool {
	return u == nil || u.Is(RoleGuest)
}
