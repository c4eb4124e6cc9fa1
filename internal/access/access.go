// Package access хранит актора запроса и переключатель контроля доступа.
//
// Привилегированные записи (смена статуса, отправка заявки) выполняются при
// временно отключенном контроле доступа. Отключение всегда парное:
//
//	restore := access.ScopeFrom(ctx).Suspend()
//	defer restore()
package access

import (
	"context"
	"net/http"
	"sync"

	"github.com/xela07ax/mapasculturais/internal/domain"
)

// Тип для ключа в контексте (избегаем коллизий)
type ctxKey string

const (
	actorKey ctxKey = "actor"
	scopeKey ctxKey = "access_scope"
)

// Scope переключатель контроля доступа, живет ровно один запрос.
type Scope struct {
	mu        sync.Mutex
	suspended bool
}

func NewScope() *Scope {
	return &Scope{}
}

// Suspend отключает проверки прав и возвращает функцию восстановления
// предыдущего состояния. Вложенные вызовы не включают контроль раньше времени.
func (s *Scope) Suspend() (restore func()) {
	s.mu.Lock()
	prev := s.suspended
	s.suspended = true
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.suspended = prev
			s.mu.Unlock()
		})
	}
}

func (s *Scope) Suspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suspended
}

// WithScope прикрепляет новый Scope к контексту запроса
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey, s)
}

// ScopeFrom достает Scope; без middleware возвращает одноразовый scope,
// чтобы вызовы Suspend не паниковали в фоновых задачах.
func ScopeFrom(ctx context.Context) *Scope {
	if s, ok := ctx.Value(scopeKey).(*Scope); ok && s != nil {
		return s
	}
	return NewScope()
}

// EnsureScope гарантирует, что у контекста есть Scope: фоновые задачи
// и тесты вызывают сервисы без HTTP middleware.
func EnsureScope(ctx context.Context) context.Context {
	if s, ok := ctx.Value(scopeKey).(*Scope); ok && s != nil {
		return ctx
	}
	return WithScope(ctx, NewScope())
}

// WithActor кладет аутентифицированного пользователя в контекст
func WithActor(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, actorKey, u)
}

// ActorFrom nil означает гостя
func ActorFrom(ctx context.Context) *domain.User {
	u, _ := ctx.Value(actorKey).(*domain.User)
	return u
}

// Middleware создает новый Scope на каждый HTTP-запрос
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), NewScope())))
	})
}
