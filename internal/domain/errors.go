package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidStatus       = errors.New("invalid registration status")
	ErrRegistrationsClosed = errors.New("project does not accept registrations")
	ErrGuest               = errors.New("authentication required")
)

// PermissionDeniedError неудачная проверка capability над сущностью
type PermissionDeniedError struct {
	Action string
	Entity string
	ID     int64
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s on %s %d", e.Action, e.Entity, e.ID)
}

// ValidationErrors ключ ошибки -> одно или несколько сообщений для пользователя.
// Возвращается вызывающему, а не выбрасывается как авария.
type ValidationErrors map[string][]string

func (v ValidationErrors) Add(key string, msgs ...string) {
	if len(msgs) == 0 {
		return
	}
	v[key] = append(v[key], msgs...)
}

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(v[k], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
