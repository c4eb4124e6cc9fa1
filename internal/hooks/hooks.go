// Package hooks диспетчер именованных событий жизненного цикла
// (entity(Registration).status(approved) и т.п.).
package hooks

import (
	"context"
	"strings"
	"sync"

	"github.com/xela07ax/mapasculturais/internal/domain"
	"go.uber.org/zap"
)

// Listener подписчик на хук. Ошибка подписчика логируется и не откатывает переход.
type Listener func(ctx context.Context, name string, reg *domain.Registration) error

type Dispatcher struct {
	mu     sync.RWMutex
	subs   []subscription
	logger *zap.Logger
}

// subscription подписка на точное имя или на префикс ("...status(*)")
type subscription struct {
	name     string
	prefix   string
	wildcard bool
	listener Listener
}

func (s subscription) matches(name string) bool {
	if s.wildcard {
		return strings.HasPrefix(name, s.prefix)
	}
	return s.name == name
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{logger: logger.Named("hooks")}
}

// Register подписывает listener на имя хука.
// Имя, оканчивающееся на "(*)", подписывает на все хуки с этим префиксом:
// "entity(Registration).status(*)".
func (d *Dispatcher) Register(name string, l Listener) {
	sub := subscription{name: name, listener: l}
	sub.prefix, sub.wildcard = strings.CutSuffix(name, "*)")

	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, sub)
}

// Apply вызывает подписчиков синхронно, в порядке регистрации.
func (d *Dispatcher) Apply(ctx context.Context, name string, reg *domain.Registration) {
	for _, l := range d.match(name) {
		if err := l(ctx, name, reg); err != nil {
			d.logger.Error("hook listener failed",
				zap.String("hook", name),
				zap.Int64("registration_id", reg.ID),
				zap.Error(err))
		}
	}
}

func (d *Dispatcher) match(name string) []Listener {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Listener
	for _, s := range d.subs {
		if s.matches(name) {
			out = append(out, s.listener)
		}
	}
	return out
}
