// Package events транслирует переходы статусов заявок в Redis Pub/Sub.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/mapasculturais/internal/domain"
	"github.com/xela07ax/mapasculturais/internal/hooks"
	"github.com/xela07ax/mapasculturais/internal/infra"
	"go.uber.org/zap"
)

// Broker часть redis.Client, нужная публикатору
type Broker interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// BreakerName имя предохранителя публикатора в метриках
const BreakerName = "redis-status-events"

// BreakerObserver получает смену состояния предохранителя
type BreakerObserver func(name string, open bool)

// ErrQueueFull очередь сигналов переполнена, сигнал отброшен
var ErrQueueFull = errors.New("events: queue is full")

// signal один переход статуса, ожидающий публикации
type signal struct {
	projectID int64
	payload   string
}

// Publisher доставляет сигналы с ретраями и предохранителем.
// Переходы статуса только ставят сигнал в очередь, публикует фоновый воркер.
type Publisher struct {
	rdb            Broker
	cb             *gobreaker.CircuitBreaker
	attempts       uint
	attemptTimeout time.Duration
	logger         *zap.Logger

	queue  chan signal
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewPublisher(rdb Broker, logger *zap.Logger, observe BreakerObserver) *Publisher {
	p := &Publisher{
		rdb:            rdb,
		attempts:       3,
		attemptTimeout: 500 * time.Millisecond,
		logger:         logger.Named("events"),
		queue:          make(chan signal, 256),
	}

	p.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        BreakerName,
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if observe != nil {
				observe(name, to == gobreaker.StateOpen)
			}
		},
	})

	return p
}

// Publish отправляет payload в канал
func (p *Publisher) Publish(ctx context.Context, channel, payload string) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(p.attempts),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				return retry.BackOffDelay(n, err, config)
			}),
		)
		return nil, r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, p.attemptTimeout)
			defer cancel()
			return p.rdb.Publish(tCtx, channel, payload).Err()
		})
	})
	if err != nil {
		return fmt.Errorf("events: publish to %s: %w", channel, err)
	}
	return nil
}

// StatusPayload формат сигнала "registrationID:status"
func StatusPayload(reg *domain.Registration) string {
	return fmt.Sprintf("%d:%s", reg.ID, reg.Status())
}

// Start запускает воркер публикации
func (p *Publisher) Start() {
	p.wg.Add(1)
	go p.worker()
}

// Stop закрывает очередь и дожидается публикации оставшихся сигналов
func (p *Publisher) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Publisher) worker() {
	defer p.wg.Done()
	for s := range p.queue {
		p.deliver(context.Background(), s)
	}
}

func (p *Publisher) deliver(ctx context.Context, s signal) {
	for _, ch := range []string{infra.RedisChanRegistrationStatus, infra.ProjectStatusChannel(s.projectID)} {
		if err := p.Publish(ctx, ch, s.payload); err != nil {
			p.logger.Error("failed to publish status signal", zap.String("payload", s.payload), zap.Error(err))
			return
		}
	}
	p.logger.Debug("status signal published", zap.String("payload", s.payload))
}

// enqueue не блокирует: при переполненной или закрытой очереди сигнал отбрасывается
func (p *Publisher) enqueue(s signal) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrQueueFull
	}
	select {
	case p.queue <- s:
		return nil
	default:
		return ErrQueueFull
	}
}

// StatusListener хук, ставящий переход в очередь публикации
// в общий канал и канал проекта
func (p *Publisher) StatusListener() hooks.Listener {
	return func(_ context.Context, name string, reg *domain.Registration) error {
		if err := p.enqueue(signal{projectID: reg.ProjectID, payload: StatusPayload(reg)}); err != nil {
			return fmt.Errorf("hook %s: %w", name, err)
		}
		return nil
	}
}
