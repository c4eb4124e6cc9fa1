package events

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/mapasculturais/internal/infra"
	"go.uber.org/zap"
)

// ProjectCache кэш проектов, который нужно сбрасывать по сигналам
type ProjectCache interface {
	Invalidate(projectID int64)
	Flush()
}

// ProjectWatcher держит подписку на изменения проектов и сбрасывает локальный кэш.
// Пока подписки нет, сигналы теряются, поэтому после каждого переподключения кэш очищается целиком.
type ProjectWatcher struct {
	rdb    *redis.Client
	cache  ProjectCache
	logger *zap.Logger
	retry  time.Duration
}

func NewProjectWatcher(rdb *redis.Client, cache ProjectCache, logger *zap.Logger) *ProjectWatcher {
	return &ProjectWatcher{
		rdb:    rdb,
		cache:  cache,
		logger: logger.Named("project-watcher"),
		retry:  5 * time.Second,
	}
}

// Run цикл "живучей" подписки; завершается с отменой ctx
func (w *ProjectWatcher) Run(ctx context.Context) {
	for {
		pubsub := w.rdb.Subscribe(ctx, infra.RedisChanProjectChanged)

		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to subscribe", zap.String("chan", infra.RedisChanProjectChanged), zap.Error(err))
			if !sleep(ctx, w.retry) {
				return
			}
			continue
		}

		w.cache.Flush()
		w.consume(ctx, pubsub.Channel())
		pubsub.Close()

		if !sleep(ctx, time.Second) {
			return
		}
	}
}

// consume обрабатывает сигналы до закрытия канала или отмены ctx
func (w *ProjectWatcher) consume(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return // канал закрыт, идем на переподключение
			}
			w.handle(msg.Payload)
		}
	}
}

func (w *ProjectWatcher) handle(payload string) {
	id, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil || id <= 0 {
		w.logger.Error("invalid signal format", zap.String("payload", payload))
		return
	}
	w.cache.Invalidate(id)
	w.logger.Debug("project cache invalidated", zap.Int64("project_id", id))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
