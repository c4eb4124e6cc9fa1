package audit

/*
Recorder асинхронная запись аудита переходов статусов.

- Hot Path не ждет БД: события кладутся в буферизированный канал.
- Накопленные события пишутся пачкой по таймеру или при достижении размера пачки.
- Stop закрывает канал и дожидается финального flush, события не теряются при остановке.
- При переполнении буфера событие сбрасывается с записью в лог (Load Shedding).
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/mapasculturais/internal/access"
	"github.com/xela07ax/mapasculturais/internal/domain"
	"github.com/xela07ax/mapasculturais/internal/hooks"
	"go.uber.org/zap"
)

// Storage куда физически сохраняются события
type Storage interface {
	WriteBatch(ctx context.Context, events []Event) error
}

// BufferObserver отдает заполненность буфера в метрики
type BufferObserver interface {
	Set(float64)
}

type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

type Recorder struct {
	ch       chan Event
	repo     Storage
	logger   *zap.Logger
	opts     Options
	fill     BufferObserver
	wg       sync.WaitGroup
	isClosed atomic.Bool
}

func NewRecorder(repo Storage, opts Options, logger *zap.Logger) *Recorder {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	return &Recorder{
		ch:     make(chan Event, opts.BufferSize),
		repo:   repo,
		opts:   opts,
		logger: logger.With(zap.String("mod", "audit")),
	}
}

// ObserveBuffer подключает gauge заполненности буфера
func (r *Recorder) ObserveBuffer(g BufferObserver) {
	r.fill = g
}

func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.worker()
}

// Stop «запирает» вход и ждет, пока воркер всё допишет.
func (r *Recorder) Stop() {
	if !r.isClosed.CompareAndSwap(false, true) {
		return
	}
	r.logger.Info("stopping auditor: closing channel and flushing buffer...")
	close(r.ch)
	r.wg.Wait()
	r.logger.Info("auditor stopped gracefully")
}

func (r *Recorder) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	if r.isClosed.Load() {
		r.logger.Warn("audit event dropped: auditor is stopping", zap.String("id", event.ID))
		return
	}

	// recover на случай гонки Log/Stop: отправка в закрытый канал
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("audit event dropped: channel closed", zap.String("id", event.ID))
		}
	}()

	select {
	case r.ch <- event:
		if r.fill != nil {
			r.fill.Set(float64(len(r.ch)))
		}
	default:
		r.logger.Error("audit_buffer_overflow",
			zap.Int64("registration_id", event.RegistrationID),
			zap.String("trace_id", event.TraceID),
		)
	}
}

// StatusListener хук, записывающий каждый переход статуса
func (r *Recorder) StatusListener(traceID func(context.Context) string) hooks.Listener {
	return func(ctx context.Context, name string, reg *domain.Registration) error {
		ev := Event{
			RegistrationID: reg.ID,
			ProjectID:      reg.ProjectID,
			Hook:           name,
			Status:         reg.Status().String(),
		}
		if traceID != nil {
			ev.TraceID = traceID(ctx)
		}
		if actor := access.ActorFrom(ctx); actor != nil {
			ev.ActorID = actor.ID
		}
		r.Log(ev)
		return nil
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	batch := make([]Event, 0, r.opts.BatchSize)
	ticker := time.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: контекст запроса к этому моменту уже закрыт
		if err := r.repo.WriteBatch(context.Background(), batch); err != nil {
			r.logger.Error("audit flush failed", zap.Int("size", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
		if r.fill != nil {
			r.fill.Set(float64(len(r.ch)))
		}
	}

	for {
		select {
		case event, ok := <-r.ch:
			if !ok {
				flush() // Финальный сброс
				r.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= r.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
