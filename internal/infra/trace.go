package infra

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// TraceHeader заголовок сквозного ID запроса
const TraceHeader = "X-Trace-ID"

// Тип для ключа в контексте (избегаем коллизий)
type traceKey struct{}

// TracingMiddleware инициализирует Trace-ID для каждого запроса
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 1. ID из заголовка, если пришел от прокси
		traceID := r.Header.Get(TraceHeader)
		if _, err := uuid.Parse(traceID); err != nil {
			traceID = uuid.NewString()
		}

		// 2. Отдаем клиенту, чтобы он знал ID своего запроса
		w.Header().Set(TraceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(WithTraceID(r.Context(), traceID)))
	})
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceID пустая строка вне HTTP-запроса
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
