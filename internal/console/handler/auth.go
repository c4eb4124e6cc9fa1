package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/xela07ax/mapasculturais/internal/console/service"
	"github.com/xela07ax/mapasculturais/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type TokenIssuer interface {
	GenerateToken(ctx context.Context, username, password string) (*domain.TokenResponse, error)
}

// Counter счетчик отсеченных попыток входа
type Counter interface {
	Inc()
}

// limiterIdleTTL лимитер IP забывается после простоя
const limiterIdleTTL = 10 * time.Minute

type AuthHandler struct {
	service   TokenIssuer
	limit     rate.Limit
	burst     int
	mu        sync.Mutex
	limiters  *gocache.Cache
	throttled Counter
	logger    *zap.Logger
}

// NewAuthHandler rps и burst задают лимит попыток входа с одного IP; rps <= 0 отключает лимит.
func NewAuthHandler(s TokenIssuer, rps float64, burst int, throttled Counter, logger *zap.Logger) *AuthHandler {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &AuthHandler{
		service:   s,
		limit:     limit,
		burst:     burst,
		limiters:  gocache.New(limiterIdleTTL, 2*limiterIdleTTL),
		throttled: throttled,
		logger:    logger.Named("auth-api"),
	}
}

func (h *AuthHandler) limiter(ip string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	if v, found := h.limiters.Get(ip); found {
		l := v.(*rate.Limiter)
		h.limiters.SetDefault(ip, l)
		return l
	}
	l := rate.NewLimiter(h.limit, h.burst)
	h.limiters.SetDefault(ip, l)
	return l
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !h.limiter(ip).Allow() {
		if h.throttled != nil {
			h.throttled.Inc()
		}
		h.logger.Warn("login throttled", zap.String("ip", ip))
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many login attempts"})
		return
	}

	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "bad request")
		return
	}

	resp, err := h.service.GenerateToken(r.Context(), req.Username, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		// не уточняем, что именно неверно: логин или пароль
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthorized"})
		return
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
