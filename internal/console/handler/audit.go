package handler

import (
	"context"
	"net/http"

	"github.com/xela07ax/mapasculturais/internal/audit"
	"go.uber.org/zap"
)

type AuditService interface {
	FetchLogs(ctx context.Context, registrationID int64) ([]audit.Event, error)
}

type AuditHandler struct {
	service AuditService
	logger  *zap.Logger
}

func NewAuditHandler(s AuditService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{service: s, logger: logger.Named("audit-api")}
}

// GetLogs история переходов статуса заявки
// GET /v1/registrations/{id}/history
func (h *AuditHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid registration id")
		return
	}

	logs, err := h.service.FetchLogs(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
