package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/mapasculturais/internal/console/service"
	"github.com/xela07ax/mapasculturais/internal/console/view"
	"github.com/xela07ax/mapasculturais/internal/domain"
	"go.uber.org/zap"
)

type AgentService interface {
	Panel(ctx context.Context) (*service.AgentsPanel, error)
	Create(ctx context.Context, in service.AgentInput) (*domain.Agent, error)
	Trash(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
}

type AgentHandler struct {
	service AgentService
	urls    service.URLBuilder
	logger  *zap.Logger
}

func NewAgentHandler(s AgentService, urls service.URLBuilder, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{service: s, urls: urls, logger: logger.Named("agent-api")}
}

// Routes Маршруты для Chi
func (h *AgentHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/{id}/trash", h.Trash)     // POST /v1/agents/123/trash
	r.Post("/{id}/restore", h.Restore) // POST /v1/agents/123/restore
}

// List агенты текущего пользователя
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	panel, err := h.service.Panel(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, panel)
}

func (h *AgentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.AgentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	a, err := h.service.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *AgentHandler) Trash(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.service.Trash)
}

func (h *AgentHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.service.Restore)
}

func (h *AgentHandler) setStatus(w http.ResponseWriter, r *http.Request, op func(context.Context, int64) error) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid agent id")
		return
	}
	if err := op(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Panel GET /panel/agents, HTML-страница "Мои агенты"
func (h *AgentHandler) Panel(w http.ResponseWriter, r *http.Request) {
	panel, err := h.service.Panel(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	data := view.AgentsPanelData{
		CreateURL: h.urls.AgentCreate(),
		Enabled:   h.links(panel.Enabled),
		Trashed:   h.links(panel.Trashed),
	}
	templ.Handler(view.AgentsPanel(data),
		templ.WithErrorHandler(func(r *http.Request, err error) http.Handler {
			h.logger.Error("failed to render agents panel", zap.Error(err))
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
			})
		}),
	).ServeHTTP(w, r)
}

func (h *AgentHandler) links(agents []*domain.Agent) []view.AgentLink {
	out := make([]view.AgentLink, 0, len(agents))
	for _, a := range agents {
		out = append(out, view.AgentLink{Agent: a, SingleURL: h.urls.Agent(a.ID), EditURL: h.urls.AgentEdit(a.ID)})
	}
	return out
}
