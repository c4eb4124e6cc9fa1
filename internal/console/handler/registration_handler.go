package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/mapasculturais/internal/console/service"
	"github.com/xela07ax/mapasculturais/internal/domain"
	"go.uber.org/zap"
)

// maxUploadSize предел тела запроса при загрузке файла
const maxUploadSize = 32 << 20

// RegistrationService операции над заявками, нужные API
type RegistrationService interface {
	Create(ctx context.Context, projectID int64, ownerID *int64, category string) (*service.RegistrationJSON, error)
	Update(ctx context.Context, id int64, patch service.RegistrationPatch) (*service.RegistrationJSON, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*service.RegistrationJSON, error)
	ListByProject(ctx context.Context, projectID int64) ([]*service.RegistrationJSON, error)
	Validate(ctx context.Context, id int64) (domain.ValidationErrors, error)
	Send(ctx context.Context, id int64) (*service.RegistrationJSON, error)
	SetStatusTo(ctx context.Context, id int64, target domain.Status) (*service.RegistrationJSON, error)
	AgentsData(ctx context.Context, id int64) (map[string]map[string]any, error)
	AddRelatedAgent(ctx context.Context, id int64, group string, agentID int64) (*domain.AgentRelation, error)
	RemoveRelatedAgent(ctx context.Context, id int64, group string) error
	AcceptRelation(ctx context.Context, relationID int64) error
	AttachFile(ctx context.Context, id int64, group, name string, r io.Reader) (*service.FileJSON, error)
	RemoveFile(ctx context.Context, id int64, group string) error
}

type RegistrationHandler struct {
	service RegistrationService
	logger  *zap.Logger
}

func NewRegistrationHandler(s RegistrationService, logger *zap.Logger) *RegistrationHandler {
	return &RegistrationHandler{service: s, logger: logger.Named("registration-api")}
}

// ProjectRoutes /v1/projects/{projectID}/registrations
func (h *RegistrationHandler) ProjectRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
}

// Routes /v1/registrations
func (h *RegistrationHandler) Routes(r chi.Router) {
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/validation", h.Validation)
	r.Post("/{id}/send", h.Send)
	r.Post("/{id}/status/{status}", h.SetStatus)
	r.Get("/{id}/agents-data", h.AgentsData)
	r.Post("/{id}/agents", h.AddAgent)
	r.Delete("/{id}/agents/{group}", h.RemoveAgent)
	r.Post("/{id}/files/{group}", h.UploadFile)
	r.Delete("/{id}/files/{group}", h.RemoveFile)
}

type createRequest struct {
	OwnerID  *int64 `json:"ownerId,omitempty"`
	Category string `json:"category"`
}

// Create POST /v1/projects/{projectID}/registrations
func (h *RegistrationHandler) Create(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectID")
	if !ok {
		badRequest(w, "invalid project id")
		return
	}
	var req createRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid request body")
			return
		}
	}

	out, err := h.service.Create(r.Context(), projectID, req.OwnerID, req.Category)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *RegistrationHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(r, "projectID")
	if !ok {
		badRequest(w, "invalid project id")
		return
	}
	list, err := h.service.ListByProject(r.Context(), projectID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// registrationCall общий разбор {id} для операций, возвращающих заявку
func (h *RegistrationHandler) registrationCall(w http.ResponseWriter, r *http.Request, status int,
	call func(ctx context.Context, id int64) (*service.RegistrationJSON, error)) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid registration id")
		return
	}
	out, err := call(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, status, out)
}

func (h *RegistrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.registrationCall(w, r, http.StatusOK, h.service.Get)
}

func (h *RegistrationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch service.RegistrationPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	h.registrationCall(w, r, http.StatusOK, func(ctx context.Context, id int64) (*service.RegistrationJSON, error) {
		return h.service.Update(ctx, id, patch)
	})
}

func (h *RegistrationHandler) Send(w http.ResponseWriter, r *http.Request) {
	h.registrationCall(w, r, http.StatusOK, h.service.Send)
}

// SetStatus POST /v1/registrations/{id}/status/{status}
func (h *RegistrationHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	target, err := domain.ParseStatus(chi.URLParam(r, "status"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.registrationCall(w, r, http.StatusOK, func(ctx context.Context, id int64) (*service.RegistrationJSON, error) {
		return h.service.SetStatusTo(ctx, id, target)
	})
}

func (h *RegistrationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid registration id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Validation ошибки отправки; пустой объект: заявку можно отправлять
func (h *RegistrationHandler) Validation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid registration id")
		return
	}
	errs, err := h.service.Validate(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if errs == nil {
		errs = domain.ValidationErrors{}
	}
	writeJSON(w, http.StatusOK, errs)
}

func (h *RegistrationHandler) AgentsData(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid registration id")
		return
	}
	data, err := h.service.AgentsData(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

type relateRequest struct {
	Group   string `json:"group"`
	AgentID int64  `json:"agentId"`
}

func (h *RegistrationHandler) AddAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid registration id")
		return
	}
	var req relateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Group == "" || req.AgentID <= 0 {
		badRequest(w, "group and agentId are required")
		return
	}

	rel, err := h.service.AddRelatedAgent(r.Context(), id, req.Group, req.AgentID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

func (h *RegistrationHandler) RemoveAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid registration id")
		return
	}
	if err := h.service.RemoveRelatedAgent(r.Context(), id, chi.URLParam(r, "group")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AcceptRelation POST /v1/agent-relations/{relationID}/accept
func (h *RegistrationHandler) AcceptRelation(w http.ResponseWriter, r *http.Request) {
	relID, ok := pathID(r, "relationID")
	if !ok {
		badRequest(w, "invalid relation id")
		return
	}
	if err := h.service.AcceptRelation(r.Context(), relID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadFile multipart-поле "file"
func (h *RegistrationHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid registration id")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	out, err := h.service.AttachFile(r.Context(), id, chi.URLParam(r, "group"), header.Filename, file)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *RegistrationHandler) RemoveFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid registration id")
		return
	}
	if err := h.service.RemoveFile(r.Context(), id, chi.URLParam(r, "group")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
