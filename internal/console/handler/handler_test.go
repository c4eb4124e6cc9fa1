package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/mapasculturais/internal/audit"
	"github.com/xela07ax/mapasculturais/internal/console/service"
	"github.com/xela07ax/mapasculturais/internal/domain"
	"go.uber.org/zap"
)

// fakeRegistrations реализует только вызываемые в тестах методы
type fakeRegistrations struct {
	RegistrationService

	err      error
	status   domain.Status
	created  *int64
	uploaded string
	body     string
}

func (f *fakeRegistrations) Get(_ context.Context, id int64) (*service.RegistrationJSON, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.RegistrationJSON{ID: id, Number: fmt.Sprintf("on-%d", id)}, nil
}

func (f *fakeRegistrations) Create(_ context.Context, projectID int64, ownerID *int64, _ string) (*service.RegistrationJSON, error) {
	f.created = ownerID
	return &service.RegistrationJSON{ID: domain.FormatRegistrationID(projectID, 1)}, f.err
}

func (f *fakeRegistrations) SetStatusTo(_ context.Context, id int64, target domain.Status) (*service.RegistrationJSON, error) {
	f.status = target
	return &service.RegistrationJSON{ID: id, Status: &target}, f.err
}

func (f *fakeRegistrations) Validate(context.Context, int64) (domain.ValidationErrors, error) {
	return nil, f.err
}

func (f *fakeRegistrations) AttachFile(_ context.Context, _ int64, group, name string, r io.Reader) (*service.FileJSON, error) {
	data, _ := io.ReadAll(r)
	f.uploaded, f.body = group+"/"+name, string(data)
	return &service.FileJSON{ID: "f1", Name: name}, f.err
}

func newRegistrationRouter(f *fakeRegistrations) http.Handler {
	h := NewRegistrationHandler(f, zap.NewNop())
	r := chi.NewRouter()
	r.Route("/v1/projects/{projectID}/registrations", h.ProjectRoutes)
	r.Route("/v1/registrations", h.Routes)
	return r
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, body))
	return rec
}

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{domain.ValidationErrors{"owner": {"required"}}, http.StatusBadRequest},
		{&domain.PermissionDeniedError{Action: "send", Entity: "Registration", ID: 1}, http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrGuest, http.StatusUnauthorized},
		{domain.ErrRegistrationsClosed, http.StatusConflict},
		{domain.ErrRelationNotPending, http.StatusConflict},
		{service.ErrUnknownFileGroup, http.StatusBadRequest},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, zap.NewNop(), tt.err)
			require.Equal(t, tt.code, rec.Code)
			require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}

	rec := httptest.NewRecorder()
	writeError(rec, zap.NewNop(), errors.New("secret detail"))
	require.NotContains(t, rec.Body.String(), "secret detail")
}

func TestRegistrationHandler_ValidationErrorsBody(t *testing.T) {
	f := &fakeRegistrations{err: domain.ValidationErrors{"registration-file-7": {"O arquivo \"Portfolio\" é obrigatório."}}}
	rec := do(t, newRegistrationRouter(f), http.MethodGet, "/v1/registrations/4200001", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, []string{"O arquivo \"Portfolio\" é obrigatório."}, body["registration-file-7"])
}

func TestRegistrationHandler_Get(t *testing.T) {
	f := &fakeRegistrations{}
	rec := do(t, newRegistrationRouter(f), http.MethodGet, "/v1/registrations/4200001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"number":"on-4200001"`)

	rec = do(t, newRegistrationRouter(f), http.MethodGet, "/v1/registrations/abc", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegistrationHandler_Create(t *testing.T) {
	f := &fakeRegistrations{}
	rec := do(t, newRegistrationRouter(f), http.MethodPost, "/v1/projects/42/registrations", strings.NewReader(`{"ownerId": 10}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, f.created)
	require.Equal(t, int64(10), *f.created)

	rec = do(t, newRegistrationRouter(f), http.MethodPost, "/v1/projects/42/registrations", strings.NewReader(`{`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegistrationHandler_SetStatus(t *testing.T) {
	f := &fakeRegistrations{}
	rec := do(t, newRegistrationRouter(f), http.MethodPost, "/v1/registrations/4200001/status/approved", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, domain.StatusApproved, f.status)
	require.Contains(t, rec.Body.String(), `"status":10`)

	rec = do(t, newRegistrationRouter(f), http.MethodPost, "/v1/registrations/4200001/status/archived", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	f.err = &domain.PermissionDeniedError{Action: "changeStatus", Entity: "Registration", ID: 4200001}
	rec = do(t, newRegistrationRouter(f), http.MethodPost, "/v1/registrations/4200001/status/waitlist", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegistrationHandler_ValidationIsEmptyObject(t *testing.T) {
	rec := do(t, newRegistrationRouter(&fakeRegistrations{}), http.MethodGet, "/v1/registrations/4200001/validation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{}`, rec.Body.String())
}

func TestRegistrationHandler_UploadFile(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "portfolio.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	f := &fakeRegistrations{}
	req := httptest.NewRequest(http.MethodPost, "/v1/registrations/4200001/files/rfc_7", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	newRegistrationRouter(f).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "rfc_7/portfolio.pdf", f.uploaded)
	require.Equal(t, "%PDF-1.4", f.body)

	rec = do(t, newRegistrationRouter(f), http.MethodPost, "/v1/registrations/4200001/files/rfc_7", strings.NewReader("x"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeAgents struct {
	panel *service.AgentsPanel
	err   error
}

func (f *fakeAgents) Panel(context.Context) (*service.AgentsPanel, error) { return f.panel, f.err }
func (f *fakeAgents) Create(_ context.Context, in service.AgentInput) (*domain.Agent, error) {
	return &domain.Agent{ID: 1, Name: in.Name, Type: in.Type}, f.err
}
func (f *fakeAgents) Trash(context.Context, int64) error   { return f.err }
func (f *fakeAgents) Restore(context.Context, int64) error { return f.err }

func TestAgentHandler_Panel(t *testing.T) {
	f := &fakeAgents{panel: &service.AgentsPanel{
		Enabled: []*domain.Agent{{ID: 10, Name: "Ana", Type: domain.AgentTypeIndividual}},
		Trashed: []*domain.Agent{},
	}}
	h := NewAgentHandler(f, service.NewURLBuilder("http://mapas.test"), zap.NewNop())

	rec := httptest.NewRecorder()
	h.Panel(rec, httptest.NewRequest(http.MethodGet, "/panel/agents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	require.Contains(t, body, `href="http://mapas.test/agent/create"`)
	require.Contains(t, body, `href="http://mapas.test/agent/10/edit"`)
	require.Contains(t, body, "Ana")

	f.err = domain.ErrGuest
	rec = httptest.NewRecorder()
	h.Panel(rec, httptest.NewRequest(http.MethodGet, "/panel/agents", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAgentHandler_Routes(t *testing.T) {
	f := &fakeAgents{}
	r := chi.NewRouter()
	r.Route("/v1/agents", NewAgentHandler(f, service.NewURLBuilder(""), zap.NewNop()).Routes)

	rec := do(t, r, http.MethodPost, "/v1/agents", strings.NewReader(`{"name":"Ana","type":1}`))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, r, http.MethodPost, "/v1/agents/10/trash", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	f.err = &domain.PermissionDeniedError{Action: "restore", Entity: "Agent", ID: 10}
	rec = do(t, r, http.MethodPost, "/v1/agents/10/restore", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

type fakeIssuer struct{}

func (fakeIssuer) GenerateToken(_ context.Context, username, password string) (*domain.TokenResponse, error) {
	switch {
	case username == "ana" && password == "s3cret":
		return &domain.TokenResponse{AccessToken: "token", TokenType: "Bearer", ExpiresIn: 60}, nil
	case username == "db-down":
		return nil, errors.New("service: load user: connection refused")
	}
	return nil, service.ErrInvalidCredentials
}

type countInc struct{ n int }

func (c *countInc) Inc() { c.n++ }

func TestAuthHandler_Login(t *testing.T) {
	throttled := &countInc{}
	h := NewAuthHandler(fakeIssuer{}, 1, 2, throttled, zap.NewNop())

	login := func(body, remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(body))
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.Login(rec, req)
		return rec
	}

	rec := login(`{"username":"ana","password":"s3cret"}`, "10.0.0.1:5000")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"access_token":"token"`)

	rec = login(`{"username":"ana","password":"wrong"}`, "10.0.0.1:5001")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// burst исчерпан для этого IP
	rec = login(`{"username":"ana","password":"s3cret"}`, "10.0.0.1:5002")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, 1, throttled.n)

	rec = login(`{"username":"ana","password":"s3cret"}`, "10.0.0.2:5000")
	require.Equal(t, http.StatusOK, rec.Code)

	// сбой хранилища не выдается за неверные учетные данные
	rec = login(`{"username":"db-down","password":"x"}`, "10.0.0.3:5000")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection refused")
}

type fakeAudit struct{}

func (fakeAudit) FetchLogs(_ context.Context, id int64) ([]audit.Event, error) {
	if id != 4200001 {
		return nil, domain.ErrNotFound
	}
	return []audit.Event{{ID: "e1", RegistrationID: id, Status: "sent"}}, nil
}

func TestAuditHandler_GetLogs(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/v1/registrations/{id}/history", NewAuditHandler(fakeAudit{}, zap.NewNop()).GetLogs)

	rec := do(t, r, http.MethodGet, "/v1/registrations/4200001/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"sent"`)

	rec = do(t, r, http.MethodGet, "/v1/registrations/7/history", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
