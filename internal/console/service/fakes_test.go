package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/xela07ax/mapasculturais/internal/access"
	"github.com/xela07ax/mapasculturais/internal/domain"
	"github.com/xela07ax/mapasculturais/internal/hooks"
	"github.com/xela07ax/mapasculturais/internal/storage"
	"go.uber.org/zap"
)

type storedReg struct {
	id         int64
	projectID  int64
	ownerID    int64
	category   string
	status     domain.Status
	created    time.Time
	sent       *time.Time
	agentsData map[string]map[string]any
	metadata   map[string]string
}

// memStore хранилище в памяти, реализует все репозитории сервисов
type memStore struct {
	mu        sync.Mutex
	projects  map[int64]*domain.Project
	agents    map[int64]*domain.Agent
	users     map[string]*domain.User
	regs      map[int64]*storedReg
	relations map[int64]*domain.AgentRelation
	files     map[string]*domain.File
	seq       map[int64]int64
	nextRel   int64
	saves     int
	counts    int
	saveErr   error // ошибка SaveRegistration, если задана
}

func newMemStore() *memStore {
	return &memStore{
		projects:  map[int64]*domain.Project{},
		agents:    map[int64]*domain.Agent{},
		users:     map[string]*domain.User{},
		regs:      map[int64]*storedReg{},
		relations: map[int64]*domain.AgentRelation{},
		files:     map[string]*domain.File{},
		seq:       map[int64]int64{},
	}
}

func (m *memStore) GetProject(_ context.Context, id int64) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %d: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func (m *memStore) GetAgent(_ context.Context, id int64) (*domain.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %d: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

func (m *memStore) AgentsByUser(_ context.Context, userID string, status domain.AgentStatus) ([]*domain.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Agent
	for _, a := range m.agents {
		if a.UserID == userID && a.Status == status {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) CreateAgent(_ context.Context, a *domain.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = int64(len(m.agents) + 1000)
	m.agents[a.ID] = a
	return nil
}

func (m *memStore) SetAgentStatus(_ context.Context, id int64, status domain.AgentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = status
	return nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (m *memStore) GetRegistration(_ context.Context, id int64) (*domain.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sr, ok := m.regs[id]
	if !ok {
		return nil, fmt.Errorf("registration %d: %w", id, domain.ErrNotFound)
	}
	return m.build(sr), nil
}

func (m *memStore) build(sr *storedReg) *domain.Registration {
	reg := &domain.Registration{
		ID:              sr.id,
		ProjectID:       sr.projectID,
		Project:         m.projects[sr.projectID],
		Owner:           m.agents[sr.ownerID],
		Category:        sr.category,
		CreateTimestamp: sr.created,
		SentTimestamp:   sr.sent,
		AgentsData:      sr.agentsData,
		Metadata:        map[string]string{},
		Files:           map[string]*domain.File{},
		RelatedAgents:   map[string][]*domain.AgentRelation{},
	}
	for k, v := range sr.metadata {
		reg.Metadata[k] = v
	}
	ids := make([]int64, 0, len(m.relations))
	for id := range m.relations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		rel := m.relations[id]
		if rel.RegistrationID == sr.id {
			cp := *rel
			reg.RelatedAgents[rel.Group] = append(reg.RelatedAgents[rel.Group], &cp)
		}
	}
	for _, f := range m.files {
		if f.OwnerID == sr.id {
			reg.Files[f.Group] = f
		}
	}
	return domain.RestoreRegistration(reg, sr.status)
}

func (m *memStore) ListRegistrationsByProject(_ context.Context, projectID int64) ([]*domain.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Registration
	for _, sr := range m.regs {
		if sr.projectID == projectID {
			out = append(out, m.build(sr))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateRegistration(_ context.Context, reg *domain.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[reg.ProjectID]++
	reg.ID = domain.FormatRegistrationID(reg.ProjectID, m.seq[reg.ProjectID])
	m.store(reg)
	return nil
}

func (m *memStore) SaveRegistration(_ context.Context, reg *domain.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.regs[reg.ID]; !ok {
		return domain.ErrNotFound
	}
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.store(reg)
	return nil
}

func (m *memStore) store(reg *domain.Registration) {
	meta := map[string]string{}
	for k, v := range reg.Metadata {
		meta[k] = v
	}
	m.regs[reg.ID] = &storedReg{
		id:         reg.ID,
		projectID:  reg.ProjectID,
		ownerID:    reg.Owner.ID,
		category:   reg.Category,
		status:     reg.Status(),
		created:    reg.CreateTimestamp,
		sent:       reg.SentTimestamp,
		agentsData: reg.AgentsData,
		metadata:   meta,
	}
}

func (m *memStore) DeleteRegistration(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.regs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.regs, id)
	for rid, rel := range m.relations {
		if rel.RegistrationID == id {
			delete(m.relations, rid)
		}
	}
	for fid, f := range m.files {
		if f.OwnerID == id {
			delete(m.files, fid)
		}
	}
	return nil
}

func (m *memStore) CountRegistrationsByOwner(_ context.Context, projectID, ownerID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts++
	n := 0
	for _, sr := range m.regs {
		if sr.projectID == projectID && sr.ownerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) GetRelation(_ context.Context, id int64) (*domain.AgentRelation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rel, ok := m.relations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rel
	return &cp, nil
}

func (m *memStore) AddRelation(_ context.Context, rel *domain.AgentRelation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRel++
	rel.ID = m.nextRel
	cp := *rel
	m.relations[rel.ID] = &cp
	return nil
}

func (m *memStore) RemoveRelations(_ context.Context, registrationID int64, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rel := range m.relations {
		if rel.RegistrationID == registrationID && rel.Group == group {
			delete(m.relations, id)
		}
	}
	return nil
}

func (m *memStore) SetRelationStatus(_ context.Context, id int64, from, to domain.RelationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rel, ok := m.relations[id]
	if !ok || rel.Status != from {
		return domain.ErrRelationNotPending
	}
	rel.Status = to
	return nil
}

func (m *memStore) SaveFile(_ context.Context, f *domain.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, old := range m.files {
		if old.OwnerID == f.OwnerID && old.Group == f.Group {
			delete(m.files, id)
		}
	}
	m.files[f.ID] = f
	return nil
}

func (m *memStore) DeleteFile(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, id)
	return nil
}

// recordedHook вызов хука, увиденный подписчиком
type recordedHook struct {
	name      string
	status    domain.Status
	suspended bool
}

type fixture struct {
	store    *memStore
	fs       afero.Fs
	hooks    []recordedHook
	svc      *RegistrationService
	perms    *Permissions
	defs     []domain.AgentRelationDefinition
	project  *domain.Project
	owner    *domain.Agent
	ownerUsr *domain.User
	manager  *domain.User
	stranger *domain.User
	admin    *domain.User
}

var testDefinitions = []domain.AgentRelationDefinition{
	{
		GroupName:          domain.OwnerGroup,
		Label:              "Agente responsável",
		AgentType:          domain.AgentTypeIndividual,
		RequiredProperties: []string{"documento", "emailPrivado"},
	},
	{
		GroupName:          "coletivo",
		MetadataName:       "useAgentRelationColetivo",
		Label:              "Coletivo",
		Description:        "Agente coletivo sem CNPJ",
		AgentType:          domain.AgentTypeCollective,
		RequiredProperties: []string{"emailPrivado"},
	},
}

func newFixture() *fixture {
	f := &fixture{store: newMemStore(), fs: afero.NewMemMapFs(), defs: testDefinitions}
	logger := zap.NewNop()

	f.ownerUsr = &domain.User{ID: "user-owner", ProfileID: 10}
	f.manager = &domain.User{ID: "user-manager", ProfileID: 20}
	f.stranger = &domain.User{ID: "user-stranger", ProfileID: 30}
	f.admin = &domain.User{ID: "user-admin", Roles: []string{domain.RoleAdmin}}

	f.owner = &domain.Agent{
		ID: 10, UserID: f.ownerUsr.ID, Type: domain.AgentTypeIndividual, Name: "Ana", Status: domain.AgentStatusEnabled,
		Properties: map[string]any{"documento": "123.456.789-00", "emailPrivado": "ana@example.org", "telefone1": "5511"},
	}
	manager := &domain.Agent{ID: 20, UserID: f.manager.ID, Type: domain.AgentTypeCollective, Name: "Secretaria", Status: domain.AgentStatusEnabled}
	stranger := &domain.Agent{ID: 30, UserID: f.stranger.ID, Type: domain.AgentTypeCollective, Name: "Coletivo X", Status: domain.AgentStatusEnabled,
		Properties: map[string]any{"emailPrivado": "x@example.org"}}
	for _, a := range []*domain.Agent{f.owner, manager, stranger} {
		f.store.agents[a.ID] = a
	}

	from := time.Now().Add(-24 * time.Hour)
	to := time.Now().Add(24 * time.Hour)
	f.project = &domain.Project{
		ID: 42, Name: "Edital de Cultura", OwnerID: manager.ID, Owner: manager,
		UseRegistrations: true, RegistrationFrom: &from, RegistrationTo: &to,
		Metadata:           map[string]string{},
		FileConfigurations: []*domain.FileConfiguration{{ID: 7, ProjectID: 42, Title: "Portfolio", Required: true}},
	}
	f.store.projects[f.project.ID] = f.project

	validator := NewValidator(f.defs, f.store)
	f.perms = NewPermissions(validator, nil)
	files := storage.New(f.fs, "/files", logger)

	dispatcher := hooks.NewDispatcher(logger)
	dispatcher.Register(domain.HookPrefixRegistrationStatus+"(*)", func(ctx context.Context, name string, reg *domain.Registration) error {
		f.hooks = append(f.hooks, recordedHook{name: name, status: reg.Status(), suspended: access.ScopeFrom(ctx).Suspended()})
		return nil
	})

	f.svc = NewRegistrationService(RegistrationDeps{
		Repo:               f.store,
		Projects:           NewProjectService(f.store, time.Minute, logger),
		Agents:             f.store,
		Files:              files,
		Hooks:              dispatcher,
		Perms:              f.perms,
		Validator:          validator,
		Serializer:         NewSerializer(f.perms, f.defs, files, NewURLBuilder("http://mapas.test")),
		PropertiesToExport: []string{"name", "documento", "emailPrivado"},
	}, logger)
	return f
}

func as(u *domain.User) context.Context {
	return access.WithScope(access.WithActor(context.Background(), u), access.NewScope())
}

// seed сохраняет заявку владельца в заданном статусе
func (f *fixture) seed(status domain.Status) *domain.Registration {
	reg := domain.NewRegistration(f.project, f.owner)
	if err := f.store.CreateRegistration(context.Background(), reg); err != nil {
		panic(err)
	}
	f.store.regs[reg.ID].status = status
	return domain.RestoreRegistration(reg, status)
}

// attach кладет обязательный файл проекта
func (f *fixture) attach(reg *domain.Registration) {
	f.store.files["file-"+reg.Number()] = &domain.File{
		ID: "file-" + reg.Number(), OwnerID: reg.ID, Group: "rfc_7", Name: "portfolio.pdf", Path: "registration/portfolio.pdf",
	}
	if err := afero.WriteFile(f.fs, "registration/portfolio.pdf", []byte("%PDF-1.4"), 0o644); err != nil {
		panic(err)
	}
}
