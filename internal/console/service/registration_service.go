package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/xela07ax/mapasculturais/internal/access"
	"github.com/xela07ax/mapasculturais/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrUnknownRelationGroup = errors.New("unknown agent relation group")
	ErrUnknownFileGroup     = errors.New("unknown file group")
)

// RegistrationPatch изменяемые поля черновика
type RegistrationPatch struct {
	Category *string           `json:"category,omitempty"`
	OwnerID  *int64            `json:"ownerId,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type RegistrationService struct {
	repo       RegistrationRepository
	projects   *ProjectService
	agents     AgentRepository
	files      FileStorage
	hooks      HookApplier
	perms      *Permissions
	validator  *Validator
	serializer *Serializer
	observer   Observer
	exportKeys []string
	now        func() time.Time
	logger     *zap.Logger
}

type RegistrationDeps struct {
	Repo       RegistrationRepository
	Projects   *ProjectService
	Agents     AgentRepository
	Files      FileStorage
	Hooks      HookApplier
	Perms      *Permissions
	Validator  *Validator
	Serializer *Serializer
	Observer   Observer

	// PropertiesToExport поля агентов, копируемые в заявку при отправке
	PropertiesToExport []string
}

func NewRegistrationService(d RegistrationDeps, logger *zap.Logger) *RegistrationService {
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
	return &RegistrationService{
		repo:       d.Repo,
		projects:   d.Projects,
		agents:     d.Agents,
		files:      d.Files,
		hooks:      d.Hooks,
		perms:      d.Perms,
		validator:  d.Validator,
		serializer: d.Serializer,
		observer:   d.Observer,
		exportKeys: d.PropertiesToExport,
		now:        time.Now,
		logger:     logger.Named("registration-service"),
	}
}

// load заявка и Scope запроса
func (s *RegistrationService) load(ctx context.Context, id int64) (context.Context, *domain.Registration, error) {
	ctx = access.EnsureScope(ctx)
	reg, err := s.repo.GetRegistration(ctx, id)
	if err != nil {
		return ctx, nil, err
	}
	return ctx, reg, nil
}

// Create новый черновик. Без ownerID владельцем становится профиль актора.
func (s *RegistrationService) Create(ctx context.Context, projectID int64, ownerID *int64, category string) (*RegistrationJSON, error) {
	ctx = access.EnsureScope(ctx)
	actor := access.ActorFrom(ctx)
	if actor.IsGuest() {
		return nil, domain.ErrGuest
	}

	project, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}

	ownerRef := actor.ProfileID
	if ownerID != nil {
		ownerRef = *ownerID
	}
	var owner *domain.Agent
	if ownerRef != 0 {
		if owner, err = s.agents.GetAgent(ctx, ownerRef); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	reg := domain.NewRegistration(project, owner)
	reg.Category = category

	if owner != nil {
		if err := s.perms.Check(ctx, ActionCreate, reg); err != nil {
			return nil, err
		}
	}

	errs, err := s.validator.ValidateOwner(ctx, reg)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		s.observer.ObserveValidation(errs)
		s.logger.Info("registration rejected by owner validation",
			zap.Int64("project_id", projectID),
			zap.Strings("errors", errs[ErrKeyOwner]))
		return nil, errs
	}

	if err := s.repo.CreateRegistration(ctx, reg); err != nil {
		s.logger.Error("failed to create registration", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, fmt.Errorf("service: create registration: %w", err)
	}

	s.logger.Info("registration created",
		zap.Int64("registration_id", reg.ID),
		zap.Int64("project_id", projectID),
		zap.Int64("owner_id", owner.ID))
	return s.serializer.Serialize(ctx, reg), nil
}

// Update меняет черновик. Лимит владельца перепроверяется только при смене владельца.
func (s *RegistrationService) Update(ctx context.Context, id int64, patch RegistrationPatch) (*RegistrationJSON, error) {
	ctx, reg, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Check(ctx, ActionModify, reg); err != nil {
		return nil, err
	}

	if patch.OwnerID != nil && (reg.Owner == nil || reg.Owner.ID != *patch.OwnerID) {
		owner, err := s.agents.GetAgent(ctx, *patch.OwnerID)
		if err != nil {
			return nil, err
		}
		reg.SetOwner(owner)
	}
	if patch.Category != nil {
		reg.Category = *patch.Category
	}
	for k, v := range patch.Metadata {
		reg.Metadata[k] = v
	}

	errs, err := s.validator.ValidateOwner(ctx, reg)
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		s.observer.ObserveValidation(errs)
		return nil, errs
	}

	if err := s.repo.SaveRegistration(ctx, reg); err != nil {
		return nil, fmt.Errorf("service: save registration: %w", err)
	}
	return s.serializer.Serialize(ctx, reg), nil
}

// Delete удаляет заявку вместе с файлами в хранилище
func (s *RegistrationService) Delete(ctx context.Context, id int64) error {
	ctx, reg, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.perms.Check(ctx, ActionRemove, reg); err != nil {
		return err
	}

	if err := s.repo.DeleteRegistration(ctx, id); err != nil {
		return fmt.Errorf("service: delete registration: %w", err)
	}
	for _, f := range reg.Files {
		if err := s.files.Remove(f); err != nil {
			// запись уже удалена, осиротевший файл не повод для ошибки
			s.logger.Warn("failed to remove registration file", zap.String("path", f.Path), zap.Error(err))
		}
	}

	s.logger.Info("registration deleted", zap.Int64("registration_id", id))
	return nil
}

// SetStatusTo гейт переходов статуса.
// Draft -> Sent требует send, остальные переходы changeStatus.
// Запись выполняется при приостановленном контроле доступа, после чего применяется хук.
func (s *RegistrationService) SetStatusTo(ctx context.Context, id int64, target domain.Status) (*RegistrationJSON, error) {
	ctx, reg, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	action := ActionChangeStatus
	if reg.Status() == domain.StatusDraft && target == domain.StatusSent {
		action = ActionSend
	}
	if err := s.perms.Check(ctx, action, reg); err != nil {
		return nil, err
	}

	from := reg.Status()
	if err := s.privileged(ctx, func() error {
		reg.ApplyStatus(target)
		return s.repo.SaveRegistration(ctx, reg)
	}); err != nil {
		reg.ApplyStatus(from)
		return nil, fmt.Errorf("service: set status: %w", err)
	}

	s.logger.Info("registration status changed",
		zap.Int64("registration_id", reg.ID),
		zap.String("from", from.String()),
		zap.String("to", target.String()))
	s.hooks.Apply(ctx, domain.StatusHook(target), reg)
	return s.serializer.Serialize(ctx, reg), nil
}

// privileged выполняет fn с отключенным контролем доступа и всегда восстанавливает его
func (s *RegistrationService) privileged(ctx context.Context, fn func() error) error {
	restore := access.ScopeFrom(ctx).Suspend()
	defer restore()
	return fn()
}

// Send отправка на рассмотрение: архив файлов, снимок данных агентов, статус Sent.
func (s *RegistrationService) Send(ctx context.Context, id int64) (*RegistrationJSON, error) {
	started := time.Now()
	ctx, reg, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	// причины отказа отдаем тем, кто вправе видеть заявку
	actor := access.ActorFrom(ctx)
	if !access.ScopeFrom(ctx).Suspended() && s.perms.Can(ctx, actor, ActionView, reg) {
		if reg.Project == nil || !reg.Project.IsRegistrationOpen(s.now()) {
			return nil, domain.ErrRegistrationsClosed
		}
		if errs := s.validator.Validate(ctx, reg); len(errs) > 0 {
			s.observer.ObserveValidation(errs)
			return nil, errs
		}
	}
	if err := s.perms.Check(ctx, ActionSend, reg); err != nil {
		return nil, err
	}

	prevZip := reg.Files[domain.FileGroupZipArchive]
	var zf *domain.File
	err = s.privileged(ctx, func() error {
		var err error
		if zf, err = s.archive(reg); err != nil {
			return err
		}
		if zf != nil {
			if err := s.repo.SaveFile(ctx, zf); err != nil {
				return err
			}
			reg.Files[domain.FileGroupZipArchive] = zf
		}
		now := s.now()
		reg.SentTimestamp = &now
		reg.AgentsData = s.snapshot(reg)
		reg.ApplyStatus(domain.StatusSent)
		return s.repo.SaveRegistration(ctx, reg)
	})
	if err != nil {
		s.discardArchive(ctx, reg, zf, prevZip)
		s.logger.Error("failed to send registration", zap.Int64("registration_id", id), zap.Error(err))
		return nil, fmt.Errorf("service: send registration: %w", err)
	}
	if zf != nil && prevZip != nil {
		if err := s.files.Remove(prevZip); err != nil {
			s.logger.Warn("failed to remove previous archive", zap.String("path", prevZip.Path), zap.Error(err))
		}
	}

	s.observer.ObserveSend(started)
	s.logger.Info("registration sent", zap.Int64("registration_id", reg.ID), zap.Int("files", len(reg.Files)))
	s.hooks.Apply(ctx, domain.StatusHook(domain.StatusSent), reg)
	return s.serializer.Serialize(ctx, reg), nil
}

// archive собирает все вложения в zip; nil, если архивировать нечего.
// Запись о файле сохраняет вызывающий.
func (s *RegistrationService) archive(reg *domain.Registration) (*domain.File, error) {
	groups := make([]string, 0, len(reg.Files))
	for g, f := range reg.Files {
		if f != nil && g != domain.FileGroupZipArchive {
			groups = append(groups, g)
		}
	}
	if len(groups) == 0 {
		return nil, nil
	}
	sort.Strings(groups)

	files := make([]*domain.File, 0, len(groups))
	for _, g := range groups {
		files = append(files, reg.Files[g])
	}

	name := reg.Number() + " - " + strconv.FormatInt(s.now().UnixMicro(), 16) + ".zip"
	return s.files.CreateZip(reg.ID, name, files)
}

// discardArchive откатывает новый архив после неудачной отправки:
// удаляет его из хранилища и возвращает запись о предыдущем.
func (s *RegistrationService) discardArchive(ctx context.Context, reg *domain.Registration, zf, prev *domain.File) {
	if zf == nil {
		return
	}
	if err := s.files.Remove(zf); err != nil {
		s.logger.Warn("failed to remove unsent archive", zap.String("path", zf.Path), zap.Error(err))
	}

	var err error
	if prev != nil {
		err = s.repo.SaveFile(ctx, prev)
		reg.Files[domain.FileGroupZipArchive] = prev
	} else {
		err = s.repo.DeleteFile(ctx, zf.ID)
		delete(reg.Files, domain.FileGroupZipArchive)
	}
	if err != nil {
		s.logger.Error("failed to restore archive record", zap.Int64("registration_id", reg.ID), zap.Error(err))
	}
}

// snapshot значения экспортируемых полей владельца и первого подтвержденного агента каждой роли
func (s *RegistrationService) snapshot(reg *domain.Registration) map[string]map[string]any {
	data := map[string]map[string]any{}
	export := func(group string, a *domain.Agent) {
		if a == nil {
			return
		}
		props := make(map[string]any, len(s.exportKeys))
		for _, k := range s.exportKeys {
			props[k] = a.Property(k)
		}
		data[group] = props
	}

	export(domain.OwnerGroup, reg.Owner)
	for group := range reg.RelatedAgents {
		if rel := reg.EnabledRelatedAgent(group); rel != nil {
			export(group, rel.Agent)
		}
	}
	return data
}

// Validate ошибки отправки для формы
func (s *RegistrationService) Validate(ctx context.Context, id int64) (domain.ValidationErrors, error) {
	ctx, reg, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Check(ctx, ActionView, reg); err != nil {
		return nil, err
	}
	return s.validator.Validate(ctx, reg), nil
}

func (s *RegistrationService) Get(ctx context.Context, id int64) (*RegistrationJSON, error) {
	ctx, reg, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.serializer.Serialize(ctx, reg), nil
}

func (s *RegistrationService) ListByProject(ctx context.Context, projectID int64) ([]*RegistrationJSON, error) {
	ctx = access.EnsureScope(ctx)
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	regs, err := s.repo.ListRegistrationsByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("service: list registrations: %w", err)
	}

	out := make([]*RegistrationJSON, 0, len(regs))
	for _, reg := range regs {
		out = append(out, s.serializer.Serialize(ctx, reg))
	}
	return out, nil
}

// AgentsData снимок агентов; пустой, если зритель не может просматривать заявку
func (s *RegistrationService) AgentsData(ctx context.Context, id int64) (map[string]map[string]any, error) {
	ctx, reg, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.perms.Can(ctx, access.ActorFrom(ctx), ActionView, reg) || reg.AgentsData == nil {
		return map[string]map[string]any{}, nil
	}
	return reg.AgentsData, nil
}

// AddRelatedAgent связывает агента с заявкой в роли group.
// Если актор не контролирует агента, связь ждет подтверждения.
func (s *RegistrationService) AddRelatedAgent(ctx context.Context, id int64, group string, agentID int64) (*domain.AgentRelation, error) {
	def, ok := s.validator.Definition(group)
	if !ok || def.IsOwner() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRelationGroup, group)
	}

	ctx, reg, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Check(ctx, ActionModify, reg); err != nil {
		return nil, err
	}

	agent, err := s.agents.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	rel := &domain.AgentRelation{
		RegistrationID: reg.ID,
		Group:          group,
		Agent:          agent,
		Status:         domain.RelationStatusPending,
	}
	if access.ScopeFrom(ctx).Suspended() || CanControlAgent(access.ActorFrom(ctx), agent) {
		rel.Status = domain.RelationStatusEnabled
	}

	// в роли один агент
	if err := s.repo.RemoveRelations(ctx, reg.ID, group); err != nil {
		return nil, err
	}
	if err := s.repo.AddRelation(ctx, rel); err != nil {
		return nil, err
	}

	s.logger.Info("agent related to registration",
		zap.Int64("registration_id", reg.ID),
		zap.String("group", group),
		zap.Int64("agent_id", agent.ID),
		zap.Bool("pending", rel.Status == domain.RelationStatusPending))
	return rel, nil
}

func (s *RegistrationService) RemoveRelatedAgent(ctx context.Context, id int64, group string) error {
	ctx, reg, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.perms.Check(ctx, ActionModify, reg); err != nil {
		return err
	}
	return s.repo.RemoveRelations(ctx, reg.ID, group)
}

// AcceptRelation подтверждение запроса тем, кто контролирует связанного агента
func (s *RegistrationService) AcceptRelation(ctx context.Context, relationID int64) error {
	ctx = access.EnsureScope(ctx)
	rel, err := s.repo.GetRelation(ctx, relationID)
	if err != nil {
		return err
	}
	if err := rel.CanAccept(); err != nil {
		return err
	}
	if !access.ScopeFrom(ctx).Suspended() && !CanControlAgent(access.ActorFrom(ctx), rel.Agent) {
		s.observer.ObserveDenied("acceptRelation")
		return &domain.PermissionDeniedError{Action: "acceptRelation", Entity: "AgentRelation", ID: rel.ID}
	}
	if err := s.repo.SetRelationStatus(ctx, rel.ID, rel.Status, domain.RelationStatusEnabled); err != nil {
		return err
	}

	s.logger.Info("agent relation accepted",
		zap.Int64("relation_id", rel.ID),
		zap.Int64("registration_id", rel.RegistrationID))
	return nil
}

// AttachFile кладет файл в группу требования проекта, замещая прежний
func (s *RegistrationService) AttachFile(ctx context.Context, id int64, group, name string, r io.Reader) (*FileJSON, error) {
	ctx, reg, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Check(ctx, ActionModify, reg); err != nil {
		return nil, err
	}
	if !hasFileGroup(reg.Project, group) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFileGroup, group)
	}

	f, err := s.files.Save(reg.ID, group, name, r)
	if err != nil {
		return nil, fmt.Errorf("service: store file: %w", err)
	}
	if err := s.repo.SaveFile(ctx, f); err != nil {
		_ = s.files.Remove(f)
		return nil, fmt.Errorf("service: save file: %w", err)
	}
	if old := reg.Files[group]; old != nil {
		if err := s.files.Remove(old); err != nil {
			s.logger.Warn("failed to remove replaced file", zap.String("path", old.Path), zap.Error(err))
		}
	}

	return &FileJSON{
		ID:        f.ID,
		URL:       s.files.URL(f),
		Name:      f.Name,
		DeleteURL: s.serializer.urls.FileDelete(reg.ID, group),
	}, nil
}

func (s *RegistrationService) RemoveFile(ctx context.Context, id int64, group string) error {
	ctx, reg, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.perms.Check(ctx, ActionModify, reg); err != nil {
		return err
	}
	f := reg.Files[group]
	if f == nil {
		return fmt.Errorf("file group %q: %w", group, domain.ErrNotFound)
	}
	if err := s.repo.DeleteFile(ctx, f.ID); err != nil {
		return err
	}
	if err := s.files.Remove(f); err != nil {
		s.logger.Warn("failed to remove file", zap.String("path", f.Path), zap.Error(err))
	}
	return nil
}

func hasFileGroup(p *domain.Project, group string) bool {
	if p == nil {
		return false
	}
	for _, rfc := range p.FileConfigurations {
		if rfc.FileGroupName() == group {
			return true
		}
	}
	return false
}
