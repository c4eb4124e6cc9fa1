package service

import (
	"context"
	"io"
	"time"

	"github.com/xela07ax/mapasculturais/internal/domain"
)

// RegistrationRepository описывает требования к хранилищу заявок
type RegistrationRepository interface {
	GetRegistration(ctx context.Context, id int64) (*domain.Registration, error)
	ListRegistrationsByProject(ctx context.Context, projectID int64) ([]*domain.Registration, error)
	CreateRegistration(ctx context.Context, reg *domain.Registration) error
	SaveRegistration(ctx context.Context, reg *domain.Registration) error
	DeleteRegistration(ctx context.Context, id int64) error
	CountRegistrationsByOwner(ctx context.Context, projectID, ownerID int64) (int, error)

	GetRelation(ctx context.Context, id int64) (*domain.AgentRelation, error)
	AddRelation(ctx context.Context, rel *domain.AgentRelation) error
	RemoveRelations(ctx context.Context, registrationID int64, group string) error
	SetRelationStatus(ctx context.Context, id int64, from, to domain.RelationStatus) error

	SaveFile(ctx context.Context, f *domain.File) error
	DeleteFile(ctx context.Context, id string) error
}

type ProjectRepository interface {
	GetProject(ctx context.Context, id int64) (*domain.Project, error)
}

// AgentRepository описывает требования к хранилищу данных об агентах
type AgentRepository interface {
	GetAgent(ctx context.Context, id int64) (*domain.Agent, error)
	AgentsByUser(ctx context.Context, userID string, status domain.AgentStatus) ([]*domain.Agent, error)
	CreateAgent(ctx context.Context, a *domain.Agent) error
	SetAgentStatus(ctx context.Context, id int64, status domain.AgentStatus) error
}

// FileStorage физическое хранение вложений
type FileStorage interface {
	Save(ownerID int64, group, name string, r io.Reader) (*domain.File, error)
	Remove(f *domain.File) error
	URL(f *domain.File) string
	CreateZip(ownerID int64, name string, files []*domain.File) (*domain.File, error)
}

// HookApplier диспетчер хуков жизненного цикла
type HookApplier interface {
	Apply(ctx context.Context, name string, reg *domain.Registration)
}

// Observer метрики сервиса
type Observer interface {
	ObserveSend(started time.Time)
	ObserveValidation(errs domain.ValidationErrors)
	ObserveDenied(action string)
}

type nopObserver struct{}

func (nopObserver) ObserveSend(time.Time) {}
func (nopObserver) ObserveValidation(domain.ValidationErrors) {}
func (nopObserver) ObserveDenied(string) {}
