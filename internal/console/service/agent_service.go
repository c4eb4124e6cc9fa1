package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xela07ax/mapasculturais/internal/access"
	"github.com/xela07ax/mapasculturais/internal/domain"
	"go.uber.org/zap"
)

// AgentInput данные для создания агента из панели
type AgentInput struct {
	Type             domain.AgentType `json:"type"`
	Name             string           `json:"name"`
	ShortDescription string           `json:"shortDescription"`
	Properties       map[string]any   `json:"properties,omitempty"`
}

// AgentsPanel агенты пользователя для панели: активные и в корзине
type AgentsPanel struct {
	Enabled []*domain.Agent `json:"enabled"`
	Trashed []*domain.Agent `json:"trashed"`
}

type AgentService struct {
	repo   AgentRepository
	logger *zap.Logger
}

func NewAgentService(repo AgentRepository, logger *zap.Logger) *AgentService {
	return &AgentService{
		repo:   repo,
		logger: logger.Named("agent-service"),
	}
}

// Panel агенты текущего пользователя
func (s *AgentService) Panel(ctx context.Context) (*AgentsPanel, error) {
	actor := access.ActorFrom(ctx)
	if actor.IsGuest() {
		return nil, domain.ErrGuest
	}

	enabled, err := s.repo.AgentsByUser(ctx, actor.ID, domain.AgentStatusEnabled)
	if err != nil {
		s.logger.Error("failed to list agents", zap.String("user_id", actor.ID), zap.Error(err))
		return nil, fmt.Errorf("service: could not fetch agents: %w", err)
	}
	trashed, err := s.repo.AgentsByUser(ctx, actor.ID, domain.AgentStatusTrash)
	if err != nil {
		s.logger.Error("failed to list trashed agents", zap.String("user_id", actor.ID), zap.Error(err))
		return nil, fmt.Errorf("service: could not fetch agents: %w", err)
	}

	// фронтенд получает [], а не null
	if enabled == nil {
		enabled = []*domain.Agent{}
	}
	if trashed == nil {
		trashed = []*domain.Agent{}
	}
	return &AgentsPanel{Enabled: enabled, Trashed: trashed}, nil
}

func (s *AgentService) Create(ctx context.Context, in AgentInput) (*domain.Agent, error) {
	actor := access.ActorFrom(ctx)
	if actor.IsGuest() {
		return nil, domain.ErrGuest
	}

	errs := domain.ValidationErrors{}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		errs.Add("name", "name is required")
	}
	if in.Type != domain.AgentTypeIndividual && in.Type != domain.AgentTypeCollective {
		errs.Add("type", "type must be 1 (individual) or 2 (collective)")
	}
	if len(errs) > 0 {
		return nil, errs
	}

	a := &domain.Agent{
		UserID:           actor.ID,
		Type:             in.Type,
		Name:             name,
		ShortDescription: in.ShortDescription,
		Status:           domain.AgentStatusEnabled,
		Properties:       in.Properties,
	}
	if err := s.repo.CreateAgent(ctx, a); err != nil {
		return nil, fmt.Errorf("service: create agent: %w", err)
	}

	s.logger.Info("agent created", zap.Int64("agent_id", a.ID), zap.String("user_id", actor.ID))
	return a, nil
}

func (s *AgentService) Trash(ctx context.Context, id int64) error {
	return s.setStatus(ctx, id, domain.AgentStatusTrash, "trash")
}

func (s *AgentService) Restore(ctx context.Context, id int64) error {
	return s.setStatus(ctx, id, domain.AgentStatusEnabled, "restore")
}

// setStatus унифицированное переключение статуса агента с проверкой @control
func (s *AgentService) setStatus(ctx context.Context, id int64, status domain.AgentStatus, action string) error {
	a, err := s.repo.GetAgent(ctx, id)
	if err != nil {
		return err
	}
	if !CanControlAgent(access.ActorFrom(ctx), a) {
		return &domain.PermissionDeniedError{Action: action, Entity: "Agent", ID: id}
	}

	if err := s.repo.SetAgentStatus(ctx, id, status); err != nil {
		s.logger.Error("failed to update agent status",
			zap.Int64("agent_id", id),
			zap.String("action", action),
			zap.Error(err))
		return fmt.Errorf("%s database error: %w", action, err)
	}

	s.logger.Info("agent status updated",
		zap.Int64("agent_id", id),
		zap.String("action", action),
		zap.Int16("new_status", int16(status)))
	return nil
}
