package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/mapasculturais/internal/access"
	"github.com/xela07ax/mapasculturais/internal/audit"
)

// AuditReader чтение журнала переходов
type AuditReader interface {
	ListAuditEvents(ctx context.Context, registrationID int64) ([]audit.Event, error)
}

// AuditService история статусов заявки для тех, кто может ее просматривать
type AuditService struct {
	reader AuditReader
	repo   RegistrationRepository
	perms  *Permissions
}

func NewAuditService(reader AuditReader, repo RegistrationRepository, perms *Permissions) *AuditService {
	return &AuditService{reader: reader, repo: repo, perms: perms}
}

func (s *AuditService) FetchLogs(ctx context.Context, registrationID int64) ([]audit.Event, error) {
	ctx = access.EnsureScope(ctx)
	reg, err := s.repo.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if err := s.perms.Check(ctx, ActionView, reg); err != nil {
		return nil, err
	}

	events, err := s.reader.ListAuditEvents(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("service: fetch audit: %w", err)
	}
	if events == nil {
		events = []audit.Event{}
	}
	return events, nil
}
