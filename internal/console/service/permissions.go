package service

/*
Permissions предикаты capability над заявкой.

Проверки выполняются от имени актора из контекста (nil — гость).
Когда Scope запроса приостановлен (привилегированная запись), Check всегда пропускает.
*/

import (
	"context"
	"time"

	"github.com/xela07ax/mapasculturais/internal/access"
	"github.com/xela07ax/mapasculturais/internal/domain"
)

const (
	ActionCreate       = "create"
	ActionView         = "view"
	ActionChangeStatus = "changeStatus"
	ActionSend         = "send"
	ActionModify       = "modify"
	ActionRemove       = "remove"
)

type Permissions struct {
	validator *Validator
	observer  Observer
	now       func() time.Time
}

func NewPermissions(validator *Validator, observer Observer) *Permissions {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Permissions{
		validator: validator,
		observer:  observer,
		now:       time.Now,
	}
}

// Check возвращает *domain.PermissionDeniedError, если актор не может выполнить действие
func (p *Permissions) Check(ctx context.Context, action string, reg *domain.Registration) error {
	if access.ScopeFrom(ctx).Suspended() {
		return nil
	}
	if p.Can(ctx, access.ActorFrom(ctx), action, reg) {
		return nil
	}
	p.observer.ObserveDenied(action)
	return &domain.PermissionDeniedError{Action: action, Entity: "Registration", ID: reg.ID}
}

func (p *Permissions) Can(ctx context.Context, u *domain.User, action string, reg *domain.Registration) bool {
	switch action {
	case ActionCreate:
		return p.canCreate(u, reg)
	case ActionView:
		return p.canView(u, reg)
	case ActionChangeStatus:
		return p.canChangeStatus(u, reg)
	case ActionSend:
		return p.canSend(ctx, u, reg)
	case ActionModify:
		return p.canModify(u, reg)
	case ActionRemove:
		return genericCheck(u, reg)
	default:
		return false
	}
}

func (p *Permissions) canCreate(u *domain.User, reg *domain.Registration) bool {
	if u.IsGuest() {
		return false
	}
	if reg.Project != nil && !reg.Project.UseRegistrations {
		return false
	}
	return genericCheck(u, reg)
}

func (p *Permissions) canView(u *domain.User, reg *domain.Registration) bool {
	if u.IsGuest() {
		return false
	}
	if u.Is(domain.RoleAdmin) {
		return true
	}
	if CanControlRegistration(u, reg) || CanControlProject(u, reg.Project) {
		return true
	}
	for _, rels := range reg.RelatedAgents {
		for _, rel := range rels {
			if rel.IsEnabled() && CanControlAgent(u, rel.Agent) {
				return true
			}
		}
	}
	return false
}

func (p *Permissions) canChangeStatus(u *domain.User, reg *domain.Registration) bool {
	if u.IsGuest() {
		return false
	}
	return reg.Status() > 0 && CanControlProject(u, reg.Project)
}

func (p *Permissions) canSend(ctx context.Context, u *domain.User, reg *domain.Registration) bool {
	if u.IsGuest() {
		return false
	}
	if reg.Project == nil || !reg.Project.IsRegistrationOpen(p.now()) {
		return false
	}
	if len(p.validator.Validate(ctx, reg)) > 0 {
		return false
	}
	if u.Is(domain.RoleAdmin) {
		return true
	}
	return CanControlRegistration(u, reg)
}

func (p *Permissions) canModify(u *domain.User, reg *domain.Registration) bool {
	if reg.Status() != domain.StatusDraft {
		return false
	}
	return genericCheck(u, reg)
}

// genericCheck администратор или контролирующий владельца заявки
func genericCheck(u *domain.User, reg *domain.Registration) bool {
	if u.IsGuest() {
		return false
	}
	return u.Is(domain.RoleAdmin) || CanControlAgent(u, reg.Owner)
}

// CanControlAgent @control над агентом: администратор или пользователь агента
func CanControlAgent(u *domain.User, a *domain.Agent) bool {
	if u.IsGuest() || a == nil {
		return false
	}
	return u.Is(domain.RoleAdmin) || (a.UserID != "" && a.UserID == u.ID)
}

// CanControlProject @control над проектом через агента-владельца
func CanControlProject(u *domain.User, p *domain.Project) bool {
	if u.IsGuest() || p == nil {
		return false
	}
	return u.Is(domain.RoleAdmin) || CanControlAgent(u, p.Owner)
}

// CanControlRegistration @control над заявкой: владелец или агент, связанный с правом контроля
func CanControlRegistration(u *domain.User, reg *domain.Registration) bool {
	if u.IsGuest() || reg == nil {
		return false
	}
	if u.Is(domain.RoleAdmin) || CanControlAgent(u, reg.Owner) {
		return true
	}
	for _, rels := range reg.RelatedAgents {
		for _, rel := range rels {
			if rel.HasControl && rel.IsEnabled() && CanControlAgent(u, rel.Agent) {
				return true
			}
		}
	}
	return false
}
