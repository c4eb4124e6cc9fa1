package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xela07ax/mapasculturais/internal/domain"
	"github.com/xela07ax/mapasculturais/internal/i18n"
	"golang.org/x/text/message"
)

const (
	ErrKeyCategory = "category"
	ErrKeyOwner    = "owner"

	errKeyAgentPrefix = "registration-agent-"
	errKeyFilePrefix  = "registration-file-"
)

// AgentErrorKey ключ ошибок роли агента
func AgentErrorKey(group string) string { return errKeyAgentPrefix + group }

// FileErrorKey ключ ошибок требования к файлу
func FileErrorKey(rfcID int64) string { return errKeyFilePrefix + strconv.FormatInt(rfcID, 10) }

// OwnerCounter нужен для проверки лимита заявок на владельца
type OwnerCounter interface {
	CountRegistrationsByOwner(ctx context.Context, projectID, ownerID int64) (int, error)
}

// Validator вычисляет причины, по которым заявку нельзя отправить.
// Сообщения локализуются по языку запроса.
type Validator struct {
	definitions []domain.AgentRelationDefinition
	counter     OwnerCounter
}

func NewValidator(definitions []domain.AgentRelationDefinition, counter OwnerCounter) *Validator {
	return &Validator{definitions: definitions, counter: counter}
}

// Definition роль по имени группы
func (v *Validator) Definition(group string) (domain.AgentRelationDefinition, bool) {
	for _, d := range v.definitions {
		if d.GroupName == group {
			return d, true
		}
	}
	return domain.AgentRelationDefinition{}, false
}

// Validate ошибки отправки. Пустая карта — заявку можно отправлять.
func (v *Validator) Validate(ctx context.Context, reg *domain.Registration) domain.ValidationErrors {
	p := i18n.Printer(ctx)
	errs := domain.ValidationErrors{}
	project := reg.Project
	if project == nil {
		return errs
	}

	if len(project.RegistrationCategories) > 0 && reg.Category == "" {
		title := project.RegistrationCategTitle
		if title == "" {
			title = p.Sprintf(i18n.MsgCategoryDefaultTitle)
		}
		errs.Add(ErrKeyCategory, p.Sprintf(i18n.MsgFieldRequired, title))
	}

	for _, def := range v.definitions {
		errs.Add(AgentErrorKey(def.GroupName), v.validateRole(p, def, reg)...)
	}

	for _, rfc := range project.FileConfigurations {
		if rfc.Required && reg.Files[rfc.FileGroupName()] == nil {
			errs.Add(FileErrorKey(rfc.ID), p.Sprintf(i18n.MsgFileRequired, rfc.Title))
		}
	}
	return errs
}

func (v *Validator) validateRole(p *message.Printer, def domain.AgentRelationDefinition, reg *domain.Registration) []string {
	use := def.Use(reg.Project)
	if use == domain.UseDontUse {
		return nil
	}

	var (
		agent  *domain.Agent
		status domain.RelationStatus
	)
	if def.IsOwner() {
		agent, status = reg.Owner, domain.RelationStatusEnabled
	} else if rel := reg.RelatedAgent(def.GroupName); rel != nil {
		agent, status = rel.Agent, rel.Status
	}

	var msgs []string
	if use == domain.UseRequired && agent == nil {
		msgs = append(msgs, p.Sprintf(i18n.MsgAgentRequired, def.Label))
	}
	if agent == nil {
		return msgs
	}

	if status < 0 {
		return append(msgs, p.Sprintf(i18n.MsgAgentNotConfirmed, agent.Name))
	}

	if def.AgentType != 0 && agent.Type != def.AgentType {
		msgs = append(msgs, p.Sprintf(i18n.MsgAgentWrongType, agentTypeName(p, def.AgentType)))
	}

	var missing []string
	for _, prop := range def.RequiredProperties {
		if !agent.HasProperty(prop) {
			missing = append(missing, "{{"+prop+"}}")
		}
	}
	switch len(missing) {
	case 0:
	case 1:
		msgs = append(msgs, p.Sprintf(i18n.MsgFieldRequired, missing[0]))
	default:
		msgs = append(msgs, p.Sprintf(i18n.MsgFieldsRequired, strings.Join(missing, ", ")))
	}
	return msgs
}

func agentTypeName(p *message.Printer, t domain.AgentType) string {
	switch t {
	case domain.AgentTypeIndividual:
		return p.Sprintf(i18n.MsgAgentTypeIndividual)
	case domain.AgentTypeCollective:
		return p.Sprintf(i18n.MsgAgentTypeCollective)
	default:
		return t.String()
	}
}

// ValidateOwner владелец обязателен; лимит на владельца проверяется
// только для новой заявки или после смены владельца.
func (v *Validator) ValidateOwner(ctx context.Context, reg *domain.Registration) (domain.ValidationErrors, error) {
	p := i18n.Printer(ctx)
	errs := domain.ValidationErrors{}

	if reg.Owner == nil {
		errs.Add(ErrKeyOwner, p.Sprintf(i18n.MsgOwnerRequired))
		return errs, nil
	}
	if !reg.IsNew() && !reg.OwnerChanged() {
		return errs, nil
	}

	limit := 0
	if reg.Project != nil {
		limit = reg.Project.RegistrationLimitPerOwner
	}
	if limit <= 0 {
		return errs, nil
	}

	count, err := v.counter.CountRegistrationsByOwner(ctx, reg.ProjectID, reg.Owner.ID)
	if err != nil {
		return nil, fmt.Errorf("validator: count owner registrations: %w", err)
	}
	if count >= limit {
		errs.Add(ErrKeyOwner, p.Sprintf(i18n.MsgOwnerLimitExceeded))
	}
	return errs, nil
}
