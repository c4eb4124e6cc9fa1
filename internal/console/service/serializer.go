package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/xela07ax/mapasculturais/internal/access"
	"github.com/xela07ax/mapasculturais/internal/domain"
)

type EntityRef struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SingleURL string `json:"singleUrl"`
}

type AgentRelationJSON struct {
	Label       string     `json:"label"`
	Description string     `json:"description"`
	Agent       *EntityRef `json:"agent"`
}

type FileJSON struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Name      string `json:"name"`
	DeleteURL string `json:"deleteUrl"`
}

// RegistrationJSON внешнее представление заявки для конкретного зрителя
type RegistrationJSON struct {
	ID             int64               `json:"id"`
	Project        EntityRef           `json:"project"`
	Number         string              `json:"number"`
	Category       string              `json:"category"`
	Owner          *EntityRef          `json:"owner"`
	AgentRelations []AgentRelationJSON `json:"agentRelations"`
	Files          map[string]FileJSON `json:"files"`
	SingleURL      string              `json:"singleUrl"`
	EditURL        string              `json:"editUrl"`
	Status         *domain.Status      `json:"status,omitempty"`
}

// URLBuilder ссылки на страницы сущностей
type URLBuilder struct {
	base string
}

func NewURLBuilder(baseURL string) URLBuilder {
	return URLBuilder{base: strings.TrimRight(baseURL, "/")}
}

func (b URLBuilder) entity(kind string, id int64) string {
	return b.base + "/" + kind + "/" + strconv.FormatInt(id, 10)
}

func (b URLBuilder) Registration(id int64) string { return b.entity("registration", id) }
func (b URLBuilder) Project(id int64) string      { return b.entity("project", id) }
func (b URLBuilder) Agent(id int64) string        { return b.entity("agent", id) }
func (b URLBuilder) AgentEdit(id int64) string    { return b.entity("agent", id) + "/edit" }
func (b URLBuilder) AgentCreate() string          { return b.base + "/agent/create" }

func (b URLBuilder) FileDelete(registrationID int64, group string) string {
	return b.base + "/v1/registrations/" + strconv.FormatInt(registrationID, 10) + "/files/" + group
}

type Serializer struct {
	perms       *Permissions
	definitions []domain.AgentRelationDefinition
	files       FileStorage
	urls        URLBuilder
}

func NewSerializer(perms *Permissions, definitions []domain.AgentRelationDefinition, files FileStorage, urls URLBuilder) *Serializer {
	return &Serializer{perms: perms, definitions: definitions, files: files, urls: urls}
}

// Serialize статус раскрывается, если результаты опубликованы или зритель контролирует проект;
// роли и файлы, если зритель может просматривать заявку или она одобрена / в листе ожидания.
// Иначе владелец скрывается.
func (s *Serializer) Serialize(ctx context.Context, reg *domain.Registration) *RegistrationJSON {
	viewer := access.ActorFrom(ctx)

	out := &RegistrationJSON{
		ID:             reg.ID,
		Number:         reg.Number(),
		Category:       reg.Category,
		AgentRelations: []AgentRelationJSON{},
		Files:          map[string]FileJSON{},
		SingleURL:      s.urls.Registration(reg.ID),
		EditURL:        s.urls.Registration(reg.ID),
	}
	if p := reg.Project; p != nil {
		out.Project = EntityRef{ID: p.ID, Name: p.Name, SingleURL: s.urls.Project(p.ID)}
		if p.PublishedRegistrations || CanControlProject(viewer, p) {
			st := reg.Status()
			out.Status = &st
		}
	}

	st := reg.Status()
	if !s.perms.Can(ctx, viewer, ActionView, reg) && st != domain.StatusApproved && st != domain.StatusWaitlist {
		return out
	}

	out.Owner = s.agentRef(reg.Owner)
	for _, def := range s.definitions {
		if def.IsOwner() {
			continue
		}
		out.AgentRelations = append(out.AgentRelations, AgentRelationJSON{
			Label:       def.Label,
			Description: def.Description,
			Agent:       s.agentRef(enabledAgent(reg, def.GroupName)),
		})
	}
	for group, f := range reg.Files {
		if f == nil {
			continue
		}
		out.Files[group] = FileJSON{
			ID:        f.ID,
			URL:       s.files.URL(f),
			Name:      f.Name,
			DeleteURL: s.urls.FileDelete(reg.ID, group),
		}
	}
	return out
}

func (s *Serializer) agentRef(a *domain.Agent) *EntityRef {
	if a == nil {
		return nil
	}
	return &EntityRef{ID: a.ID, Name: a.Name, SingleURL: s.urls.Agent(a.ID)}
}

func enabledAgent(reg *domain.Registration, group string) *domain.Agent {
	if rel := reg.EnabledRelatedAgent(group); rel != nil {
		return rel.Agent
	}
	return nil
}
