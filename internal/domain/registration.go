package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status Статусы State Machine заявки
type Status int16

const (
	StatusDraft       Status = 0
	StatusSent        Status = 1 // совпадает с "enabled" остальных сущностей
	StatusInvalid     Status = 2
	StatusNotApproved Status = 3
	StatusWaitlist    Status = 8
	StatusApproved    Status = 10
)

var statusNames = map[Status]string{
	StatusDraft:       "draft",
	StatusSent:        "sent",
	StatusInvalid:     "invalid",
	StatusNotApproved: "notapproved",
	StatusWaitlist:    "waitlist",
	StatusApproved:    "approved",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return strconv.Itoa(int(s))
}

// ParseStatus принимает имя статуса из URL (/status/{status})
func ParseStatus(name string) (Status, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, name)
}

// Хуки жизненного цикла, имена совместимы с существующими подписчиками
const (
	HookPrefixRegistrationStatus = "entity(Registration).status"
)

// StatusHook возвращает имя хука перехода, например entity(Registration).status(approved)
func StatusHook(s Status) string {
	return HookPrefixRegistrationStatus + "(" + s.String() + ")"
}

const (
	// RegistrationIDPadding количество цифр порядкового номера внутри ID
	RegistrationIDPadding = 5

	// FileGroupZipArchive группа файлов, в которую складывается архив при отправке
	FileGroupZipArchive = "zipArchive"
)

// FormatRegistrationID склеивает ID проекта и порядковый номер: 42 + 7 -> 4200007
func FormatRegistrationID(projectID, seq int64) int64 {
	id, err := strconv.ParseInt(fmt.Sprintf("%d%0*d", projectID, RegistrationIDPadding, seq), 10, 64)
	if err != nil {
		// переполнение int64 возможно только при некорректном projectID
		return 0
	}
	return id
}

// Registration заявка агента на участие в проекте
type Registration struct {
	ID              int64      `json:"id"`
	ProjectID       int64      `json:"project_id"`
	Project         *Project   `json:"-"`
	Owner           *Agent     `json:"-"`
	Category        string     `json:"category"`
	CreateTimestamp time.Time  `json:"create_timestamp"`
	SentTimestamp   *time.Time `json:"sent_timestamp,omitempty"`

	// AgentsData снимок данных агентов на момент отправки
	AgentsData map[string]map[string]any `json:"-"`

	Metadata      map[string]string           `json:"-"`
	Files         map[string]*File            `json:"-"`
	RelatedAgents map[string][]*AgentRelation `json:"-"`

	status       Status
	ownerChanged bool
}

// NewRegistration создает черновик. Владелец по умолчанию — профиль текущего пользователя.
func NewRegistration(project *Project, owner *Agent) *Registration {
	r := &Registration{
		Project:         project,
		CreateTimestamp: time.Now(),
		Metadata:        map[string]string{},
		Files:           map[string]*File{},
		RelatedAgents:   map[string][]*AgentRelation{},
		status:          StatusDraft,
	}
	if project != nil {
		r.ProjectID = project.ID
	}
	if owner != nil {
		r.SetOwner(owner)
	}
	return r
}

// RestoreRegistration собирает сущность из хранилища без отметок об изменениях.
func RestoreRegistration(r *Registration, status Status) *Registration {
	r.status = status
	r.ownerChanged = false
	if r.Metadata == nil {
		r.Metadata = map[string]string{}
	}
	if r.Files == nil {
		r.Files = map[string]*File{}
	}
	if r.RelatedAgents == nil {
		r.RelatedAgents = map[string][]*AgentRelation{}
	}
	return r
}

func (r *Registration) Status() Status { return r.status }

// SetStatus намеренно ничего не делает: статус меняется только через гейт переходов.
func (r *Registration) SetStatus(Status) {}

// ApplyStatus используется гейтом переходов после проверки прав.
func (r *Registration) ApplyStatus(s Status) { r.status = s }

func (r *Registration) SetOwner(a *Agent) {
	r.Owner = a
	r.ownerChanged = true
}

// OwnerChanged true для новых заявок и после смены владельца
func (r *Registration) OwnerChanged() bool { return r.ownerChanged }

// IsNew заявка еще не сохранена
func (r *Registration) IsNew() bool { return r.ID == 0 }

// Number публичный номер заявки
func (r *Registration) Number() string {
	return "on-" + strconv.FormatInt(r.ID, 10)
}

// RelatedAgent первый агент группы или nil
func (r *Registration) RelatedAgent(group string) *AgentRelation {
	rels := r.RelatedAgents[group]
	if len(rels) == 0 {
		return nil
	}
	return rels[0]
}

// EnabledRelatedAgent первая подтвержденная связь группы или nil.
// Неподтвержденные связи не дают прав и не попадают в выгрузки.
func (r *Registration) EnabledRelatedAgent(group string) *AgentRelation {
	for _, rel := range r.RelatedAgents[group] {
		if rel.IsEnabled() {
			return rel
		}
	}
	return nil
}
