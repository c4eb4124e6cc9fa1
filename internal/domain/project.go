package domain

import (
	"strconv"
	"time"
)

// Project контейнер с правилами приема заявок
type Project struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	OwnerID int64  `json:"owner_id"`
	Owner   *Agent `json:"-"`

	UseRegistrations       bool       `json:"use_registrations"`
	RegistrationFrom       *time.Time `json:"registration_from,omitempty"`
	RegistrationTo         *time.Time `json:"registration_to,omitempty"`
	RegistrationCategories []string   `json:"registration_categories"`
	RegistrationCategTitle string     `json:"registration_categ_title"`
	PublishedRegistrations bool       `json:"published_registrations"`

	// RegistrationLimitPerOwner 0 значит без ограничений
	RegistrationLimitPerOwner int `json:"registration_limit_per_owner"`

	// Metadata хранит режимы ролей агентов (useAgentRelationColetivo и т.п.)
	Metadata map[string]string `json:"metadata,omitempty"`

	FileConfigurations []*FileConfiguration `json:"file_configurations"`
}

// IsRegistrationOpen окно приема открыто, если now попадает в [from, to].
func (p *Project) IsRegistrationOpen(now time.Time) bool {
	if !p.UseRegistrations || p.RegistrationFrom == nil || p.RegistrationTo == nil {
		return false
	}
	return !now.Before(*p.RegistrationFrom) && !now.After(*p.RegistrationTo)
}

// FileConfiguration требование проекта к прикрепляемому файлу
type FileConfiguration struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"project_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// FileGroupName группа, под которой файл хранится у заявки
func (c *FileConfiguration) FileGroupName() string {
	return "rfc_" + strconv.FormatInt(c.ID, 10)
}
