package domain

// RelationUse режим использования роли агента в проекте.
// Значение хранится в метаданных проекта под именем MetadataName.
type RelationUse string

const (
	UseDontUse  RelationUse = "dontUse"
	UseRequired RelationUse = "required"
	UseOptional RelationUse = "optional"
)

// OwnerGroup группа владельца заявки
const OwnerGroup = "owner"

// AgentRelationDefinition описывает роль агента в заявке (владелец, коллектив, учреждение).
// Набор ролей задается конфигурацией инсталляции.
type AgentRelationDefinition struct {
	GroupName          string    `mapstructure:"group_name" json:"group_name"`
	MetadataName       string    `mapstructure:"metadata_name" json:"metadata_name"`
	Label              string    `mapstructure:"label" json:"label"`
	Description        string    `mapstructure:"description" json:"description"`
	AgentType          AgentType `mapstructure:"agent_type" json:"agent_type"`
	RequiredProperties []string  `mapstructure:"required_properties" json:"required_properties"`
}

// IsOwner роль владельца обязательна всегда и не берется из метаданных проекта
func (d AgentRelationDefinition) IsOwner() bool {
	return d.GroupName == OwnerGroup
}

// Use определяет режим роли для проекта.
// Если значение не задано или некорректно, роль не используется.
func (d AgentRelationDefinition) Use(p *Project) RelationUse {
	if d.IsOwner() {
		return UseRequired
	}
	if p == nil || p.Metadata == nil {
		return UseDontUse
	}
	switch v := RelationUse(p.Metadata[d.MetadataName]); v {
	case UseRequired, UseOptional, UseDontUse:
		return v
	default:
		return UseDontUse
	}
}
