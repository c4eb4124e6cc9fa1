package domain

import "time"

// AgentType тип агента (индивидуальный / коллективный)
type AgentType int

const (
	AgentTypeIndividual AgentType = 1
	AgentTypeCollective AgentType = 2
)

var agentTypeNames = map[AgentType]string{
	AgentTypeIndividual: "Individual",
	AgentTypeCollective: "Coletivo",
}

func (t AgentType) String() string {
	if n, ok := agentTypeNames[t]; ok {
		return n
	}
	return "Unknown"
}

type AgentStatus int16

const (
	AgentStatusEnabled AgentStatus = 1
	AgentStatusDraft   AgentStatus = 0
	AgentStatusTrash   AgentStatus = -10
)

// Agent персона или организация, участвующая в системе
type Agent struct {
	ID               int64       `json:"id"`
	UserID           string      `json:"user_id"`
	Type             AgentType   `json:"type"`
	Name             string      `json:"name"`
	ShortDescription string      `json:"short_description"`
	Status           AgentStatus `json:"status"`

	// Дополнительные поля (documento, emailPrivado, telefone1 ...)
	Properties map[string]any `json:"properties,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Property возвращает значение поля по имени, как оно задано в конфигурации экспорта.
func (a *Agent) Property(name string) any {
	switch name {
	case "id":
		return a.ID
	case "name":
		return a.Name
	case "shortDescription":
		return a.ShortDescription
	case "type":
		return int(a.Type)
	}
	if a.Properties == nil {
		return nil
	}
	return a.Properties[name]
}

// HasProperty true если поле заполнено непустым значением
func (a *Agent) HasProperty(name string) bool {
	switch v := a.Property(name).(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}
