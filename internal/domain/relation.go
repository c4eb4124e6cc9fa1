package domain

import "errors"

// RelationStatus статус связи агента с заявкой.
// Отрицательные значения: агент еще не подтвердил запрос.
type RelationStatus int16

const (
	RelationStatusEnabled RelationStatus = 1
	RelationStatusPending RelationStatus = -5
)

var (
	ErrRelationNotPending = errors.New("agent relation is not pending")
)

// AgentRelation связь заявки с агентом в определенной роли (группе)
type AgentRelation struct {
	ID             int64          `json:"id"`
	RegistrationID int64          `json:"registration_id"`
	Group          string         `json:"group"`
	Agent          *Agent         `json:"agent"`
	Status         RelationStatus `json:"status"`
	HasControl     bool           `json:"has_control"`
}

// IsEnabled агент подтвердил участие
func (r *AgentRelation) IsEnabled() bool {
	return r != nil && r.Status == RelationStatusEnabled
}

// CanAccept проверяет, что подтверждать еще есть что
func (r *AgentRelation) CanAccept() error {
	if r.Status >= 0 {
		return ErrRelationNotPending
	}
	return nil
}
