package audit

import "time"

// Event запись аудита о переходе статуса заявки
type Event struct {
	ID             string    `json:"id"`       // UUID события
	TraceID        string    `json:"trace_id"` // Сквозной ID запроса
	RegistrationID int64     `json:"registration_id"`
	ProjectID      int64     `json:"project_id"`
	ActorID        string    `json:"actor_id"` // пусто для системных переходов
	Hook           string    `json:"hook"`
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
}
