package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "mapas"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanRegistrationStatus переходы статусов заявок ("registrationID:status").
	RedisChanRegistrationStatus = RedisNamespace + ":registrations:status"

	// RedisChanProjectChanged правила приема проекта изменились (payload: projectID).
	RedisChanProjectChanged = RedisNamespace + ":projects:changed"
)

// ProjectStatusChannel канал событий конкретного проекта, на него подписываются
// внешние обработчики (рассылка писем, выгрузки)
func ProjectStatusChannel(projectID int64) string {
	return fmt.Sprintf("%s:projects:%d:registrations", RedisNamespace, projectID)
}
