// Package view HTML-компоненты панели пользователя.
// Разметка лежит в *.templ, *_templ.go генерируется командой templ generate.
package view

//go:generate templ generate

import (
	"context"

	"github.com/xela07ax/mapasculturais/internal/domain"
	"github.com/xela07ax/mapasculturais/internal/i18n"
)

// AgentLink агент с готовыми ссылками
type AgentLink struct {
	Agent     *domain.Agent
	SingleURL string
	EditURL   string
}

// AgentsPanelData содержимое страницы "Мои агенты"
type AgentsPanelData struct {
	CreateURL string
	Enabled   []AgentLink
	Trashed   []AgentLink
}

// tr строка интерфейса на языке запроса
func tr(ctx context.Context, key string) string {
	return i18n.Printer(ctx).Sprintf(key)
}

func agentTypeLabel(ctx context.Context, t domain.AgentType) string {
	switch t {
	case domain.AgentTypeIndividual:
		return tr(ctx, i18n.MsgAgentTypeIndividual)
	case domain.AgentTypeCollective:
		return tr(ctx, i18n.MsgAgentTypeCollective)
	}
	return t.String()
}
