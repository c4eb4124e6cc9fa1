package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Ключи сообщений это исходные английские строки, как их пишет код.
const (
	MsgFieldRequired        = "The field \"%s\" is required."
	MsgFieldsRequired       = "The fields %s are required."
	MsgAgentRequired        = "The agent \"%s\" is required."
	MsgAgentNotConfirmed    = "The agent \"%s\" did not confirm your request."
	MsgAgentWrongType       = "This agent must be of type \"%s\"."
	MsgFileRequired         = "The file \"%s\" is required."
	MsgOwnerRequired        = "The owner agent is required."
	MsgOwnerLimitExceeded   = "The registration limit for this owner agent was exceeded."
	MsgCategoryDefaultTitle = "Category"
	MsgAgentTypeIndividual  = "Individual"
	MsgAgentTypeCollective  = "Collective"
	MsgPanelMyAgents        = "My agents"
	MsgPanelAddAgent        = "Add new agent"
	MsgPanelTabActive       = "Active"
	MsgPanelTabTrash        = "Trash"
	MsgPanelNoAgents        = "You have no registered agents."
	MsgPanelNoTrashedAgents = "You have no agents in the trash."
	MsgPanelEdit            = "Edit"
)

func init() {
	en := language.English
	for _, key := range []string{
		MsgFieldRequired, MsgFieldsRequired, MsgAgentRequired, MsgAgentNotConfirmed,
		MsgAgentWrongType, MsgFileRequired, MsgOwnerRequired, MsgOwnerLimitExceeded,
		MsgCategoryDefaultTitle, MsgAgentTypeIndividual, MsgAgentTypeCollective,
		MsgPanelMyAgents, MsgPanelAddAgent, MsgPanelTabActive, MsgPanelTabTrash,
		MsgPanelNoAgents, MsgPanelNoTrashedAgents, MsgPanelEdit,
	} {
		message.SetString(en, key, key)
	}

	pt := BrazilianPortuguese

	// Validação de inscrição
	message.SetString(pt, MsgFieldRequired, "O campo \"%s\" é obrigatório.")
	message.SetString(pt, MsgFieldsRequired, "Os campos %s são obrigatórios.")
	message.SetString(pt, MsgAgentRequired, "O agente \"%s\" é obrigatório.")
	message.SetString(pt, MsgAgentNotConfirmed, "O agente \"%s\" não confirmou sua solicitação.")
	message.SetString(pt, MsgAgentWrongType, "Este agente deve ser do tipo \"%s\".")
	message.SetString(pt, MsgFileRequired, "O arquivo \"%s\" é obrigatório.")
	message.SetString(pt, MsgOwnerRequired, "O agente responsável é obrigatório.")
	message.SetString(pt, MsgOwnerLimitExceeded, "Foi excedido o limite de inscrições para este agente responsável.")
	message.SetString(pt, MsgCategoryDefaultTitle, "Categoria")
	message.SetString(pt, MsgAgentTypeIndividual, "Individual")
	message.SetString(pt, MsgAgentTypeCollective, "Coletivo")

	// Painel
	message.SetString(pt, MsgPanelMyAgents, "Meus agentes")
	message.SetString(pt, MsgPanelAddAgent, "Adicionar novo agente")
	message.SetString(pt, MsgPanelTabActive, "Ativos")
	message.SetString(pt, MsgPanelTabTrash, "Lixeira")
	message.SetString(pt, MsgPanelNoAgents, "Você não possui nenhum agente cadastrado.")
	message.SetString(pt, MsgPanelNoTrashedAgents, "Você não possui nenhum agente na lixeira.")
	message.SetString(pt, MsgPanelEdit, "Editar")
}
