package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xela07ax/mapasculturais/internal/domain"
	"pgregory.net/rapid"
)

type countStub struct {
	n     int
	calls int
}

func (c *countStub) CountRegistrationsByOwner(context.Context, int64, int64) (int, error) {
	c.calls++
	return c.n, nil
}

func validRegistration() *domain.Registration {
	project := &domain.Project{
		ID:       1,
		Metadata: map[string]string{},
		FileConfigurations: []*domain.FileConfiguration{
			{ID: 3, ProjectID: 1, Title: "Orçamento", Required: true},
			{ID: 4, ProjectID: 1, Title: "Fotos"},
		},
	}
	owner := &domain.Agent{ID: 1, Type: domain.AgentTypeIndividual, Name: "Ana",
		Properties: map[string]any{"documento": "1", "emailPrivado": "a@b.c"}}
	reg := domain.RestoreRegistration(&domain.Registration{ID: 100001, ProjectID: 1, Project: project, Owner: owner}, domain.StatusDraft)
	reg.Files["rfc_3"] = &domain.File{ID: "f", Group: "rfc_3"}
	return reg
}

func TestValidate_ValidRegistration(t *testing.T) {
	v := NewValidator(testDefinitions, &countStub{})
	require.Empty(t, v.Validate(context.Background(), validRegistration()))
}

func TestValidate_Category(t *testing.T) {
	v := NewValidator(testDefinitions, &countStub{})
	reg := validRegistration()
	reg.Project.RegistrationCategories = []string{"Música", "Teatro"}

	errs := v.Validate(context.Background(), reg)
	require.Equal(t, []string{`O campo "Categoria" é obrigatório.`}, errs[ErrKeyCategory])

	reg.Project.RegistrationCategTitle = "Linguagem"
	errs = v.Validate(context.Background(), reg)
	require.Equal(t, []string{`O campo "Linguagem" é obrigatório.`}, errs[ErrKeyCategory])

	reg.Category = "Teatro"
	require.Empty(t, v.Validate(context.Background(), reg))
}

func TestValidate_RequiredFile(t *testing.T) {
	v := NewValidator(testDefinitions, &countStub{})
	reg := validRegistration()
	delete(reg.Files, "rfc_3")

	errs := v.Validate(context.Background(), reg)
	require.Equal(t, domain.ValidationErrors{
		FileErrorKey(3): {`O arquivo "Orçamento" é obrigatório.`},
	}, errs)
}

func TestValidate_MissingOwner(t *testing.T) {
	v := NewValidator(testDefinitions, &countStub{})
	reg := validRegistration()
	reg.Owner = nil

	errs := v.Validate(context.Background(), reg)
	require.Equal(t, []string{`O agente "Agente responsável" é obrigatório.`}, errs[AgentErrorKey(domain.OwnerGroup)])
}

func TestValidate_OwnerProperties(t *testing.T) {
	v := NewValidator(testDefinitions, &countStub{})

	reg := validRegistration()
	reg.Owner.Properties["documento"] = ""
	errs := v.Validate(context.Background(), reg)
	require.Equal(t, []string{`O campo "{{documento}}" é obrigatório.`}, errs[AgentErrorKey(domain.OwnerGroup)])

	reg.Owner.Properties = nil
	errs = v.Validate(context.Background(), reg)
	require.Equal(t, []string{`Os campos {{documento}}, {{emailPrivado}} são obrigatórios.`}, errs[AgentErrorKey(domain.OwnerGroup)])
}

func TestValidate_OwnerPropertiesProperty(t *testing.T) {
	v := NewValidator(testDefinitions, &countStub{})
	required := testDefinitions[0].RequiredProperties

	rapid.Check(t, func(rt *rapid.T) {
		reg := validRegistration()
		reg.Owner.Properties = map[string]any{}
		filled := 0
		for _, prop := range required {
			if rapid.Bool().Draw(rt, prop) {
				reg.Owner.Properties[prop] = rapid.StringMatching(`[a-z0-9]{1,8}`).Draw(rt, prop+"-value")
				filled++
			}
		}

		errs := v.Validate(context.Background(), reg)
		_, hasErr := errs[AgentErrorKey(domain.OwnerGroup)]
		require.Equal(rt, filled < len(required), hasErr)
	})
}

func TestValidate_RoleModes(t *testing.T) {
	v := NewValidator(testDefinitions, &countStub{})
	key := AgentErrorKey("coletivo")

	reg := validRegistration()
	require.NotContains(t, v.Validate(context.Background(), reg), key, "dontUse by default")

	reg.Project.Metadata["useAgentRelationColetivo"] = string(domain.UseOptional)
	require.NotContains(t, v.Validate(context.Background(), reg), key)

	reg.Project.Metadata["useAgentRelationColetivo"] = string(domain.UseRequired)
	require.Equal(t, []string{`O agente "Coletivo" é obrigatório.`}, v.Validate(context.Background(), reg)[key])
}

func TestValidate_RelatedAgent(t *testing.T) {
	v := NewValidator(testDefinitions, &countStub{})
	key := AgentErrorKey("coletivo")

	reg := validRegistration()
	reg.Project.Metadata["useAgentRelationColetivo"] = string(domain.UseOptional)

	individual := &domain.Agent{ID: 2, Type: domain.AgentTypeIndividual, Name: "Bia"}
	reg.RelatedAgents["coletivo"] = []*domain.AgentRelation{{Group: "coletivo", Agent: individual, Status: domain.RelationStatusPending}}
	require.Equal(t, []string{`O agente "Bia" não confirmou sua solicitação.`}, v.Validate(context.Background(), reg)[key])

	reg.RelatedAgents["coletivo"][0].Status = domain.RelationStatusEnabled
	require.Equal(t, []string{
		`Este agente deve ser do tipo "Coletivo".`,
		`O campo "{{emailPrivado}}" é obrigatório.`,
	}, v.Validate(context.Background(), reg)[key])

	individual.Type = domain.AgentTypeCollective
	individual.Properties = map[string]any{"emailPrivado": "bia@example.org"}
	require.NotContains(t, v.Validate(context.Background(), reg), key)
}

func TestValidateOwner(t *testing.T) {
	counter := &countStub{n: 2}
	v := NewValidator(testDefinitions, counter)
	project := &domain.Project{ID: 1, RegistrationLimitPerOwner: 2}
	owner := &domain.Agent{ID: 1}

	errs, err := v.ValidateOwner(context.Background(), domain.NewRegistration(project, nil))
	require.NoError(t, err)
	require.Contains(t, errs, ErrKeyOwner)
	require.Zero(t, counter.calls)

	errs, err = v.ValidateOwner(context.Background(), domain.NewRegistration(project, owner))
	require.NoError(t, err)
	require.Equal(t, []string{"Foi excedido o limite de inscrições para este agente responsável."}, errs[ErrKeyOwner])

	counter.n = 1
	errs, err = v.ValidateOwner(context.Background(), domain.NewRegistration(project, owner))
	require.NoError(t, err)
	require.Empty(t, errs)

	// сохраненная заявка без смены владельца
	counter.n, counter.calls = 5, 0
	saved := domain.RestoreRegistration(&domain.Registration{ID: 100001, Project: project, Owner: owner}, domain.StatusDraft)
	errs, err = v.ValidateOwner(context.Background(), saved)
	require.NoError(t, err)
	require.Empty(t, errs)
	require.Zero(t, counter.calls)

	// без лимита счетчик не нужен
	project.RegistrationLimitPerOwner = 0
	errs, err = v.ValidateOwner(context.Background(), domain.NewRegistration(project, owner))
	require.NoError(t, err)
	require.Empty(t, errs)
	require.Zero(t, counter.calls)
}
