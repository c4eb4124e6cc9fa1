package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xela07ax/mapasculturais/internal/domain"
	"pgregory.net/rapid"
)

func TestSerialize_PrivacyProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture()
		f.project.PublishedRegistrations = rapid.Bool().Draw(rt, "published")
		status := rapid.SampledFrom(allStatuses).Draw(rt, "status")
		viewers := map[string]*domain.User{
			"guest": nil, "owner": f.ownerUsr, "manager": f.manager, "stranger": f.stranger, "admin": f.admin,
		}
		who := rapid.SampledFrom([]string{"guest", "owner", "manager", "stranger", "admin"}).Draw(rt, "viewer")
		viewer := viewers[who]

		reg := f.seed(status)
		f.attach(reg)
		reg, err := f.store.GetRegistration(context.Background(), reg.ID)
		require.NoError(rt, err)

		out := f.svc.serializer.Serialize(as(viewer), reg)

		canView := who == "owner" || who == "manager" || who == "admin"
		public := status == domain.StatusApproved || status == domain.StatusWaitlist
		if canView || public {
			require.NotNil(rt, out.Owner)
			require.Equal(rt, f.owner.ID, out.Owner.ID)
			require.Contains(rt, out.Files, "rfc_7")
			require.Len(rt, out.AgentRelations, 1)
		} else {
			require.Nil(rt, out.Owner)
			require.Empty(rt, out.Files)
			require.Empty(rt, out.AgentRelations)
		}

		controls := who == "manager" || who == "admin"
		if f.project.PublishedRegistrations || controls {
			require.NotNil(rt, out.Status)
			require.Equal(rt, status, *out.Status)
		} else {
			require.Nil(rt, out.Status)
		}

		require.Equal(rt, reg.Number(), out.Number)
		require.Equal(rt, "http://mapas.test/registration/4200001", out.SingleURL)
		require.Equal(rt, "http://mapas.test/project/42", out.Project.SingleURL)
	})
}

func TestSerialize_RelationsShowFirstEnabledAgent(t *testing.T) {
	f := newFixture()
	reg := f.seed(domain.StatusDraft)
	pending := &domain.Agent{ID: 50, Name: "Pendente"}
	enabled := &domain.Agent{ID: 51, Name: "Confirmado"}
	reg.RelatedAgents["coletivo"] = []*domain.AgentRelation{
		{Agent: pending, Status: domain.RelationStatusPending},
		{Agent: enabled, Status: domain.RelationStatusEnabled},
	}

	out := f.svc.serializer.Serialize(as(f.ownerUsr), reg)
	require.Equal(t, []AgentRelationJSON{{
		Label:       "Coletivo",
		Description: "Agente coletivo sem CNPJ",
		Agent:       &EntityRef{ID: 51, Name: "Confirmado", SingleURL: "http://mapas.test/agent/51"},
	}}, out.AgentRelations)

	reg.RelatedAgents["coletivo"] = reg.RelatedAgents["coletivo"][:1]
	out = f.svc.serializer.Serialize(as(f.ownerUsr), reg)
	require.Nil(t, out.AgentRelations[0].Agent)
}

func TestSerialize_Files(t *testing.T) {
	f := newFixture()
	reg := f.seed(domain.StatusDraft)
	f.attach(reg)
	reg, err := f.store.GetRegistration(context.Background(), reg.ID)
	require.NoError(t, err)

	out := f.svc.serializer.Serialize(as(f.ownerUsr), reg)
	require.Equal(t, FileJSON{
		ID:        "file-on-4200001",
		URL:       "/files/registration/portfolio.pdf",
		Name:      "portfolio.pdf",
		DeleteURL: "http://mapas.test/v1/registrations/4200001/files/rfc_7",
	}, out.Files["rfc_7"])
}
