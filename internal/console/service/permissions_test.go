package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xela07ax/mapasculturais/internal/access"
	"github.com/xela07ax/mapasculturais/internal/domain"
)

type deniedCounter struct {
	nopObserver
	denied []string
}

func (d *deniedCounter) ObserveDenied(action string) { d.denied = append(d.denied, action) }

func TestPermissions_Matrix(t *testing.T) {
	f := newFixture()
	reg := f.seed(domain.StatusDraft)
	f.attach(reg)
	reg, _ = f.store.GetRegistration(context.Background(), reg.ID)

	tests := []struct {
		name   string
		user   *domain.User
		action string
		want   bool
	}{
		{"guest cannot view", nil, ActionView, false},
		{"owner views", f.ownerUsr, ActionView, true},
		{"project manager views", f.manager, ActionView, true},
		{"stranger cannot view", f.stranger, ActionView, false},
		{"admin views", f.admin, ActionView, true},
		{"owner modifies draft", f.ownerUsr, ActionModify, true},
		{"manager cannot modify", f.manager, ActionModify, false},
		{"owner sends", f.ownerUsr, ActionSend, true},
		{"manager cannot send", f.manager, ActionSend, false},
		{"admin sends", f.admin, ActionSend, true},
		{"owner removes", f.ownerUsr, ActionRemove, true},
		{"stranger cannot remove", f.stranger, ActionRemove, false},
		{"draft status is not changeable", f.manager, ActionChangeStatus, false},
		{"unknown action", f.admin, "publish", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, f.perms.Can(context.Background(), tt.user, tt.action, reg))
		})
	}
}

func TestPermissions_ChangeStatus(t *testing.T) {
	f := newFixture()
	reg := f.seed(domain.StatusSent)

	require.True(t, f.perms.Can(context.Background(), f.manager, ActionChangeStatus, reg))
	require.True(t, f.perms.Can(context.Background(), f.admin, ActionChangeStatus, reg))
	require.False(t, f.perms.Can(context.Background(), f.ownerUsr, ActionChangeStatus, reg))
	require.False(t, f.perms.Can(context.Background(), nil, ActionChangeStatus, reg))
	require.False(t, f.perms.Can(context.Background(), f.ownerUsr, ActionModify, reg), "sent registrations are read-only")
}

func TestPermissions_SendRequiresOpenWindow(t *testing.T) {
	f := newFixture()
	reg := f.seed(domain.StatusDraft)
	f.attach(reg)
	reg, _ = f.store.GetRegistration(context.Background(), reg.ID)

	f.perms.now = func() time.Time { return f.project.RegistrationTo.Add(time.Minute) }
	require.False(t, f.perms.Can(context.Background(), f.ownerUsr, ActionSend, reg))

	f.perms.now = func() time.Time { return *f.project.RegistrationTo }
	require.True(t, f.perms.Can(context.Background(), f.ownerUsr, ActionSend, reg))
}

func TestPermissions_Create(t *testing.T) {
	f := newFixture()
	reg := domain.NewRegistration(f.project, f.owner)

	require.True(t, f.perms.Can(context.Background(), f.ownerUsr, ActionCreate, reg))
	require.False(t, f.perms.Can(context.Background(), f.stranger, ActionCreate, reg))
	require.False(t, f.perms.Can(context.Background(), nil, ActionCreate, reg))

	f.project.UseRegistrations = false
	require.False(t, f.perms.Can(context.Background(), f.admin, ActionCreate, reg))
}

func TestPermissions_ControlThroughRelation(t *testing.T) {
	f := newFixture()
	reg := f.seed(domain.StatusDraft)
	strangerAgent := f.store.agents[30]
	rel := &domain.AgentRelation{Group: "coletivo", Agent: strangerAgent, Status: domain.RelationStatusPending, HasControl: true}
	reg.RelatedAgents["coletivo"] = []*domain.AgentRelation{rel}

	require.False(t, f.perms.Can(context.Background(), f.stranger, ActionView, reg), "pending relation grants no view")
	require.False(t, CanControlRegistration(f.stranger, reg), "pending relation grants no control")

	rel.Status = domain.RelationStatusEnabled
	require.True(t, f.perms.Can(context.Background(), f.stranger, ActionView, reg))
	require.True(t, CanControlRegistration(f.stranger, reg))

	rel.HasControl = false
	require.False(t, CanControlRegistration(f.stranger, reg))
}

func TestPermissions_CheckSuspendedAndObserved(t *testing.T) {
	f := newFixture()
	obs := &deniedCounter{}
	perms := NewPermissions(NewValidator(f.defs, f.store), obs)
	reg := f.seed(domain.StatusDraft)

	ctx := as(f.stranger)
	err := perms.Check(ctx, ActionModify, reg)
	requireDenied(t, err, ActionModify)
	require.Equal(t, []string{ActionModify}, obs.denied)

	restore := access.ScopeFrom(ctx).Suspend()
	require.NoError(t, perms.Check(ctx, ActionModify, reg))
	restore()
	require.Error(t, perms.Check(ctx, ActionModify, reg))
}

func TestCanControlProject(t *testing.T) {
	f := newFixture()
	require.True(t, CanControlProject(f.manager, f.project))
	require.True(t, CanControlProject(f.admin, f.project))
	require.False(t, CanControlProject(f.ownerUsr, f.project))
	require.False(t, CanControlProject(f.manager, nil))
	require.False(t, CanControlAgent(f.manager, &domain.Agent{ID: 99}), "agent without user")
}
