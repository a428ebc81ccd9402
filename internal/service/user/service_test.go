package user_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/service/servicetest"
	"github.com/jwalitptl/office-portal/internal/service/user"
	apperrors "github.com/jwalitptl/office-portal/pkg/errors"
)

func assertForbidden(t *testing.T, err error, reason string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	assert.Equal(t, reason, apperrors.ReasonOf(err))
}

type fixture struct {
	*servicetest.World
	svc     *user.Service
	officeA *model.Office
	officeB *model.Office
	admin   *model.User
	carol   *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	w := servicetest.New(t)
	f := &fixture{World: w, svc: user.NewService(w.Repos.Users, w.Repos.RBAC, w.Guard, w.Scope, w.Logger)}
	f.officeA = w.Office(t, "A")
	f.officeB = w.Office(t, "B")
	f.admin = w.User(t, "root", model.RoleKindAdmin)
	f.carol = w.User(t, "carol", model.RoleKindManager)
	w.Staff(t, f.carol.ID, f.officeA.ID)
	return f
}

func (f *fixture) roleID(kind model.RoleKind) *uuid.UUID {
	id := f.Roles[kind].ID
	return &id
}

func TestManagerAssignsStaffInOwnOffice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bob := f.User(t, "bob", model.RoleKindCustomer)
	f.Staff(t, bob.ID, f.officeA.ID)

	updated, err := f.svc.AssignRole(ctx, f.carol.ID, bob.ID, f.roleID(model.RoleKindStaff))
	require.NoError(t, err)
	assert.Equal(t, f.Roles[model.RoleKindStaff].ID, *updated.RoleID)

	assert.NoError(t, f.Guard.Check(ctx, bob.ID, model.PermRequestApproveStaff))

	updated, err = f.svc.AssignRole(ctx, f.carol.ID, bob.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, updated.RoleID)
	assertForbidden(t, f.Guard.Check(ctx, bob.ID, model.PermRequestRead), apperrors.ReasonNoRole)
}

func TestManagerCannotElevate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bob := f.User(t, "bob", model.RoleKindStaff)
	f.Staff(t, bob.ID, f.officeA.ID)

	_, err := f.svc.AssignRole(ctx, f.carol.ID, bob.ID, f.roleID(model.RoleKindManager))
	assertForbidden(t, err, apperrors.ReasonRoleElevation)

	_, err = f.svc.AssignRole(ctx, f.carol.ID, bob.ID, f.roleID(model.RoleKindAdmin))
	assertForbidden(t, err, apperrors.ReasonRoleElevation)

	peer := f.User(t, "cora", model.RoleKindManager)
	f.Staff(t, peer.ID, f.officeA.ID)
	_, err = f.svc.AssignRole(ctx, f.carol.ID, peer.ID, f.roleID(model.RoleKindStaff))
	assertForbidden(t, err, apperrors.ReasonRoleElevation)

	updated, err := f.svc.AssignRole(ctx, f.admin.ID, bob.ID, f.roleID(model.RoleKindManager))
	require.NoError(t, err)
	assert.Equal(t, f.Roles[model.RoleKindManager].ID, *updated.RoleID)
}

func TestManagerStaysInOffice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	olga := f.User(t, "olga", model.RoleKindCustomer)
	f.Staff(t, olga.ID, f.officeB.ID)

	_, err := f.svc.AssignRole(ctx, f.carol.ID, olga.ID, f.roleID(model.RoleKindStaff))
	assertForbidden(t, err, apperrors.ReasonOutOfScope)

	citizen := f.User(t, "alice", "")
	_, err = f.svc.AssignRole(ctx, f.carol.ID, citizen.ID, f.roleID(model.RoleKindCustomer))
	assert.NoError(t, err)
}

func TestSetActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bob := f.User(t, "bob", model.RoleKindStaff)

	_, err := f.svc.SetActive(ctx, f.carol.ID, bob.ID, false)
	assertForbidden(t, err, apperrors.ReasonMissingPermission)

	_, err = f.svc.SetActive(ctx, f.admin.ID, f.admin.ID, false)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	updated, err := f.svc.SetActive(ctx, f.admin.ID, bob.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assertForbidden(t, f.Guard.Check(ctx, bob.ID, model.PermRequestRead), apperrors.ReasonInactive)

	_, err = f.svc.SetActive(ctx, f.admin.ID, bob.ID, true)
	require.NoError(t, err)
	assert.NoError(t, f.Guard.Check(ctx, bob.ID, model.PermRequestRead))
}

func TestGet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.User(t, "alice", model.RoleKindCustomer)
	bob := f.User(t, "bob", model.RoleKindStaff)

	self, err := f.svc.Get(ctx, alice.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, self.ID)

	_, err = f.svc.Get(ctx, alice.ID, bob.ID)
	assertForbidden(t, err, apperrors.ReasonMissingPermission)

	_, err = f.svc.Get(ctx, f.carol.ID, bob.ID)
	assert.NoError(t, err)

	_, err = f.svc.Get(ctx, f.admin.ID, uuid.New())
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}
