package authz_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/service/servicetest"
	apperrors "github.com/jwalitptl/office-portal/pkg/errors"
)

func assertDenied(t *testing.T, err error, reason string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	assert.Equal(t, reason, apperrors.ReasonOf(err))
}

func TestGuardCheck(t *testing.T) {
	ctx := context.Background()
	w := servicetest.New(t)

	staff := w.User(t, "bob", model.RoleKindStaff)
	noRole := w.User(t, "eve", "")
	inactive := w.User(t, "mallory", model.RoleKindManager)
	require.NoError(t, w.Repos.Users.SetActive(ctx, inactive.ID, false))

	tests := []struct {
		name       string
		userID     uuid.UUID
		permission string
		reason     string
	}{
		{"granted", staff.ID, model.PermRequestApproveStaff, ""},
		{"missing permission", staff.ID, model.PermRequestApproveManager, apperrors.ReasonMissingPermission},
		{"no role", noRole.ID, model.PermRequestRead, apperrors.ReasonNoRole},
		{"inactive", inactive.ID, model.PermRequestRead, apperrors.ReasonInactive},
		{"unknown user", uuid.New(), model.PermRequestRead, apperrors.ReasonNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.Guard.Check(ctx, tt.userID, tt.permission)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			assertDenied(t, err, tt.reason)
		})
	}
}

func TestGuardSeesGrantsImmediately(t *testing.T) {
	ctx := context.Background()
	w := servicetest.New(t)
	staff := w.User(t, "bob", model.RoleKindStaff)
	roleID := w.Roles[model.RoleKindStaff].ID

	assertDenied(t, w.Guard.Check(ctx, staff.ID, model.PermRequestDelete), apperrors.ReasonMissingPermission)

	require.NoError(t, w.Repos.RBAC.GrantPermission(ctx, roleID, model.PermRequestDelete))
	assert.NoError(t, w.Guard.Check(ctx, staff.ID, model.PermRequestDelete))

	require.NoError(t, w.Repos.RBAC.RevokePermission(ctx, roleID, model.PermRequestDelete))
	assertDenied(t, w.Guard.Check(ctx, staff.ID, model.PermRequestDelete), apperrors.ReasonMissingPermission)
}

func TestGuardSeesDeactivationImmediately(t *testing.T) {
	ctx := context.Background()
	w := servicetest.New(t)
	carol := w.User(t, "carol", model.RoleKindManager)

	require.NoError(t, w.Guard.Check(ctx, carol.ID, model.PermRequestApproveManager))
	require.NoError(t, w.Repos.Users.SetActive(ctx, carol.ID, false))
	assertDenied(t, w.Guard.Check(ctx, carol.ID, model.PermRequestApproveManager), apperrors.ReasonInactive)
}

func TestGuardCheckAllAndAny(t *testing.T) {
	ctx := context.Background()
	w := servicetest.New(t)
	manager := w.User(t, "carol", model.RoleKindManager)

	assert.NoError(t, w.Guard.CheckAll(ctx, manager.ID, model.PermRequestRead, model.PermRequestApproveManager))

	err := w.Guard.CheckAll(ctx, manager.ID, model.PermRequestRead, model.PermRoleManage)
	assertDenied(t, err, apperrors.ReasonMissingPermission)
	assert.Contains(t, err.Error(), model.PermRoleManage)

	assert.NoError(t, w.Guard.CheckAny(ctx, manager.ID, model.PermRoleManage, model.PermRoleAssign))
	assertDenied(t, w.Guard.CheckAny(ctx, manager.ID, model.PermRoleManage, model.PermUserManage), apperrors.ReasonMissingPermission)
}

func TestGuardInfersKindFromRoleName(t *testing.T) {
	ctx := context.Background()
	w := servicetest.New(t)

	officeID := uuid.New()
	role := &model.Role{Name: "ADMIN", OfficeID: &officeID}
	require.NoError(t, w.Repos.RBAC.CreateRole(ctx, role))
	u := w.User(t, "root", "")
	require.NoError(t, w.Repos.Users.SetRole(ctx, u.ID, &role.ID))

	actor, err := w.Guard.Resolve(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleKindAdmin, actor.Kind)
	assert.True(t, actor.IsAdmin())
}

func TestGuardCountsDenials(t *testing.T) {
	ctx := context.Background()
	w := servicetest.New(t)
	u := w.User(t, "eve", "")

	denials := w.Metrics.AuthzDenials.WithLabelValues(apperrors.ReasonNoRole)
	before := testutil.ToFloat64(denials)

	_ = w.Guard.Check(ctx, u.ID, model.PermRequestRead)

	assert.Equal(t, before+1, testutil.ToFloat64(denials))
}
