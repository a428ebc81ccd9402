package office_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/service/office"
	"github.com/jwalitptl/office-portal/internal/service/servicetest"
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
	svc   *office.Service
	admin *model.User
	carol *model.User
	a     *model.Office
	b     *model.Office
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	w := servicetest.New(t)
	f := &fixture{World: w, svc: office.NewService(w.Repos.Offices, w.Repos.Users, w.Guard, w.Scope, w.Logger)}
	f.admin = w.User(t, "root", model.RoleKindAdmin)
	f.carol = w.User(t, "carol", model.RoleKindManager)

	var err error
	f.a, err = f.svc.CreateOffice(context.Background(), f.admin.ID, model.CreateOfficeRequest{Name: "A"})
	require.NoError(t, err)
	f.b, err = f.svc.CreateOffice(context.Background(), f.admin.ID, model.CreateOfficeRequest{Name: "B"})
	require.NoError(t, err)
	w.Staff(t, f.carol.ID, f.a.ID)
	return f
}

func TestCreateOfficeIsAdminOnly(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateOffice(context.Background(), f.carol.ID, model.CreateOfficeRequest{Name: "C"})
	assertForbidden(t, err, apperrors.ReasonAdminOnly)
}

func TestManagerRunsOwnOffice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	svc, err := f.svc.CreateService(ctx, f.carol.ID, f.a.ID, model.CreateServiceRequest{Name: "passports"})
	require.NoError(t, err)
	assert.True(t, svc.IsActive)

	_, err = f.svc.CreateService(ctx, f.carol.ID, f.b.ID, model.CreateServiceRequest{Name: "licences"})
	assertForbidden(t, err, apperrors.ReasonOutOfScope)

	bob := f.User(t, "bob", model.RoleKindStaff)
	staff, err := f.svc.AddStaff(ctx, f.carol.ID, f.a.ID, model.AddStaffRequest{UserID: bob.ID})
	require.NoError(t, err)

	_, err = f.svc.AddStaff(ctx, f.carol.ID, f.a.ID, model.AddStaffRequest{UserID: bob.ID})
	assert.Equal(t, apperrors.ReasonDuplicate, apperrors.ReasonOf(err))

	require.NoError(t, f.svc.AssignStaff(ctx, f.carol.ID, svc.ID, staff.ID))
	assigned, err := f.Repos.Offices.IsStaffAssigned(ctx, svc.ID, staff.ID)
	require.NoError(t, err)
	assert.True(t, assigned)

	require.NoError(t, f.svc.UnassignStaff(ctx, f.carol.ID, svc.ID, staff.ID))
	err = f.svc.UnassignStaff(ctx, f.carol.ID, svc.ID, staff.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	members, err := f.svc.ListStaff(ctx, f.carol.ID, f.a.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	_, err = f.svc.ListStaff(ctx, f.carol.ID, f.b.ID)
	assertForbidden(t, err, apperrors.ReasonOutOfScope)
}

func TestAssignStaffFromAnotherOffice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	svc, err := f.svc.CreateService(ctx, f.carol.ID, f.a.ID, model.CreateServiceRequest{Name: "passports"})
	require.NoError(t, err)
	outsider := f.Staff(t, f.User(t, "olga", model.RoleKindStaff).ID, f.b.ID)

	err = f.svc.AssignStaff(ctx, f.carol.ID, svc.ID, outsider.ID)
	assertForbidden(t, err, apperrors.ReasonOutOfScope)

	err = f.svc.AssignStaff(ctx, f.carol.ID, svc.ID, uuid.New())
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestDiscoveryHidesInactiveOffices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.CreateService(ctx, f.admin.ID, f.a.ID, model.CreateServiceRequest{Name: "passports"})
	require.NoError(t, err)
	_, err = f.svc.CreateService(ctx, f.admin.ID, f.b.ID, model.CreateServiceRequest{Name: "licences"})
	require.NoError(t, err)

	_, err = f.svc.SetOfficeActive(ctx, f.carol.ID, f.b.ID, false)
	assertForbidden(t, err, apperrors.ReasonOutOfScope)

	updated, err := f.svc.SetOfficeActive(ctx, f.admin.ID, f.b.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	offices, err := f.svc.ListOffices(ctx, false)
	require.NoError(t, err)
	require.Len(t, offices, 1)
	assert.Equal(t, f.a.ID, offices[0].ID)

	offices, err = f.svc.ListOffices(ctx, true)
	require.NoError(t, err)
	assert.Len(t, offices, 2)

	services, err := f.svc.ListServices(ctx, nil)
	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "passports", services[0].Name)
}
