package authz_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/service/servicetest"
	apperrors "github.com/jwalitptl/office-portal/pkg/errors"
)

func TestScopeAuthorize(t *testing.T) {
	ctx := context.Background()
	w := servicetest.New(t)

	officeA := w.Office(t, "A")
	officeB := w.Office(t, "B")
	carol := w.User(t, "carol", model.RoleKindManager)
	w.Staff(t, carol.ID, officeA.ID)
	loner := w.User(t, "lee", model.RoleKindManager)
	admin := w.User(t, "root", model.RoleKindAdmin)

	actor, err := w.Guard.Resolve(ctx, carol.ID)
	require.NoError(t, err)
	assert.NoError(t, w.Scope.Authorize(actor, officeA.ID))
	assertDenied(t, w.Scope.Authorize(actor, officeB.ID), apperrors.ReasonOutOfScope)

	actor, err = w.Guard.Resolve(ctx, loner.ID)
	require.NoError(t, err)
	assert.Nil(t, actor.OfficeID())
	assertDenied(t, w.Scope.Authorize(actor, officeA.ID), apperrors.ReasonOutOfScope)

	actor, err = w.Guard.Resolve(ctx, admin.ID)
	require.NoError(t, err)
	assert.NoError(t, w.Scope.Authorize(actor, officeB.ID))
}

func TestScopeFirstMembershipWins(t *testing.T) {
	ctx := context.Background()
	w := servicetest.New(t)

	officeA := w.Office(t, "A")
	officeB := w.Office(t, "B")
	carol := w.User(t, "carol", model.RoleKindManager)
	w.Staff(t, carol.ID, officeA.ID)
	w.Staff(t, carol.ID, officeB.ID)

	office, err := w.Scope.ActorOffice(ctx, carol.ID)
	require.NoError(t, err)
	require.NotNil(t, office)
	assert.Equal(t, officeA.ID, *office)

	actor, err := w.Guard.Resolve(ctx, carol.ID)
	require.NoError(t, err)
	assertDenied(t, w.Scope.Authorize(actor, officeB.ID), apperrors.ReasonOutOfScope)
}

func TestScopeAuthorizeAssigned(t *testing.T) {
	ctx := context.Background()
	w := servicetest.New(t)

	office := w.Office(t, "A")
	passports := w.Service(t, office.ID, "passports")
	licences := w.Service(t, office.ID, "licences")
	bob := w.User(t, "bob", model.RoleKindStaff)
	staff := w.Staff(t, bob.ID, office.ID)
	w.Assign(t, passports.ID, staff.ID)

	actor, err := w.Guard.Resolve(ctx, bob.ID)
	require.NoError(t, err)
	assert.NoError(t, w.Scope.AuthorizeAssigned(ctx, actor, passports))
	assertDenied(t, w.Scope.AuthorizeAssigned(ctx, actor, licences), apperrors.ReasonNotAssigned)

	require.NoError(t, w.Repos.Offices.UnassignStaff(ctx, passports.ID, staff.ID))
	assertDenied(t, w.Scope.AuthorizeAssigned(ctx, actor, passports), apperrors.ReasonNotAssigned)
}

func TestScopeLookupsDistinguishMissingEntities(t *testing.T) {
	ctx := context.Background()
	w := servicetest.New(t)

	_, _, err := w.Scope.Request(ctx, uuid.New())
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	_, _, _, err = w.Scope.Appointment(ctx, uuid.New())
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestScopeOfficeStaff(t *testing.T) {
	ctx := context.Background()
	w := servicetest.New(t)

	officeA := w.Office(t, "A")
	officeB := w.Office(t, "B")
	carol := w.User(t, "carol", model.RoleKindManager)
	w.Staff(t, carol.ID, officeA.ID)
	other := w.Staff(t, w.User(t, "olga", model.RoleKindStaff).ID, officeB.ID)

	actor, err := w.Guard.Resolve(ctx, carol.ID)
	require.NoError(t, err)

	_, err = w.Scope.OfficeStaff(ctx, actor, other.ID, officeA.ID)
	assertDenied(t, err, apperrors.ReasonOutOfScope)

	staff, err := w.Scope.OfficeStaff(ctx, actor, other.ID, officeB.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, staff.ID)
}
