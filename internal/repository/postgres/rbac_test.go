package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
)

func TestListRolePermissionNames(t *testing.T) {
	mock, base, _ := setupMockDB(t)
	repo := NewRBACRepository(base)
	roleID := uuid.New()

	mock.ExpectQuery(`SELECT p.name\s+FROM role_permissions rp`).
		WithArgs(roleID).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).
			AddRow(model.PermRequestApproveStaff).
			AddRow(model.PermRequestRead))

	names, err := repo.ListRolePermissionNames(context.Background(), roleID)
	require.NoError(t, err)
	assert.Equal(t, []string{model.PermRequestApproveStaff, model.PermRequestRead}, names)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantPermissionLocksRole(t *testing.T) {
	mock, base, _ := setupMockDB(t)
	repo := NewRBACRepository(base)
	roleID, permissionID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM permissions WHERE name = \$1`).
		WithArgs(model.PermRequestRead).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(permissionID.String()))
	mock.ExpectQuery(`SELECT id FROM roles WHERE id = \$1 FOR UPDATE`).
		WithArgs(roleID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(roleID.String()))
	mock.ExpectExec(`INSERT INTO role_permissions`).
		WithArgs(roleID, permissionID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE roles SET updated_at = NOW\(\)`).
		WithArgs(roleID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.GrantPermission(context.Background(), roleID, model.PermRequestRead))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantUnknownPermission(t *testing.T) {
	mock, base, _ := setupMockDB(t)
	repo := NewRBACRepository(base)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM permissions`).
		WithArgs("nope:nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := repo.GrantPermission(context.Background(), uuid.New(), "nope:nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeMissingGrant(t *testing.T) {
	mock, base, _ := setupMockDB(t)
	repo := NewRBACRepository(base)
	roleID := uuid.New()

	mock.ExpectExec(`DELETE FROM role_permissions`).
		WithArgs(roleID, model.PermRequestRead).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RevokePermission(context.Background(), roleID, model.PermRequestRead)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePermissionDuplicate(t *testing.T) {
	mock, base, _ := setupMockDB(t)
	repo := NewRBACRepository(base)

	mock.ExpectExec(`INSERT INTO permissions`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.CreatePermission(context.Background(), &model.Permission{Name: model.PermRequestRead})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRolesForOffice(t *testing.T) {
	mock, base, _ := setupMockDB(t)
	repo := NewRBACRepository(base)
	officeID := uuid.New()

	mock.ExpectQuery(`WHERE office_id IS NULL OR office_id = \$1`).
		WithArgs(officeID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "kind", "description", "office_id", "created_at", "updated_at"}))

	roles, err := repo.ListRoles(context.Background(), &officeID)
	require.NoError(t, err)
	assert.Empty(t, roles)
	require.NoError(t, mock.ExpectationsWereMet())
}
