package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
)

func TestSchemaEnforcesCaseInsensitiveIdentity(t *testing.T) {
	assert.Regexp(t, regexp.MustCompile(`CREATE UNIQUE INDEX IF NOT EXISTS \w+\s+ON users \(LOWER\(email\)\)`), schema)
	assert.Regexp(t, regexp.MustCompile(`CREATE UNIQUE INDEX IF NOT EXISTS \w+\s+ON users \(LOWER\(username\)\)`), schema)
	assert.NotRegexp(t, regexp.MustCompile(`(?m)^\s+email\s+TEXT UNIQUE`), schema)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	mock, base, _ := setupMockDB(t)
	repo := NewUserRepository(base)
	email := "ALICE@example.com"

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_lower_uniq"})

	err := repo.Create(context.Background(), &model.User{Phone: "+15550002", Email: &email})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetPasswordHash(t *testing.T) {
	mock, base, _ := setupMockDB(t)
	repo := NewUserRepository(base)
	id := uuid.New()

	mock.ExpectExec(`UPDATE users SET password_hash = \$1`).
		WithArgs("new-hash", id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetPasswordHash(context.Background(), id, "new-hash"))

	mock.ExpectExec(`UPDATE users SET password_hash = \$1`).
		WithArgs("new-hash", id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.SetPasswordHash(context.Background(), id, "new-hash"), repository.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
