package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
)

type rbacRepository struct {
	BaseRepository
}

func NewRBACRepository(base BaseRepository) repository.RBACRepository {
	return &rbacRepository{base}
}

const roleColumns = `id, name, kind, description, office_id, created_at, updated_at`

func (r *rbacRepository) CreatePermission(ctx context.Context, permission *model.Permission) error {
	query := `
		INSERT INTO permissions (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if permission.ID == uuid.Nil {
		permission.ID = uuid.New()
	}
	now := time.Now()
	permission.CreatedAt = now
	permission.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		permission.ID,
		permission.Name,
		permission.Description,
		permission.CreatedAt,
		permission.UpdatedAt,
	)
	return mapError(err, "create permission")
}

func (r *rbacRepository) GetPermissionByName(ctx context.Context, name string) (*model.Permission, error) {
	query := `SELECT id, name, description, created_at, updated_at FROM permissions WHERE name = $1`
	var p model.Permission
	err := r.read(ctx, "get_permission", func() error {
		return r.db.GetContext(ctx, &p, query, name)
	})
	if err != nil {
		return nil, mapError(err, "get permission")
	}
	return &p, nil
}

func (r *rbacRepository) ListPermissions(ctx context.Context) ([]*model.Permission, error) {
	query := `SELECT id, name, description, created_at, updated_at FROM permissions ORDER BY name`
	var permissions []*model.Permission
	err := r.read(ctx, "list_permissions", func() error {
		permissions = nil
		return r.db.SelectContext(ctx, &permissions, query)
	})
	if err != nil {
		return nil, mapError(err, "list permissions")
	}
	return permissions, nil
}

func (r *rbacRepository) CreateRole(ctx context.Context, role *model.Role) error {
	query := `
		INSERT INTO roles (id, name, kind, description, office_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	now := time.Now()
	role.CreatedAt = now
	role.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		role.ID,
		role.Name,
		role.Kind,
		role.Description,
		role.OfficeID,
		role.CreatedAt,
		role.UpdatedAt,
	)
	return mapError(err, "create role")
}

func (r *rbacRepository) GetRole(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE id = $1`
	var role model.Role
	err := r.read(ctx, "get_role", func() error {
		return r.db.GetContext(ctx, &role, query, id)
	})
	if err != nil {
		return nil, mapError(err, "get role")
	}
	return &role, nil
}

func (r *rbacRepository) GetRoleByName(ctx context.Context, name string, officeID *uuid.UUID) (*model.Role, error) {
	query := `
		SELECT ` + roleColumns + `
		FROM roles
		WHERE LOWER(name) = LOWER($1)
		AND office_id IS NOT DISTINCT FROM $2
	`
	var role model.Role
	err := r.read(ctx, "get_role_by_name", func() error {
		return r.db.GetContext(ctx, &role, query, name, officeID)
	})
	if err != nil {
		return nil, mapError(err, "get role by name")
	}
	return &role, nil
}

func (r *rbacRepository) ListRoles(ctx context.Context, officeID *uuid.UUID) ([]*model.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles ORDER BY created_at`
	var args []interface{}
	if officeID != nil {
		query = `
			SELECT ` + roleColumns + `
			FROM roles
			WHERE office_id IS NULL OR office_id = $1
			ORDER BY created_at
		`
		args = append(args, *officeID)
	}

	var roles []*model.Role
	err := r.read(ctx, "list_roles", func() error {
		roles = nil
		return r.db.SelectContext(ctx, &roles, query, args...)
	})
	if err != nil {
		return nil, mapError(err, "list roles")
	}
	return roles, nil
}

func (r *rbacRepository) ListRolePermissionNames(ctx context.Context, roleID uuid.UUID) ([]string, error) {
	query := `
		SELECT p.name
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.name
	`
	var names []string
	err := r.read(ctx, "list_role_permissions", func() error {
		names = nil
		return r.db.SelectContext(ctx, &names, query, roleID)
	})
	if err != nil {
		return nil, mapError(err, "list role permissions")
	}
	return names, nil
}

func (r *rbacRepository) GrantPermission(ctx context.Context, roleID uuid.UUID, permission string) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var permissionID uuid.UUID
		err := tx.GetContext(ctx, &permissionID, `SELECT id FROM permissions WHERE name = $1`, permission)
		if err != nil {
			return mapError(err, "get permission")
		}

		// Lock the role so concurrent grants and revokes apply one at a time.
		var lockedID uuid.UUID
		err = tx.GetContext(ctx, &lockedID, `SELECT id FROM roles WHERE id = $1 FOR UPDATE`, roleID)
		if err != nil {
			return mapError(err, "lock role")
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, roleID, permissionID)
		if err != nil {
			return fmt.Errorf("failed to grant permission: %w", err)
		}

		_, err = tx.ExecContext(ctx, `UPDATE roles SET updated_at = NOW() WHERE id = $1`, roleID)
		return mapError(err, "touch role")
	})
}

func (r *rbacRepository) RevokePermission(ctx context.Context, roleID uuid.UUID, permission string) error {
	query := `
		DELETE FROM role_permissions
		WHERE role_id = $1
		AND permission_id = (SELECT id FROM permissions WHERE name = $2)
	`
	result, err := r.db.ExecContext(ctx, query, roleID, permission)
	if err != nil {
		return fmt.Errorf("failed to revoke permission: %w", err)
	}
	return requireRows(result, "revoke permission")
}
