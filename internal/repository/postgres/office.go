package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
)

type officeRepository struct {
	BaseRepository
}

func NewOfficeRepository(base BaseRepository) repository.OfficeRepository {
	return &officeRepository{base}
}

func (r *officeRepository) CreateOffice(ctx context.Context, office *model.Office) error {
	query := `
		INSERT INTO offices (id, name, address, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if office.ID == uuid.Nil {
		office.ID = uuid.New()
	}
	now := time.Now()
	office.CreatedAt = now
	office.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		office.ID, office.Name, office.Address, office.IsActive, office.CreatedAt, office.UpdatedAt)
	return mapError(err, "create office")
}

func (r *officeRepository) GetOffice(ctx context.Context, id uuid.UUID) (*model.Office, error) {
	query := `SELECT id, name, address, is_active, created_at, updated_at FROM offices WHERE id = $1`
	var office model.Office
	err := r.read(ctx, "get_office", func() error {
		return r.db.GetContext(ctx, &office, query, id)
	})
	if err != nil {
		return nil, mapError(err, "get office")
	}
	return &office, nil
}

func (r *officeRepository) ListOffices(ctx context.Context, activeOnly bool) ([]*model.Office, error) {
	query := `
		SELECT id, name, address, is_active, created_at, updated_at
		FROM offices
		WHERE ($1 = FALSE OR is_active)
		ORDER BY name
	`
	var offices []*model.Office
	err := r.read(ctx, "list_offices", func() error {
		offices = nil
		return r.db.SelectContext(ctx, &offices, query, activeOnly)
	})
	if err != nil {
		return nil, mapError(err, "list offices")
	}
	return offices, nil
}

func (r *officeRepository) SetOfficeActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE offices SET is_active = $1, updated_at = NOW() WHERE id = $2`, active, id)
	if err != nil {
		return mapError(err, "set office active")
	}
	return requireRows(result, "set office active")
}

func (r *officeRepository) CreateService(ctx context.Context, service *model.Service) error {
	query := `
		INSERT INTO services (id, office_id, name, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if service.ID == uuid.Nil {
		service.ID = uuid.New()
	}
	now := time.Now()
	service.CreatedAt = now
	service.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		service.ID, service.OfficeID, service.Name, service.Description, service.IsActive,
		service.CreatedAt, service.UpdatedAt)
	return mapError(err, "create service")
}

func (r *officeRepository) GetService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	query := `
		SELECT id, office_id, name, description, is_active, created_at, updated_at
		FROM services
		WHERE id = $1
	`
	var service model.Service
	err := r.read(ctx, "get_service", func() error {
		return r.db.GetContext(ctx, &service, query, id)
	})
	if err != nil {
		return nil, mapError(err, "get service")
	}
	return &service, nil
}

func (r *officeRepository) ListServices(ctx context.Context, officeID *uuid.UUID, activeOnly bool) ([]*model.Service, error) {
	query := `
		SELECT s.id, s.office_id, s.name, s.description, s.is_active, s.created_at, s.updated_at
		FROM services s
		JOIN offices o ON o.id = s.office_id
		WHERE ($1::uuid IS NULL OR s.office_id = $1)
		AND ($2 = FALSE OR (s.is_active AND o.is_active))
		ORDER BY s.name
	`
	var services []*model.Service
	err := r.read(ctx, "list_services", func() error {
		services = nil
		return r.db.SelectContext(ctx, &services, query, officeID, activeOnly)
	})
	if err != nil {
		return nil, mapError(err, "list services")
	}
	return services, nil
}

func (r *officeRepository) AddStaff(ctx context.Context, staff *model.Staff) error {
	query := `
		INSERT INTO staff (id, user_id, office_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if staff.ID == uuid.Nil {
		staff.ID = uuid.New()
	}
	now := time.Now()
	staff.CreatedAt = now
	staff.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		staff.ID, staff.UserID, staff.OfficeID, staff.Title, staff.CreatedAt, staff.UpdatedAt)
	return mapError(err, "add staff")
}

func (r *officeRepository) GetStaff(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	query := `SELECT id, user_id, office_id, title, created_at, updated_at FROM staff WHERE id = $1`
	var staff model.Staff
	err := r.read(ctx, "get_staff", func() error {
		return r.db.GetContext(ctx, &staff, query, id)
	})
	if err != nil {
		return nil, mapError(err, "get staff")
	}
	return &staff, nil
}

func (r *officeRepository) FirstStaffByUser(ctx context.Context, userID uuid.UUID) (*model.Staff, error) {
	query := `
		SELECT id, user_id, office_id, title, created_at, updated_at
		FROM staff
		WHERE user_id = $1
		ORDER BY created_at, id
		LIMIT 1
	`
	var staff model.Staff
	err := r.read(ctx, "first_staff_by_user", func() error {
		return r.db.GetContext(ctx, &staff, query, userID)
	})
	if err != nil {
		return nil, mapError(err, "get staff by user")
	}
	return &staff, nil
}

func (r *officeRepository) ListStaff(ctx context.Context, officeID uuid.UUID) ([]*model.Staff, error) {
	query := `
		SELECT id, user_id, office_id, title, created_at, updated_at
		FROM staff
		WHERE office_id = $1
		ORDER BY created_at
	`
	var staff []*model.Staff
	err := r.read(ctx, "list_staff", func() error {
		staff = nil
		return r.db.SelectContext(ctx, &staff, query, officeID)
	})
	if err != nil {
		return nil, mapError(err, "list staff")
	}
	return staff, nil
}

func (r *officeRepository) AssignStaff(ctx context.Context, serviceID, staffID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO service_staff (service_id, staff_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, serviceID, staffID)
	if err != nil {
		return fmt.Errorf("failed to assign staff: %w", err)
	}
	return nil
}

func (r *officeRepository) UnassignStaff(ctx context.Context, serviceID, staffID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM service_staff WHERE service_id = $1 AND staff_id = $2`, serviceID, staffID)
	if err != nil {
		return fmt.Errorf("failed to unassign staff: %w", err)
	}
	return requireRows(result, "unassign staff")
}

func (r *officeRepository) IsStaffAssigned(ctx context.Context, serviceID, staffID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM service_staff WHERE service_id = $1 AND staff_id = $2)`
	var assigned bool
	err := r.read(ctx, "is_staff_assigned", func() error {
		return r.db.GetContext(ctx, &assigned, query, serviceID, staffID)
	})
	if err != nil {
		return false, mapError(err, "check staff assignment")
	}
	return assigned, nil
}
