package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
)

type appointmentRepository struct {
	BaseRepository
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

const appointmentColumns = `id, request_id, user_id, staff_id, date, time, notes, status, created_at, updated_at`

func (r *appointmentRepository) CreateIfNoActive(ctx context.Context, appointment *model.Appointment) error {
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	now := time.Now()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now
	appointment.Status = model.AppointmentStatusPending

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var tracks struct {
			Staff   model.TrackStatus `db:"status_by_staff"`
			Manager model.TrackStatus `db:"status_by_manager"`
		}
		err := tx.GetContext(ctx, &tracks, `
			SELECT status_by_staff, status_by_manager
			FROM requests
			WHERE id = $1
			FOR UPDATE
		`, appointment.RequestID)
		if err != nil {
			return mapError(err, "lock request")
		}
		if model.Combine(tracks.Staff, tracks.Manager) != model.CombinedFullyApproved {
			return repository.ErrRequestNotApproved
		}

		var active bool
		err = tx.GetContext(ctx, &active, `
			SELECT EXISTS (
				SELECT 1 FROM appointments
				WHERE request_id = $1
				AND status NOT IN ('rejected', 'cancelled')
			)
		`, appointment.RequestID)
		if err != nil {
			return fmt.Errorf("failed to check active appointments: %w", err)
		}
		if active {
			return repository.ErrActiveAppointmentExists
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO appointments (`+appointmentColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			appointment.ID,
			appointment.RequestID,
			appointment.UserID,
			appointment.StaffID,
			appointment.Date,
			appointment.Time,
			appointment.Notes,
			appointment.Status,
			appointment.CreatedAt,
			appointment.UpdatedAt,
		)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return repository.ErrActiveAppointmentExists
		}
		return mapError(err, "create appointment")
	})
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	var appointment model.Appointment
	err := r.read(ctx, "get_appointment", func() error {
		return r.db.GetContext(ctx, &appointment, query, id)
	})
	if err != nil {
		return nil, mapError(err, "get appointment")
	}
	return &appointment, nil
}

func (r *appointmentRepository) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.RequestID != nil {
		conds = append(conds, "a.request_id = "+arg(*filter.RequestID))
	}
	if filter.UserID != nil {
		conds = append(conds, "a.user_id = "+arg(*filter.UserID))
	}
	if filter.OfficeID != nil {
		conds = append(conds, "s.office_id = "+arg(*filter.OfficeID))
	}
	if filter.Status != "" {
		conds = append(conds, "a.status = "+arg(filter.Status))
	}

	query := `
		SELECT a.id, a.request_id, a.user_id, a.staff_id, a.date, a.time, a.notes, a.status,
			a.created_at, a.updated_at
		FROM appointments a
		JOIN requests r ON r.id = a.request_id
		JOIN services s ON s.id = r.service_id`
	if len(conds) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conds, " AND ")
	}
	page := filter.Pagination.Normalize()
	query += "\n\t\tORDER BY a.date DESC, a.created_at DESC LIMIT " + arg(page.Limit) + " OFFSET " + arg(page.Offset)

	var appointments []*model.Appointment
	err := r.read(ctx, "list_appointments", func() error {
		appointments = nil
		return r.db.SelectContext(ctx, &appointments, query, args...)
	})
	if err != nil {
		return nil, mapError(err, "list appointments")
	}
	return appointments, nil
}

func (r *appointmentRepository) UpdateDetails(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET date = $1, time = $2, notes = $3, updated_at = NOW()
		WHERE id = $4
		AND status NOT IN ('approved', 'completed')
		RETURNING updated_at
	`
	err := r.db.GetContext(ctx, &appointment.UpdatedAt, query,
		appointment.Date,
		appointment.Time,
		appointment.Notes,
		appointment.ID,
	)
	return staleOnNoRows(err, "update appointment")
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM appointments
		WHERE id = $1
		AND status NOT IN ('approved', 'completed')
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete appointment: %w", repository.ErrStaleState)
	}
	return nil
}

func (r *appointmentRepository) Transition(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error) {
	sources := model.TransitionSources(status)
	if len(sources) == 0 {
		return nil, fmt.Errorf("transition to %s: %w", status, repository.ErrStaleState)
	}
	from := make([]string, len(sources))
	for i, s := range sources {
		from[i] = string(s)
	}

	query := `
		UPDATE appointments
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		AND status = ANY($3)
		RETURNING ` + appointmentColumns

	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, status, id, pq.Array(from)); err != nil {
		return nil, staleOnNoRows(err, "transition appointment")
	}
	return &appointment, nil
}
