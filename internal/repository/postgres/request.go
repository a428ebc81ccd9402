package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
)

type requestRepository struct {
	BaseRepository
}

func NewRequestRepository(base BaseRepository) repository.RequestRepository {
	return &requestRepository{base}
}

const requestColumns = `id, requester_id, service_id, address, requested_date,
	status_by_staff, approving_staff_id, status_by_manager, approving_manager_id,
	approve_note, created_at, updated_at`

func (r *requestRepository) Create(ctx context.Context, request *model.Request) error {
	query := `
		INSERT INTO requests (
			id, requester_id, service_id, address, requested_date,
			status_by_staff, status_by_manager, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	now := time.Now()
	request.CreatedAt = now
	request.UpdatedAt = now
	request.StatusByStaff = model.TrackPending
	request.StatusByManager = model.TrackPending

	_, err := r.db.ExecContext(ctx, query,
		request.ID,
		request.RequesterID,
		request.ServiceID,
		request.Address,
		request.RequestedDate,
		request.StatusByStaff,
		request.StatusByManager,
		request.CreatedAt,
		request.UpdatedAt,
	)
	return mapError(err, "create request")
}

func (r *requestRepository) Get(ctx context.Context, id uuid.UUID) (*model.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	var request model.Request
	err := r.read(ctx, "get_request", func() error {
		return r.db.GetContext(ctx, &request, query, id)
	})
	if err != nil {
		return nil, mapError(err, "get request")
	}
	return &request, nil
}

func (r *requestRepository) List(ctx context.Context, filter model.RequestFilter) ([]*model.Request, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.RequesterID != nil {
		conds = append(conds, "r.requester_id = "+arg(*filter.RequesterID))
	}
	if filter.OfficeID != nil {
		conds = append(conds, "s.office_id = "+arg(*filter.OfficeID))
	}
	if filter.StaffID != nil {
		conds = append(conds, "EXISTS (SELECT 1 FROM service_staff ss WHERE ss.service_id = r.service_id AND ss.staff_id = "+arg(*filter.StaffID)+")")
	}

	query := `
		SELECT r.id, r.requester_id, r.service_id, r.address, r.requested_date,
			r.status_by_staff, r.approving_staff_id, r.status_by_manager, r.approving_manager_id,
			r.approve_note, r.created_at, r.updated_at
		FROM requests r
		JOIN services s ON s.id = r.service_id`
	if len(conds) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conds, " AND ")
	}
	page := filter.Pagination.Normalize()
	query += "\n\t\tORDER BY r.created_at DESC LIMIT " + arg(page.Limit) + " OFFSET " + arg(page.Offset)

	var requests []*model.Request
	err := r.read(ctx, "list_requests", func() error {
		requests = nil
		return r.db.SelectContext(ctx, &requests, query, args...)
	})
	if err != nil {
		return nil, mapError(err, "list requests")
	}
	return requests, nil
}

func (r *requestRepository) UpdateDetails(ctx context.Context, request *model.Request) error {
	query := `
		UPDATE requests
		SET service_id = $1, address = $2, requested_date = $3, updated_at = NOW()
		WHERE id = $4
		AND status_by_staff = 'pending'
		AND status_by_manager = 'pending'
		RETURNING updated_at
	`
	err := r.db.GetContext(ctx, &request.UpdatedAt, query,
		request.ServiceID,
		request.Address,
		request.RequestedDate,
		request.ID,
	)
	return staleOnNoRows(err, "update request")
}

func (r *requestRepository) Delete(ctx context.Context, id, requesterID uuid.UUID) error {
	query := `
		DELETE FROM requests
		WHERE id = $1
		AND requester_id = $2
		AND status_by_staff = 'pending'
		AND status_by_manager = 'pending'
	`
	result, err := r.db.ExecContext(ctx, query, id, requesterID)
	if err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete request: %w", repository.ErrStaleState)
	}
	return nil
}

// DecideTrack applies an approve or reject as one conditional UPDATE.
// Approve requires the approver column to be NULL so a second approve can
// never land; reject always clears it.
func (r *requestRepository) DecideTrack(ctx context.Context, d model.TrackDecision) (*model.Request, error) {
	statusCol, approverCol := "status_by_staff", "approving_staff_id"
	if d.Track == model.TrackManager {
		statusCol, approverCol = "status_by_manager", "approving_manager_id"
	}

	var query string
	args := []interface{}{d.RequestID, d.ExpectServiceID, d.Note}
	if d.Decision == model.DecisionApprove {
		query = `
			UPDATE requests
			SET ` + statusCol + ` = 'approved', ` + approverCol + ` = $4,
				approve_note = COALESCE($3, approve_note), updated_at = NOW()
			WHERE id = $1 AND service_id = $2 AND ` + approverCol + ` IS NULL
			RETURNING ` + requestColumns
		args = append(args, d.ApproverID)
	} else {
		query = `
			UPDATE requests
			SET ` + statusCol + ` = 'rejected', ` + approverCol + ` = NULL,
				approve_note = COALESCE($3, approve_note), updated_at = NOW()
			WHERE id = $1 AND service_id = $2
			RETURNING ` + requestColumns
	}

	var request model.Request
	if err := r.db.GetContext(ctx, &request, query, args...); err != nil {
		return nil, staleOnNoRows(err, "decide request")
	}
	return &request, nil
}

func (r *requestRepository) OverrideApproval(ctx context.Context, request *model.Request) error {
	query := `
		UPDATE requests
		SET status_by_staff = $1, approving_staff_id = $2,
			status_by_manager = $3, approving_manager_id = $4,
			approve_note = $5, updated_at = NOW()
		WHERE id = $6
	`
	result, err := r.db.ExecContext(ctx, query,
		request.StatusByStaff,
		request.ApprovingStaffID,
		request.StatusByManager,
		request.ApprovingManagerID,
		request.ApproveNote,
		request.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to override approval: %w", err)
	}
	return requireRows(result, "override approval")
}
