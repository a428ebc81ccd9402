// Package servicetest builds in-memory portals for service tests.
package servicetest

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
	"github.com/jwalitptl/office-portal/internal/repository/memstore"
	"github.com/jwalitptl/office-portal/internal/service/authz"
	"github.com/jwalitptl/office-portal/pkg/logger"
	"github.com/jwalitptl/office-portal/pkg/metrics"
)

// World is a seeded store with the built-in roles and their default grants.
type World struct {
	Repos     repository.Repositories
	Guard     *authz.Guard
	Scope     *authz.Scope
	Roles     map[model.RoleKind]*model.Role
	RoleNames model.RoleNames
	Logger    *logger.Logger
	Metrics   *metrics.Metrics
}

func New(t testing.TB) *World {
	t.Helper()
	ctx := context.Background()

	repos := memstore.New().Repositories()
	names := model.DefaultRoleNames()
	log := logger.Nop()
	m := metrics.NewNop()

	for _, p := range model.AllPermissions() {
		require.NoError(t, repos.RBAC.CreatePermission(ctx, &model.Permission{Name: p}))
	}
	roles := map[model.RoleKind]*model.Role{}
	for kind, perms := range model.DefaultGrants() {
		role := &model.Role{Name: names.NameFor(kind), Kind: kind}
		require.NoError(t, repos.RBAC.CreateRole(ctx, role))
		for _, p := range perms {
			require.NoError(t, repos.RBAC.GrantPermission(ctx, role.ID, p))
		}
		roles[kind] = role
	}

	guard := authz.NewGuard(repos.Users, repos.RBAC, repos.Offices, names, log, m)
	return &World{
		Repos:     repos,
		Guard:     guard,
		Scope:     authz.NewScope(guard, repos.Offices, repos.Requests, repos.Appointments),
		Roles:     roles,
		RoleNames: names,
		Logger:    log,
		Metrics:   m,
	}
}

// User creates an active user holding the built-in role of kind. An empty
// kind leaves the user without a role.
func (w *World) User(t testing.TB, name string, kind model.RoleKind) *model.User {
	t.Helper()
	u := &model.User{
		Phone:        "+1555" + uuid.NewString()[:7],
		Name:         name,
		PasswordHash: "x",
		IsActive:     true,
	}
	if role, ok := w.Roles[kind]; ok {
		u.RoleID = &role.ID
	}
	require.NoError(t, w.Repos.Users.Create(context.Background(), u))
	return u
}

func (w *World) Office(t testing.TB, name string) *model.Office {
	t.Helper()
	o := &model.Office{Name: name, IsActive: true}
	require.NoError(t, w.Repos.Offices.CreateOffice(context.Background(), o))
	return o
}

func (w *World) Service(t testing.TB, officeID uuid.UUID, name string) *model.Service {
	t.Helper()
	s := &model.Service{OfficeID: officeID, Name: name, IsActive: true}
	require.NoError(t, w.Repos.Offices.CreateService(context.Background(), s))
	return s
}

func (w *World) Staff(t testing.TB, userID, officeID uuid.UUID) *model.Staff {
	t.Helper()
	s := &model.Staff{UserID: userID, OfficeID: officeID}
	require.NoError(t, w.Repos.Offices.AddStaff(context.Background(), s))
	return s
}

func (w *World) Assign(t testing.TB, serviceID, staffID uuid.UUID) {
	t.Helper()
	require.NoError(t, w.Repos.Offices.AssignStaff(context.Background(), serviceID, staffID))
}

// Request files a pending request directly in the store.
func (w *World) Request(t testing.TB, requesterID, serviceID uuid.UUID) *model.Request {
	t.Helper()
	r := &model.Request{RequesterID: requesterID, ServiceID: serviceID, Address: "1 Main St"}
	require.NoError(t, w.Repos.Requests.Create(context.Background(), r))
	return r
}

// Approve sets both tracks to approved, as an admin override would.
func (w *World) Approve(t testing.TB, request *model.Request, approverID uuid.UUID) {
	t.Helper()
	request.StatusByStaff, request.ApprovingStaffID = model.TrackApproved, &approverID
	request.StatusByManager, request.ApprovingManagerID = model.TrackApproved, &approverID
	require.NoError(t, w.Repos.Requests.OverrideApproval(context.Background(), request))
}

// Notifier records every notification it receives.
type Notifier struct {
	mu     sync.Mutex
	events []model.NotificationEvent
}

func (n *Notifier) Notify(_ context.Context, event model.NotificationEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *Notifier) Events() []model.NotificationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.NotificationEvent(nil), n.events...)
}

// Types returns the event types in emission order.
func (n *Notifier) Types() []string {
	events := n.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}
