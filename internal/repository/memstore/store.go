// Package memstore keeps every repository in process memory behind one lock.
// Each write applies its precondition and mutation under that lock, which
// gives the same compare-and-set contract as the postgres implementation.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/office-portal/internal/model"
	"github.com/jwalitptl/office-portal/internal/repository"
)

type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	users        map[uuid.UUID]model.User
	roles        map[uuid.UUID]model.Role
	permissions  map[string]model.Permission
	grants       map[uuid.UUID]map[string]struct{}
	offices      map[uuid.UUID]model.Office
	services     map[uuid.UUID]model.Service
	staff        map[uuid.UUID]model.Staff
	assignments  map[model.ServiceStaffAssignment]struct{}
	requests     map[uuid.UUID]model.Request
	appointments map[uuid.UUID]model.Appointment
	outbox       map[uuid.UUID]model.OutboxEvent
}

func New() *Store {
	return &Store{
		now:          time.Now,
		users:        make(map[uuid.UUID]model.User),
		roles:        make(map[uuid.UUID]model.Role),
		permissions:  make(map[string]model.Permission),
		grants:       make(map[uuid.UUID]map[string]struct{}),
		offices:      make(map[uuid.UUID]model.Office),
		services:     make(map[uuid.UUID]model.Service),
		staff:        make(map[uuid.UUID]model.Staff),
		assignments:  make(map[model.ServiceStaffAssignment]struct{}),
		requests:     make(map[uuid.UUID]model.Request),
		appointments: make(map[uuid.UUID]model.Appointment),
		outbox:       make(map[uuid.UUID]model.OutboxEvent),
	}
}

// Repositories returns every repository backed by s.
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Users:        (*userRepo)(s),
		RBAC:         (*rbacRepo)(s),
		Offices:      (*officeRepo)(s),
		Requests:     (*requestRepo)(s),
		Appointments: (*appointmentRepo)(s),
		Outbox:       (*outboxRepo)(s),
	}
}

func (s *Store) stamp(b *model.Base) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := s.now()
	b.CreatedAt = now
	b.UpdatedAt = now
}

func notFound(op string) error {
	return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
}

func stale(op string) error {
	return fmt.Errorf("%s: %w", op, repository.ErrStaleState)
}

func duplicate(op string) error {
	return fmt.Errorf("%s: %w", op, repository.ErrDuplicate)
}

func page[T any](items []T, p model.Pagination) []T {
	p = p.Normalize()
	if p.Offset >= len(items) {
		return []T{}
	}
	end := p.Offset + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[p.Offset:end]
}

func ptr[T any](v T) *T { return &v }

func sameOffice(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// users

type userRepo Store

func (r *userRepo) Create(_ context.Context, user *model.User) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Phone == user.Phone ||
			(user.Email != nil && u.Email != nil && strings.EqualFold(*u.Email, *user.Email)) ||
			(user.Username != nil && u.Username != nil && strings.EqualFold(*u.Username, *user.Username)) {
			return duplicate("create user")
		}
	}
	s.stamp(&user.Base)
	s.users[user.ID] = *user
	return nil
}

func (r *userRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, notFound("get user")
	}
	return &u, nil
}

func (r *userRepo) GetByPhone(_ context.Context, phone string) (*model.User, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Phone == phone {
			return &u, nil
		}
	}
	return nil, notFound("get user by phone")
}

func (r *userRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return notFound("set user active")
	}
	u.IsActive = active
	u.UpdatedAt = s.now()
	s.users[id] = u
	return nil
}

func (r *userRepo) SetPasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return notFound("set password hash")
	}
	u.PasswordHash = hash
	u.UpdatedAt = s.now()
	s.users[id] = u
	return nil
}

func (r *userRepo) SetRole(_ context.Context, id uuid.UUID, roleID *uuid.UUID) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return notFound("set user role")
	}
	u.RoleID = roleID
	u.UpdatedAt = s.now()
	s.users[id] = u
	return nil
}

// rbac

type rbacRepo Store

func (r *rbacRepo) CreatePermission(_ context.Context, permission *model.Permission) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.permissions[permission.Name]; ok {
		return duplicate("create permission")
	}
	s.stamp(&permission.Base)
	s.permissions[permission.Name] = *permission
	return nil
}

func (r *rbacRepo) GetPermissionByName(_ context.Context, name string) (*model.Permission, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.permissions[name]
	if !ok {
		return nil, notFound("get permission")
	}
	return &p, nil
}

func (r *rbacRepo) ListPermissions(_ context.Context) ([]*model.Permission, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		out = append(out, ptr(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *rbacRepo) CreateRole(_ context.Context, role *model.Role) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.roles {
		if strings.EqualFold(existing.Name, role.Name) && sameOffice(existing.OfficeID, role.OfficeID) {
			return duplicate("create role")
		}
	}
	s.stamp(&role.Base)
	s.roles[role.ID] = *role
	return nil
}

func (r *rbacRepo) GetRole(_ context.Context, id uuid.UUID) (*model.Role, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[id]
	if !ok {
		return nil, notFound("get role")
	}
	return &role, nil
}

func (r *rbacRepo) GetRoleByName(_ context.Context, name string, officeID *uuid.UUID) (*model.Role, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, role := range s.roles {
		if strings.EqualFold(role.Name, name) && sameOffice(role.OfficeID, officeID) {
			return &role, nil
		}
	}
	return nil, notFound("get role by name")
}

func (r *rbacRepo) ListRoles(_ context.Context, officeID *uuid.UUID) ([]*model.Role, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Role, 0, len(s.roles))
	for _, role := range s.roles {
		if officeID != nil && role.OfficeID != nil && *role.OfficeID != *officeID {
			continue
		}
		out = append(out, ptr(role))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *rbacRepo) ListRolePermissionNames(_ context.Context, roleID uuid.UUID) ([]string, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.grants[roleID]))
	for name := range s.grants[roleID] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *rbacRepo) GrantPermission(_ context.Context, roleID uuid.UUID, permission string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.permissions[permission]; !ok {
		return notFound("get permission")
	}
	role, ok := s.roles[roleID]
	if !ok {
		return notFound("lock role")
	}
	if s.grants[roleID] == nil {
		s.grants[roleID] = make(map[string]struct{})
	}
	s.grants[roleID][permission] = struct{}{}
	role.UpdatedAt = s.now()
	s.roles[roleID] = role
	return nil
}

func (r *rbacRepo) RevokePermission(_ context.Context, roleID uuid.UUID, permission string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.grants[roleID][permission]; !ok {
		return notFound("revoke permission")
	}
	delete(s.grants[roleID], permission)
	return nil
}

// offices

type officeRepo Store

func (r *officeRepo) CreateOffice(_ context.Context, office *model.Office) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stamp(&office.Base)
	s.offices[office.ID] = *office
	return nil
}

func (r *officeRepo) GetOffice(_ context.Context, id uuid.UUID) (*model.Office, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.offices[id]
	if !ok {
		return nil, notFound("get office")
	}
	return &o, nil
}

func (r *officeRepo) ListOffices(_ context.Context, activeOnly bool) ([]*model.Office, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Office, 0, len(s.offices))
	for _, o := range s.offices {
		if activeOnly && !o.IsActive {
			continue
		}
		out = append(out, ptr(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *officeRepo) SetOfficeActive(_ context.Context, id uuid.UUID, active bool) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.offices[id]
	if !ok {
		return notFound("set office active")
	}
	o.IsActive = active
	o.UpdatedAt = s.now()
	s.offices[id] = o
	return nil
}

func (r *officeRepo) CreateService(_ context.Context, service *model.Service) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.offices[service.OfficeID]; !ok {
		return notFound("create service")
	}
	s.stamp(&service.Base)
	s.services[service.ID] = *service
	return nil
}

func (r *officeRepo) GetService(_ context.Context, id uuid.UUID) (*model.Service, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, ok := s.services[id]
	if !ok {
		return nil, notFound("get service")
	}
	return &svc, nil
}

func (r *officeRepo) ListServices(_ context.Context, officeID *uuid.UUID, activeOnly bool) ([]*model.Service, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Service, 0)
	for _, svc := range s.services {
		if officeID != nil && svc.OfficeID != *officeID {
			continue
		}
		if activeOnly && (!svc.IsActive || !s.offices[svc.OfficeID].IsActive) {
			continue
		}
		out = append(out, ptr(svc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *officeRepo) AddStaff(_ context.Context, staff *model.Staff) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.offices[staff.OfficeID]; !ok {
		return notFound("add staff")
	}
	for _, existing := range s.staff {
		if existing.UserID == staff.UserID && existing.OfficeID == staff.OfficeID {
			return duplicate("add staff")
		}
	}
	s.stamp(&staff.Base)
	s.staff[staff.ID] = *staff
	return nil
}

func (r *officeRepo) GetStaff(_ context.Context, id uuid.UUID) (*model.Staff, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.staff[id]
	if !ok {
		return nil, notFound("get staff")
	}
	return &st, nil
}

func (r *officeRepo) FirstStaffByUser(_ context.Context, userID uuid.UUID) (*model.Staff, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var first *model.Staff
	for _, st := range s.staff {
		if st.UserID != userID {
			continue
		}
		if first == nil || st.CreatedAt.Before(first.CreatedAt) ||
			(st.CreatedAt.Equal(first.CreatedAt) && st.ID.String() < first.ID.String()) {
			first = ptr(st)
		}
	}
	if first == nil {
		return nil, notFound("get staff by user")
	}
	return first, nil
}

func (r *officeRepo) ListStaff(_ context.Context, officeID uuid.UUID) ([]*model.Staff, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Staff, 0)
	for _, st := range s.staff {
		if st.OfficeID == officeID {
			out = append(out, ptr(st))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *officeRepo) AssignStaff(_ context.Context, serviceID, staffID uuid.UUID) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.services[serviceID]; !ok {
		return notFound("assign staff")
	}
	if _, ok := s.staff[staffID]; !ok {
		return notFound("assign staff")
	}
	s.assignments[model.ServiceStaffAssignment{ServiceID: serviceID, StaffID: staffID}] = struct{}{}
	return nil
}

func (r *officeRepo) UnassignStaff(_ context.Context, serviceID, staffID uuid.UUID) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	key := model.ServiceStaffAssignment{ServiceID: serviceID, StaffID: staffID}
	if _, ok := s.assignments[key]; !ok {
		return notFound("unassign staff")
	}
	delete(s.assignments, key)
	return nil
}

func (r *officeRepo) IsStaffAssigned(_ context.Context, serviceID, staffID uuid.UUID) (bool, error) {
	s := (*Store)(r)
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.assignments[model.ServiceStaffAssignment{ServiceID: serviceID, StaffID: staffID}]
	return ok, nil
}
