package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"pettycash/internal/model"
	"pettycash/internal/notify"
	"pettycash/internal/repository"
	"pettycash/internal/signature"
)

// memExpenseRepo mimics the guarded updates of the postgres repository.
type memExpenseRepo struct {
	mu       sync.Mutex
	nextID   int64
	expenses map[int64]*model.Expense
	users    map[int64]*model.User
	failList error
}

func newMemExpenseRepo(users ...*model.User) *memExpenseRepo {
	r := &memExpenseRepo{expenses: map[int64]*model.Expense{}, users: map[int64]*model.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memExpenseRepo) Create(_ context.Context, e *model.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	e.ID = r.nextID
	e.CreatedAt = time.Now().Add(time.Duration(r.nextID) * time.Second)
	e.UpdatedAt = e.CreatedAt
	cp := *e
	r.expenses[e.ID] = &cp
	return nil
}

func (r *memExpenseRepo) FindByID(_ context.Context, id int64) (*model.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.expenses[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *memExpenseRepo) List(_ context.Context, f model.ExpenseFilter) ([]model.Expense, error) {
	if r.failList != nil {
		return nil, r.failList
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Expense{}
	for _, e := range r.expenses {
		if f.CreatorID != nil && e.CreatorID != *f.CreatorID {
			continue
		}
		if f.Status != nil && e.Status != *f.Status {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memExpenseRepo) MarkApproved(_ context.Context, id, approverID int64, sig string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.expenses[id]
	if !ok || e.Status != model.StatusPending {
		return false, nil
	}
	e.Status = model.StatusApproved
	e.SeniorSignature = &sig
	e.ApprovedByID = &approverID
	e.ApprovedAt = &at
	if u, ok := r.users[approverID]; ok {
		name := u.FullName
		e.ApproverName = &name
	}
	return true, nil
}

func (r *memExpenseRepo) MarkRejected(_ context.Context, id int64, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.expenses[id]
	if !ok || e.Status != model.StatusPending {
		return false, nil
	}
	e.Status = model.StatusRejected
	e.RejectionReason = &reason
	return true, nil
}

// set stores e directly, bypassing Create.
func (r *memExpenseRepo) set(e model.Expense) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.ID > r.nextID {
		r.nextID = e.ID
	}
	r.expenses[e.ID] = &e
}

type memUserRepo struct {
	mu       sync.Mutex
	users    []*model.User
	countErr error
}

func (r *memUserRepo) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return fmt.Errorf("failed to create user: %w", repository.ErrDuplicate)
		}
	}
	u.ID = int64(len(r.users) + 1)
	u.CreatedAt = time.Now()
	cp := *u
	r.users = append(r.users, &cp)
	return nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) FindByID(_ context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) Count(context.Context) (int64, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

type memRevocations struct {
	revoked map[string]time.Duration
}

func (m *memRevocations) Revoke(_ context.Context, id string, ttl time.Duration) error {
	if m.revoked == nil {
		m.revoked = map[string]time.Duration{}
	}
	m.revoked[id] = ttl
	return nil
}

func (m *memRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	_, ok := m.revoked[id]
	return ok, nil
}

// fakeSignatures hands out predictable references and can fail on demand.
type fakeSignatures struct {
	saved  []string
	failOn string
}

func (f *fakeSignatures) Save(payload, tag string) (string, error) {
	if payload == f.failOn {
		return "", fmt.Errorf("%w: bad payload", signature.ErrDecode)
	}
	ref := fmt.Sprintf("%s_%d.png", tag, len(f.saved)+1)
	f.saved = append(f.saved, ref)
	return ref, nil
}

type recordingPublisher struct {
	decisions []notify.Decision
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, d notify.Decision) error {
	p.decisions = append(p.decisions, d)
	return p.err
}

var errBoom = errors.New("boom")
