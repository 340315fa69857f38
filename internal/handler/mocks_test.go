package handler

import (
	"context"

	"pettycash/internal/model"

	"github.com/stretchr/testify/mock"
)

type mockExpenseService struct {
	mock.Mock
}

func (m *mockExpenseService) Create(ctx context.Context, actor *model.User, req model.CreateExpenseRequest) (*model.Expense, error) {
	args := m.Called(ctx, actor, req)
	e, _ := args.Get(0).(*model.Expense)
	return e, args.Error(1)
}

func (m *mockExpenseService) Approve(ctx context.Context, actor *model.User, id int64, sig string) (*model.Expense, error) {
	args := m.Called(ctx, actor, id, sig)
	e, _ := args.Get(0).(*model.Expense)
	return e, args.Error(1)
}

func (m *mockExpenseService) Reject(ctx context.Context, actor *model.User, id int64, reason string) (*model.Expense, error) {
	args := m.Called(ctx, actor, id, reason)
	e, _ := args.Get(0).(*model.Expense)
	return e, args.Error(1)
}

func (m *mockExpenseService) View(ctx context.Context, actor *model.User, id int64) (*model.Expense, error) {
	args := m.Called(ctx, actor, id)
	e, _ := args.Get(0).(*model.Expense)
	return e, args.Error(1)
}

func (m *mockExpenseService) List(ctx context.Context, actor *model.User, status string) ([]model.Expense, error) {
	args := m.Called(ctx, actor, status)
	e, _ := args.Get(0).([]model.Expense)
	return e, args.Error(1)
}

func (m *mockExpenseService) Dashboard(ctx context.Context, actor *model.User) ([]model.Expense, error) {
	args := m.Called(ctx, actor)
	e, _ := args.Get(0).([]model.Expense)
	return e, args.Error(1)
}

func (m *mockExpenseService) ExportList(ctx context.Context, actor *model.User) ([]model.Expense, error) {
	args := m.Called(ctx, actor)
	e, _ := args.Get(0).([]model.Expense)
	return e, args.Error(1)
}

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	args := m.Called(ctx, email, password)
	u, _ := args.Get(0).(*model.User)
	return u, args.String(1), args.Error(2)
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *mockAuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	args := m.Called(ctx, token)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *mockAuthService) CreateUser(ctx context.Context, nu model.NewUser) (*model.User, error) {
	args := m.Called(ctx, nu)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *mockAuthService) SeedDefaultUsers(ctx context.Context, password string) (bool, error) {
	args := m.Called(ctx, password)
	return args.Bool(0), args.Error(1)
}

type fakeSignatureFiles struct {
	dir   string
	files map[string]bool
}

func (f *fakeSignatureFiles) Path(ref string) (string, error) { return f.dir + "/" + ref, nil }
func (f *fakeSignatureFiles) Exists(ref string) bool         { return f.files[ref] }
