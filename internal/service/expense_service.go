package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pettycash/internal/model"
	"pettycash/internal/notify"
	"pettycash/internal/repository"
	"pettycash/internal/signature"

	"github.com/go-playground/validator/v10"
)

// SignatureSaver stores a base64 signature payload and returns its reference
type SignatureSaver interface {
	Save(payload, tag string) (string, error)
}

// ExpenseService implements the approval workflow
type ExpenseService interface {
	Create(ctx context.Context, actor *model.User, req model.CreateExpenseRequest) (*model.Expense, error)
	Approve(ctx context.Context, actor *model.User, id int64, seniorSignature string) (*model.Expense, error)
	Reject(ctx context.Context, actor *model.User, id int64, reason string) (*model.Expense, error)
	View(ctx context.Context, actor *model.User, id int64) (*model.Expense, error)
	List(ctx context.Context, actor *model.User, status string) ([]model.Expense, error)
	Dashboard(ctx context.Context, actor *model.User) ([]model.Expense, error)
	ExportList(ctx context.Context, actor *model.User) ([]model.Expense, error)
}

type expenseService struct {
	repo       repository.ExpenseRepository
	signatures SignatureSaver
	publisher  notify.Publisher
	validate   *validator.Validate
	now        func() time.Time
}

// NewExpenseService creates a new ExpenseService
func NewExpenseService(repo repository.ExpenseRepository, signatures SignatureSaver, publisher notify.Publisher) ExpenseService {
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	return &expenseService{
		repo:       repo,
		signatures: signatures,
		publisher:  publisher,
		validate:   newValidator(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *expenseService) Create(ctx context.Context, actor *model.User, req model.CreateExpenseRequest) (*model.Expense, error) {
	if err := Authorize(actor, ActionCreate); err != nil {
		return nil, err
	}

	req = normalizeCreateRequest(req)
	verr := validateStruct(s.validate, req)
	amount := amountField(req.Amount, verr)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	// Recipient first, then employee. A failure on the second leaves the first file orphaned.
	recipientRef, err := s.signatures.Save(req.RecipientSignature, signature.TagRecipient)
	if err != nil {
		return nil, fmt.Errorf("failed to save recipient signature: %w", err)
	}
	employeeRef, err := s.signatures.Save(req.EmployeeSignature, signature.TagEmployee)
	if err != nil {
		return nil, fmt.Errorf("failed to save employee signature: %w", err)
	}

	expense := &model.Expense{
		Purpose:            req.Purpose,
		Amount:             amount,
		RecipientName:      req.RecipientName,
		Status:             model.StatusPending,
		CreatorID:          actor.ID,
		RecipientSignature: &recipientRef,
		EmployeeSignature:  &employeeRef,
		CreatorName:        actor.FullName,
		CreatorEmail:       actor.Email,
	}
	if err := s.repo.Create(ctx, expense); err != nil {
		return nil, fmt.Errorf("failed to create expense in repo: %w", err)
	}

	slog.InfoContext(ctx, "expense submitted",
		"expense_id", expense.ID, "creator_id", actor.ID, "amount", expense.Amount.StringFixed(2))
	return expense, nil
}

// loadPending runs the guards shared by Approve and Reject.
func (s *expenseService) loadPending(ctx context.Context, actor *model.User, action Action, id int64) (*model.Expense, error) {
	if err := Authorize(actor, action); err != nil {
		return nil, err
	}
	expense, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find expense for %s: %w", action, err)
	}
	if expense == nil {
		return nil, ErrExpenseNotFound
	}
	if !expense.IsPending() {
		return nil, fmt.Errorf("%w: expense %d is %s", ErrInvalidState, id, expense.Status)
	}
	return expense, nil
}

func (s *expenseService) Approve(ctx context.Context, actor *model.User, id int64, seniorSignature string) (*model.Expense, error) {
	if _, err := s.loadPending(ctx, actor, ActionApprove, id); err != nil {
		return nil, err
	}
	if strings.TrimSpace(seniorSignature) == "" {
		return nil, newValidationError("senior_signature", "senior signature is required")
	}

	seniorRef, err := s.signatures.Save(seniorSignature, signature.TagSenior)
	if err != nil {
		return nil, fmt.Errorf("failed to save senior signature: %w", err)
	}

	at := s.now()
	changed, err := s.repo.MarkApproved(ctx, id, actor.ID, seniorRef, at)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Another request decided the expense after our read.
		return nil, fmt.Errorf("%w: expense %d was decided concurrently", ErrInvalidState, id)
	}

	expense, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "expense approved", "expense_id", id, "approver_id", actor.ID)
	s.publish(ctx, expense, actor, at)
	return expense, nil
}

func (s *expenseService) Reject(ctx context.Context, actor *model.User, id int64, reason string) (*model.Expense, error) {
	if _, err := s.loadPending(ctx, actor, ActionReject, id); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, newValidationError("rejection_reason", "rejection reason is required")
	}

	changed, err := s.repo.MarkRejected(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, fmt.Errorf("%w: expense %d was decided concurrently", ErrInvalidState, id)
	}

	expense, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "expense rejected", "expense_id", id, "senior_id", actor.ID)
	s.publish(ctx, expense, actor, s.now())
	return expense, nil
}

func (s *expenseService) reload(ctx context.Context, id int64) (*model.Expense, error) {
	expense, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload expense: %w", err)
	}
	if expense == nil {
		return nil, ErrExpenseNotFound
	}
	return expense, nil
}

// publish never fails the caller; the decision is already committed.
func (s *expenseService) publish(ctx context.Context, expense *model.Expense, actor *model.User, at time.Time) {
	if err := s.publisher.Publish(ctx, notify.NewDecision(expense, actor, at)); err != nil {
		slog.WarnContext(ctx, "failed to publish decision notification", "expense_id", expense.ID, "error", err)
	}
}

func (s *expenseService) View(ctx context.Context, actor *model.User, id int64) (*model.Expense, error) {
	expense, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find expense by ID: %w", err)
	}
	if expense == nil {
		return nil, ErrExpenseNotFound
	}
	if err := CanView(actor, expense); err != nil {
		return nil, err
	}
	return expense, nil
}

func (s *expenseService) List(ctx context.Context, actor *model.User, status string) ([]model.Expense, error) {
	var filter model.ExpenseFilter
	status = strings.TrimSpace(status)
	if status != "" && status != "all" {
		st := model.Status(status)
		if !st.Valid() {
			return nil, newValidationError("status", fmt.Sprintf("unknown status filter %q", status))
		}
		filter.Status = &st
	}
	return s.list(ctx, actor, filter)
}

func (s *expenseService) Dashboard(ctx context.Context, actor *model.User) ([]model.Expense, error) {
	var filter model.ExpenseFilter
	if actor.IsSenior() {
		pending := model.StatusPending
		filter.Status = &pending
	}
	return s.list(ctx, actor, filter)
}

func (s *expenseService) ExportList(ctx context.Context, actor *model.User) ([]model.Expense, error) {
	var filter model.ExpenseFilter
	if actor.IsSenior() {
		approved := model.StatusApproved
		filter.Status = &approved
	}
	return s.list(ctx, actor, filter)
}

// list scopes non-seniors to their own expenses.
func (s *expenseService) list(ctx context.Context, actor *model.User, filter model.ExpenseFilter) ([]model.Expense, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	if !actor.IsSenior() {
		creatorID := actor.ID
		filter.CreatorID = &creatorID
	}
	expenses, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses from repo: %w", err)
	}
	return expenses, nil
}
