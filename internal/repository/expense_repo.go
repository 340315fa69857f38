package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pettycash/internal/model"

	"github.com/jackc/pgx/v5"
)

// ExpenseRepository defines operations for expense data
type ExpenseRepository interface {
	Create(ctx context.Context, expense *model.Expense) error
	FindByID(ctx context.Context, id int64) (*model.Expense, error)
	List(ctx context.Context, filter model.ExpenseFilter) ([]model.Expense, error)
	// MarkApproved and MarkRejected only touch pending rows and report whether one changed.
	MarkApproved(ctx context.Context, id, approverID int64, seniorSignature string, at time.Time) (bool, error)
	MarkRejected(ctx context.Context, id int64, reason string) (bool, error)
}

type expenseRepository struct {
	db DBTX
}

// NewExpenseRepository creates a new ExpenseRepository
func NewExpenseRepository(db DBTX) ExpenseRepository {
	return &expenseRepository{db: db}
}

const expenseSelect = `SELECT e.id, e.purpose, e.amount, e.recipient_name, e.status, e.creator_id,
       e.recipient_signature, e.employee_signature, e.senior_signature,
       e.approved_by_id, e.approved_at, e.rejection_reason, e.created_at, e.updated_at,
       c.full_name, c.email, a.full_name
  FROM expenses e
  JOIN users c ON c.id = e.creator_id
  LEFT JOIN users a ON a.id = e.approved_by_id`

// Create inserts a new expense and fills in its generated fields
func (r *expenseRepository) Create(ctx context.Context, e *model.Expense) error {
	sql := `INSERT INTO expenses (purpose, amount, recipient_name, status, creator_id, recipient_signature, employee_signature)
            VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, sql, e.Purpose, e.Amount, e.RecipientName, e.Status, e.CreatorID,
		e.RecipientSignature, e.EmployeeSignature).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// FindByID retrieves an expense with creator and approver names
func (r *expenseRepository) FindByID(ctx context.Context, id int64) (*model.Expense, error) {
	e, err := scanExpense(r.db.QueryRow(ctx, expenseSelect+` WHERE e.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to find expense by ID: %w", err)
	}
	return e, nil
}

// List retrieves expenses matching the filter, newest first
func (r *expenseRepository) List(ctx context.Context, filter model.ExpenseFilter) ([]model.Expense, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(expenseSelect)

	var conditions []string
	var args []interface{}
	if filter.CreatorID != nil {
		args = append(args, *filter.CreatorID)
		conditions = append(conditions, fmt.Sprintf("e.creator_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)))
	}
	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(conditions, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY e.created_at DESC, e.id DESC")

	rows, err := r.db.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []model.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expenses: %w", err)
	}
	return expenses, nil
}

// MarkApproved moves a pending expense to approved
func (r *expenseRepository) MarkApproved(ctx context.Context, id, approverID int64, seniorSignature string, at time.Time) (bool, error) {
	sql := `UPDATE expenses
               SET status = 'approved', senior_signature = $2, approved_by_id = $3, approved_at = $4
             WHERE id = $1 AND status = 'pending'`
	tag, err := r.db.Exec(ctx, sql, id, seniorSignature, approverID, at)
	if err != nil {
		return false, fmt.Errorf("failed to approve expense: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkRejected moves a pending expense to rejected
func (r *expenseRepository) MarkRejected(ctx context.Context, id int64, reason string) (bool, error) {
	sql := `UPDATE expenses
               SET status = 'rejected', rejection_reason = $2
             WHERE id = $1 AND status = 'pending'`
	tag, err := r.db.Exec(ctx, sql, id, reason)
	if err != nil {
		return false, fmt.Errorf("failed to reject expense: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanExpense(row pgx.Row) (*model.Expense, error) {
	e := &model.Expense{}
	err := row.Scan(
		&e.ID, &e.Purpose, &e.Amount, &e.RecipientName, &e.Status, &e.CreatorID,
		&e.RecipientSignature, &e.EmployeeSignature, &e.SeniorSignature,
		&e.ApprovedByID, &e.ApprovedAt, &e.RejectionReason, &e.CreatedAt, &e.UpdatedAt,
		&e.CreatorName, &e.CreatorEmail, &e.ApproverName,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}
