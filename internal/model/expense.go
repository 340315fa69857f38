package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the position of an expense in the approval workflow.
type Status string

const (
	// StatusDraft is reserved; nothing creates or moves an expense into it.
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Statuses lists every status in workflow order.
var Statuses = []Status{StatusDraft, StatusPending, StatusApproved, StatusRejected}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Expense is a petty-cash claim with up to three signature references
type Expense struct {
	ID                 int64           `json:"id"`
	Purpose            string          `json:"purpose"`
	Amount             decimal.Decimal `json:"amount"`
	RecipientName      string          `json:"recipient_name"`
	Status             Status          `json:"status"`
	CreatorID          int64           `json:"creator_id"`
	RecipientSignature *string         `json:"recipient_signature,omitempty"`
	EmployeeSignature  *string         `json:"employee_signature,omitempty"`
	SeniorSignature    *string         `json:"senior_signature,omitempty"`
	ApprovedByID       *int64          `json:"approved_by_id,omitempty"`
	ApprovedAt         *time.Time      `json:"approved_at,omitempty"`
	RejectionReason    *string         `json:"rejection_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	// Joined from users, read-only
	CreatorName  string  `json:"creator_name"`
	CreatorEmail string  `json:"-"`
	ApproverName *string `json:"approver_name,omitempty"`
}

// HasAllSignatures reports whether recipient, employee and senior signatures are all stored.
func (e *Expense) HasAllSignatures() bool {
	return nonEmpty(e.RecipientSignature) && nonEmpty(e.EmployeeSignature) && nonEmpty(e.SeniorSignature)
}

func (e *Expense) IsPending() bool { return e.Status == StatusPending }

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}

// CreateExpenseRequest is the submitted claim form. Amount stays a string until validated.
type CreateExpenseRequest struct {
	Purpose            string `form:"purpose" validate:"required,max=500"`
	Amount             string `form:"amount" validate:"required"`
	RecipientName      string `form:"recipient_name" validate:"required,max=120"`
	RecipientSignature string `form:"recipient_signature" validate:"required"`
	EmployeeSignature  string `form:"employee_signature" validate:"required"`
}

// ExpenseFilter narrows repository listings; nil fields are not applied.
type ExpenseFilter struct {
	CreatorID *int64
	Status    *Status
}
