// Package notify carries approval decisions from the web server to the mail worker.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"pettycash/internal/model"
)

// Decision is published when a senior approves or rejects an expense
type Decision struct {
	ExpenseID    int64        `json:"expense_id"`
	Status       model.Status `json:"status"`
	Purpose      string       `json:"purpose"`
	Amount       string       `json:"amount"`
	CreatorName  string       `json:"creator_name"`
	CreatorEmail string       `json:"creator_email"`
	DecidedBy    string       `json:"decided_by"`
	Reason       string       `json:"reason,omitempty"`
	DecidedAt    time.Time    `json:"decided_at"`
}

// NewDecision builds a Decision from an expense that has just left the pending state
func NewDecision(e *model.Expense, decidedBy *model.User, at time.Time) Decision {
	d := Decision{
		ExpenseID:    e.ID,
		Status:       e.Status,
		Purpose:      e.Purpose,
		Amount:       e.Amount.StringFixed(2),
		CreatorName:  e.CreatorName,
		CreatorEmail: e.CreatorEmail,
		DecidedAt:    at.UTC(),
	}
	if decidedBy != nil {
		d.DecidedBy = decidedBy.FullName
	}
	if e.RejectionReason != nil {
		d.Reason = *e.RejectionReason
	}
	return d
}

// DecodeDecision parses a queued message body
func DecodeDecision(body []byte) (Decision, error) {
	var d Decision
	if err := json.Unmarshal(body, &d); err != nil {
		return Decision{}, fmt.Errorf("failed to decode decision: %w", err)
	}
	if d.ExpenseID == 0 || d.CreatorEmail == "" {
		return Decision{}, fmt.Errorf("decision is missing expense id or recipient")
	}
	if d.Status != model.StatusApproved && d.Status != model.StatusRejected {
		return Decision{}, fmt.Errorf("decision has unexpected status %q", d.Status)
	}
	return d, nil
}
