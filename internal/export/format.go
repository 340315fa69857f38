// Package export renders expenses as CSV listings and PDF vouchers.
package export

import (
	"strings"
	"time"

	"pettycash/internal/model"
)

// DateLayout is used for every timestamp in exported documents. Times are shown in UTC.
const DateLayout = "2006-01-02 15:04"

const notAvailable = "N/A"

func formatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

func formatAmount(e *model.Expense) string {
	return "$" + e.Amount.StringFixed(2)
}

func formatStatus(s model.Status) string {
	return strings.ToUpper(string(s))
}

func approverName(e *model.Expense) string {
	if e.ApproverName == nil || *e.ApproverName == "" {
		return notAvailable
	}
	return *e.ApproverName
}

func approvedDate(e *model.Expense) string {
	if e.ApprovedAt == nil {
		return notAvailable
	}
	return formatDate(*e.ApprovedAt)
}
