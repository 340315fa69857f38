package notify

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/wneessen/go-mail"
)

var decisionTemplate = template.Must(template.New("decision").Parse(`<p>Hello {{.CreatorName}},</p>
{{if eq .Status "approved"}}<p>Your expense #{{.ExpenseID}} ({{.Purpose}}, ${{.Amount}}) was approved by {{.DecidedBy}}.</p>
{{else}}<p>Your expense #{{.ExpenseID}} ({{.Purpose}}, ${{.Amount}}) was rejected by {{.DecidedBy}}.</p>
<p>Reason: {{.Reason}}</p>
{{end}}<p>PettyCash</p>
`))

// Subject returns the mail subject line for a decision
func Subject(d Decision) string {
	return fmt.Sprintf("PettyCash - expense #%d %s", d.ExpenseID, strings.ToLower(string(d.Status)))
}

// BuildMessage renders the notification mail for the expense creator
func BuildMessage(from string, d Decision) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("failed to set sender: %w", err)
	}
	if err := m.AddTo(d.CreatorEmail); err != nil {
		return nil, fmt.Errorf("failed to set recipient: %w", err)
	}
	m.Subject(Subject(d))
	if err := m.SetBodyHTMLTemplate(decisionTemplate, d); err != nil {
		return nil, fmt.Errorf("failed to render mail body: %w", err)
	}
	return m, nil
}
