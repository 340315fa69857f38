// Package web holds the embedded HTML templates.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"pettycash/internal/model"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

const dateLayout = "2006-01-02 15:04"

// Funcs are available to every page template.
var Funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return "$" + d.StringFixed(2) },
	"date":  formatDate,
	"upper": func(v any) string { return strings.ToUpper(fmt.Sprint(v)) },
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"statusClass": statusClass,
	"statuses":    func() []model.Status { return model.Statuses },
}

// ParseTemplates parses all embedded templates into one set.
func ParseTemplates() (*template.Template, error) {
	t, err := template.New("").Funcs(Funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return t, nil
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(dateLayout)
	case *time.Time:
		if t != nil {
			return t.UTC().Format(dateLayout)
		}
	}
	return "N/A"
}

func statusClass(s model.Status) string {
	switch s {
	case model.StatusPending:
		return "warning"
	case model.StatusApproved:
		return "success"
	case model.StatusRejected:
		return "danger"
	}
	return "secondary"
}
