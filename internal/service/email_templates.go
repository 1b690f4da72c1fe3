package service

import (
	"bytes"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wealthwizard/finance-api/internal/markdown"
	"github.com/wealthwizard/finance-api/internal/model"
	"github.com/wealthwizard/finance-api/internal/money"
)

//go:embed templates/*.md
var templateFS embed.FS

// Message is a rendered notification: email subject and HTML plus the
// short push body.
type Message struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
	HTML    string `yaml:"-"`
}

// Templates renders the embedded Markdown notification templates.
type Templates struct {
	tmpl    *template.Template
	parser  *markdown.Parser
	locale  string
	appName string
	appURL  string
}

func NewTemplates(parser *markdown.Parser, locale, appName, appURL string) (*Templates, error) {
	tmpl, err := template.New("notifications").Funcs(template.FuncMap{
		"q":    strconv.Quote,
		"date": func(t time.Time) string { return t.Format("02 Jan 2006") },
		"title": func(s string) string {
			if s == "" {
				return s
			}
			return strings.ToUpper(s[:1]) + s[1:]
		},
		"periodUnit": func(p model.ReportPeriod) string {
			if p == model.ReportWeekly {
				return "week"
			}
			return "month"
		},
		"netLabel": func(net decimal.Decimal) string {
			if net.IsNegative() {
				return "loss"
			}
			return "profit"
		},
	}).ParseFS(templateFS, "templates/*.md")
	if err != nil {
		return nil, fmt.Errorf("failed to parse notification templates: %w", err)
	}

	return &Templates{
		tmpl:    tmpl,
		parser:  parser,
		locale:  locale,
		appName: appName,
		appURL:  appURL,
	}, nil
}

// templateData is what every template sees. Money and Percent format in
// the recipient's currency.
type templateData struct {
	AppName   string
	AppURL    string
	Name      string
	Event     any
	Remaining decimal.Decimal
	formatter *money.Formatter
}

func (d templateData) Money(amount decimal.Decimal) string {
	return d.formatter.Format(amount)
}

func (d templateData) Percent(p float64) string {
	return d.formatter.Percent(p)
}

// Render executes the named template (without extension) for user and
// converts the result to HTML.
func (t *Templates) Render(name string, user *model.User, event any) (*Message, error) {
	data := templateData{
		AppName:   t.appName,
		AppURL:    t.appURL,
		Name:      user.DisplayName(),
		Event:     event,
		formatter: money.NewFormatter(t.locale, user.Currency),
	}
	if e, ok := event.(model.GoalProgressEvent); ok {
		data.Remaining = decimal.Max(decimal.Zero, e.TargetAmount.Sub(e.CurrentAmount))
	}

	var src bytes.Buffer
	err := t.tmpl.ExecuteTemplate(&src, name+".md", data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	msg := &Message{}
	html, err := t.parser.ParseWithFrontmatter(src.Bytes(), msg)
	if err != nil {
		return nil, fmt.Errorf("failed to render template %s: %w", name, err)
	}
	msg.HTML = string(html)

	return msg, nil
}
