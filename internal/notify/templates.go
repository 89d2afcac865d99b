package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
)

const layoutHead = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; margin: 0; padding: 0; background-color: #f5f5f5;">
<table role="presentation" style="max-width: 480px; margin: 40px auto; background: #ffffff; border-radius: 8px;">
<tr><td style="padding: 32px 40px;">
<h1 style="margin: 0 0 16px; font-size: 22px; color: #1a1a1a;">{{.Title}}</h1>
`

const layoutFoot = `<p style="margin: 24px 0 0; color: #999; font-size: 13px;">Subscription reference: {{.SubscriptionID}}</p>
</td></tr>
</table>
</body>
</html>`

var successTemplate = template.Must(template.New("subscription_success").Parse(layoutHead + `<p style="color: #444; font-size: 15px; line-height: 1.5;">
{{.Lead}}
</p>
{{if .Price}}<p style="color: #444; font-size: 15px;">Amount: {{.Price}}{{if .Interval}} per {{.Interval}}{{end}}</p>{{end}}
{{if .ManageURL}}<a href="{{.ManageURL}}" style="display: inline-block; padding: 12px 32px; background: #2563eb; color: #ffffff; text-decoration: none; border-radius: 6px;">Manage billing</a>{{end}}
` + layoutFoot))

var errorTemplate = template.Must(template.New("subscription_error").Parse(layoutHead + `<p style="color: #444; font-size: 15px; line-height: 1.5;">
We received a change to your subscription but could not apply it to your account. Our team has been notified; no action is needed unless you were charged unexpectedly.
</p>
` + layoutFoot))

type templateData struct {
	Title          string
	Lead           string
	SubscriptionID string
	Price          string
	Interval       string
	ManageURL      string
}

func renderSuccess(e SubscriptionEmail, manageURL string) (subject, html, text string, err error) {
	subject, lead, showPrice := successCopy(e)
	data := templateData{
		Title:          subject,
		Lead:           lead,
		SubscriptionID: e.SubscriptionID,
		Interval:       e.RecurringInterval,
		ManageURL:      manageURL,
	}
	if showPrice {
		data.Price = FormatAmount(e.Amount, e.Currency)
	}

	var buf bytes.Buffer
	if err := successTemplate.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("render success template: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(lead + "\n")
	if data.Price != "" {
		sb.WriteString("\nAmount: " + data.Price)
		if data.Interval != "" {
			sb.WriteString(" per " + data.Interval)
		}
		sb.WriteString("\n")
	}
	if manageURL != "" {
		sb.WriteString("\nManage billing: " + manageURL + "\n")
	}
	sb.WriteString("\nSubscription reference: " + e.SubscriptionID)
	return subject, buf.String(), sb.String(), nil
}

// successCopy picks the subject and opening sentence for the state the
// subscription ended up in.
func successCopy(e SubscriptionEmail) (subject, lead string, showPrice bool) {
	name := "Your subscription"
	if e.ProductName != "" {
		name += " to " + e.ProductName
	}

	switch e.Status {
	case "canceled", "incomplete_expired":
		return "Your subscription has ended", name + " has been canceled.", false
	case "past_due", "unpaid":
		return "Action needed: your subscription payment failed",
			name + " is " + strings.ReplaceAll(e.Status, "_", " ") + ". Update your payment method to keep access.", true
	}
	if e.CancelAtPeriodEnd {
		lead = name + " will not renew and ends with the current billing period"
		if e.PeriodEnd != "" {
			lead += " on " + e.PeriodEnd
		}
		return "Your subscription will not renew", lead + ".", false
	}
	if e.Status == "trialing" {
		return "Your trial has started", name + " is now in its trial period.", true
	}
	return "Your subscription is confirmed", name + " is now " + statusOrDefault(e.Status) + ".", true
}

func renderError(e SubscriptionEmail) (html, text string, err error) {
	data := templateData{
		Title:          "We could not update your subscription",
		SubscriptionID: e.SubscriptionID,
	}

	var buf bytes.Buffer
	if err := errorTemplate.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render error template: %w", err)
	}

	text = fmt.Sprintf("We received a change to your subscription but could not apply it to your account.\n\nSubscription reference: %s", e.SubscriptionID)
	return buf.String(), text, nil
}

// FormatAmount renders minor units as "12.50 USD". It returns "" when the
// amount is unknown.
func FormatAmount(amount *int64, currency string) string {
	if amount == nil {
		return ""
	}
	major := decimal.New(*amount, -2).StringFixed(2)
	if currency == "" {
		return major
	}
	return major + " " + strings.ToUpper(currency)
}

func statusOrDefault(status string) string {
	if status == "" {
		return "active"
	}
	return status
}
