// Package notify e-mails the concierge when a guest submits an enquiry.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/resend/resend-go/v3"

	"woodheaven_farms/internal/adapters/observability"
	"woodheaven_farms/internal/domain"
)

type Resend struct {
	client *resend.Client
	from   string
	to     string // used when the site has no contact e-mail
}

func NewResend(apiKey, from, to string) *Resend {
	return NewResendWithClient(resend.NewClient(apiKey), from, to)
}

func NewResendWithClient(c *resend.Client, from, to string) *Resend {
	return &Resend{client: c, from: from, to: to}
}

var leadTmpl = template.Must(template.New("lead").Parse(`<!DOCTYPE html>
<html>
<body style="font-family:Arial,Helvetica,sans-serif;color:#2f2a24;">
  <h2 style="margin:0 0 16px 0;">{{.Heading}}</h2>
  <table cellpadding="6" cellspacing="0" style="border-collapse:collapse;">
    {{range .Rows}}<tr><td style="color:#7a6f62;">{{.Label}}</td><td><strong>{{.Value}}</strong></td></tr>
    {{end}}
  </table>
  <p style="margin-top:24px;"><a href="{{.WhatsApp}}">Reply on WhatsApp</a></p>
</body>
</html>`))

type row struct{ Label, Value string }

type leadView struct {
	Heading  string
	Rows     []row
	WhatsApp string
}

func (n *Resend) NotifyStay(ctx context.Context, site domain.SiteSettings, e domain.StayEnquiry) error {
	return n.send(ctx, site, fmt.Sprintf("New stay enquiry from %s", e.Name), leadView{
		Heading: "New stay enquiry",
		Rows: []row{
			{"Name", e.Name}, {"Phone", e.Phone},
			{"Dates", e.Checkin + " to " + e.Checkout},
			{"Guests", fmt.Sprint(e.Guests)},
			{"Message", e.Message}, {"Source", e.Source},
		},
		WhatsApp: "https://wa.me/" + digits(e.Phone),
	})
}

func (n *Resend) NotifyEvent(ctx context.Context, site domain.SiteSettings, e domain.EventEnquiry) error {
	return n.send(ctx, site, fmt.Sprintf("New %s enquiry from %s", e.EventType, e.Name), leadView{
		Heading: "New event enquiry",
		Rows: []row{
			{"Name", e.Name}, {"Phone", e.Phone},
			{"Type", string(e.EventType)}, {"Date", e.EventDate},
			{"Guests", fmt.Sprint(e.Guests)},
			{"Requirements", e.Requirements}, {"Source", e.Source},
		},
		WhatsApp: "https://wa.me/" + digits(e.Phone),
	})
}

func (n *Resend) send(ctx context.Context, site domain.SiteSettings, subject string, v leadView) error {
	to := site.EmailAddress
	if to == "" {
		to = n.to
	}
	if to == "" {
		return nil
	}
	var html bytes.Buffer
	if err := leadTmpl.Execute(&html, v); err != nil {
		return err
	}
	brand := site.BrandName
	if brand == "" {
		brand = "Wood Heaven Farms"
	}

	start := time.Now()
	_, err := n.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", brand, n.from),
		To:      []string{to},
		Subject: subject,
		Html:    html.String(),
	})
	status := 200
	if err != nil {
		status = 0
	}
	observability.ObserveExternal("resend", "emails", status, time.Since(start))
	if err != nil {
		return fmt.Errorf("send lead notification: %w", err)
	}
	return nil
}

func digits(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b = append(b, s[i])
		}
	}
	return string(b)
}
