package services

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"publishing-api/models"
)

// MailSender is the part of config.Mailer the notifier uses.
type MailSender interface {
	Enabled() bool
	Send(to []string, subject, html string) error
}

// MailApprovalNotifier e-mails the approvers of a page when it enters review.
type MailApprovalNotifier struct {
	mailer       MailSender
	adminBaseURL string
}

func NewMailApprovalNotifier(mailer MailSender, adminBaseURL string) *MailApprovalNotifier {
	return &MailApprovalNotifier{
		mailer:       mailer,
		adminBaseURL: strings.TrimRight(adminBaseURL, "/"),
	}
}

func (n *MailApprovalNotifier) NotifyApprovalRequested(ctx context.Context, wf *models.PublishingWorkflow, page *models.Page) error {
	if n.mailer == nil || !n.mailer.Enabled() || len(wf.Approvers) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("Approval requested: %s", page.Title)
	requester := "someone"
	if wf.RequestedBy != nil && *wf.RequestedBy != "" {
		requester = *wf.RequestedBy
	}

	link := ""
	if n.adminBaseURL != "" {
		link = n.adminBaseURL + "/pages/" + page.ID + "/workflow"
	}

	html := buildApprovalEmail(subject, []string{
		fmt.Sprintf("%s asked you to review the page below before it is published.", requester),
		"Approve it to publish immediately, or reject it with a reason so the author can revise it.",
	}, [][2]string{
		{"Title", page.Title},
		{"Slug", page.Slug},
		{"Status", string(page.Status)},
	}, link)

	if err := n.mailer.Send(wf.Approvers, subject, html); err != nil {
		return fmt.Errorf("send approval request for page %s: %w", page.ID, err)
	}
	return nil
}

func buildApprovalEmail(subject string, paragraphs []string, meta [][2]string, link string) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;color:#111827;">`)
	b.WriteString(`<h2 style="margin:0 0 18px 0;">`)
	b.WriteString(template.HTMLEscapeString(subject))
	b.WriteString(`</h2>`)

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b.WriteString(`<p style="margin:0 0 18px 0;line-height:1.7;">`)
		b.WriteString(template.HTMLEscapeString(p))
		b.WriteString(`</p>`)
	}

	if len(meta) > 0 {
		b.WriteString(`<table role="presentation" cellpadding="0" cellspacing="0" style="border:1px solid #e5e7eb;margin:0 0 24px 0;">`)
		for _, row := range meta {
			if strings.TrimSpace(row[1]) == "" {
				continue
			}
			fmt.Fprintf(&b, `<tr><td style="padding:8px 16px;color:#6b7280;">%s</td><td style="padding:8px 16px;font-weight:600;">%s</td></tr>`,
				template.HTMLEscapeString(row[0]), template.HTMLEscapeString(row[1]))
		}
		b.WriteString(`</table>`)
	}

	if link != "" {
		fmt.Fprintf(&b, `<p><a href="%s" style="display:inline-block;padding:12px 28px;background-color:#2563eb;color:#ffffff;text-decoration:none;border-radius:999px;">Review page</a></p>`,
			template.HTMLEscapeString(link))
	}
	b.WriteString(`</body></html>`)
	return b.String()
}
