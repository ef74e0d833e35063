package services

import (
	"context"
	"errors"
	"testing"

	"publishing-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	enabled bool
	err     error
	to      []string
	subject string
	html    string
	sent    int
}

func (m *fakeMailer) Enabled() bool { return m.enabled }

func (m *fakeMailer) Send(to []string, subject, html string) error {
	m.sent++
	m.to = to
	m.subject = subject
	m.html = html
	return m.err
}

func sampleWorkflow(approvers ...string) (*models.PublishingWorkflow, *models.Page) {
	requester := "author-7"
	wf := &models.PublishingWorkflow{
		PageID:           "page-1",
		RequiresApproval: true,
		RequestedBy:      &requester,
		Approvers:        approvers,
	}
	wf.SetDecision(models.Pending{})
	page := &models.Page{
		ID:     "page-1",
		Title:  "Pricing <beta>",
		Slug:   "pricing-beta",
		Status: models.PageStatusDraft,
	}
	return wf, page
}

func TestMailApprovalNotifierSends(t *testing.T) {
	mailer := &fakeMailer{enabled: true}
	n := NewMailApprovalNotifier(mailer, "https://admin.example.org/")

	wf, page := sampleWorkflow("lead@example.org", "legal@example.org")
	require.NoError(t, n.NotifyApprovalRequested(context.Background(), wf, page))

	assert.Equal(t, 1, mailer.sent)
	assert.Equal(t, []string{"lead@example.org", "legal@example.org"}, mailer.to)
	assert.Equal(t, "Approval requested: Pricing <beta>", mailer.subject)
	assert.Contains(t, mailer.html, "Pricing &lt;beta&gt;")
	assert.NotContains(t, mailer.html, "<beta>")
	assert.Contains(t, mailer.html, "author-7 asked you to review")
	assert.Contains(t, mailer.html, `href="https://admin.example.org/pages/page-1/workflow"`)
}

func TestMailApprovalNotifierSkips(t *testing.T) {
	wf, page := sampleWorkflow("lead@example.org")

	disabled := &fakeMailer{}
	require.NoError(t, NewMailApprovalNotifier(disabled, "").NotifyApprovalRequested(context.Background(), wf, page))
	assert.Zero(t, disabled.sent)

	enabled := &fakeMailer{enabled: true}
	noApprovers, _ := sampleWorkflow()
	require.NoError(t, NewMailApprovalNotifier(enabled, "").NotifyApprovalRequested(context.Background(), noApprovers, page))
	assert.Zero(t, enabled.sent)

	require.NoError(t, NewMailApprovalNotifier(nil, "").NotifyApprovalRequested(context.Background(), wf, page))
}

func TestMailApprovalNotifierWrapsSendError(t *testing.T) {
	boom := errors.New("smtp down")
	mailer := &fakeMailer{enabled: true, err: boom}
	wf, page := sampleWorkflow("lead@example.org")

	err := NewMailApprovalNotifier(mailer, "").NotifyApprovalRequested(context.Background(), wf, page)
	require.ErrorIs(t, err, boom)
	assert.NotContains(t, mailer.html, "Review page", "no link without an admin URL")
}
