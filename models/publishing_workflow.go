package models

import (
	"encoding/json"
	"time"
)

// ApprovalStatus is the decision state of a workflow record.
// A record without approval carries no status at all (NULL).
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// Decision is the approval state of a workflow: Pending, Approved or Rejected.
// Only these three types implement it.
type Decision interface {
	Status() ApprovalStatus
	isDecision()
}

// Pending waits for a reviewer.
type Pending struct{}

// Approved records who approved the page and when.
type Approved struct {
	By string
	At time.Time
}

// Rejected records who rejected the page, when and why.
type Rejected struct {
	By     string
	At     time.Time
	Reason string
}

func (Pending) Status() ApprovalStatus  { return ApprovalStatusPending }
func (Approved) Status() ApprovalStatus { return ApprovalStatusApproved }
func (Rejected) Status() ApprovalStatus { return ApprovalStatusRejected }

func (Pending) isDecision()  {}
func (Approved) isDecision() {}
func (Rejected) isDecision() {}

// PublishingWorkflow represents the publishing_workflows table, one row per page.
//
// The decision columns are never written directly: SetDecision keeps
// approval_status, decided_by, decided_at and rejection_reason consistent.
type PublishingWorkflow struct {
	PageID           string          `gorm:"primaryKey;column:page_id;type:varchar(36)"`
	RequiresApproval bool            `gorm:"column:requires_approval;not null;default:false"`
	ApprovalStatus   *ApprovalStatus `gorm:"column:approval_status;type:varchar(20);index"`
	DecidedBy        *string         `gorm:"column:decided_by;type:varchar(64)"`
	DecidedAt        *time.Time      `gorm:"column:decided_at"`
	RejectionReason  *string         `gorm:"column:rejection_reason;type:text"`
	RequestedBy      *string         `gorm:"column:requested_by;type:varchar(64)"`
	Approvers        []string        `gorm:"column:approvers;type:text;serializer:json"`
	CreatedAt        time.Time       `gorm:"column:created_at;index"`
	UpdatedAt        time.Time       `gorm:"column:updated_at"`

	Page *Page `gorm:"foreignKey:PageID;references:ID"`
}

func (PublishingWorkflow) TableName() string {
	return "publishing_workflows"
}

// Decision returns the current decision, or nil when approval is not required.
func (w *PublishingWorkflow) Decision() Decision {
	if w.ApprovalStatus == nil {
		return nil
	}
	switch *w.ApprovalStatus {
	case ApprovalStatusPending:
		return Pending{}
	case ApprovalStatusApproved:
		return Approved{By: deref(w.DecidedBy), At: derefTime(w.DecidedAt)}
	case ApprovalStatusRejected:
		return Rejected{By: deref(w.DecidedBy), At: derefTime(w.DecidedAt), Reason: deref(w.RejectionReason)}
	}
	return nil
}

// SetDecision overwrites every decision column from d. A nil d clears them.
func (w *PublishingWorkflow) SetDecision(d Decision) {
	w.ApprovalStatus = nil
	w.DecidedBy = nil
	w.DecidedAt = nil
	w.RejectionReason = nil

	switch v := d.(type) {
	case Pending:
		status := v.Status()
		w.ApprovalStatus = &status
	case Approved:
		status := v.Status()
		at := v.At
		by := v.By
		w.ApprovalStatus = &status
		w.DecidedBy = &by
		w.DecidedAt = &at
	case Rejected:
		status := v.Status()
		at := v.At
		by := v.By
		reason := v.Reason
		w.ApprovalStatus = &status
		w.DecidedBy = &by
		w.DecidedAt = &at
		w.RejectionReason = &reason
	}
}

// DecisionColumns maps d onto the decision columns for a column-level update.
func DecisionColumns(d Decision) map[string]interface{} {
	var w PublishingWorkflow
	w.SetDecision(d)
	return map[string]interface{}{
		"approval_status":  w.ApprovalStatus,
		"decided_by":       w.DecidedBy,
		"decided_at":       w.DecidedAt,
		"rejection_reason": w.RejectionReason,
	}
}

// IsPending reports whether the record waits for a reviewer.
func (w *PublishingWorkflow) IsPending() bool {
	return w.ApprovalStatus != nil && *w.ApprovalStatus == ApprovalStatusPending
}

type workflowJSON struct {
	PageID           string          `json:"pageId"`
	RequiresApproval bool            `json:"requiresApproval"`
	ApprovalStatus   *ApprovalStatus `json:"approvalStatus"`
	ApprovedBy       *string         `json:"approvedBy,omitempty"`
	ApprovedAt       *time.Time      `json:"approvedAt,omitempty"`
	RejectedBy       *string         `json:"rejectedBy,omitempty"`
	RejectedAt       *time.Time      `json:"rejectedAt,omitempty"`
	RejectionReason  *string         `json:"rejectionReason,omitempty"`
	RequestedBy      *string         `json:"requestedBy"`
	Approvers        []string        `json:"approvers"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (w PublishingWorkflow) view() workflowJSON {
	out := workflowJSON{
		PageID:           w.PageID,
		RequiresApproval: w.RequiresApproval,
		ApprovalStatus:   w.ApprovalStatus,
		RequestedBy:      w.RequestedBy,
		Approvers:        w.Approvers,
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        w.UpdatedAt,
	}
	if out.Approvers == nil {
		out.Approvers = []string{}
	}
	switch d := w.Decision().(type) {
	case Approved:
		out.ApprovedBy = &d.By
		out.ApprovedAt = &d.At
	case Rejected:
		out.RejectedBy = &d.By
		out.RejectedAt = &d.At
		out.RejectionReason = &d.Reason
	}
	return out
}

// MarshalJSON exposes approval fields only on approved records and
// rejection fields only on rejected ones.
func (w PublishingWorkflow) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.view())
}

// PendingApproval is a pending workflow together with its page summary.
type PendingApproval struct {
	Workflow PublishingWorkflow
	Page     PageSummary
}

func (p PendingApproval) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		workflowJSON
		Page PageSummary `json:"page"`
	}{
		workflowJSON: p.Workflow.view(),
		Page:         p.Page,
	})
}

// PublishingStats counts pages per status plus pending approvals.
type PublishingStats struct {
	Total            int64 `json:"total"`
	Draft            int64 `json:"draft"`
	Scheduled        int64 `json:"scheduled"`
	Published        int64 `json:"published"`
	Archived         int64 `json:"archived"`
	PendingApprovals int64 `json:"pendingApprovals"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
