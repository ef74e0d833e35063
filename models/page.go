package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PageStatus is the publish-lifecycle state of a page.
type PageStatus string

const (
	PageStatusDraft     PageStatus = "draft"
	PageStatusScheduled PageStatus = "scheduled"
	PageStatusPublished PageStatus = "published"
	PageStatusArchived  PageStatus = "archived"
)

// PageStatuses lists every status a page can hold.
var PageStatuses = []PageStatus{
	PageStatusDraft,
	PageStatusScheduled,
	PageStatusPublished,
	PageStatusArchived,
}

// Page represents the pages table owned by the content-authoring side.
// The publishing workflow only touches Status, PublishedAt and UpdatedBy.
type Page struct {
	ID           string     `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	Title        string     `gorm:"column:title;not null" json:"title"`
	Slug         string     `gorm:"column:slug;type:varchar(191);uniqueIndex" json:"slug"`
	Description  *string    `gorm:"column:description;type:text" json:"description"`
	Status       PageStatus `gorm:"column:status;type:varchar(20);not null;default:draft;index" json:"status"`
	ScheduledFor *time.Time `gorm:"column:scheduled_for;index" json:"scheduledFor"`
	UnpublishAt  *time.Time `gorm:"column:unpublish_at" json:"unpublishAt"`
	PublishedAt  *time.Time `gorm:"column:published_at" json:"publishedAt"`
	CreatedBy    *string    `gorm:"column:created_by;type:varchar(64)" json:"createdBy"`
	UpdatedBy    *string    `gorm:"column:updated_by;type:varchar(64)" json:"updatedBy"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" json:"updatedAt"`
}

func (Page) TableName() string {
	return "pages"
}

// BeforeCreate fills the identifier and default status for new rows.
func (p *Page) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = PageStatusDraft
	}
	return nil
}

func (p *Page) IsPublished() bool {
	return p.Status == PageStatusPublished
}

// PageSummary is the slice of a page returned next to a pending approval.
type PageSummary struct {
	ID          string     `gorm:"column:id" json:"id"`
	Title       string     `gorm:"column:title" json:"title"`
	Slug        string     `gorm:"column:slug" json:"slug"`
	Description *string    `gorm:"column:description" json:"description"`
	Status      PageStatus `gorm:"column:status" json:"status"`
	CreatedBy   *string    `gorm:"column:created_by" json:"createdBy"`
	UpdatedBy   *string    `gorm:"column:updated_by" json:"updatedBy"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updatedAt"`
}

// Summary returns the pending-approval view of p.
func (p *Page) Summary() PageSummary {
	return PageSummary{
		ID:          p.ID,
		Title:       p.Title,
		Slug:        p.Slug,
		Description: p.Description,
		Status:      p.Status,
		CreatedBy:   p.CreatedBy,
		UpdatedBy:   p.UpdatedBy,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
