package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"publishing-api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PublishingStore is the persistence the publishing service needs.
// GetWorkflow and GetPage return nil, nil when the row does not exist.
type PublishingStore interface {
	GetWorkflow(ctx context.Context, pageID string) (*models.PublishingWorkflow, error)
	GetPage(ctx context.Context, pageID string) (*models.Page, error)
	SaveWorkflow(ctx context.Context, wf *models.PublishingWorkflow) (*models.PublishingWorkflow, error)
	// DecidePending moves a pending workflow to d. It fails with
	// ErrWorkflowNotFound or ErrInvalidTransition when no pending row matched.
	DecidePending(ctx context.Context, pageID string, d models.Decision, at time.Time) (*models.PublishingWorkflow, error)
	PublishPage(ctx context.Context, pageID, actorID string, at time.Time) (*models.Page, error)
	ListPendingApprovals(ctx context.Context, limit, offset int) ([]models.PendingApproval, error)
	ListPagesByStatus(ctx context.Context, status models.PageStatus, limit, offset int) ([]models.Page, error)
	CountPagesByStatus(ctx context.Context) (map[models.PageStatus]int64, error)
	CountPendingApprovals(ctx context.Context) (int64, error)
	// Transaction runs fn against a store bound to one database transaction.
	Transaction(ctx context.Context, fn func(tx PublishingStore) error) error
}

// GormPublishingStore implements PublishingStore on gorm.
type GormPublishingStore struct {
	db *gorm.DB
}

func NewGormPublishingStore(db *gorm.DB) *GormPublishingStore {
	return &GormPublishingStore{db: db}
}

var workflowUpsertColumns = []string{
	"requires_approval",
	"approval_status",
	"decided_by",
	"decided_at",
	"rejection_reason",
	"requested_by",
	"approvers",
	"updated_at",
}

func (s *GormPublishingStore) GetWorkflow(ctx context.Context, pageID string) (*models.PublishingWorkflow, error) {
	var wf models.PublishingWorkflow
	err := s.db.WithContext(ctx).Where("page_id = ?", pageID).Take(&wf).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load workflow %s: %w", pageID, err)
	}
	return &wf, nil
}

func (s *GormPublishingStore) GetPage(ctx context.Context, pageID string) (*models.Page, error) {
	var page models.Page
	err := s.db.WithContext(ctx).Where("id = ?", pageID).Take(&page).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load page %s: %w", pageID, err)
	}
	return &page, nil
}

func (s *GormPublishingStore) SaveWorkflow(ctx context.Context, wf *models.PublishingWorkflow) (*models.PublishingWorkflow, error) {
	row := *wf
	row.Page = nil
	if row.Approvers == nil {
		row.Approvers = []string{}
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "page_id"}},
			DoUpdates: clause.AssignmentColumns(workflowUpsertColumns),
		}).
		Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("upsert workflow %s: %w", wf.PageID, err)
	}

	saved, err := s.GetWorkflow(ctx, wf.PageID)
	if err != nil {
		return nil, err
	}
	if saved == nil {
		return nil, fmt.Errorf("upsert workflow %s: row missing after write", wf.PageID)
	}
	return saved, nil
}

func (s *GormPublishingStore) DecidePending(ctx context.Context, pageID string, d models.Decision, at time.Time) (*models.PublishingWorkflow, error) {
	updates := models.DecisionColumns(d)
	updates["updated_at"] = at

	res := s.db.WithContext(ctx).
		Model(&models.PublishingWorkflow{}).
		Where("page_id = ? AND approval_status = ?", pageID, models.ApprovalStatusPending).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("update workflow %s: %w", pageID, res.Error)
	}

	wf, err := s.GetWorkflow(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, ErrWorkflowNotFound
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidTransition
	}
	return wf, nil
}

func (s *GormPublishingStore) PublishPage(ctx context.Context, pageID, actorID string, at time.Time) (*models.Page, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Page{}).
		Where("id = ?", pageID).
		Updates(map[string]interface{}{
			"status":       models.PageStatusPublished,
			"published_at": at,
			"updated_by":   actorID,
			"updated_at":   at,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("publish page %s: %w", pageID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrPageNotFound
	}

	page, err := s.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, ErrPageNotFound
	}
	return page, nil
}

func (s *GormPublishingStore) ListPendingApprovals(ctx context.Context, limit, offset int) ([]models.PendingApproval, error) {
	var rows []models.PublishingWorkflow
	err := s.db.WithContext(ctx).
		InnerJoins("Page").
		Where("publishing_workflows.approval_status = ?", models.ApprovalStatusPending).
		Order("publishing_workflows.created_at DESC").
		Order("publishing_workflows.page_id ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}

	out := make([]models.PendingApproval, 0, len(rows))
	for _, row := range rows {
		page := row.Page.Summary()
		row.Page = nil
		out = append(out, models.PendingApproval{Workflow: row, Page: page})
	}
	return out, nil
}

func (s *GormPublishingStore) ListPagesByStatus(ctx context.Context, status models.PageStatus, limit, offset int) ([]models.Page, error) {
	pages := make([]models.Page, 0)
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("scheduled_for ASC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&pages).Error
	if err != nil {
		return nil, fmt.Errorf("list %s pages: %w", status, err)
	}
	return pages, nil
}

func (s *GormPublishingStore) CountPagesByStatus(ctx context.Context) (map[models.PageStatus]int64, error) {
	type statusCount struct {
		Status models.PageStatus `gorm:"column:status"`
		Count  int64             `gorm:"column:count"`
	}
	var rows []statusCount
	err := s.db.WithContext(ctx).
		Model(&models.Page{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count pages by status: %w", err)
	}

	counts := make(map[models.PageStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func (s *GormPublishingStore) CountPendingApprovals(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.PublishingWorkflow{}).
		Joins("JOIN pages ON pages.id = publishing_workflows.page_id").
		Where("publishing_workflows.approval_status = ?", models.ApprovalStatusPending).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count pending approvals: %w", err)
	}
	return n, nil
}

func (s *GormPublishingStore) Transaction(ctx context.Context, fn func(tx PublishingStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormPublishingStore{db: tx})
	})
}
